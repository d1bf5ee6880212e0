// seed-admin creates or updates the back-office admin user and makes sure
// the default warehouse exists.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/models"
	"github.com/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "mesAdmin"
	adminName     = "MES Admin"
)

func main() {
	password := flag.String("password", "", "Admin password. Falls back to SEED_ADMIN_PASSWORD.")
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("SEED_ADMIN_PASSWORD")
	}
	if *password == "" {
		fmt.Fprintln(os.Stderr, "admin password required: pass -password or set SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetIsAdminInContext(ctx, true)

	hashed, err := utils.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username: adminUsername,
			Name:     adminName,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
			Role:     models.UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q (role=Admin)\n", adminUsername)
	} else {
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
			"password":  hashedStr,
			"name":      adminName,
			"is_active": utils.NewTrue(),
			"role":      models.UserRoleAdmin,
		}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated admin user: username=%q (role=Admin)\n", adminUsername)
	}

	// Default warehouse for completions that don't name one.
	var warehouse models.Warehouse
	err = db.WithContext(ctx).Model(&models.Warehouse{}).
		Where("code = ?", models.DefaultWarehouseCode).First(&warehouse).Error
	if err == gorm.ErrRecordNotFound {
		warehouse = models.Warehouse{
			Code:     models.DefaultWarehouseCode,
			Name:     "Default Warehouse",
			IsActive: utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create default warehouse: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created default warehouse: code=%q\n", models.DefaultWarehouseCode)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup default warehouse: %v\n", err)
		os.Exit(1)
	}
}
