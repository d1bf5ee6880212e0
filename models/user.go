package models

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/utils"
	"golang.org/x/crypto/bcrypt"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "Admin"
	UserRoleOperator UserRole = "Operator"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     *string   `gorm:"size:100" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"size:20;not null;default:'Operator'" json:"role"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email"`
	Password string   `json:"password" binding:"required,min=8"`
	Role     UserRole `json:"role"`
	IsActive *bool    `json:"is_active"`
}

type LoginInfo struct {
	Token string   `json:"token"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	username := html.EscapeString(strings.TrimSpace(input.Username))
	if username == "" {
		return nil, errors.New("username is required")
	}
	if err := utils.ValidateUnique[User](ctx, "username", username, 0); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = UserRoleOperator
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}

	user := User{
		Username: username,
		Name:     input.Name,
		Email:    utils.NilIfEmpty(input.Email),
		Password: string(hashed),
		Role:     role,
		IsActive: isActive,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()

	var user User
	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
	if err != nil {
		return nil, errors.New("invalid username or password")
	}

	err = utils.ComparePassword(user.Password, password)
	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return nil, errors.New("invalid username or password")
	} else if err != nil {
		return nil, err
	}

	if user.IsActive == nil || !*user.IsActive {
		return nil, errors.New("user is disabled")
	}

	token, err := utils.JwtGenerate(user.ID, user.Name, string(user.Role))
	if err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token: token,
		Name:  user.Name,
		Role:  user.Role,
	}, nil
}
