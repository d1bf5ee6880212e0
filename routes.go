package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/mes_backend/middlewares"
	"github.com/mmdatafocus/mes_backend/models"
	"github.com/mmdatafocus/mes_backend/utils"
)

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")

	api.POST("/auth/login", loginHandler())

	protected := api.Group("", middlewares.RequireAuth())

	admin := protected.Group("", middlewares.RequireAdmin())
	admin.POST("/users", createUserHandler())

	protected.POST("/items", createItemHandler())
	protected.PUT("/items/:id", updateItemHandler())
	protected.DELETE("/items/:id", deleteItemHandler())
	protected.GET("/items", listItemsHandler())
	protected.GET("/items/export", exportItemsHandler())
	protected.GET("/items/:code", getItemHandler())

	protected.POST("/warehouses", createWarehouseHandler())
	protected.PUT("/warehouses/:id", updateWarehouseHandler())
	protected.DELETE("/warehouses/:id", deleteWarehouseHandler())
	protected.GET("/warehouses", listWarehousesHandler())

	protected.POST("/bom/edges", createBomEdgeHandler())
	protected.DELETE("/bom/edges/:id", deleteBomEdgeHandler())
	protected.GET("/bom/edges", listBomEdgesHandler())
	protected.GET("/bom/:itemCode/explosion", explodeBomHandler())

	protected.POST("/process-steps", createProcessStepHandler())
	protected.PUT("/process-steps/:id", updateProcessStepHandler())
	protected.DELETE("/process-steps/:id", deleteProcessStepHandler())
	protected.GET("/process-steps", listProcessStepsHandler())

	protected.GET("/stock", listStockHandler())
	protected.GET("/stock/export", exportStockHandler())
	protected.POST("/stock/adjustments", adjustStockHandler())
	protected.GET("/stock/:itemCode/adjustments", listStockAdjustmentsHandler())
	protected.GET("/stock/:itemCode/lots", listLotsHandler())

	protected.POST("/production/plans", createProductionPlanHandler())
	protected.POST("/production/instructions", createProductionInstructionHandler())
	protected.GET("/production/instructions", listProductionInstructionsHandler())
	protected.POST("/production/start", startProductionHandler())
	protected.POST("/production/end", endProductionHandler())
	protected.GET("/production/runs", listProductionRunsHandler())
	protected.GET("/production/defects/:batchCode", listDefectRecordsHandler())
	protected.GET("/production/results", productionResultsHandler())
}

// abortWithError maps domain errors onto HTTP codes. A shortage rejection
// carries the full short-item list so the client can show what to restock.
func abortWithError(c *gin.Context, err error) {
	var shortageErr *models.ShortageError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &shortageErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":          shortageErr.Error(),
			"shortage_items": shortageErr.Items,
		})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func parseIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
