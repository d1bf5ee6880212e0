package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/mes_backend/models"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

func createItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewItem
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithError(c, err)
			return
		}
		item, err := models.CreateItem(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func updateItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		var input models.NewItem
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithError(c, err)
			return
		}
		item, err := models.UpdateItem(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func deleteItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		item, err := models.DeleteItem(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func getItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := models.GetItemByCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func listItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := utils.NilIfEmpty(c.Query("name"))
		var category *models.ItemCategory
		if v := c.Query("category"); v != "" {
			cat := models.ItemCategory(v)
			category = &cat
		}
		items, err := models.ListItems(c.Request.Context(), name, category)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func exportItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=items.xlsx")
		if err := models.ExportItemsExcel(c.Request.Context(), c.Writer); err != nil {
			c.Status(http.StatusInternalServerError)
		}
	}
}

func createWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewWarehouse
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithError(c, err)
			return
		}
		warehouse, err := models.CreateWarehouse(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, warehouse)
	}
}

func updateWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		var input models.NewWarehouse
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithError(c, err)
			return
		}
		warehouse, err := models.UpdateWarehouse(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, warehouse)
	}
}

func deleteWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		warehouse, err := models.DeleteWarehouse(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, warehouse)
	}
}

func listWarehousesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		warehouses, err := models.ListWarehouses(c.Request.Context(), utils.NilIfEmpty(c.Query("name")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, warehouses)
	}
}

func createBomEdgeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBomEdge
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithError(c, err)
			return
		}
		edge, err := models.CreateBomEdge(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, edge)
	}
}

func deleteBomEdgeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		edge, err := models.DeleteBomEdge(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, edge)
	}
}

func listBomEdgesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		parent := c.Query("parent_item_code")
		if parent == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parent_item_code is required"})
			return
		}
		edges, err := models.GetBomEdges(c.Request.Context(), parent)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, edges)
	}
}

func createProcessStepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBomProcessStep
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithError(c, err)
			return
		}
		step, err := models.CreateBomProcessStep(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, step)
	}
}

func updateProcessStepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		var input models.NewBomProcessStep
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithError(c, err)
			return
		}
		step, err := models.UpdateBomProcessStep(c.Request.Context(), id, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, step)
	}
}

func deleteProcessStepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdParam(c)
		if !ok {
			return
		}
		step, err := models.DeleteBomProcessStep(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, step)
	}
}

func listProcessStepsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		itemCode := c.Query("item_code")
		if itemCode == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "item_code is required"})
			return
		}
		steps, err := models.GetBomProcessSteps(c.Request.Context(), itemCode)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, steps)
	}
}

func listStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stocks, err := models.ListStock(c.Request.Context(), utils.NilIfEmpty(c.Query("item_code")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, stocks)
	}
}

func exportStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filename := "stock-" + time.Now().In(models.BusinessTimezone()).Format("20060102") + ".xlsx"
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := models.ExportStockExcel(c.Request.Context(), c.Writer); err != nil {
			c.Status(http.StatusInternalServerError)
		}
	}
}

type adjustStockRequest struct {
	ItemCode string          `json:"item_code" binding:"required"`
	Delta    decimal.Decimal `json:"delta" binding:"required"`
	Remark   string          `json:"remark"`
}

func adjustStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req adjustStockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, err)
			return
		}
		inventory, err := models.AdjustStock(c.Request.Context(), req.ItemCode, req.Delta, req.Remark)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, inventory)
	}
}

func listStockAdjustmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		adjustments, err := models.ListStockAdjustments(c.Request.Context(), c.Param("itemCode"), limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, adjustments)
	}
}

func listLotsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		includeEmpty := c.Query("include_empty") == "true"
		lots, err := models.ListLots(c.Request.Context(), c.Param("itemCode"), includeEmpty)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, lots)
	}
}
