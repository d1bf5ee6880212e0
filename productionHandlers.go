package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/models"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/mmdatafocus/mes_backend/workflow"
)

func explodeBomHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "ExplodeBom")
		defer span.End()

		quantity, err := utils.ParseDecimal(c.Query("quantity"))
		if err != nil || !quantity.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be a positive number"})
			return
		}
		result, err := models.ExplodeBom(ctx, c.Param("itemCode"), quantity)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func createProductionPlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProductionPlan
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithError(c, err)
			return
		}
		plan, err := models.CreateProductionPlan(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, plan)
	}
}

func createProductionInstructionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProductionInstruction
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithError(c, err)
			return
		}
		instruction, err := models.CreateProductionInstruction(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, instruction)
	}
}

func listProductionInstructionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		instructions, err := models.ListProductionInstructions(c.Request.Context(), utils.NilIfEmpty(c.Query("plan_code")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, instructions)
	}
}

type startProductionRequest struct {
	InstructionCode string `json:"instruction_code" binding:"required"`
}

func startProductionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startProductionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, err)
			return
		}
		run, err := workflow.StartProduction(c.Request.Context(), config.GetLogger(), req.InstructionCode)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, run)
	}
}

func endProductionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.EndProductionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			abortWithError(c, err)
			return
		}
		run, err := workflow.EndProduction(c.Request.Context(), config.GetLogger(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func listProductionRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.ProductionStatus
		if v := c.Query("status"); v != "" {
			s := models.ProductionStatus(v)
			if !s.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			status = &s
		}
		runs, err := models.ListProductionRuns(c.Request.Context(), utils.NilIfEmpty(c.Query("instruction_code")), status)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, runs)
	}
}

func listDefectRecordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := models.ListDefectRecords(c.Request.Context(), c.Param("batchCode"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func productionResultsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.ProductionResultFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			abortWithError(c, err)
			return
		}
		page, _ := strconv.Atoi(c.Query("page"))
		limit, _ := strconv.Atoi(c.Query("limit"))

		results, err := models.GetProductionResults(c.Request.Context(), filter, page, limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
	}
}
