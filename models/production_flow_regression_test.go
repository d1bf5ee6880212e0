package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/mmdatafocus/mes_backend/models"
	"github.com/mmdatafocus/mes_backend/utils"
	"github.com/mmdatafocus/mes_backend/workflow"
	"github.com/shopspring/decimal"
)

// Regression: the full start -> end-of-step -> final completion path. An
// order for 10 of P1 (BOM: 2x C1, steps S1 then S2) with C1 stock at 3 must
// be rejected with a shortage naming C1 when the terminal step ends, leave
// everything untouched, and succeed after restocking.
func TestProductionFlow_EndToEnd(t *testing.T) {
	ctx := setupProductionTestEnv(t)
	logger := config.GetLogger()

	if _, err := models.CreateItem(ctx, &models.NewItem{
		Code: "P1", Name: "Widget", Category: models.ItemCategoryFinishedGood, Unit: "pcs",
	}); err != nil {
		t.Fatalf("CreateItem(P1): %v", err)
	}
	if _, err := models.CreateItem(ctx, &models.NewItem{
		Code: "C1", Name: "Bolt", Category: models.ItemCategoryRawMaterial, Unit: "pcs",
	}); err != nil {
		t.Fatalf("CreateItem(C1): %v", err)
	}
	if _, err := models.CreateBomEdge(ctx, &models.NewBomEdge{
		ParentItemCode: "P1", ChildItemCode: "C1",
		QuantityPerParent: decimal.NewFromInt(2), Unit: "pcs",
	}); err != nil {
		t.Fatalf("CreateBomEdge: %v", err)
	}
	if _, err := models.CreateBomProcessStep(ctx, &models.NewBomProcessStep{
		ItemCode: "P1", ProcessCode: "S1", ProcessName: "Cutting", Ordinal: 1,
	}); err != nil {
		t.Fatalf("CreateBomProcessStep(S1): %v", err)
	}
	if _, err := models.CreateBomProcessStep(ctx, &models.NewBomProcessStep{
		ItemCode: "P1", ProcessCode: "S2", ProcessName: "Assembly", Ordinal: 2,
	}); err != nil {
		t.Fatalf("CreateBomProcessStep(S2): %v", err)
	}
	if _, err := models.AdjustStock(ctx, "C1", decimal.NewFromInt(3), "initial stock"); err != nil {
		t.Fatalf("AdjustStock(C1, +3): %v", err)
	}

	if _, err := models.CreateProductionPlan(ctx, &models.NewProductionPlan{
		PlanCode: "PLAN-001", ItemCode: "P1", PlannedQuantity: decimal.NewFromInt(10),
	}); err != nil {
		t.Fatalf("CreateProductionPlan: %v", err)
	}
	if _, err := models.CreateProductionInstruction(ctx, &models.NewProductionInstruction{
		InstructionCode: "INS-001", PlanCode: "PLAN-001", OrderedQuantity: decimal.NewFromInt(10),
	}); err != nil {
		t.Fatalf("CreateProductionInstruction: %v", err)
	}

	run1, err := workflow.StartProduction(ctx, logger, "INS-001")
	if err != nil {
		t.Fatalf("StartProduction: %v", err)
	}
	if run1.Status != models.ProductionStatusInProgress {
		t.Fatalf("expected new run InProgress; got %s", run1.Status)
	}
	if run1.ProcessCode != "S1" || run1.ProcessOrdinal != 1 {
		t.Fatalf("expected run bound to first step S1; got %s/%d", run1.ProcessCode, run1.ProcessOrdinal)
	}
	if run1.InstructedQuantity.Cmp(decimal.NewFromInt(10)) != 0 {
		t.Fatalf("expected instructed=10; got %s", run1.InstructedQuantity)
	}
	if _, _, _, err := models.ParseProductionCode(run1.ProductionCode); err != nil {
		t.Fatalf("production code %q does not parse: %v", run1.ProductionCode, err)
	}

	// only one open run per instruction
	if _, err := workflow.StartProduction(ctx, logger, "INS-001"); err == nil {
		t.Fatalf("expected second start on the same instruction to fail")
	}

	// end S1 with 1 defect: completed = 9, successor run opens on S2
	run1After, err := workflow.EndProduction(ctx, logger, &workflow.EndProductionInput{
		ProductionCode:      run1.ProductionCode,
		TotalDefectQuantity: decimal.NewFromInt(1),
		DefectReasons: []*models.NewDefectReason{
			{Quantity: decimal.NewFromInt(1), Reason: "scratch"},
		},
	})
	if err != nil {
		t.Fatalf("EndProduction(S1): %v", err)
	}
	if run1After.Status != models.ProductionStatusStepComplete {
		t.Fatalf("expected S1 run StepComplete; got %s", run1After.Status)
	}
	if run1After.CompletedQuantity.Cmp(decimal.NewFromInt(9)) != 0 {
		t.Fatalf("expected S1 completed=9; got %s", run1After.CompletedQuantity)
	}

	instructionCode := "INS-001"
	inProgress := models.ProductionStatusInProgress
	openRuns, err := models.ListProductionRuns(ctx, &instructionCode, &inProgress)
	if err != nil {
		t.Fatalf("ListProductionRuns: %v", err)
	}
	if len(openRuns) != 1 {
		t.Fatalf("expected exactly one open successor run; got %d", len(openRuns))
	}
	run2 := openRuns[0]
	if run2.ProcessCode != "S2" || run2.ProcessOrdinal != 2 {
		t.Fatalf("expected successor on S2; got %s/%d", run2.ProcessCode, run2.ProcessOrdinal)
	}
	if run2.InstructedQuantity.Cmp(decimal.NewFromInt(9)) != 0 {
		t.Fatalf("expected successor instructed=9; got %s", run2.InstructedQuantity)
	}
	if run2.DefectBatchCode != run1.DefectBatchCode {
		t.Fatalf("defect batch code must be shared across steps: %q vs %q", run2.DefectBatchCode, run1.DefectBatchCode)
	}

	// terminal step needs 2*9=18 of C1 against 3 on hand
	_, err = workflow.EndProduction(ctx, logger, &workflow.EndProductionInput{
		ProductionCode: run2.ProductionCode,
	})
	if err == nil {
		t.Fatalf("expected shortage error ending the terminal step")
	}
	var shortageErr *models.ShortageError
	if !errors.As(err, &shortageErr) {
		t.Fatalf("expected ShortageError; got %v", err)
	}
	if len(shortageErr.Items) != 1 || shortageErr.Items[0].ItemCode != "C1" {
		t.Fatalf("expected shortage naming C1; got %+v", shortageErr.Items)
	}
	if shortageErr.Items[0].ShortageQuantity.Cmp(decimal.NewFromInt(15)) != 0 {
		t.Fatalf("expected shortfall 15; got %s", shortageErr.Items[0].ShortageQuantity)
	}

	// the rejection must leave no partial writes
	run2Reloaded, err := models.GetProductionRunByCode(ctx, run2.ProductionCode)
	if err != nil {
		t.Fatalf("reload run2: %v", err)
	}
	if run2Reloaded.Status != models.ProductionStatusInProgress {
		t.Fatalf("expected rejected run still InProgress; got %s", run2Reloaded.Status)
	}
	assertStock(t, ctx, "C1", 3)

	if _, err := models.AdjustStock(ctx, "C1", decimal.NewFromInt(17), "restock"); err != nil {
		t.Fatalf("AdjustStock(C1, +17): %v", err)
	}

	run2After, err := workflow.EndProduction(ctx, logger, &workflow.EndProductionInput{
		ProductionCode: run2.ProductionCode,
	})
	if err != nil {
		t.Fatalf("EndProduction(S2) retry: %v", err)
	}
	if run2After.Status != models.ProductionStatusFinalComplete {
		t.Fatalf("expected FinalComplete; got %s", run2After.Status)
	}

	assertStock(t, ctx, "C1", 2)
	assertStock(t, ctx, "P1", 9)

	lots, err := models.ListLots(ctx, "P1", false)
	if err != nil {
		t.Fatalf("ListLots(P1): %v", err)
	}
	if len(lots) != 1 {
		t.Fatalf("expected one finished goods lot; got %d", len(lots))
	}
	if lots[0].QuantityRemaining.Cmp(decimal.NewFromInt(9)) != 0 {
		t.Fatalf("expected lot quantity 9; got %s", lots[0].QuantityRemaining)
	}
	if lots[0].WarehouseCode != models.DefaultWarehouseCode {
		t.Fatalf("expected default warehouse; got %s", lots[0].WarehouseCode)
	}
	lotItem, _, _, err := models.ParseLotCode(lots[0].LotCode)
	if err != nil || lotItem != "P1" {
		t.Fatalf("lot code %q: item %q, err %v", lots[0].LotCode, lotItem, err)
	}

	instruction, _, err := models.GetProductionInstructionByCode(ctx, "INS-001")
	if err != nil {
		t.Fatalf("reload instruction: %v", err)
	}
	if instruction.CompletedQuantity.Cmp(decimal.NewFromInt(9)) != 0 {
		t.Fatalf("expected instruction completed=9; got %s", instruction.CompletedQuantity)
	}
	if instruction.DefectQuantity.Cmp(decimal.NewFromInt(1)) != 0 {
		t.Fatalf("expected instruction defect=1; got %s", instruction.DefectQuantity)
	}

	defects, err := models.ListDefectRecords(ctx, run1.DefectBatchCode)
	if err != nil {
		t.Fatalf("ListDefectRecords: %v", err)
	}
	if len(defects) != 1 || defects[0].Reason != "scratch" {
		t.Fatalf("expected one defect record with reason scratch; got %d", len(defects))
	}

	// C1 had no lots, so the whole draw-down is one bulk adjustment
	adjustments, err := models.ListStockAdjustments(ctx, "C1", 10)
	if err != nil {
		t.Fatalf("ListStockAdjustments(C1): %v", err)
	}
	var bulkDraw *models.StockAdjustment
	for _, a := range adjustments {
		if a.ReferenceType == models.StockReferenceTypeBulkConsumption {
			bulkDraw = a
		}
	}
	if bulkDraw == nil {
		t.Fatalf("expected a bulk consumption adjustment for C1")
	}
	if bulkDraw.Delta.Cmp(decimal.NewFromInt(-18)) != 0 {
		t.Fatalf("expected bulk draw of -18; got %s", bulkDraw.Delta)
	}
	if bulkDraw.ReferenceCode != run2.ProductionCode {
		t.Fatalf("expected draw tagged with %q; got %q", run2.ProductionCode, bulkDraw.ReferenceCode)
	}

	page, err := models.GetProductionResults(ctx, models.ProductionResultFilter{InstructionCode: &instructionCode}, 1, 10)
	if err != nil {
		t.Fatalf("GetProductionResults: %v", err)
	}
	if page.Total != 1 || len(page.Results) != 1 {
		t.Fatalf("expected one rolled-up result; got total=%d rows=%d", page.Total, len(page.Results))
	}
	result := page.Results[0]
	if result.CompletedQuantity.Cmp(decimal.NewFromInt(9)) != 0 {
		t.Fatalf("expected rolled-up completed=9; got %s", result.CompletedQuantity)
	}
	if result.TotalDefectQuantity.Cmp(decimal.NewFromInt(1)) != 0 {
		t.Fatalf("expected rolled-up defects=1; got %s", result.TotalDefectQuantity)
	}
	if result.RunCount != 2 {
		t.Fatalf("expected 2 runs; got %d", result.RunCount)
	}
	if result.CurrentStatus != models.ProductionStatusFinalComplete {
		t.Fatalf("expected current status FinalComplete; got %s", result.CurrentStatus)
	}
}

func assertStock(t *testing.T, ctx context.Context, itemCode string, want int64) {
	t.Helper()
	quantity, err := models.GetStock(ctx, config.GetDB(), itemCode)
	if err != nil {
		t.Fatalf("GetStock(%s): %v", itemCode, err)
	}
	if quantity.Cmp(decimal.NewFromInt(want)) != 0 {
		t.Fatalf("expected %s stock=%d; got %s", itemCode, want, quantity)
	}
}

func setupProductionTestEnv(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "mes_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mes-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mes-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=mes_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
