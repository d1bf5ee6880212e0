package models

import (
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testItem(code string, name string, category ItemCategory) *Item {
	return &Item{Code: code, Name: name, Category: category, Unit: "pcs"}
}

func testEdge(parent string, child string, qty int64) *BomEdge {
	return &BomEdge{
		ParentItemCode:    parent,
		ChildItemCode:     child,
		QuantityPerParent: decimal.NewFromInt(qty),
		Unit:              "pcs",
	}
}

func findChild(node *BomNode, itemCode string) *BomNode {
	for _, child := range node.Children {
		if child.ItemCode == itemCode {
			return child
		}
	}
	return nil
}

// Requirements multiply down the levels: P1 needs 2x C1 and 1x SA1, SA1
// needs 3x C2, so 10 of P1 requires 20 C1, 10 SA1 and 30 C2.
func TestExplodeTree_MultipliesRequirementsAcrossLevels(t *testing.T) {
	p1 := testItem("P1", "Widget", ItemCategoryFinishedGood)
	lookup := &bomLookup{
		edges: map[string][]*BomEdge{
			"P1":  {testEdge("P1", "C1", 2), testEdge("P1", "SA1", 1)},
			"SA1": {testEdge("SA1", "C2", 3)},
		},
		items: map[string]*Item{
			"C1":  testItem("C1", "Bolt", ItemCategoryRawMaterial),
			"SA1": testItem("SA1", "Frame", ItemCategorySubAssembly),
			"C2":  testItem("C2", "Tube", ItemCategoryRawMaterial),
		},
		stocks: map[string]decimal.Decimal{
			"C1":  decimal.NewFromInt(5),
			"SA1": decimal.NewFromInt(100),
			"C2":  decimal.Zero,
		},
	}

	root := explodeTree(quietLogger(), p1, decimal.NewFromInt(10), lookup)

	if len(root.Children) != 2 {
		t.Fatalf("expected 2 direct children; got %d", len(root.Children))
	}
	c1 := findChild(root, "C1")
	if c1 == nil {
		t.Fatalf("C1 missing from tree")
	}
	if c1.RequiredQuantity.Cmp(decimal.NewFromInt(20)) != 0 {
		t.Fatalf("expected C1 required=20; got %s", c1.RequiredQuantity)
	}
	if c1.ShortageQuantity.Cmp(decimal.NewFromInt(15)) != 0 {
		t.Fatalf("expected C1 shortage=15; got %s", c1.ShortageQuantity)
	}

	sa1 := findChild(root, "SA1")
	if sa1 == nil {
		t.Fatalf("SA1 missing from tree")
	}
	if !sa1.ShortageQuantity.IsZero() {
		t.Fatalf("expected SA1 shortage=0; got %s", sa1.ShortageQuantity)
	}
	c2 := findChild(sa1, "C2")
	if c2 == nil {
		t.Fatalf("C2 missing under SA1")
	}
	if c2.RequiredQuantity.Cmp(decimal.NewFromInt(30)) != 0 {
		t.Fatalf("expected C2 required=30; got %s", c2.RequiredQuantity)
	}
	if c2.ShortageQuantity.Cmp(decimal.NewFromInt(30)) != 0 {
		t.Fatalf("expected C2 shortage=30; got %s", c2.ShortageQuantity)
	}

	shortageItems, sufficientItems := collectFlatViews(root)
	if len(shortageItems) != 2 {
		t.Fatalf("expected 2 shortage items; got %d", len(shortageItems))
	}
	if len(sufficientItems) != 1 || sufficientItems[0].ItemCode != "SA1" {
		t.Fatalf("expected sufficient items [SA1]; got %d items", len(sufficientItems))
	}
	// the root is the requested output, never a requirement
	for _, node := range append(shortageItems, sufficientItems...) {
		if node.ItemCode == "P1" {
			t.Fatalf("root leaked into flat views")
		}
	}
}

func TestExplodeTree_ShortageNeverNegative(t *testing.T) {
	if !shortage(decimal.NewFromInt(3), decimal.NewFromInt(10)).IsZero() {
		t.Fatalf("expected zero shortage when stock exceeds requirement")
	}
	got := shortage(decimal.NewFromInt(10), decimal.NewFromInt(3))
	if got.Cmp(decimal.NewFromInt(7)) != 0 {
		t.Fatalf("expected shortage=7; got %s", got)
	}
}

// A cycle in the edge data must terminate the branch instead of expanding
// forever: the repeated item appears once more with no children.
func TestExplodeTree_TerminatesOnCycle(t *testing.T) {
	a := testItem("A", "Assembly A", ItemCategorySubAssembly)
	lookup := &bomLookup{
		edges: map[string][]*BomEdge{
			"A": {testEdge("A", "B", 1)},
			"B": {testEdge("B", "A", 1)},
		},
		items: map[string]*Item{
			"A": a,
			"B": testItem("B", "Assembly B", ItemCategorySubAssembly),
		},
		stocks: map[string]decimal.Decimal{},
	}

	root := explodeTree(quietLogger(), a, decimal.NewFromInt(1), lookup)

	b := findChild(root, "B")
	if b == nil {
		t.Fatalf("B missing under A")
	}
	aAgain := findChild(b, "A")
	if aAgain == nil {
		t.Fatalf("expected cycle node A under B")
	}
	if len(aAgain.Children) != 0 {
		t.Fatalf("expected cycle branch terminated; got %d children", len(aAgain.Children))
	}
}

// An item can repeat on sibling branches without being a cycle; both
// occurrences must expand.
func TestExplodeTree_SharedComponentOnSiblingBranches(t *testing.T) {
	p1 := testItem("P1", "Widget", ItemCategoryFinishedGood)
	lookup := &bomLookup{
		edges: map[string][]*BomEdge{
			"P1":  {testEdge("P1", "SA1", 1), testEdge("P1", "SA2", 1)},
			"SA1": {testEdge("SA1", "C1", 2)},
			"SA2": {testEdge("SA2", "C1", 5)},
		},
		items: map[string]*Item{
			"SA1": testItem("SA1", "Frame", ItemCategorySubAssembly),
			"SA2": testItem("SA2", "Cover", ItemCategorySubAssembly),
			"C1":  testItem("C1", "Bolt", ItemCategoryRawMaterial),
		},
		stocks: map[string]decimal.Decimal{},
	}

	root := explodeTree(quietLogger(), p1, decimal.NewFromInt(1), lookup)

	sa1 := findChild(root, "SA1")
	sa2 := findChild(root, "SA2")
	if sa1 == nil || sa2 == nil {
		t.Fatalf("sub-assemblies missing from tree")
	}
	c1FromSa1 := findChild(sa1, "C1")
	c1FromSa2 := findChild(sa2, "C1")
	if c1FromSa1 == nil || c1FromSa2 == nil {
		t.Fatalf("shared component missing from a sibling branch")
	}
	if c1FromSa1.RequiredQuantity.Cmp(decimal.NewFromInt(2)) != 0 {
		t.Fatalf("expected C1 via SA1 required=2; got %s", c1FromSa1.RequiredQuantity)
	}
	if c1FromSa2.RequiredQuantity.Cmp(decimal.NewFromInt(5)) != 0 {
		t.Fatalf("expected C1 via SA2 required=5; got %s", c1FromSa2.RequiredQuantity)
	}
}

// An edge pointing at an item with no definition is skipped with a warning
// rather than aborting planning.
func TestExplodeTree_SkipsChildWithoutItemDefinition(t *testing.T) {
	p1 := testItem("P1", "Widget", ItemCategoryFinishedGood)
	lookup := &bomLookup{
		edges: map[string][]*BomEdge{
			"P1": {testEdge("P1", "GHOST", 1), testEdge("P1", "C1", 2)},
		},
		items: map[string]*Item{
			"C1": testItem("C1", "Bolt", ItemCategoryRawMaterial),
		},
		stocks: map[string]decimal.Decimal{},
	}

	root := explodeTree(quietLogger(), p1, decimal.NewFromInt(1), lookup)

	if len(root.Children) != 1 {
		t.Fatalf("expected the undefined child skipped; got %d children", len(root.Children))
	}
	if root.Children[0].ItemCode != "C1" {
		t.Fatalf("expected C1; got %s", root.Children[0].ItemCode)
	}
}
