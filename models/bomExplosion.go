package models

import (
	"context"

	"github.com/mmdatafocus/mes_backend/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BomNode is one node of an exploded requirement tree. RequiredQuantity is
// the product of every ancestor's quantity-per-parent times the root
// quantity; ShortageQuantity compares it against the bulk stock pool.
type BomNode struct {
	ItemCode          string          `json:"item_code"`
	ItemName          string          `json:"item_name"`
	Unit              string          `json:"unit"`
	QuantityPerParent decimal.Decimal `json:"quantity_per_parent"`
	RequiredQuantity  decimal.Decimal `json:"required_quantity"`
	StockQuantity     decimal.Decimal `json:"stock_quantity"`
	ShortageQuantity  decimal.Decimal `json:"shortage_quantity"`
	Children          []*BomNode      `json:"children"`
}

type BomExplosionResult struct {
	Root               *BomNode   `json:"root"`
	ShortageItems      []*BomNode `json:"shortage_items"`
	SufficientItems    []*BomNode `json:"sufficient_items"`
	ProductionRequired bool       `json:"production_required"`
}

// bomLookup is everything the pure traversal needs, prefetched.
type bomLookup struct {
	edges  map[string][]*BomEdge
	items  map[string]*Item
	stocks map[string]decimal.Decimal
}

type explodeFrame struct {
	node  *BomNode
	edges []*BomEdge
	next  int
}

// explodeTree expands the requirement tree over prefetched data. It is
// iterative with an explicit frame stack so malformed, deeply nested BOM data
// cannot grow the call stack, and it carries a per-path visited set: an item
// code that reappears on the current path gets a node with an empty child
// list instead of endless expansion, since BOM data is not formally
// validated to be acyclic.
func explodeTree(logger *logrus.Logger, root *Item, quantity decimal.Decimal, lookup *bomLookup) *BomNode {

	rootStock := lookup.stocks[root.Code]
	rootNode := &BomNode{
		ItemCode:          root.Code,
		ItemName:          root.Name,
		Unit:              root.Unit,
		QuantityPerParent: decimal.NewFromInt(1),
		RequiredQuantity:  quantity,
		StockQuantity:     rootStock,
		ShortageQuantity:  shortage(quantity, rootStock),
		Children:          []*BomNode{},
	}

	onPath := map[string]bool{root.Code: true}
	stack := []*explodeFrame{{node: rootNode, edges: lookup.edges[root.Code]}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		if frame.next >= len(frame.edges) {
			delete(onPath, frame.node.ItemCode)
			stack = stack[:len(stack)-1]
			continue
		}
		edge := frame.edges[frame.next]
		frame.next++

		childItem, ok := lookup.items[edge.ChildItemCode]
		if !ok {
			// malformed BOM line: degrade instead of aborting planning
			config.LogWarn(logger, "bomExplosion.go", "explodeTree", "skipping bom child without item definition", edge.ChildItemCode, "bom child item not found")
			continue
		}

		required := frame.node.RequiredQuantity.Mul(edge.QuantityPerParent)
		stock := lookup.stocks[childItem.Code]
		childNode := &BomNode{
			ItemCode:          childItem.Code,
			ItemName:          childItem.Name,
			Unit:              edge.Unit,
			QuantityPerParent: edge.QuantityPerParent,
			RequiredQuantity:  required,
			StockQuantity:     stock,
			ShortageQuantity:  shortage(required, stock),
			Children:          []*BomNode{},
		}
		frame.node.Children = append(frame.node.Children, childNode)

		if onPath[childItem.Code] {
			config.LogWarn(logger, "bomExplosion.go", "explodeTree", "bom cycle detected; terminating branch", childItem.Code, "bom cycle")
			continue
		}
		onPath[childItem.Code] = true
		stack = append(stack, &explodeFrame{node: childNode, edges: lookup.edges[childItem.Code]})
	}

	return rootNode
}

func shortage(required decimal.Decimal, stock decimal.Decimal) decimal.Decimal {
	s := required.Sub(stock)
	if s.IsNegative() {
		return decimal.Zero
	}
	return s
}

// collectFlatViews walks the finished tree and gathers the two derived flat
// views (root excluded: it is the requested output, not a requirement).
func collectFlatViews(root *BomNode) (shortageItems []*BomNode, sufficientItems []*BomNode) {
	shortageItems = []*BomNode{}
	sufficientItems = []*BomNode{}
	stack := make([]*BomNode, 0, len(root.Children))
	stack = append(stack, root.Children...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.ShortageQuantity.IsPositive() {
			shortageItems = append(shortageItems, node)
		} else if node.RequiredQuantity.IsPositive() {
			sufficientItems = append(sufficientItems, node)
		}
		stack = append(stack, node.Children...)
	}
	return shortageItems, sufficientItems
}

// loadBomLookup prefetches every edge, item and bulk stock figure reachable
// from the root. The visited set bounds loading even on cyclic data.
func loadBomLookup(ctx context.Context, tx *gorm.DB, rootCode string) (*bomLookup, error) {
	lookup := &bomLookup{
		edges:  map[string][]*BomEdge{},
		items:  map[string]*Item{},
		stocks: map[string]decimal.Decimal{},
	}

	frontier := []string{rootCode}
	for len(frontier) > 0 {
		code := frontier[0]
		frontier = frontier[1:]
		if _, seen := lookup.edges[code]; seen {
			continue
		}

		var edges []*BomEdge
		if err := tx.WithContext(ctx).
			Where("parent_item_code = ?", code).
			Order("level, child_item_code").
			Find(&edges).Error; err != nil {
			return nil, err
		}
		lookup.edges[code] = edges

		for _, edge := range edges {
			if _, seen := lookup.items[edge.ChildItemCode]; seen {
				continue
			}
			var item Item
			err := tx.WithContext(ctx).Where("code = ?", edge.ChildItemCode).First(&item).Error
			if err != nil {
				// left out of the map; explodeTree logs and skips it
				continue
			}
			lookup.items[edge.ChildItemCode] = &item

			stock, err := GetStock(ctx, tx, edge.ChildItemCode)
			if err != nil {
				return nil, err
			}
			lookup.stocks[edge.ChildItemCode] = stock
			frontier = append(frontier, edge.ChildItemCode)
		}
	}
	return lookup, nil
}

// ExplodeBomTx runs the explosion against the caller's transaction so the
// completion workflow's pre-flight check reads in-transaction stock.
func ExplodeBomTx(ctx context.Context, tx *gorm.DB, itemCode string, quantity decimal.Decimal) (*BomExplosionResult, error) {
	logger := config.GetLogger()

	var root Item
	if err := tx.WithContext(ctx).Where("code = ?", itemCode).First(&root).Error; err != nil {
		return nil, errorRootItemNotFound(itemCode)
	}

	lookup, err := loadBomLookup(ctx, tx, itemCode)
	if err != nil {
		return nil, err
	}
	rootStock, err := GetStock(ctx, tx, itemCode)
	if err != nil {
		return nil, err
	}
	lookup.stocks[itemCode] = rootStock

	rootNode := explodeTree(logger, &root, quantity, lookup)
	shortageItems, sufficientItems := collectFlatViews(rootNode)

	config.MetricBomExplosions.Inc()
	return &BomExplosionResult{
		Root:               rootNode,
		ShortageItems:      shortageItems,
		SufficientItems:    sufficientItems,
		ProductionRequired: len(shortageItems) > 0,
	}, nil
}

// ExplodeBom is the read-only planning entry point. It has no side effects
// and is safe to call concurrently and repeatedly.
func ExplodeBom(ctx context.Context, itemCode string, quantity decimal.Decimal) (*BomExplosionResult, error) {
	return ExplodeBomTx(ctx, config.GetDB(), itemCode, quantity)
}
