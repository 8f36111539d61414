package models

import "fmt"

// ReceiptItem represents a single line item on a receipt.
type ReceiptItem struct {
	// ID is unique within a receipt (e.g., "item_0").
	ID string `json:"id"`

	// Description is the name of the item (e.g., "Classic Burger").
	Description string `json:"description"`

	// Price is the line total (unit price × quantity).
	// Negative prices represent discounts or coupons.
	Price float64 `json:"price"`

	// Quantity is the number of units, always at least 1.
	Quantity int `json:"quantity"`
}

// Receipt is the structured data extracted from a receipt photo.
//
// The calculator assumes, but does not enforce, that Total ≈ Subtotal + Tax + Tip
// and that Subtotal ≈ the sum of item prices.
type Receipt struct {
	Items    []ReceiptItem `json:"items"`
	Subtotal float64       `json:"subtotal"`
	Tax      float64       `json:"tax"`
	Tip      float64       `json:"tip"`
	Total    float64       `json:"total"`

	// Currency is the currency symbol ($, €, £, ...).
	Currency string `json:"currency"`
}

// Item returns the item with the given ID.
func (r *Receipt) Item(id string) (ReceiptItem, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return ReceiptItem{}, false
}

// Clone returns a deep copy of the receipt.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	c := *r
	c.Items = append([]ReceiptItem(nil), r.Items...)
	return &c
}

// AssignmentMap maps an item ID to the participants sharing it.
// An item that is missing or maps to an empty list is unassigned.
type AssignmentMap map[string][]string

// Clone returns a deep copy of the map.
func (m AssignmentMap) Clone() AssignmentMap {
	c := make(AssignmentMap, len(m))
	for id, names := range m {
		c[id] = append([]string(nil), names...)
	}
	return c
}

// Participants returns every distinct name in the map, in item order of the
// given receipt first and then any names on items the receipt does not list.
func (m AssignmentMap) Participants(receipt *Receipt) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(list []string) {
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	known := make(map[string]bool)
	if receipt != nil {
		for _, item := range receipt.Items {
			known[item.ID] = true
			add(m[item.ID])
		}
	}
	for id, list := range m {
		if !known[id] {
			add(list)
		}
	}
	return names
}

// ItemManualSplitsMap maps an item ID to explicit per-person dollar amounts.
// An entry switches that item from equal division to manual division.
type ItemManualSplitsMap map[string]map[string]float64

// Clone returns a deep copy of the map.
func (m ItemManualSplitsMap) Clone() ItemManualSplitsMap {
	c := make(ItemManualSplitsMap, len(m))
	for id, split := range m {
		inner := make(map[string]float64, len(split))
		for name, amount := range split {
			inner[name] = amount
		}
		c[id] = inner
	}
	return c
}

// ItemTaxTipOverride pins a fixed tax and/or tip amount to one item.
// A nil field means "not overridden".
type ItemTaxTipOverride struct {
	Tax *float64 `json:"tax,omitempty"`
	Tip *float64 `json:"tip,omitempty"`
}

// ItemOverridesMap maps an item ID to its tax/tip override.
// Only the MANUAL distribution method reads it.
type ItemOverridesMap map[string]ItemTaxTipOverride

// Clone returns a deep copy of the map.
func (m ItemOverridesMap) Clone() ItemOverridesMap {
	c := make(ItemOverridesMap, len(m))
	for id, o := range m {
		var cp ItemTaxTipOverride
		if o.Tax != nil {
			v := *o.Tax
			cp.Tax = &v
		}
		if o.Tip != nil {
			v := *o.Tip
			cp.Tip = &v
		}
		c[id] = cp
	}
	return c
}

// DistributionMethod selects how tax and tip are allocated.
type DistributionMethod string

const (
	// Proportional distributes tax and tip by each person's share of the subtotal.
	Proportional DistributionMethod = "PROPORTIONAL"
	// Equal divides tax and tip evenly among named people.
	Equal DistributionMethod = "EQUAL"
	// Manual distributes per item, honoring per-item overrides.
	Manual DistributionMethod = "MANUAL"
)

// ParseDistributionMethod validates a method name. The empty string selects
// the default, Proportional.
func ParseDistributionMethod(s string) (DistributionMethod, error) {
	switch DistributionMethod(s) {
	case "":
		return Proportional, nil
	case Proportional, Equal, Manual:
		return DistributionMethod(s), nil
	default:
		return "", fmt.Errorf("unknown distribution method %q", s)
	}
}

// PersonItem is one ledger line: an item (or share of an item) owed by a person.
type PersonItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// PersonSummary is one person's calculated share of a receipt.
// This is the output of the settlement calculation.
type PersonSummary struct {
	Name  string       `json:"name"`
	Items []PersonItem `json:"items"`

	// Subtotal is the sum of this person's item shares (pre-tax).
	Subtotal float64 `json:"subtotal"`

	TaxShare float64 `json:"taxShare"`
	TipShare float64 `json:"tipShare"`

	// TotalOwed is Subtotal + TaxShare + TipShare.
	TotalOwed float64 `json:"totalOwed"`
}

// SplitImbalance reports a manual split whose amounts do not add up to the
// item price. It is advisory: totals are still computed from the given amounts.
type SplitImbalance struct {
	ItemID      string  `json:"itemId"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Allocated   float64 `json:"allocated"`

	// Difference is Price - Allocated; positive means money is left unallocated.
	Difference float64 `json:"difference"`
}

// SplitSummary wraps the per-person breakdown with distributed totals.
type SplitSummary struct {
	Participants []PersonSummary `json:"participants"`
	TotalTax     float64         `json:"totalTax"`
	TotalTip     float64         `json:"totalTip"`
	GrandTotal   float64         `json:"grandTotal"`

	// Discrepancy is the receipt total minus GrandTotal. Non-zero when items
	// do not add up to the receipt or overrides change the tax/tip totals.
	Discrepancy float64 `json:"discrepancy"`

	Imbalances []SplitImbalance `json:"imbalances,omitempty"`
}
