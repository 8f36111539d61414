package calculator

import (
	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/money"
)

// distributeProportional gives everyone, including the unassigned bucket,
// tax and tip in proportion to their share of the receipt subtotal:
//
//	share = person_subtotal / receipt_subtotal
//
// A zero receipt subtotal is replaced by 1.
func distributeProportional(l *ledger, subtotal, tax, tip float64) {
	if subtotal == 0 {
		subtotal = 1
	}
	for _, p := range l.all() {
		ratio := p.Subtotal / subtotal
		p.TaxShare = tax * ratio
		p.TipShare = tip * ratio
	}
}

// distributeEqual divides tax and tip evenly among named people.
// The unassigned bucket gets nothing.
func distributeEqual(l *ledger, tax, tip float64) {
	named := l.named()
	count := len(named)
	if count == 0 {
		count = 1
	}
	for _, p := range named {
		p.TaxShare = tax / float64(count)
		p.TipShare = tip / float64(count)
	}
	if l.unassigned != nil {
		l.unassigned.TaxShare = 0
		l.unassigned.TipShare = 0
	}
}

// pool is the tax or tip left over after per-item overrides, spread over the
// items without an override in proportion to their price.
type pool struct {
	fixed     map[string]float64 // item ID -> override amount
	remaining float64
	base      float64 // summed price of items without an override
}

func newPool(shares []itemShares, overrides models.ItemOverridesMap, total float64, pick func(models.ItemTaxTipOverride) *float64) pool {
	p := pool{fixed: make(map[string]float64)}
	var manualTotal float64
	for _, s := range shares {
		o, ok := overrides[s.item.ID]
		if v := pick(o); ok && v != nil {
			amount := money.Finite(*v)
			p.fixed[s.item.ID] = amount
			manualTotal += amount
			continue
		}
		p.base += s.price
	}
	p.remaining = total - manualTotal
	if p.remaining < 0 {
		p.remaining = 0
	}
	return p
}

// amountFor returns the tax or tip attributed to one item.
func (p pool) amountFor(s itemShares) float64 {
	if v, ok := p.fixed[s.item.ID]; ok {
		return v
	}
	if p.base > 0 {
		return s.price / p.base * p.remaining
	}
	return 0
}

// distributeManual works per item. Each item gets its override if it has one,
// otherwise its price-proportional part of whatever the overrides left over.
// The item's tax and tip then follow the same proportions as its price did,
// so a manual dollar split carries through to tax and tip.
func distributeManual(l *ledger, shares []itemShares, overrides models.ItemOverridesMap, tax, tip float64) {
	taxPool := newPool(shares, overrides, tax, func(o models.ItemTaxTipOverride) *float64 { return o.Tax })
	tipPool := newPool(shares, overrides, tip, func(o models.ItemTaxTipOverride) *float64 { return o.Tip })

	for _, s := range shares {
		itemTax := taxPool.amountFor(s)
		itemTip := tipPool.amountFor(s)
		for _, h := range s.holders {
			var ratio float64
			if s.price != 0 {
				ratio = h.amount / s.price
			} else {
				ratio = 1 / float64(len(s.holders))
			}
			p := l.person(h.name)
			p.TaxShare += itemTax * ratio
			p.TipShare += itemTip * ratio
		}
	}
}
