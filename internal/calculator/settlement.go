// Package calculator computes how much each person owes for a receipt.
//
// ComputeSettlement is a pure function: it reads its inputs, never mutates or
// retains them, and never fails. Malformed numbers degrade to zero and every
// division has a guarded fallback, so the output never contains NaN or Inf.
package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/money"
)

// UnassignedName is the synthetic person collecting items nobody claimed. An
// assignee with exactly this name is merged into it.
const UnassignedName = "Unassigned"

// holder is one person's share of one item.
type holder struct {
	name   string
	amount float64
}

// itemShares is an item together with how its price was divided.
type itemShares struct {
	item    models.ReceiptItem
	price   float64
	manual  bool
	holders []holder
}

// ledger accumulates person summaries in order of first appearance.
// The unassigned bucket is kept aside and appended last.
type ledger struct {
	order      []string
	people     map[string]*models.PersonSummary
	unassigned *models.PersonSummary
}

func newLedger() *ledger {
	return &ledger{people: make(map[string]*models.PersonSummary)}
}

func (l *ledger) person(name string) *models.PersonSummary {
	if name == UnassignedName {
		if l.unassigned == nil {
			l.unassigned = &models.PersonSummary{Name: UnassignedName, Items: []models.PersonItem{}}
		}
		return l.unassigned
	}
	p, ok := l.people[name]
	if !ok {
		p = &models.PersonSummary{Name: name, Items: []models.PersonItem{}}
		l.people[name] = p
		l.order = append(l.order, name)
	}
	return p
}

// named returns the real people, excluding the unassigned bucket.
func (l *ledger) named() []*models.PersonSummary {
	out := make([]*models.PersonSummary, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.people[name])
	}
	return out
}

func (l *ledger) all() []*models.PersonSummary {
	out := l.named()
	if l.unassigned != nil {
		out = append(out, l.unassigned)
	}
	return out
}

// ComputeSettlement returns the per-person breakdown of a receipt, sorted by
// TotalOwed descending. Ties keep first-appearance order, with the
// "Unassigned" bucket after every named person.
//
// Items with no assignees go to the "Unassigned" bucket. Items with a manual
// split use the given per-person amounts as-is (a missing name counts as 0);
// other items are divided equally. Tax and tip are then distributed with the
// chosen method. Overrides are only read by the Manual method.
//
// A nil receipt yields nil.
func ComputeSettlement(
	receipt *models.Receipt,
	assignments models.AssignmentMap,
	manualSplits models.ItemManualSplitsMap,
	overrides models.ItemOverridesMap,
	method models.DistributionMethod,
) []models.PersonSummary {
	if receipt == nil {
		return nil
	}

	shares := divideItems(receipt, assignments, manualSplits)

	l := newLedger()
	for _, s := range shares {
		for _, h := range s.holders {
			p := l.person(h.name)
			p.Items = append(p.Items, models.PersonItem{
				Description: describe(s, h),
				Amount:      h.amount,
			})
			p.Subtotal += h.amount
		}
	}
	if len(l.order) == 0 {
		// Nobody named: still report the (possibly empty) bucket.
		l.person(UnassignedName)
	}

	tax := money.Finite(receipt.Tax)
	tip := money.Finite(receipt.Tip)

	switch method {
	case models.Equal:
		distributeEqual(l, tax, tip)
	case models.Manual:
		distributeManual(l, shares, overrides, tax, tip)
	default:
		distributeProportional(l, money.Finite(receipt.Subtotal), tax, tip)
	}

	people := l.all()
	result := make([]models.PersonSummary, len(people))
	for i, p := range people {
		p.TotalOwed = p.Subtotal + p.TaxShare + p.TipShare
		result[i] = *p
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TotalOwed > result[j].TotalOwed
	})
	return result
}

// divideItems splits every item's price among its holders.
func divideItems(receipt *models.Receipt, assignments models.AssignmentMap, manualSplits models.ItemManualSplitsMap) []itemShares {
	shares := make([]itemShares, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		price := money.Finite(item.Price)
		s := itemShares{item: item, price: price}

		assignees := uniqueNames(assignments[item.ID])
		split, manual := manualSplits[item.ID]

		switch {
		case len(assignees) == 0:
			s.holders = []holder{{name: UnassignedName, amount: price}}
		case manual:
			s.manual = true
			for _, name := range assignees {
				s.holders = append(s.holders, holder{name: name, amount: money.Finite(split[name])})
			}
		default:
			each := price / float64(len(assignees))
			for _, name := range assignees {
				s.holders = append(s.holders, holder{name: name, amount: each})
			}
		}
		shares = append(shares, s)
	}
	return shares
}

// describe labels a ledger line. Equal shares of a shared item get a "(1/N)"
// suffix; it is display-only.
func describe(s itemShares, h holder) string {
	if s.manual || h.name == UnassignedName || len(s.holders) < 2 {
		return s.item.Description
	}
	return fmt.Sprintf("%s (1/%d)", s.item.Description, len(s.holders))
}

func uniqueNames(names []string) []string {
	if len(names) < 2 {
		return names
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
