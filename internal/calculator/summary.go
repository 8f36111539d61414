package calculator

import (
	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/money"
)

// Summarize runs ComputeSettlement and adds the distributed totals plus the
// advisory checks a client shows next to the breakdown.
func Summarize(
	receipt *models.Receipt,
	assignments models.AssignmentMap,
	manualSplits models.ItemManualSplitsMap,
	overrides models.ItemOverridesMap,
	method models.DistributionMethod,
) models.SplitSummary {
	people := ComputeSettlement(receipt, assignments, manualSplits, overrides, method)
	summary := models.SplitSummary{Participants: people}
	if receipt == nil {
		return summary
	}

	for _, p := range people {
		summary.TotalTax += p.TaxShare
		summary.TotalTip += p.TipShare
		summary.GrandTotal += p.TotalOwed
	}
	summary.Discrepancy = money.Finite(receipt.Total) - summary.GrandTotal
	summary.Imbalances = CheckManualSplits(receipt, assignments, manualSplits)
	return summary
}

// CheckManualSplits reports items whose manual split, counting only the
// item's assignees, does not add up to the item price at the cent level.
// It never changes what ComputeSettlement produces.
func CheckManualSplits(receipt *models.Receipt, assignments models.AssignmentMap, manualSplits models.ItemManualSplitsMap) []models.SplitImbalance {
	var out []models.SplitImbalance
	for _, item := range receipt.Items {
		split, ok := manualSplits[item.ID]
		assignees := uniqueNames(assignments[item.ID])
		if !ok || len(assignees) == 0 {
			continue
		}
		amounts := make([]float64, 0, len(assignees))
		for _, name := range assignees {
			amounts = append(amounts, split[name])
		}
		allocated := money.Sum(amounts...)
		price := money.Finite(item.Price)
		if money.SameCents(allocated, price) {
			continue
		}
		out = append(out, models.SplitImbalance{
			ItemID:      item.ID,
			Description: item.Description,
			Price:       price,
			Allocated:   allocated,
			Difference:  money.Sum(price, -allocated),
		})
	}
	return out
}

// Balanced reports whether every manual split adds up.
func Balanced(receipt *models.Receipt, assignments models.AssignmentMap, manualSplits models.ItemManualSplitsMap) bool {
	return len(CheckManualSplits(receipt, assignments, manualSplits)) == 0
}
