package receipt

import (
	"strings"

	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/money"
)

// SanitizeAssignments trims names, drops blank and repeated names, and drops
// entries for items the receipt does not contain. Empty lists are removed, which
// leaves those items unassigned.
func SanitizeAssignments(r *models.Receipt, assignments models.AssignmentMap) models.AssignmentMap {
	out := make(models.AssignmentMap, len(assignments))
	for id, names := range assignments {
		if _, ok := r.Item(id); !ok {
			continue
		}
		if cleaned := cleanNames(names); len(cleaned) > 0 {
			out[id] = cleaned
		}
	}
	return out
}

// SanitizeManualSplits coerces non-finite amounts to 0 and drops blank names
// and unknown items. Amounts are kept as given even if they do not add up to
// the item price.
func SanitizeManualSplits(r *models.Receipt, splits models.ItemManualSplitsMap) models.ItemManualSplitsMap {
	out := make(models.ItemManualSplitsMap, len(splits))
	for id, split := range splits {
		if _, ok := r.Item(id); !ok || split == nil {
			continue
		}
		inner := make(map[string]float64, len(split))
		for name, amount := range split {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			inner[name] = money.Finite(amount)
		}
		out[id] = inner
	}
	return out
}

// SanitizeOverrides coerces non-finite override values to 0 and drops unknown
// items and empty overrides.
func SanitizeOverrides(r *models.Receipt, overrides models.ItemOverridesMap) models.ItemOverridesMap {
	out := make(models.ItemOverridesMap, len(overrides))
	for id, o := range overrides {
		if _, ok := r.Item(id); !ok {
			continue
		}
		var cp models.ItemTaxTipOverride
		if o.Tax != nil {
			v := money.Finite(*o.Tax)
			cp.Tax = &v
		}
		if o.Tip != nil {
			v := money.Finite(*o.Tip)
			cp.Tip = &v
		}
		if cp.Tax != nil || cp.Tip != nil {
			out[id] = cp
		}
	}
	return out
}

func cleanNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
