package calculator

import (
	"sort"

	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/money"
)

// MemberBalance is one person's position after a bill was paid.
type MemberBalance struct {
	Name       string  `json:"name"`
	TotalPaid  float64 `json:"totalPaid"`
	TotalOwed  float64 `json:"totalOwed"`
	NetBalance float64 `json:"netBalance"` // Positive = owed money, Negative = owes money
}

// Transfer is a payment that moves one person towards settled.
type Transfer struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// SettleUp turns a settlement breakdown plus who actually paid into net
// balances and a short list of transfers that clears them.
//
// Algorithm:
//   - each person owes their TotalOwed and is credited with what they paid
//   - net = paid - owed
//   - debtors and creditors are matched greedily, largest first
//
// The "Unassigned" bucket owes nobody and is left out; if it is non-zero the
// transfers will not fully cover the payers.
func SettleUp(people []models.PersonSummary, payments map[string]float64) ([]MemberBalance, []Transfer) {
	balances := make(map[string]*MemberBalance)
	var order []string
	get := func(name string) *MemberBalance {
		b, ok := balances[name]
		if !ok {
			b = &MemberBalance{Name: name}
			balances[name] = b
			order = append(order, name)
		}
		return b
	}

	for _, p := range people {
		if p.Name == UnassignedName {
			continue
		}
		get(p.Name).TotalOwed += money.Finite(p.TotalOwed)
	}

	payers := make([]string, 0, len(payments))
	for name := range payments {
		payers = append(payers, name)
	}
	sort.Strings(payers)
	for _, name := range payers {
		get(name).TotalPaid += money.Finite(payments[name])
	}

	memberBalances := make([]MemberBalance, 0, len(order))
	var creditors, debtors []*MemberBalance
	for _, name := range order {
		b := balances[name]
		b.NetBalance = b.TotalPaid - b.TotalOwed
		memberBalances = append(memberBalances, *b)
		switch {
		case b.NetBalance >= money.Tolerance:
			creditors = append(creditors, b)
		case b.NetBalance <= -money.Tolerance:
			debtors = append(debtors, b)
		}
	}

	byMagnitude := func(list []*MemberBalance) {
		sort.SliceStable(list, func(i, j int) bool {
			ai, aj := abs(list[i].NetBalance), abs(list[j].NetBalance)
			if ai != aj {
				return ai > aj
			}
			return list[i].Name < list[j].Name
		})
	}
	byMagnitude(creditors)
	byMagnitude(debtors)

	owes := make(map[string]float64, len(debtors))
	for _, d := range debtors {
		owes[d.Name] = -d.NetBalance
	}
	owed := make(map[string]float64, len(creditors))
	for _, c := range creditors {
		owed[c.Name] = c.NetBalance
	}

	// Greedy algorithm: match largest debts with largest credits
	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := debtors[i].Name
		creditor := creditors[j].Name

		amount := owes[debtor]
		if owed[creditor] < amount {
			amount = owed[creditor]
		}
		if amount >= money.Tolerance {
			transfers = append(transfers, Transfer{From: debtor, To: creditor, Amount: money.RoundCents(amount)})
		}

		owes[debtor] -= amount
		owed[creditor] -= amount
		if owes[debtor] < money.Tolerance {
			i++
		}
		if owed[creditor] < money.Tolerance {
			j++
		}
	}

	return memberBalances, transfers
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
