package calculator

import (
	"sort"

	"github.com/mmynk/revshare/internal/models"
)

// AccountBalance is one account's cumulative payout.
type AccountBalance struct {
	Name             string `json:"name"`
	SplitBasisPoints int64  `json:"splitBasisPoints"`
	Balance          int64  `json:"balance"`
}

// BuildBalances joins configured accounts with per-account allocation sums.
// Configured accounts come first in configuration order, with zero balances
// if nothing has been allocated yet. Accounts that received allocations but
// are no longer configured follow, sorted by name, with a zero split.
func BuildBalances(accounts []models.Account, totals map[string]int64) []AccountBalance {
	balances := make([]AccountBalance, 0, len(accounts))
	configured := make(map[string]bool, len(accounts))
	for _, acct := range accounts {
		configured[acct.Name] = true
		balances = append(balances, AccountBalance{
			Name:             acct.Name,
			SplitBasisPoints: acct.SplitBasisPoints,
			Balance:          totals[acct.Name],
		})
	}

	var retired []string
	for name := range totals {
		if !configured[name] {
			retired = append(retired, name)
		}
	}
	sort.Strings(retired)
	for _, name := range retired {
		balances = append(balances, AccountBalance{Name: name, Balance: totals[name]})
	}

	return balances
}

// ProgressBasisPoints returns current/target in basis points (10000 = 100%).
// A non-positive target yields zero.
func ProgressBasisPoints(current, target int64) int64 {
	if target <= 0 || current <= 0 {
		return 0
	}
	whole := current / target
	rem := current % target
	return whole*models.BasisPointsTotal + rem*models.BasisPointsTotal/target
}

// Average returns the floored mean amount, or zero for an empty set.
func Average(total int64, count int64) int64 {
	if count <= 0 {
		return 0
	}
	return total / count
}
