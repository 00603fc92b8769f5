package calculator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mmynk/revshare/internal/models"
)

var (
	ErrNoAccounts     = errors.New("no accounts configured")
	ErrSplitSum       = errors.New("split percentages must sum to 100%")
	ErrNegativeSplit  = errors.New("split percentage cannot be negative")
	ErrNegativeAmount = errors.New("amount to allocate cannot be negative")
	ErrDuplicateName  = errors.New("duplicate account name")
)

// ValidateSplits checks that accounts form a complete, unambiguous split.
func ValidateSplits(accounts []models.Account) error {
	if len(accounts) == 0 {
		return ErrNoAccounts
	}
	seen := make(map[string]bool, len(accounts))
	var sum int64
	for _, acct := range accounts {
		if acct.SplitBasisPoints < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeSplit, acct.Name)
		}
		if seen[acct.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, acct.Name)
		}
		seen[acct.Name] = true
		sum += acct.SplitBasisPoints
	}
	if sum != models.BasisPointsTotal {
		return fmt.Errorf("%w: got %d basis points", ErrSplitSum, sum)
	}
	return nil
}

// RemainderOrder returns accounts in the order leftover minor units are handed
// out: descending split, then ascending name.
func RemainderOrder(accounts []models.Account) []models.Account {
	ordered := make([]models.Account, len(accounts))
	copy(ordered, accounts)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SplitBasisPoints != ordered[j].SplitBasisPoints {
			return ordered[i].SplitBasisPoints > ordered[j].SplitBasisPoints
		}
		return ordered[i].Name < ordered[j].Name
	})
	return ordered
}

// Allocate splits total minor units across accounts.
//
// Each account first gets floor(total × split). The minor units lost to
// flooring are then handed out one at a time in RemainderOrder, so the
// allocations always sum to exactly total and identical inputs always produce
// identical output.
func Allocate(total int64, accounts []models.Account) (map[string]int64, error) {
	if total < 0 {
		return nil, ErrNegativeAmount
	}
	if err := ValidateSplits(accounts); err != nil {
		return nil, err
	}

	ordered := RemainderOrder(accounts)
	allocations := make(map[string]int64, len(ordered))
	var allocated int64
	for _, acct := range ordered {
		share := floorShare(total, acct.SplitBasisPoints)
		allocations[acct.Name] = share
		allocated += share
	}

	remainder := total - allocated
	for i := 0; remainder > 0; i = (i + 1) % len(ordered) {
		if ordered[i].SplitBasisPoints == 0 {
			continue
		}
		allocations[ordered[i].Name]++
		remainder--
	}

	return allocations, nil
}

// floorShare computes floor(total × bps / 10000) without overflowing int64.
func floorShare(total, bps int64) int64 {
	whole := total / models.BasisPointsTotal
	part := total % models.BasisPointsTotal
	return whole*bps + part*bps/models.BasisPointsTotal
}
