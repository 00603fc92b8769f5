package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/revshare/internal/models"
)

var defaultSplit = []models.Account{
	{Name: "owner", SplitBasisPoints: 6000},
	{Name: "ai_operations", SplitBasisPoints: 2000},
	{Name: "reserve", SplitBasisPoints: 2000},
}

func sum(allocations map[string]int64) int64 {
	var total int64
	for _, v := range allocations {
		total += v
	}
	return total
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name         string
		total        int64
		accounts     []models.Account
		wantErr      error
		validateFunc func(t *testing.T, got map[string]int64)
	}{
		{
			name:     "60/20/20 with one leftover cent",
			total:    20001,
			accounts: defaultSplit,
			validateFunc: func(t *testing.T, got map[string]int64) {
				// floor: 12000/4000/4000, remainder 1 goes to the 60% account
				assert.Equal(t, map[string]int64{"owner": 12001, "ai_operations": 4000, "reserve": 4000}, got)
			},
		},
		{
			name:  "three-way split of one cent",
			total: 1,
			accounts: []models.Account{
				{Name: "a", SplitBasisPoints: 3334},
				{Name: "b", SplitBasisPoints: 3333},
				{Name: "c", SplitBasisPoints: 3333},
			},
			validateFunc: func(t *testing.T, got map[string]int64) {
				assert.Equal(t, map[string]int64{"a": 1, "b": 0, "c": 0}, got)
			},
		},
		{
			name:  "ties broken by account name",
			total: 2,
			accounts: []models.Account{
				{Name: "zeta", SplitBasisPoints: 3334},
				{Name: "beta", SplitBasisPoints: 3333},
				{Name: "alpha", SplitBasisPoints: 3333},
			},
			validateFunc: func(t *testing.T, got map[string]int64) {
				assert.Equal(t, map[string]int64{"zeta": 1, "alpha": 1, "beta": 0}, got)
			},
		},
		{
			name:     "zero total allocates nothing",
			total:    0,
			accounts: defaultSplit,
			validateFunc: func(t *testing.T, got map[string]int64) {
				assert.Equal(t, map[string]int64{"owner": 0, "ai_operations": 0, "reserve": 0}, got)
			},
		},
		{
			name:     "large totals do not overflow",
			total:    9_000_000_000_000_000_000,
			accounts: defaultSplit,
			validateFunc: func(t *testing.T, got map[string]int64) {
				assert.Equal(t, int64(5_400_000_000_000_000_000), got["owner"])
				assert.Equal(t, int64(9_000_000_000_000_000_000), sum(got))
			},
		},
		{
			name:     "no accounts",
			total:    100,
			accounts: nil,
			wantErr:  ErrNoAccounts,
		},
		{
			name:  "splits summing to 97%",
			total: 100,
			accounts: []models.Account{
				{Name: "owner", SplitBasisPoints: 5700},
				{Name: "reserve", SplitBasisPoints: 4000},
			},
			wantErr: ErrSplitSum,
		},
		{
			name:     "negative total",
			total:    -1,
			accounts: defaultSplit,
			wantErr:  ErrNegativeAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(tt.total, tt.accounts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.total, sum(got), "allocations must sum to the total")
			if tt.validateFunc != nil {
				tt.validateFunc(t, got)
			}
		})
	}
}

func TestAllocateNeverDrifts(t *testing.T) {
	splits := [][]models.Account{
		defaultSplit,
		{{Name: "a", SplitBasisPoints: 1}, {Name: "b", SplitBasisPoints: 9999}},
		{{Name: "a", SplitBasisPoints: 1429}, {Name: "b", SplitBasisPoints: 1429}, {Name: "c", SplitBasisPoints: 1429},
			{Name: "d", SplitBasisPoints: 1429}, {Name: "e", SplitBasisPoints: 1428}, {Name: "f", SplitBasisPoints: 1428},
			{Name: "g", SplitBasisPoints: 1428}},
	}
	for _, accounts := range splits {
		for total := int64(0); total < 2500; total += 7 {
			got, err := Allocate(total, accounts)
			require.NoError(t, err)
			require.Equal(t, total, sum(got), "total %d", total)

			again, err := Allocate(total, accounts)
			require.NoError(t, err)
			require.Equal(t, got, again, "allocation must be deterministic")
		}
	}
}

func TestValidateSplitsRejectsDuplicates(t *testing.T) {
	err := ValidateSplits([]models.Account{
		{Name: "owner", SplitBasisPoints: 5000},
		{Name: "owner", SplitBasisPoints: 5000},
	})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestRemainderOrder(t *testing.T) {
	ordered := RemainderOrder([]models.Account{
		{Name: "reserve", SplitBasisPoints: 2000},
		{Name: "owner", SplitBasisPoints: 6000},
		{Name: "ai_operations", SplitBasisPoints: 2000},
	})
	names := []string{ordered[0].Name, ordered[1].Name, ordered[2].Name}
	assert.Equal(t, []string{"owner", "ai_operations", "reserve"}, names)
}
