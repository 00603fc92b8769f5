package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mmynk/revshare/internal/calculator"
	"github.com/mmynk/revshare/internal/models"
	"github.com/mmynk/revshare/internal/money"
)

// SplitConfigError reports an invalid split configuration. It is fatal at
// startup.
type SplitConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *SplitConfigError) Error() string {
	return fmt.Sprintf("invalid split configuration: %s: %s", e.Field, e.Reason)
}

func (e *SplitConfigError) Unwrap() error { return e.Err }

// Ledger is the validated payout configuration.
type Ledger struct {
	// Currency is the single currency the ledger accepts.
	Currency string
	Accounts []models.Account
	Targets  []models.Target
}

type ledgerFile struct {
	Currency string `yaml:"currency"`
	Accounts []struct {
		Name       string `yaml:"name"`
		Percentage string `yaml:"percentage"`
	} `yaml:"accounts"`
	Targets []struct {
		Name       string `yaml:"name"`
		Metric     string `yaml:"metric"`
		Value      string `yaml:"value"`
		WindowDays int    `yaml:"window_days"`
	} `yaml:"targets"`
}

// DefaultLedger is the built-in 60/20/20 split in rand with the launch targets.
func DefaultLedger() *Ledger {
	return &Ledger{
		Currency: "zar",
		Accounts: []models.Account{
			{Name: "owner", SplitBasisPoints: 6000},
			{Name: "ai_operations", SplitBasisPoints: 2000},
			{Name: "reserve", SplitBasisPoints: 2000},
		},
		Targets: []models.Target{
			{Name: "week_1_subscribers", Metric: models.MetricSubscribers, Value: 5000, WindowDays: 7},
			{Name: "month_1_revenue", Metric: models.MetricRevenue, Value: 25_000_000_00, WindowDays: 30},
		},
	}
}

// LoadLedger reads and validates a split file.
func LoadLedger(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read split file: %w", err)
	}
	return ParseLedger(data)
}

// ParseLedger decodes and validates split configuration YAML.
func ParseLedger(data []byte) (*Ledger, error) {
	var file ledgerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &SplitConfigError{Field: "yaml", Reason: err.Error(), Err: err}
	}

	ledger := &Ledger{Currency: money.NormalizeCurrency(file.Currency)}
	if ledger.Currency == "" {
		ledger.Currency = "zar"
	}

	for i, a := range file.Accounts {
		field := fmt.Sprintf("accounts[%d]", i)
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return nil, &SplitConfigError{Field: field + ".name", Reason: "account name is required"}
		}
		bps, err := percentToBasisPoints(a.Percentage)
		if err != nil {
			return nil, &SplitConfigError{Field: field + ".percentage", Reason: err.Error(), Err: err}
		}
		ledger.Accounts = append(ledger.Accounts, models.Account{Name: name, SplitBasisPoints: bps})
	}
	if err := calculator.ValidateSplits(ledger.Accounts); err != nil {
		return nil, &SplitConfigError{Field: "accounts", Reason: err.Error(), Err: err}
	}

	for i, t := range file.Targets {
		field := fmt.Sprintf("targets[%d]", i)
		target, err := parseTarget(t.Name, t.Metric, t.Value, t.WindowDays, ledger.Currency)
		if err != nil {
			return nil, &SplitConfigError{Field: field, Reason: err.Error(), Err: err}
		}
		ledger.Targets = append(ledger.Targets, target)
	}

	return ledger, nil
}

// percentToBasisPoints converts "33.33" to 3333. Anything finer than a
// hundredth of a percent, or not strictly positive, is rejected.
func percentToBasisPoints(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	bps := d.Shift(2)
	if !bps.Equal(bps.Truncate(0)) {
		return 0, fmt.Errorf("at most two decimal places allowed: %q", s)
	}
	if !bps.IsPositive() {
		return 0, fmt.Errorf("must be greater than zero: %q", s)
	}
	if bps.GreaterThan(decimal.NewFromInt(models.BasisPointsTotal)) {
		return 0, fmt.Errorf("cannot exceed 100: %q", s)
	}
	return bps.IntPart(), nil
}

func parseTarget(name, metric, value string, windowDays int, currency string) (models.Target, error) {
	target := models.Target{Name: strings.TrimSpace(name), Metric: models.TargetMetric(metric), WindowDays: windowDays}
	if target.Name == "" {
		return target, fmt.Errorf("target name is required")
	}
	if windowDays < 0 {
		return target, fmt.Errorf("window_days cannot be negative")
	}

	switch target.Metric {
	case models.MetricSubscribers:
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil || !d.Equal(d.Truncate(0)) || !d.IsPositive() {
			return target, fmt.Errorf("subscriber target must be a positive whole number: %q", value)
		}
		target.Value = d.IntPart()
	case models.MetricRevenue:
		minor, err := money.ParseMajor(value, currency)
		if err != nil {
			return target, err
		}
		if minor <= 0 {
			return target, fmt.Errorf("revenue target must be positive: %q", value)
		}
		target.Value = minor
	default:
		return target, fmt.Errorf("unknown metric %q", metric)
	}
	return target, nil
}
