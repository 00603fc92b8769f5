package models

// BasisPointsTotal is 100% expressed in basis points.
const BasisPointsTotal = 10000

// Account is a payout destination.
type Account struct {
	// Name is the configured account name (e.g., "owner", "reserve").
	Name string `json:"name"`

	// SplitBasisPoints is the account's share in hundredths of a percent.
	// Across all configured accounts these sum to BasisPointsTotal.
	SplitBasisPoints int64 `json:"splitBasisPoints"`
}

// TargetMetric names what a revenue target measures.
type TargetMetric string

const (
	MetricSubscribers TargetMetric = "subscribers"
	MetricRevenue     TargetMetric = "revenue"
)

// Target is a growth goal tracked on the dashboard.
type Target struct {
	Name   string       `json:"name"`
	Metric TargetMetric `json:"metric"`

	// Value is a subscriber count or a revenue amount in minor units.
	Value int64 `json:"value"`

	// WindowDays limits the measurement to the trailing N days. Zero means all time.
	WindowDays int `json:"windowDays"`
}
