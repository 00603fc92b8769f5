// Package metrics exports ledger activity to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer records settlement and distribution activity. A nil *Observer
// is valid and records nothing.
type Observer struct {
	settlements          *prometheus.CounterVec
	settledAmount        prometheus.Counter
	distributions        *prometheus.CounterVec
	distributionDuration prometheus.Histogram
	distributedAmount    *prometheus.CounterVec
}

// New registers the ledger metrics with reg. A nil reg uses the default registerer.
func New(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "revshare"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var err error
	o := &Observer{}
	if o.settlements, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_total",
		Help:      "Settlement notifications by outcome (recorded, duplicate, failed, rejected).",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if o.settledAmount, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settled_amount_minor_total",
		Help:      "Settled revenue recorded, in minor currency units.",
	})); err != nil {
		return nil, err
	}
	if o.distributions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "distributions_total",
		Help:      "Distribution runs by outcome (committed, noop, error).",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if o.distributionDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "distribution_duration_seconds",
		Help:      "Latency of distribution runs.",
		Buckets:   prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if o.distributedAmount, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "distributed_amount_minor_total",
		Help:      "Revenue allocated to each account, in minor currency units.",
	}, []string{"account"})); err != nil {
		return nil, err
	}
	return o, nil
}

// register adds c to reg, reusing the existing collector if an identical one
// is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register ledger metric: %w", err)
	}
	return c, nil
}

// Settlement outcomes.
const (
	SettlementRecorded  = "recorded"
	SettlementDuplicate = "duplicate"
	SettlementFailed    = "failed"
	SettlementRejected  = "rejected"
)

// RecordSettlement counts a settlement outcome; amount is added for recorded ones.
func (o *Observer) RecordSettlement(result string, amount int64) {
	if o == nil {
		return
	}
	o.settlements.WithLabelValues(result).Inc()
	if result == SettlementRecorded && amount > 0 {
		o.settledAmount.Add(float64(amount))
	}
}

// RecordDistribution tracks a distribution run. allocations is nil for a no-op.
func (o *Observer) RecordDistribution(duration time.Duration, allocations map[string]int64, err error) {
	if o == nil {
		return
	}
	o.distributionDuration.Observe(duration.Seconds())
	switch {
	case err != nil:
		o.distributions.WithLabelValues("error").Inc()
	case allocations == nil:
		o.distributions.WithLabelValues("noop").Inc()
	default:
		o.distributions.WithLabelValues("committed").Inc()
		for account, amount := range allocations {
			o.distributedAmount.WithLabelValues(account).Add(float64(amount))
		}
	}
}
