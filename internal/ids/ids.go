// Package ids generates prefixed, K-sortable ledger identifiers in the
// TypeID format ("sevt_01h2xcejqtf2nbrexx3vqjhp41").
package ids

import (
	"fmt"
	"strings"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in an id.
type Prefix string

const (
	PrefixSubscriptionEvent Prefix = "sevt"
	PrefixDistribution      Prefix = "dist"
)

// New generates an id with the given prefix. It panics on an invalid prefix,
// which is a programming error.
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("ids: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}

// NewSubscriptionEventID generates a subscription event id.
func NewSubscriptionEventID() string { return New(PrefixSubscriptionEvent) }

// NewDistributionID generates a distribution event id.
func NewDistributionID() string { return New(PrefixDistribution) }

// Validate checks that s parses as a TypeID with the expected prefix.
func Validate(s string, expected Prefix) error {
	tid, err := typeid.Parse(s)
	if err != nil {
		return fmt.Errorf("ids: parse %q: %w", s, err)
	}
	if !strings.HasPrefix(tid.String(), string(expected)+"_") {
		return fmt.Errorf("ids: expected prefix %q in %q", expected, s)
	}
	return nil
}
