package diet

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// RestrictionSet is a deduplicated set of normalized restriction tokens.
// Tokens are lower-cased and trimmed; membership is the only operation
// downstream code performs.
type RestrictionSet map[string]struct{}

// Add inserts a token after normalization. Empty tokens are ignored.
func (s RestrictionSet) Add(token string) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return
	}
	s[token] = struct{}{}
}

// Contains reports whether the normalized form of token is in the set.
func (s RestrictionSet) Contains(token string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(token))]
	return ok
}

// Sorted returns the tokens in lexical order. The set itself is
// order-independent; sorting exists so cache keys and API responses are
// stable.
func (s RestrictionSet) Sorted() []string {
	tokens := make([]string, 0, len(s))
	for token := range s {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// Aggregator merges dietary restrictions from declared restrictions,
// allergies, and medical-condition lookups.
type Aggregator struct {
	lookup ConditionLookup
	logger zerolog.Logger
}

// NewAggregator creates a restriction aggregator. lookup may be nil, in
// which case medical conditions contribute no restrictions.
func NewAggregator(lookup ConditionLookup, logger zerolog.Logger) *Aggregator {
	return &Aggregator{lookup: lookup, logger: logger}
}

// Aggregate unions the profile's declared restrictions and allergies with
// the foods-to-avoid of each medical condition. A failing or timed-out
// lookup for one condition is logged and contributes nothing; it never
// aborts the aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, profile *HealthProfile) RestrictionSet {
	set := make(RestrictionSet)
	if profile == nil {
		return set
	}

	for _, token := range profile.DietaryRestrictions {
		set.Add(token)
	}
	for _, token := range profile.Allergies {
		set.Add(token)
	}

	if a.lookup == nil {
		return set
	}

	for _, condition := range profile.MedicalConditions {
		advice, err := a.lookup(ctx, condition)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Str("condition", condition).
				Msg("condition lookup failed, skipping")
			continue
		}
		if advice == nil {
			continue
		}
		for _, token := range advice.FoodsToAvoid {
			set.Add(token)
		}
	}

	return set
}
