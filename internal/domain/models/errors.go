package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors forming the feed's failure taxonomy. Adapters and services
// wrap these so callers can branch with errors.Is.
var (
	// ErrUnsupportedMarket: the symbol/market is outside what the provider
	// (or the whole configuration) declares support for. Caller error, not
	// retried and never triggers fallback.
	ErrUnsupportedMarket = errors.New("unsupported market")

	// ErrRateLimited: the provider's token bucket could not grant a token
	// within the bounded wait. Transient; the router tries the next provider.
	ErrRateLimited = errors.New("rate limited")

	// ErrProviderUnavailable: transport failure or deadline exceeded talking
	// to the upstream. Transient; triggers fallback and, for streams,
	// reconnection.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrStreamingUnsupported: the provider has no live stream capability.
	ErrStreamingUnsupported = errors.New("streaming unsupported")
)

// NormalizationError reports a payload that could not be turned into a
// canonical series. Partial results may still accompany it.
type NormalizationError struct {
	Provider string
	Reason   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization failed (%s): %s", e.Provider, e.Reason)
}

// ProviderFailure records why one provider in the fallback chain failed.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

func (e *ProviderFailure) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

// DataUnavailableError is terminal: every provider in the chain failed.
// It carries the per-provider reasons for diagnostics.
type DataUnavailableError struct {
	Key      SeriesKey
	Attempts []ProviderFailure
}

func (e *DataUnavailableError) Error() string {
	reasons := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reasons = append(reasons, fmt.Sprintf("%s: %s", a.Provider, a.Reason))
	}
	return fmt.Sprintf("data unavailable for %s [%s]", e.Key, strings.Join(reasons, "; "))
}
