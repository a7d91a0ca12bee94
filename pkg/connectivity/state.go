// Package connectivity tracks whether the network is reachable by observing
// the outcome of outbound round trips, and fires restore callbacks when it
// comes back after an outage.
package connectivity

import (
	"time"
)

// Redis keys for recorded connectivity state.
const (
	RedisKeyOnline     = "offline:connectivity:online"
	RedisKeyFailures   = "offline:connectivity:consecutive_failures"
	RedisKeyLastChange = "offline:connectivity:last_change"
)

// DefaultThreshold is the number of consecutive network failures after which
// the network is considered offline.
const DefaultThreshold = 3

// State is the observed connectivity state.
type State struct {
	// Online is false after Threshold consecutive network failures and true
	// again after the first successful round trip.
	Online bool `json:"online"`

	// ConsecutiveFailures counts network failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastChange is when Online last flipped (process start if never).
	LastChange time.Time `json:"last_change"`

	// Restores counts offline -> online transitions.
	Restores int `json:"restores"`
}

// Since returns how long the current state has held.
func (s State) Since() time.Duration {
	return time.Since(s.LastChange)
}
