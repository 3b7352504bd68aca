package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// State is the trust state of a device record.
type State string

const (
	// StateUnknown means the device has never been seen.
	StateUnknown State = "unknown"
	// StatePendingVerification means the device is known but not verified.
	StatePendingVerification State = "pending_verification"
	// StateTrusted means the device passed verification and the trust window is open.
	StateTrusted State = "trusted"
	// StateExpired means the trust window elapsed; equivalent to pending
	// verification for all future checks.
	StateExpired State = "expired"
)

// Record tracks one client device and its trust state.
type Record struct {
	DeviceID       string    `json:"device_id"`
	OwnerAccountID string    `json:"owner_account_id"`
	Fingerprint    string    `json:"fingerprint"`
	State          State     `json:"state"`
	TrustExpiry    time.Time `json:"trust_expiry"`
	LastIP         string    `json:"last_ip"`
	LastLocation   string    `json:"last_location"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}

// EffectiveState resolves the record's state at the given instant. A trusted
// record whose expiry has elapsed reads as expired without any store write.
func (r Record) EffectiveState(now time.Time) State {
	if r.State == StateTrusted && !r.TrustExpiry.After(now) {
		return StateExpired
	}
	return r.State
}

// Fingerprint derives a deterministic device identifier from client-supplied
// attributes. Component order does not matter; keys and values are normalized
// before hashing.
func Fingerprint(components map[string]string) string {
	keys := make([]string, 0, len(components))
	for k := range components {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		v := strings.ToLower(strings.TrimSpace(components[k]))
		fmt.Fprintf(h, "%s=%s\n", strings.ToLower(strings.TrimSpace(k)), v)
	}
	return hex.EncodeToString(h.Sum(nil))
}
