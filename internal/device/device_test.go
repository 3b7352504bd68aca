package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sango-pay/sango_pay/internal/logging"
)

func newTestManager(t *testing.T) (*Manager, *MemoryStore, *time.Time) {
	t.Helper()
	store := NewMemoryStore()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store.SetClock(clock)

	m := NewManager(store, Config{
		TrustDuration: 30 * 24 * time.Hour,
		CodeTTL:       10 * time.Minute,
		SessionTTL:    15 * time.Minute,
		SessionSecret: []byte("test-secret"),
	}, logging.Discard())
	m.SetClock(clock)
	return m, store, &now
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(map[string]string{"os": "Android 14", "model": "Pixel 8", "screen": "1080x2400"})
	b := Fingerprint(map[string]string{"screen": "1080x2400", "model": " pixel 8 ", "os": "android 14"})
	if a != b {
		t.Fatalf("fingerprint not stable across ordering/normalization: %s vs %s", a, b)
	}

	c := Fingerprint(map[string]string{"os": "iOS 17", "model": "Pixel 8", "screen": "1080x2400"})
	if a == c {
		t.Fatal("different components produced the same fingerprint")
	}
}

func TestObserveCreatesPendingRecord(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	record, err := m.Observe(ctx, "dev-1", "acct-1", "1.2.3.4", "Brazzaville")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if record.State != StatePendingVerification {
		t.Fatalf("expected pending_verification, got %s", record.State)
	}
	if record.OwnerAccountID != "acct-1" {
		t.Fatalf("owner not bound: %q", record.OwnerAccountID)
	}

	trusted, err := m.IsTrusted(ctx, "dev-1")
	if err != nil {
		t.Fatalf("is trusted: %v", err)
	}
	if trusted {
		t.Fatal("unverified device must not be trusted")
	}
}

func TestTrustLifecycle(t *testing.T) {
	m, _, now := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Observe(ctx, "dev-1", "acct-1", "1.2.3.4", ""); err != nil {
		t.Fatalf("observe: %v", err)
	}

	code, err := m.BeginVerification(ctx, "dev-1")
	if err != nil {
		t.Fatalf("begin verification: %v", err)
	}

	if _, err := m.Trust(ctx, "dev-1", "000000"); !errors.Is(err, ErrInvalidCode) {
		if code == "000000" {
			t.Skip("generated code collided with the wrong-code probe")
		}
		t.Fatalf("expected invalid code, got %v", err)
	}

	// The failed attempt consumed nothing; the stored hash still matches.
	session, err := m.Trust(ctx, "dev-1", code)
	if err != nil {
		t.Fatalf("trust: %v", err)
	}
	if session.Token == "" || session.AccountID != "acct-1" {
		t.Fatalf("unexpected session: %+v", session)
	}

	trusted, _ := m.IsTrusted(ctx, "dev-1")
	if !trusted {
		t.Fatal("device should be trusted after verification")
	}

	// Move the clock past the trust window: no further calls needed.
	*now = now.Add(31 * 24 * time.Hour)
	trusted, _ = m.IsTrusted(ctx, "dev-1")
	if trusted {
		t.Fatal("trust must lapse once the expiry elapses")
	}
}

func TestTrustUnknownDevice(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.BeginVerification(context.Background(), "ghost"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected device not found, got %v", err)
	}
}

func TestVerificationCodeExpires(t *testing.T) {
	m, _, now := newTestManager(t)
	ctx := context.Background()

	m.Observe(ctx, "dev-1", "acct-1", "", "")
	code, err := m.BeginVerification(ctx, "dev-1")
	if err != nil {
		t.Fatalf("begin verification: %v", err)
	}

	*now = now.Add(11 * time.Minute)
	if _, err := m.Trust(ctx, "dev-1", code); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expired code must read as invalid, got %v", err)
	}
}

func TestSessionValidation(t *testing.T) {
	m, _, now := newTestManager(t)
	ctx := context.Background()

	m.Observe(ctx, "dev-1", "acct-1", "", "")
	code, _ := m.BeginVerification(ctx, "dev-1")
	session, err := m.Trust(ctx, "dev-1", code)
	if err != nil {
		t.Fatalf("trust: %v", err)
	}

	deviceID, accountID, ok := m.ValidateSession(session.Token)
	if !ok || deviceID != "dev-1" || accountID != "acct-1" {
		t.Fatalf("session should validate: ok=%v dev=%s acct=%s", ok, deviceID, accountID)
	}

	if _, _, ok := m.ValidateSession(session.Token + "x"); ok {
		t.Fatal("tampered token validated")
	}

	*now = now.Add(16 * time.Minute)
	if _, _, ok := m.ValidateSession(session.Token); ok {
		t.Fatal("expired session validated")
	}
}
