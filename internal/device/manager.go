package device

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrDeviceNotFound indicates the device has never been observed.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInvalidCode indicates a wrong, expired, or missing verification code.
	ErrInvalidCode = errors.New("invalid verification code")
)

// Config parameterizes trust windows, code TTLs, and session issuance.
type Config struct {
	TrustDuration time.Duration
	CodeTTL       time.Duration
	SessionTTL    time.Duration
	SessionSecret []byte
}

// Manager owns the device trust state machine: unknown -> pending_verification
// -> trusted -> expired. Trust transitions happen only through explicit
// verification.
type Manager struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewManager builds a device trust manager.
func NewManager(store Store, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock pins the manager's clock. Test helper.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Observe records a sighting of a device. First sight creates the record in
// pending_verification and binds the owner; later sightings refresh the
// last-seen attributes.
func (m *Manager) Observe(ctx context.Context, deviceID, ownerAccountID, ip, location string) (Record, error) {
	now := m.now()

	record, found, err := m.store.Get(ctx, deviceID)
	if err != nil {
		return Record{}, err
	}

	if !found {
		record = Record{
			DeviceID:       deviceID,
			OwnerAccountID: ownerAccountID,
			Fingerprint:    deviceID,
			State:          StatePendingVerification,
			FirstSeen:      now,
		}
	}

	if record.OwnerAccountID == "" {
		record.OwnerAccountID = ownerAccountID
	}
	record.LastSeen = now
	if ip != "" {
		record.LastIP = ip
	}
	if location != "" {
		record.LastLocation = location
	}
	if record.EffectiveState(now) == StateExpired {
		record.State = StateExpired
	}

	if err := m.store.Put(ctx, record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// Get returns the device record if it exists.
func (m *Manager) Get(ctx context.Context, deviceID string) (Record, bool, error) {
	return m.store.Get(ctx, deviceID)
}

// IsTrusted reports whether the device is trusted right now: state trusted and
// a trust expiry still in the future.
func (m *Manager) IsTrusted(ctx context.Context, deviceID string) (bool, error) {
	record, found, err := m.store.Get(ctx, deviceID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return record.EffectiveState(m.now()) == StateTrusted, nil
}

// BeginVerification generates a short-lived verification code for the device.
// Only the bcrypt hash is stored; delivery of the plain code is the caller's
// concern.
func (m *Manager) BeginVerification(ctx context.Context, deviceID string) (string, error) {
	_, found, err := m.store.Get(ctx, deviceID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrDeviceNotFound
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	if err := m.store.PutCode(ctx, deviceID, hash, m.cfg.CodeTTL); err != nil {
		return "", err
	}

	m.logger.Info("device verification started", slog.String("device_id", deviceID))
	return code, nil
}

// Trust verifies the code and transitions the device to trusted with a fresh
// expiry, then issues a step-up session. Re-verifying an already trusted
// device just extends the window.
func (m *Manager) Trust(ctx context.Context, deviceID, code string) (Session, error) {
	record, found, err := m.store.Get(ctx, deviceID)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, ErrDeviceNotFound
	}

	hash, found, err := m.store.GetCode(ctx, deviceID)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, ErrInvalidCode
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(code)); err != nil {
		return Session{}, ErrInvalidCode
	}

	now := m.now()
	record.State = StateTrusted
	record.TrustExpiry = now.Add(m.cfg.TrustDuration)
	record.LastSeen = now
	if err := m.store.Put(ctx, record); err != nil {
		return Session{}, err
	}
	if err := m.store.DeleteCode(ctx, deviceID); err != nil {
		m.logger.Warn("delete verification code", slog.String("device_id", deviceID), slog.Any("error", err))
	}

	m.logger.Info("device trusted",
		slog.String("device_id", deviceID),
		slog.Time("trust_expiry", record.TrustExpiry))

	return m.issueSession(record)
}

// IssueSession creates a step-up session for an already trusted device.
func (m *Manager) IssueSession(ctx context.Context, deviceID string) (Session, error) {
	record, found, err := m.store.Get(ctx, deviceID)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, ErrDeviceNotFound
	}
	if record.EffectiveState(m.now()) != StateTrusted {
		return Session{}, ErrInvalidCode
	}
	return m.issueSession(record)
}

func (m *Manager) issueSession(record Record) (Session, error) {
	now := m.now()
	exp := now.Add(m.cfg.SessionTTL)
	claims := map[string]any{
		"sub": record.OwnerAccountID,
		"dev": record.DeviceID,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	token, err := signHS256(claims, m.cfg.SessionSecret)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		DeviceID:  record.DeviceID,
		AccountID: record.OwnerAccountID,
		ExpiresAt: exp,
	}, nil
}

// ValidateSession checks a session token. An expired or malformed token reads
// as not authenticated, never as a distinct error.
func (m *Manager) ValidateSession(token string) (deviceID, accountID string, ok bool) {
	claims, err := parseHS256(token, m.cfg.SessionSecret)
	if err != nil {
		return "", "", false
	}
	expFloat, _ := claims["exp"].(float64)
	if int64(expFloat) <= m.now().Unix() {
		return "", "", false
	}
	deviceID, _ = claims["dev"].(string)
	accountID, _ = claims["sub"].(string)
	return deviceID, accountID, deviceID != "" && accountID != ""
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
