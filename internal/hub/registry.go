package hub

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
)

// registrationKeyLength is the length of the registration credential.
const registrationKeyLength = 32

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Keyring holds the current device-registration credential. The value is
// scoped to the hub instance and rotated after every successful
// registration, so a captured key authorizes at most one device.
type Keyring struct {
	mu     sync.Mutex
	key    string
	length int
}

// NewKeyring creates a keyring with a fresh random credential.
func NewKeyring(length int) (*Keyring, error) {
	if length <= 0 {
		return nil, errors.New("key length must be positive")
	}
	k := &Keyring{length: length}
	if _, err := k.Rotate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Current returns the active registration credential.
func (k *Keyring) Current() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.key
}

// Rotate replaces the credential with a fresh random value and returns it.
func (k *Keyring) Rotate() (string, error) {
	buf := make([]byte, k.length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate registration key: %w", err)
	}
	for i, b := range buf {
		buf[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = string(buf)
	return k.key, nil
}

// Verify checks a candidate credential in constant time.
func (k *Keyring) Verify(candidate string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return subtle.ConstantTimeCompare([]byte(k.key), []byte(candidate)) == 1
}

// RegistrationKey exposes the current credential to the (authenticated,
// out-of-scope) surface that hands it to technicians.
func (h *Hub) RegistrationKey() string {
	return h.keyring.Current()
}

// RegisterDevice registers a field device by hardware address. Idempotent:
// re-registering a known MAC returns the existing device without rotating
// the credential. New devices start untrusted-allowed (service mode) with
// the default day interval; a technician assigns the location out-of-band.
// Returns whether the device was just created.
func (h *Hub) RegisterDevice(ctx context.Context, mac string, charge float64, key string) (*Device, bool, error) {
	if mac == "" {
		return nil, false, fmt.Errorf("%w: hardware address is required", ErrValidation)
	}

	if !h.keyring.Verify(key) {
		h.audit(ctx, LogError, "device_registration",
			fmt.Sprintf("attempt to register %s with a bad key", mac))
		return nil, false, ErrBadRegistrationKey
	}

	device, err := h.store.DeviceByMAC(ctx, mac)
	if err == nil {
		h.audit(ctx, LogNotification, "device_registration",
			fmt.Sprintf("device %s already exists", mac))
		return device, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	device = &Device{
		MAC:            mac,
		Charge:         &charge,
		AllowUntrusted: true,
		HasTempSensor:  true,
		SleepPeriodMs:  h.cfg.DayIntervalMs,
	}
	if err := h.store.CreateDevice(ctx, device); err != nil {
		return nil, false, err
	}

	if _, err := h.keyring.Rotate(); err != nil {
		// The device is registered; a stuck credential is an operational
		// problem, not a registration failure.
		h.logger.Error("failed to rotate registration key", "error", err)
	}

	h.audit(ctx, LogNotification, "device_registration",
		fmt.Sprintf("created new device %s", mac))
	return device, true, nil
}
