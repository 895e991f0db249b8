package share

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/google/uuid"
)

var codeSpace = big.NewInt(1_000_000)

// Manager mints share identifiers and share codes.
type Manager struct {
	codes CodeReserver
	rand  io.Reader
}

func NewManager(codes CodeReserver) *Manager {
	return &Manager{codes: codes, rand: rand.Reader}
}

// NewShareID returns the first 8 characters of a random UUID. Uniqueness
// is not checked against the index.
func (m *Manager) NewShareID() string {
	return uuid.New().String()[:ShareIDLength]
}

// NewShareCode returns a uniformly random 6-digit, zero padded code.
func (m *Manager) NewShareCode() (string, error) {
	n, err := rand.Int(m.rand, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate share code: %w", err)
	}
	return fmt.Sprintf("%0*d", ShareCodeDigits, n.Int64()), nil
}

// UniqueShareCode draws codes until one can be reserved for shareID,
// giving up after MaxCodeAttempts.
func (m *Manager) UniqueShareCode(ctx context.Context, shareID string, expiresAt, now time.Time) (string, error) {
	for attempt := 0; attempt < MaxCodeAttempts; attempt++ {
		code, err := m.NewShareCode()
		if err != nil {
			return "", err
		}
		ok, err := m.codes.ReserveShareCode(ctx, code, shareID, expiresAt, now)
		if err != nil {
			return "", writeErr("reserve_code", shareID, err)
		}
		if ok {
			return code, nil
		}
	}
	return "", ErrShareCodeExhausted
}

// ValidShareCode reports whether s has the shape of a share code.
func ValidShareCode(s string) bool {
	if len(s) != ShareCodeDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
