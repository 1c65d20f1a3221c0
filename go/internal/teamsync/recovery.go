package teamsync

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/teamaction/geohunt/go/internal/models"
)

var (
	// ErrNotConnected is returned when an operation needs an active
	// game/team session and there is none.
	ErrNotConnected = errors.New("not connected to a game")

	// ErrInvalidCode is returned for an unknown, expired, or already
	// redeemed recovery code.
	ErrInvalidCode = errors.New("invalid or expired recovery code")
)

// Ambiguous glyphs (0/O, 1/I/L) are excluded; codes are read aloud and
// typed on phones.
const recoveryCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const recoveryCodeLength = 6

// GenerateRecoveryCode mints a short-lived, single-use code that lets this
// identity resume on another browser. The code is cached locally for
// re-display and stored server-side with a bounded TTL. Fails with
// ErrNotConnected when no session is active.
func (s *Session) GenerateRecoveryCode(ctx context.Context) (string, error) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return "", ErrNotConnected
	}
	data := models.RecoveryCodeData{
		GameID:   s.gameID,
		TeamName: s.teamName,
		DeviceID: s.deviceID,
		UserName: s.identity.UserName(),
	}
	s.mu.Unlock()

	code, err := newRecoveryCode()
	if err != nil {
		return "", fmt.Errorf("generate recovery code: %w", err)
	}
	if err := s.recoveryStore.CreateCode(ctx, code, data, s.cfg.RecoveryCodeTTL); err != nil {
		return "", fmt.Errorf("store recovery code: %w", err)
	}
	s.identity.SetRecoveryCode(code)

	s.log.Info().Str("device_id", data.DeviceID).Msg("recovery code generated")
	return code, nil
}

// ReconnectWithCode redeems a recovery code and transplants the recovered
// identity onto this device. This is a transplant, not a merge: local-only
// state tied to this browser's previous device id is abandoned. The code is
// deleted on redemption (single-use). Fails with ErrInvalidCode for an
// unknown or expired code; the caller surfaces that to the user, there is
// no implicit retry. The caller then Connects to the recovered game/team.
func (s *Session) ReconnectWithCode(ctx context.Context, code string) (*models.RecoveryCodeData, error) {
	data, err := s.recoveryStore.RedeemCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("redeem recovery code: %w", err)
	}
	if data == nil {
		return nil, ErrInvalidCode
	}

	s.Disconnect()
	s.identity.Transplant(data.DeviceID, data.UserName)

	s.log.Info().
		Str("device_id", data.DeviceID).
		Str("game_id", data.GameID).
		Msg("identity recovered from code")
	return data, nil
}

func newRecoveryCode() (string, error) {
	buf := make([]byte, recoveryCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = recoveryCodeAlphabet[int(b)%len(recoveryCodeAlphabet)]
	}
	return string(buf), nil
}
