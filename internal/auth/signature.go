package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/codepacceproduct/clausify/internal/config"
	"github.com/codepacceproduct/clausify/internal/log"
)

// Header names of the signed identity set sent by the platform.
const (
	HeaderUserID    = "X-Harvey-User-Id"
	HeaderTimestamp = "X-Harvey-Timestamp"
	HeaderSignature = "X-Harvey-Signature"
)

var (
	ErrMissingIdentity  = errors.New("missing user identity")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStaleTimestamp   = errors.New("timestamp outside allowed window")
	ErrReplayed         = errors.New("signature already used")
)

// ReplayGuard remembers signatures; SetNX must report false for a key that
// is already present.
type ReplayGuard interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// Verifier checks the HMAC identity headers. Without a shared secret it only
// requires the user id.
type Verifier struct {
	secret    []byte
	maxSkew   time.Duration
	replay    ReplayGuard
	replayTTL time.Duration
	now       func() time.Time
}

// NewVerifier builds a verifier from cfg. replay may be nil.
func NewVerifier(cfg config.SecurityConfig, replay ReplayGuard) *Verifier {
	return &Verifier{
		secret:    []byte(cfg.SharedSecret),
		maxSkew:   cfg.MaxSkew(),
		replay:    replay,
		replayTTL: cfg.ReplayWindow(),
		now:       time.Now,
	}
}

// Sign returns hex(HMAC-SHA256(secret, "userID:timestamp")).
func Sign(secret, userID, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID + ":" + timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify returns the authenticated user id.
func (v *Verifier) Verify(ctx context.Context, userID, timestamp, signature string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrMissingIdentity
	}
	if len(v.secret) == 0 {
		return userID, nil
	}

	expected := Sign(string(v.secret), userID, timestamp)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return "", ErrInvalidSignature
	}
	if v.maxSkew > 0 {
		ts, ok := parseTimestamp(timestamp)
		if !ok {
			return "", ErrStaleTimestamp
		}
		skew := v.now().Sub(ts)
		if skew < 0 {
			skew = -skew
		}
		if skew > v.maxSkew {
			return "", ErrStaleTimestamp
		}
	}
	if v.replay != nil {
		stored, err := v.replay.SetNX(ctx, "harvey:sig:"+expected, 1, v.replayTTL)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("replay guard unavailable")
			return userID, nil
		}
		if !stored {
			return "", ErrReplayed
		}
	}
	return userID, nil
}

// parseTimestamp accepts unix milliseconds (what the platform sends) or
// unix seconds.
func parseTimestamp(v string) (time.Time, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}
