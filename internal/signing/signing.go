// Package signing signs and verifies the OAuth state parameter handed to the
// mailbox consent page, so a callback can only connect the user who started it.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidState is returned for tampered, malformed or expired state values.
var ErrInvalidState = errors.New("invalid oauth state")

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Sign returns the hex signature for a user id and expiry.
func (s *Signer) Sign(userID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(fmt.Sprintf("%s:%d", userID, expiresUnix)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate compares the provided signature with the expected one.
func (s *Signer) Validate(userID, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	expected := s.Sign(userID, exp)
	// hmac.Equal is constant time.
	return hmac.Equal([]byte(expected), []byte(signature))
}

// State builds "userID.expires.signature" valid for ttl.
func (s *Signer) State(userID string, ttl time.Duration) string {
	exp := s.now().Add(ttl).Unix()
	return fmt.Sprintf("%s.%d.%s", userID, exp, s.Sign(userID, exp))
}

// Verify checks a State value and returns the user id it was issued for.
func (s *Signer) Verify(state string) (string, error) {
	i := strings.LastIndex(state, ".")
	if i < 0 {
		return "", ErrInvalidState
	}
	rest, sig := state[:i], state[i+1:]
	j := strings.LastIndex(rest, ".")
	if j < 0 {
		return "", ErrInvalidState
	}
	userID, expires := rest[:j], rest[j+1:]
	if userID == "" || !s.Validate(userID, expires, sig) {
		return "", ErrInvalidState
	}
	exp, _ := strconv.ParseInt(expires, 10, 64)
	if s.now().Unix() > exp {
		return "", fmt.Errorf("%w: expired", ErrInvalidState)
	}
	return userID, nil
}
