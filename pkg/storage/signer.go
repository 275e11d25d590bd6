package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken indicates a malformed or tampered download token.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired indicates a token past its validity window.
	ErrTokenExpired = errors.New("download token expired")
)

// SignedURLSigner issues and verifies HMAC-signed download tokens so report
// files can be fetched without an authenticated session.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// SignedToken is the parsed form of a download token.
type SignedToken struct {
	JobID     string
	Path      string
	ExpiresAt time.Time
}

func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate produces a token of the form jobID.expiry.path.signature where
// the path segment is base64url encoded.
func (s *SignedURLSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	expiresAt := time.Now().Add(s.ttl)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	payload := fmt.Sprintf("%s.%d.%s", jobID, expiresAt.Unix(), encodedPath)
	token := payload + "." + s.sign(payload)
	return token, expiresAt, nil
}

// Parse validates the signature and expiry of a token. Expired tokens are
// accepted when allowExpired is set, which the cleanup path uses to resolve
// file names for deletion.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (*SignedToken, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrInvalidToken
	}
	payload := strings.Join(parts[:3], ".")
	if !hmac.Equal([]byte(s.sign(payload)), []byte(parts[3])) {
		return nil, ErrInvalidToken
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidToken
	}
	parsed := &SignedToken{
		JobID:     parts[0],
		Path:      string(rawPath),
		ExpiresAt: time.Unix(expiry, 0),
	}
	if !allowExpired && time.Now().After(parsed.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return parsed, nil
}

func (s *SignedURLSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
