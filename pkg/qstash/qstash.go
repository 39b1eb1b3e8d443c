package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SignatureHeader = "Upstash-Signature"
	issuer          = "Upstash"
)

var (
	ErrMissingSignature = errors.New("qstash signature is missing")
	ErrInvalidSignature = errors.New("qstash signature is invalid")
)

type Config struct {
	CurrentSigningKey string        `split_words:"true" required:"true"`
	NextSigningKey    string        `split_words:"true"`
	ClockSkew         time.Duration `split_words:"true" default:"30s"`
}

type claims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// Verifier checks Upstash-Signature JWTs on webhook deliveries. The current key
// is tried first, then the next key to cover rotation.
type Verifier struct {
	keys   [][]byte
	parser *jwt.Parser
}

func NewVerifier(cfg Config) (*Verifier, error) {
	current := strings.TrimSpace(cfg.CurrentSigningKey)
	next := strings.TrimSpace(cfg.NextSigningKey)
	if current == "" && next == "" {
		return nil, errors.New("qstash signing key is required")
	}

	var keys [][]byte
	for _, k := range []string{current, next} {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = 30 * time.Second
	}
	return &Verifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithLeeway(skew),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

func MustNewVerifier(cfg Config) *Verifier {
	v, err := NewVerifier(cfg)
	if err != nil {
		panic(err)
	}
	return v
}

// Verify validates signature against the delivered body and, when url is not
// empty, the subject claim.
func (v *Verifier) Verify(signature string, body []byte, url string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	var lastErr error
	for _, key := range v.keys {
		err := v.verifyWithKey(key, signature, body, url)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func (v *Verifier) verifyWithKey(key []byte, signature string, body []byte, url string) error {
	var c claims
	if _, err := v.parser.ParseWithClaims(signature, &c, func(*jwt.Token) (any, error) {
		return key, nil
	}); err != nil {
		return err
	}
	if url != "" && c.Subject != url {
		return fmt.Errorf("subject %q does not match %q", c.Subject, url)
	}
	if strings.TrimRight(c.Body, "=") != BodyHash(body) {
		return errors.New("body hash mismatch")
	}
	return nil
}

// BodyHash is the unpadded base64url SHA-256 digest carried in the body claim.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Sign produces a signature the Verifier accepts. It is used by local tooling
// and tests to emulate QStash deliveries.
func Sign(key string, url string, body []byte, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Body: BodyHash(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   url,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(key))
}
