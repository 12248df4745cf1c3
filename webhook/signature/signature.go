package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	// HeaderName is the request header carrying the body signature
	HeaderName = "ms-signature"

	// Algorithm is the only supported signature algorithm
	Algorithm = "sha256"

	// MinSecretLength is the minimum secret length in characters
	MinSecretLength = 32

	// MaxSecretLength is the maximum secret length in characters
	MaxSecretLength = 64
)

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ValidateSecret checks the secret length bounds
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength || len(secret) > MaxSecretLength {
		return fmt.Errorf("secret length must be between %d and %d characters (got %d)", MinSecretLength, MaxSecretLength, len(secret))
	}
	return nil
}

// GenerateSecret creates a random alphanumeric secret of the given length
func GenerateSecret(length int) (string, error) {
	if length < MinSecretLength || length > MaxSecretLength {
		return "", fmt.Errorf("secret length must be between %d and %d characters", MinSecretLength, MaxSecretLength)
	}

	return readSecret(rand.Reader, length)
}

// maxUnbiased is the largest multiple of the alphabet size that fits a byte;
// bytes at or above it are discarded so every character is equally likely
const maxUnbiased = 256 - 256%len(secretAlphabet)

func readSecret(r io.Reader, length int) (string, error) {
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("generating random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, secretAlphabet[int(b)%len(secretAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// Signature is an HMAC digest of a request body
type Signature struct {
	Algorithm string
	Hex       string
}

// String returns the header value: sha256=<lowercase hex>
func (s Signature) String() string {
	return fmt.Sprintf("%s=%s", s.Algorithm, s.Hex)
}

// ParseHeader parses a header value in the form sha256=<hex>
func ParseHeader(header string) (Signature, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Signature{}, fmt.Errorf("signature header is empty")
	}

	parts := strings.SplitN(header, "=", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Signature{}, fmt.Errorf("invalid signature format, expected 'sha256=<hex>'")
	}
	if !strings.EqualFold(parts[0], Algorithm) {
		return Signature{}, fmt.Errorf("unsupported signature algorithm: %s", parts[0])
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return Signature{}, fmt.Errorf("decoding signature hex: %w", err)
	}

	return Signature{
		Algorithm: Algorithm,
		Hex:       strings.ToLower(parts[1]),
	}, nil
}

// Sign computes the HMAC-SHA256 of the exact body bytes keyed by the
// full secret
func Sign(secret string, body []byte) (Signature, error) {
	if err := ValidateSecret(secret); err != nil {
		return Signature{}, err
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return Signature{
		Algorithm: Algorithm,
		Hex:       hex.EncodeToString(mac.Sum(nil)),
	}, nil
}

// Verify checks a header value against the body using constant-time comparison
func Verify(secret string, body []byte, header string) (bool, error) {
	expected, err := ParseHeader(header)
	if err != nil {
		return false, fmt.Errorf("parsing signature header: %w", err)
	}

	calculated, err := Sign(secret, body)
	if err != nil {
		return false, fmt.Errorf("calculating signature: %w", err)
	}

	want, err := hex.DecodeString(expected.Hex)
	if err != nil {
		return false, fmt.Errorf("decoding expected signature: %w", err)
	}
	got, err := hex.DecodeString(calculated.Hex)
	if err != nil {
		return false, fmt.Errorf("decoding calculated signature: %w", err)
	}

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}
