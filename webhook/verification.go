package webhook

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// EchoParameter carries the challenge token in the verification probe
	EchoParameter = "echo"
	// NoEchoParameter on a subscription URI disables the verification probe
	NoEchoParameter = "noecho"

	maxEchoBody = 1 << 10
)

// Verification failure reasons
const (
	ReasonUnreachable     = "unreachable"
	ReasonNonSuccess      = "non-success status"
	ReasonEmptyBody       = "empty body"
	ReasonNonTextContent  = "non-text content type"
	ReasonBodyMismatch    = "body mismatch"
	ReasonInvalidEndpoint = "invalid endpoint"
)

// EchoVerifier performs the registration-time echo challenge: a GET to the
// subscription URI with a random token that the endpoint must return verbatim
type EchoVerifier struct {
	Client *http.Client
	// NewToken generates the challenge; defaults to NewID
	NewToken func() string
}

// NewEchoVerifier creates a verifier whose probe gives up after timeout
func NewEchoVerifier(timeout time.Duration) *EchoVerifier {
	return &EchoVerifier{
		Client: &http.Client{Timeout: timeout},
	}
}

// Verify issues the echo probe, skipping it when the URI carries noecho
func (v *EchoVerifier) Verify(ctx context.Context, sub Subscription) error {
	u, err := url.Parse(sub.URI)
	if err != nil {
		return &VerificationError{URI: sub.URI, Reason: ReasonInvalidEndpoint, Err: err}
	}
	query := u.Query()
	if _, ok := query[NoEchoParameter]; ok {
		return nil
	}

	token := v.token()
	query.Set(EchoParameter, token)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &VerificationError{URI: sub.URI, Reason: ReasonInvalidEndpoint, Err: err}
	}

	resp, err := v.client().Do(req)
	if err != nil {
		return &VerificationError{URI: sub.URI, Reason: ReasonUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &VerificationError{
			URI:    sub.URI,
			Reason: ReasonNonSuccess,
			Err:    fmt.Errorf("status code %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEchoBody))
	if err != nil {
		return &VerificationError{URI: sub.URI, Reason: ReasonUnreachable, Err: err}
	}
	if len(body) == 0 {
		return &VerificationError{URI: sub.URI, Reason: ReasonEmptyBody}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || !strings.HasPrefix(mediaType, "text/") {
			return &VerificationError{
				URI:    sub.URI,
				Reason: ReasonNonTextContent,
				Err:    fmt.Errorf("content type %q", ct),
			}
		}
	}
	if string(body) != token {
		return &VerificationError{URI: sub.URI, Reason: ReasonBodyMismatch}
	}
	return nil
}

func (v *EchoVerifier) client() *http.Client {
	if v.Client != nil {
		return v.Client
	}
	return http.DefaultClient
}

func (v *EchoVerifier) token() string {
	if v.NewToken != nil {
		return v.NewToken()
	}
	return NewID()
}
