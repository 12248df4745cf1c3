package webhook_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcelsud/webhook-sender/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server.URL + "/hook"
}

func newVerifier() *webhook.EchoVerifier {
	v := webhook.NewEchoVerifier(2 * time.Second)
	v.NewToken = func() string { return "challenge" }
	return v
}

func verificationReason(t *testing.T, err error) string {
	t.Helper()
	var verr *webhook.VerificationError
	require.ErrorAs(t, err, &verr)
	return verr.Reason
}

func TestEchoVerifier(t *testing.T) {
	ctx := context.Background()

	t.Run("success - endpoint echoes the token", func(t *testing.T) {
		var method string
		uri := echoServer(t, func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(r.URL.Query().Get(webhook.EchoParameter)))
		})

		err := newVerifier().Verify(ctx, webhook.Subscription{URI: uri})
		require.NoError(t, err)
		assert.Equal(t, http.MethodGet, method)
	})

	t.Run("success - existing query is preserved", func(t *testing.T) {
		var tenant string
		uri := echoServer(t, func(w http.ResponseWriter, r *http.Request) {
			tenant = r.URL.Query().Get("tenant")
			_, _ = w.Write([]byte(r.URL.Query().Get(webhook.EchoParameter)))
		})

		require.NoError(t, newVerifier().Verify(ctx, webhook.Subscription{URI: uri + "?tenant=acme"}))
		assert.Equal(t, "acme", tenant)
	})

	t.Run("success - noecho skips the probe", func(t *testing.T) {
		called := false
		uri := echoServer(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		require.NoError(t, newVerifier().Verify(ctx, webhook.Subscription{URI: uri + "?noecho"}))
		assert.False(t, called)
	})

	t.Run("error - non-success status", func(t *testing.T) {
		uri := echoServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		err := newVerifier().Verify(ctx, webhook.Subscription{URI: uri})
		assert.Equal(t, webhook.ReasonNonSuccess, verificationReason(t, err))
	})

	t.Run("error - empty body", func(t *testing.T) {
		uri := echoServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		err := newVerifier().Verify(ctx, webhook.Subscription{URI: uri})
		assert.Equal(t, webhook.ReasonEmptyBody, verificationReason(t, err))
	})

	t.Run("error - non-text content type", func(t *testing.T) {
		uri := echoServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(r.URL.Query().Get(webhook.EchoParameter)))
		})

		err := newVerifier().Verify(ctx, webhook.Subscription{URI: uri})
		assert.Equal(t, webhook.ReasonNonTextContent, verificationReason(t, err))
	})

	t.Run("error - body mismatch", func(t *testing.T) {
		uri := echoServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("something else"))
		})

		err := newVerifier().Verify(ctx, webhook.Subscription{URI: uri})
		assert.Equal(t, webhook.ReasonBodyMismatch, verificationReason(t, err))
	})

	t.Run("error - unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		uri := server.URL
		server.Close()

		err := newVerifier().Verify(ctx, webhook.Subscription{URI: uri})
		assert.Equal(t, webhook.ReasonUnreachable, verificationReason(t, err))
	})
}
