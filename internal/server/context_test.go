package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailscribe/mailscribe/internal/config"
	"github.com/mailscribe/mailscribe/internal/guideline"
	"github.com/mailscribe/mailscribe/internal/mail"
)

func newTestContext(t *testing.T) *ServerContext {
	t.Helper()
	return NewServerContext(context.Background(), &config.Config{}, slog.Default())
}

type stubGateway struct{}

func (stubGateway) ListUnread(ctx context.Context, max int) ([]mail.Message, error) {
	return nil, nil
}
func (stubGateway) GetMessage(ctx context.Context, id string) (*mail.Message, error) {
	return nil, nil
}
func (stubGateway) CreateDraft(ctx context.Context, targetID, body string) (string, error) {
	return "", nil
}

type stubGuidelines struct{}

func (stubGuidelines) Guideline(ctx context.Context) (*guideline.Guideline, error) {
	return nil, nil
}

func TestLazyClientConstruction(t *testing.T) {
	sc := newTestContext(t)

	// No credentials configured, yet all accessors succeed: validation is
	// deferred to first use.
	require.NotNil(t, sc.Mailbox())
	require.NotNil(t, sc.GuidelineSource())
	require.NotNil(t, sc.Composer())

	// Repeated calls return the same instance.
	assert.Equal(t, sc.Mailbox(), sc.Mailbox())
}

func TestSetOverridesClient(t *testing.T) {
	sc := newTestContext(t)

	gw := stubGateway{}
	sc.SetMailbox(gw)
	assert.Equal(t, MailGateway(gw), sc.Mailbox())

	gs := stubGuidelines{}
	sc.SetGuidelineSource(gs)
	assert.Equal(t, GuidelineSource(gs), sc.GuidelineSource())
}

func TestMessageRegistry(t *testing.T) {
	sc := newTestContext(t)

	assert.False(t, sc.KnowsMessage("101"))

	sc.RememberMessages([]mail.Message{{ID: "101"}, {ID: "102"}})

	assert.True(t, sc.KnowsMessage("101"))
	assert.True(t, sc.KnowsMessage("102"))
	assert.False(t, sc.KnowsMessage("999"))

	// Registry accumulates across listings.
	sc.RememberMessages([]mail.Message{{ID: "103"}})
	assert.True(t, sc.KnowsMessage("101"))
	assert.True(t, sc.KnowsMessage("103"))
}

func TestShutdown(t *testing.T) {
	sc := newTestContext(t)

	assert.False(t, sc.IsShutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())

	select {
	case <-sc.Context().Done():
	default:
		t.Fatal("server context must be canceled after shutdown")
	}

	// Second shutdown is a no-op.
	require.NoError(t, sc.Shutdown())
}

func TestHealthEndpoints(t *testing.T) {
	sc := newTestContext(t)
	h := NewHealthChecker(sc)

	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, sc.Shutdown())
	h.SetReady(false)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
