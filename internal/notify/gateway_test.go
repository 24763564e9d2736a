package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-chat/armada/config"
)

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", Preview("hello"))

	long := strings.Repeat("a", 150)
	got := Preview(long)
	assert.Equal(t, strings.Repeat("a", 100)+"...", got)

	exact := strings.Repeat("b", 100)
	assert.Equal(t, exact, Preview(exact), "exactly at the limit stays untouched")
}

func TestPreviewMultibyte(t *testing.T) {
	long := strings.Repeat("ü", 120)
	got := Preview(long)
	assert.Equal(t, strings.Repeat("ü", 100)+"...", got)
}

func TestHTTPGatewaySend(t *testing.T) {
	var received Notification
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewHTTPGateway(&config.PushConfig{Endpoint: srv.URL, APIKey: "sekrit", TimeoutSeconds: 2})
	n := &Notification{
		UserID:   uuid.New(),
		Endpoint: "device-1",
		Title:    "general",
		Body:     "hi there",
	}
	require.NoError(t, g.Send(context.Background(), n))
	assert.Equal(t, "Bearer sekrit", auth)
	assert.Equal(t, n.Endpoint, received.Endpoint)
	assert.Equal(t, n.Body, received.Body)
}

func TestHTTPGatewayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewHTTPGateway(&config.PushConfig{Endpoint: srv.URL})
	err := g.Send(context.Background(), &Notification{Endpoint: "device-1"})
	assert.Error(t, err)
}
