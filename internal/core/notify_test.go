package core

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Posts(t *testing.T) {
	received := make(chan ImportEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var ev ImportEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NotNil(t, n)
	n.Notify(context.Background(), ImportResult{ImportID: "imp-1", RaceID: testRaceID, Status: PhaseCancelled, Imported: 2})

	select {
	case ev := <-received:
		assert.Equal(t, "import.cancelled", ev.Event)
		assert.Equal(t, "imp-1", ev.Import.ImportID)
		assert.Equal(t, 2, ev.Import.Imported)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("webhook not called")
	}
}

func TestWebhookNotifier_FailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := n.send(context.Background(), ImportResult{Status: PhaseComplete})
	assert.ErrorContains(t, err, "500")

	// Notify only logs.
	n.Notify(context.Background(), ImportResult{Status: PhaseComplete})
}

func TestNewWebhookNotifier_Disabled(t *testing.T) {
	n := NewWebhookNotifier("", time.Second, slog.Default())
	assert.Nil(t, n)
	n.Notify(context.Background(), ImportResult{})
}
