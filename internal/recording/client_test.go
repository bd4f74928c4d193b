package recording_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintroom/sprintroom-cli/internal/recording"
)

func TestClientStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/start-recording", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "standup-42", body["room_id"])

		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}))
	defer server.Close()

	client := recording.NewClient(server.URL)
	assert.NoError(t, client.Start(context.Background(), "standup-42"))
}

func TestClientStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stop-recording", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}))
	defer server.Close()

	client := recording.NewClient(server.URL)
	assert.NoError(t, client.Stop(context.Background(), "standup-42"))
}

func TestClientStartConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Recording already in progress for room 'standup-42'."})
	}))
	defer server.Close()

	client := recording.NewClient(server.URL)
	err := client.Start(context.Background(), "standup-42")
	require.Error(t, err)
	assert.ErrorIs(t, err, recording.ErrAlreadyRecording)
	assert.Contains(t, err.Error(), "standup-42")
}

func TestClientStopNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "No active recording for room 'standup-42'."})
	}))
	defer server.Close()

	client := recording.NewClient(server.URL)
	err := client.Stop(context.Background(), "standup-42")
	require.Error(t, err)
	assert.ErrorIs(t, err, recording.ErrNoActiveRecording)
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Bot failed to connect."})
	}))
	defer server.Close()

	client := recording.NewClient(server.URL)
	err := client.Start(context.Background(), "standup-42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bot failed to connect")
}

func TestClientContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := recording.NewClient(server.URL)
	assert.Error(t, client.Start(ctx, "standup-42"))
}
