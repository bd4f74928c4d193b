// Package recording talks to the external recording backend. Recording is a
// room-level concern handled by a bot service; the client only asks it to
// start or stop and reports the outcome.
package recording

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrAlreadyRecording means the backend already runs a bot for the room.
	ErrAlreadyRecording = errors.New("recording already in progress")

	// ErrNoActiveRecording means there is nothing to stop for the room.
	ErrNoActiveRecording = errors.New("no active recording")
)

// Client is the recording backend HTTP client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a recording client for the given backend base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type recordingRequest struct {
	RoomID string `json:"room_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Start asks the backend to join the room with a recorder bot.
func (c *Client) Start(ctx context.Context, roomID string) error {
	return c.post(ctx, "/start-recording", roomID)
}

// Stop asks the backend to stop the room's recorder bot and persist the
// capture.
func (c *Client) Stop(ctx context.Context, roomID string) error {
	return c.post(ctx, "/stop-recording", roomID)
}

func (c *Client) post(ctx context.Context, path, roomID string) error {
	body, err := json.Marshal(recordingRequest{RoomID: roomID})
	if err != nil {
		return fmt.Errorf("recording request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("recording request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("recording backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	detail := "unexpected response"
	var er errorResponse
	if json.NewDecoder(resp.Body).Decode(&er) == nil && er.Detail != "" {
		detail = er.Detail
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrAlreadyRecording, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNoActiveRecording, detail)
	default:
		return fmt.Errorf("recording backend: %d %s", resp.StatusCode, detail)
	}
}
