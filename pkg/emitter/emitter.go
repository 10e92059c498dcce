// Package emitter publishes events to a tracker running in another process.
package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const secretHeader = "x-internal-secret"

type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func NewClient(baseURL string, secret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: httpClient,
	}
}

type emitRequest struct {
	Room  string `json:"room"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type emitResponse struct {
	Success         bool   `json:"success"`
	ConnectionCount int    `json:"connectionCount"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("emit failed with %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Publish returns how many connections the tracker wrote the event to. An
// empty room is not an error.
func (c *Client) Publish(ctx context.Context, room string, event string, data any) (int, error) {
	body, err := json.Marshal(emitRequest{
		Room:  room,
		Event: event,
		Data:  data,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emit", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(secretHeader, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var decoded emitResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode != http.StatusOK {
		return 0, &Error{
			StatusCode: resp.StatusCode,
			Code:       decoded.Code,
			Message:    decoded.Message,
		}
	}

	if decodeErr != nil {
		return 0, fmt.Errorf("failed to decode emit response: %w", decodeErr)
	}

	return decoded.ConnectionCount, nil
}
