package subscriber

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/goevery/tracker/pkg/wire"
)

// HTTPTransport subscribes over GET /sse/{userId} and manages rooms through
// POST /rooms.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPTransport(baseURL string, httpClient *http.Client) *HTTPTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (t *HTTPTransport) Connect(ctx context.Context, userId string) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/sse/"+url.PathEscape(userId), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		return nil, responseError(resp)
	}

	return newEventStream(resp.Body), nil
}

func (t *HTTPTransport) Join(ctx context.Context, userId string, room string) error {
	return t.rooms(ctx, "join", userId, room)
}

func (t *HTTPTransport) Leave(ctx context.Context, userId string, room string) error {
	return t.rooms(ctx, "leave", userId, room)
}

type roomsRequest struct {
	Action string `json:"action"`
	UserId string `json:"userId"`
	Room   string `json:"room"`
}

func (t *HTTPTransport) rooms(ctx context.Context, action string, userId string, room string) error {
	body, err := json.Marshal(roomsRequest{
		Action: action,
		UserId: userId,
		Room:   room,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	return nil
}

// ResponseError is a non-2xx answer from the tracker.
type ResponseError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("tracker responded %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func responseError(resp *http.Response) error {
	responseErr := &ResponseError{StatusCode: resp.StatusCode}
	_ = json.NewDecoder(resp.Body).Decode(responseErr)

	return responseErr
}

// eventStream reads "data:" lines off a text/event-stream body.
type eventStream struct {
	body      io.ReadCloser
	frames    chan wire.Frame
	done      chan struct{}
	closeOnce sync.Once

	err error
}

func newEventStream(body io.ReadCloser) *eventStream {
	s := &eventStream{
		body:   body,
		frames: make(chan wire.Frame),
		done:   make(chan struct{}),
	}

	go s.read()

	return s
}

func (s *eventStream) read() {
	defer close(s.frames)

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if data.Len() == 0 {
				continue
			}

			var frame wire.Frame
			err := json.Unmarshal([]byte(data.String()), &frame)
			data.Reset()
			if err != nil {
				continue
			}

			select {
			case s.frames <- frame:
			case <-s.done:
				return
			}

			continue
		}

		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(payload, " "))
		}
	}

	s.err = scanner.Err()
}

func (s *eventStream) Next(ctx context.Context) (wire.Frame, error) {
	select {
	case <-ctx.Done():
		return wire.Frame{}, ctx.Err()
	case frame, ok := <-s.frames:
		if !ok {
			if s.err != nil {
				return wire.Frame{}, s.err
			}

			return wire.Frame{}, io.EOF
		}

		return frame, nil
	}
}

func (s *eventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.body.Close()
	})

	return err
}
