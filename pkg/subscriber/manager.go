// Package subscriber keeps a client subscribed to the tracker across
// dropped connections. It remembers the rooms the client joined and joins
// them again every time the stream reconnects.
package subscriber

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goevery/tracker/pkg/wire"
	"go.uber.org/zap"
)

type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
)

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxAttempts = 5
)

var (
	// ErrReconnectExhausted is returned by Run once every reconnect attempt
	// failed. Reconnect starts over with a fresh attempt budget.
	ErrReconnectExhausted = errors.New("subscriber: reconnect attempts exhausted")
	ErrAlreadyRunning     = errors.New("subscriber: already running")
	ErrHeartbeatTimeout   = errors.New("subscriber: no frame within heartbeat timeout")
)

// Stream yields the frames of one open push channel.
type Stream interface {
	Next(ctx context.Context) (wire.Frame, error)
	Close() error
}

type Transport interface {
	Connect(ctx context.Context, userId string) (Stream, error)
	Join(ctx context.Context, userId string, room string) error
	Leave(ctx context.Context, userId string, room string) error
}

type Listener func(frame wire.Frame)

type Options struct {
	// BaseDelay is the wait before the first reconnect; it doubles on each
	// further attempt.
	BaseDelay   time.Duration
	MaxAttempts int
	// HeartbeatTimeout drops the stream when no frame arrives in time. Zero
	// disables the check.
	HeartbeatTimeout time.Duration
	Logger           *zap.Logger
	OnStateChange    func(state State)
	// Sleep waits out a backoff delay and must return early once ctx is
	// done; Reconnect cancels ctx to skip the wait.
	Sleep func(ctx context.Context, delay time.Duration) error
}

type Manager struct {
	userId    string
	transport Transport
	options   Options
	logger    *zap.Logger

	mu             sync.Mutex
	state          State
	attempts       int
	running        bool
	stream         Stream
	wake           context.CancelFunc
	pending        bool
	rooms          map[string]struct{}
	listeners      map[string]map[int]Listener
	nextListenerId int
}

func NewManager(userId string, transport Transport, options Options) *Manager {
	if options.BaseDelay <= 0 {
		options.BaseDelay = DefaultBaseDelay
	}

	if options.MaxAttempts <= 0 {
		options.MaxAttempts = DefaultMaxAttempts
	}

	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	if options.Sleep == nil {
		options.Sleep = sleep
	}

	return &Manager{
		userId:    userId,
		transport: transport,
		options:   options,
		logger:    options.Logger.With(zap.String("userId", userId)),
		state:     StateDisconnected,
		rooms:     make(map[string]struct{}),
		listeners: make(map[string]map[int]Listener),
	}
}

// Run connects and keeps reconnecting with exponential backoff until ctx is
// done or the attempt budget is spent.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()

		return ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	for {
		err := m.session(ctx)
		if ctx.Err() != nil {
			m.stop()

			return ctx.Err()
		}

		// Giving up clears running under the same lock, so a concurrent
		// Reconnect either resets the budget first or starts Run again.
		m.mu.Lock()
		attempt := m.attempts
		if attempt >= m.options.MaxAttempts {
			m.running = false
			changed := m.state != StateDisconnected
			m.state = StateDisconnected
			m.mu.Unlock()

			if changed {
				m.notify(StateDisconnected)
			}

			m.logger.Error("giving up on reconnecting",
				zap.Int("attempts", attempt),
				zap.Error(err))

			return ErrReconnectExhausted
		}
		m.attempts++
		immediate := m.pending
		m.pending = false
		sleepCtx, wake := context.WithCancel(ctx)
		m.wake = wake
		m.mu.Unlock()

		delay := m.options.BaseDelay * time.Duration(1<<attempt)

		m.logger.Warn("stream dropped, reconnecting",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Bool("immediate", immediate),
			zap.Error(err))

		m.setState(StateReconnecting)

		if !immediate {
			_ = m.options.Sleep(sleepCtx, delay)
		}
		wake()

		m.mu.Lock()
		m.wake = nil
		m.mu.Unlock()

		if ctx.Err() != nil {
			m.stop()

			return ctx.Err()
		}
	}
}

// Reconnect resets the attempt counter. A running manager drops its current
// stream or ends its backoff wait and connects at once; a stopped one runs
// again until ctx is done.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	m.attempts = 0
	running := m.running
	stream := m.stream
	wake := m.wake
	if running && stream == nil && wake == nil {
		m.pending = true
	}
	m.mu.Unlock()

	if !running {
		return m.Run(ctx)
	}

	if wake != nil {
		wake()
	}

	if stream != nil {
		_ = stream.Close()
	}

	return nil
}

// Join remembers the room and joins it now when connected. Remembered rooms
// are joined again after every reconnect.
func (m *Manager) Join(ctx context.Context, room string) error {
	m.mu.Lock()
	m.rooms[room] = struct{}{}
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected {
		return nil
	}

	return m.transport.Join(ctx, m.userId, room)
}

func (m *Manager) Leave(ctx context.Context, room string) error {
	m.mu.Lock()
	delete(m.rooms, room)
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected {
		return nil
	}

	return m.transport.Leave(ctx, m.userId, room)
}

// AddEventListener registers listener for frames carrying event and returns
// an id for RemoveEventListener.
func (m *Manager) AddEventListener(event string, listener Listener) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextListenerId++

	if _, ok := m.listeners[event]; !ok {
		m.listeners[event] = make(map[int]Listener)
	}
	m.listeners[event][m.nextListenerId] = listener

	return m.nextListenerId
}

func (m *Manager) RemoveEventListener(event string, id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	listeners, ok := m.listeners[event]
	if !ok {
		return false
	}

	if _, ok := listeners[id]; !ok {
		return false
	}

	delete(listeners, id)
	if len(listeners) == 0 {
		delete(m.listeners, event)
	}

	return true
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.attempts
}

func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := make([]string, 0, len(m.rooms))
	for room := range m.rooms {
		rooms = append(rooms, room)
	}

	return rooms
}

func (m *Manager) session(ctx context.Context) error {
	m.setState(StateConnecting)

	stream, err := m.transport.Connect(ctx, m.userId)
	if err != nil {
		return err
	}
	defer stream.Close()

	m.mu.Lock()
	m.stream = stream
	m.pending = false
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.stream = nil
		m.mu.Unlock()
	}()

	for {
		frame, err := m.next(ctx, stream)
		if err != nil {
			return err
		}

		switch frame.Type {
		case wire.FrameTypeConnected:
			m.onConnected(ctx)
		case wire.FrameTypeEvent:
			m.dispatch(frame)
		}
	}
}

func (m *Manager) next(ctx context.Context, stream Stream) (wire.Frame, error) {
	if m.options.HeartbeatTimeout <= 0 {
		return stream.Next(ctx)
	}

	readCtx, cancel := context.WithTimeout(ctx, m.options.HeartbeatTimeout)
	defer cancel()

	frame, err := stream.Next(readCtx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return wire.Frame{}, ErrHeartbeatTimeout
	}

	return frame, err
}

func (m *Manager) onConnected(ctx context.Context) {
	m.mu.Lock()
	m.attempts = 0
	m.mu.Unlock()

	m.setState(StateConnected)

	for _, room := range m.Rooms() {
		if err := m.transport.Join(ctx, m.userId, room); err != nil {
			m.logger.Warn("failed to rejoin room",
				zap.String("room", room),
				zap.Error(err))
		}
	}
}

// dispatch ignores events nobody listens to.
func (m *Manager) dispatch(frame wire.Frame) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners[frame.Event]))
	for _, listener := range m.listeners[frame.Event] {
		listeners = append(listeners, listener)
	}
	m.mu.Unlock()

	for _, listener := range listeners {
		listener(frame)
	}
}

func (m *Manager) stop() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	m.setState(StateDisconnected)
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	changed := m.state != state
	m.state = state
	m.mu.Unlock()

	if changed {
		m.notify(state)
	}
}

func (m *Manager) notify(state State) {
	if m.options.OnStateChange != nil {
		m.options.OnStateChange(state)
	}
}

func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
