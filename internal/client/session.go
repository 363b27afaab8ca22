package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/hanko-field/namegen/internal/domain"
	"github.com/hanko-field/namegen/internal/services"
)

// DefaultTimeout bounds one submission from request to response.
const DefaultTimeout = 30 * time.Second

const (
	successMessage   = "Chinese names generated successfully! Check out the recommendations below."
	duplicateMessage = "You just generated names for this name. Please try a different name or wait a moment."
	timeoutMessage   = "Request timed out, please check your network connection and try again."
	networkMessage   = "Network error, please check your connection and try again."
	genericMessage   = "Failed to generate Chinese names, please try again later."
	emptyNamesMsg    = "No valid Chinese names were received."
)

var (
	// ErrBusy is returned by Submit while another submission is in flight.
	ErrBusy = errors.New("client: a submission is already in progress")
	// ErrDuplicateSubmission is returned when the name's results are already on screen.
	ErrDuplicateSubmission = errors.New("client: names for this name are already shown")
	// ErrRequestTimeout wraps context.DeadlineExceeded when the server did not answer within the session timeout.
	ErrRequestTimeout = errors.New("client: request timed out")
)

// ServerError carries a failure message returned by the API.
type ServerError struct {
	Code    string
	Message string
}

// Error returns the server's message.
func (e *ServerError) Error() string { return e.Message }

// State is the session's position in the submit flow.
type State int

const (
	// StateIdle accepts a new submission. Sessions always settle here.
	StateIdle State = iota
	// StateValidating checks the name locally before any request.
	StateValidating
	// StateSubmitting has accepted the name and is about to call the server.
	StateSubmitting
	// StateAwaitingResponse waits for the server within the session timeout.
	StateAwaitingResponse
	// StateRendering hands the suggestions to the Renderer.
	StateRendering
	// StateError is passed through while a failure is reported.
	StateError
)

var stateNames = [...]string{"idle", "validating", "submitting", "awaiting_response", "rendering", "error"}

// String returns the snake_case state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Level classifies user-visible messages.
type Level string

// Message levels passed to Notifier.
const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Level, string)

// Notify calls f.
func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// Renderer displays a successful result.
type Renderer interface {
	Render(englishName string, names []domain.NameSuggestion) error
}

// Generator is the server call Session depends on; *Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, name string) (GenerateResponse, error)
}

// Session serialises submissions for one user. At rest it is always Idle;
// the other states are visible only while Submit runs.
type Session struct {
	gen      Generator
	notifier Notifier
	renderer Renderer
	timeout  time.Duration
	observe  func(from, to State)

	mu                sync.Mutex
	state             State
	lastGeneratedName string
	resultsVisible    bool
	lastError         string
	pending           []func()
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithNotifier sets where user-visible messages go.
func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) { s.notifier = n }
}

// WithStateObserver registers a callback for every state transition.
func WithStateObserver(fn func(from, to State)) SessionOption {
	return func(s *Session) { s.observe = fn }
}

// NewSession constructs a Session.
func NewSession(gen Generator, renderer Renderer, opts ...SessionOption) *Session {
	s := &Session{gen: gen, renderer: renderer, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NotifierFunc(func(Level, string) {})
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ResultsVisible reports whether a rendered result is on screen.
func (s *Session) ResultsVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultsVisible
}

// Submit validates raw, calls the server, and renders the result. Validation
// failures are returned as *services.ValidationError without a request.
// Notifier, Renderer, and state observer callbacks run without the session
// lock held, so they may call back into the session.
func (s *Session) Submit(ctx context.Context, raw string) ([]domain.NameSuggestion, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.transition(StateValidating)

	candidate, err := services.ValidateName(raw)
	if err != nil {
		s.fail(err.Error())
		s.unlockAndRun()
		return nil, err
	}
	name := candidate.String()
	if name == s.lastGeneratedName && s.resultsVisible {
		s.transition(StateIdle)
		s.notify(LevelInfo, duplicateMessage)
		s.unlockAndRun()
		return nil, ErrDuplicateSubmission
	}

	s.transition(StateSubmitting)
	s.resultsVisible = false
	s.lastError = ""
	s.unlockAndRun()

	names, err := s.request(ctx, name)

	s.mu.Lock()
	if err != nil {
		s.fail(failureMessage(err))
		s.unlockAndRun()
		return nil, err
	}
	s.transition(StateRendering)
	s.unlockAndRun()

	var renderErr error
	if s.renderer != nil {
		renderErr = s.renderer.Render(name, names)
	}

	s.mu.Lock()
	if renderErr != nil {
		s.fail(genericMessage)
		s.unlockAndRun()
		return nil, fmt.Errorf("client: render: %w", renderErr)
	}
	s.lastGeneratedName = name
	s.resultsVisible = true
	s.notify(LevelSuccess, successMessage)
	s.transition(StateIdle)
	s.unlockAndRun()
	return names, nil
}

// LastError returns the message of the most recent failure until dismissed.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Dismiss acknowledges the last failure message.
func (s *Session) Dismiss() {
	s.mu.Lock()
	s.lastError = ""
	if s.state == StateError {
		s.transition(StateIdle)
	}
	s.unlockAndRun()
}

// ClearResults hides the current result so the same name can be resubmitted.
func (s *Session) ClearResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultsVisible = false
}

func (s *Session) request(ctx context.Context, name string) ([]domain.NameSuggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	s.transition(StateAwaitingResponse)
	s.unlockAndRun()

	resp, err := s.gen.Generate(ctx, name)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrRequestTimeout, err)
		}
		return nil, err
	}
	if !resp.Success {
		return nil, &ServerError{Code: resp.Error, Message: resp.Message}
	}
	if len(resp.Names) == 0 {
		return nil, &ServerError{Message: emptyNamesMsg}
	}
	return resp.Names, nil
}

// fail moves to Error, notifies, and settles back to Idle. Callers hold mu.
func (s *Session) fail(message string) {
	s.lastError = message
	s.transition(StateError)
	s.notify(LevelError, message)
	s.transition(StateIdle)
}

// transition and notify change state under mu and queue their callbacks for
// unlockAndRun.
func (s *Session) transition(to State) {
	from := s.state
	s.state = to
	if s.observe != nil {
		observe := s.observe
		s.pending = append(s.pending, func() { observe(from, to) })
	}
}

func (s *Session) notify(level Level, message string) {
	notifier := s.notifier
	s.pending = append(s.pending, func() { notifier.Notify(level, message) })
}

// unlockAndRun releases mu and then delivers the queued callbacks in order.
func (s *Session) unlockAndRun() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func failureMessage(err error) string {
	var serverErr *ServerError
	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrRequestTimeout):
		return timeoutMessage
	case errors.Is(err, ErrNetwork):
		return networkMessage
	case errors.As(err, &serverErr) && serverErr.Message != "":
		return serverErr.Message
	case errors.As(err, &statusErr):
		return statusErr.Error()
	}
	return genericMessage
}
