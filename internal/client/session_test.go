package client

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/hanko-field/namegen/internal/domain"
	"github.com/hanko-field/namegen/internal/services"
)

type stubGenerator struct {
	mu         sync.Mutex
	calls      []string
	generateFn func(ctx context.Context, name string) (GenerateResponse, error)
}

func (s *stubGenerator) Generate(ctx context.Context, name string) (GenerateResponse, error) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
	if s.generateFn != nil {
		return s.generateFn(ctx, name)
	}
	return GenerateResponse{Success: true, EnglishName: name, Names: threeNames()}, nil
}

func (s *stubGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingRenderer struct {
	names []string
	err   error
}

func (r *recordingRenderer) Render(englishName string, _ []domain.NameSuggestion) error {
	r.names = append(r.names, englishName)
	return r.err
}

type notice struct {
	level   Level
	message string
}

func threeNames() []domain.NameSuggestion {
	return []domain.NameSuggestion{
		{ChineseName: "玛丽", Pinyin: "Mǎ Lì", ChineseMeaning: "美丽", EnglishMeaning: "Beautiful"},
		{ChineseName: "美琳", Pinyin: "Měi Lín", ChineseMeaning: "美玉", EnglishMeaning: "Beautiful jade"},
		{ChineseName: "丽雅", Pinyin: "Lì Yǎ", ChineseMeaning: "秀丽", EnglishMeaning: "Elegant"},
	}
}

func newTestSession(gen Generator, renderer Renderer, opts ...SessionOption) (*Session, *[]notice, *[]State) {
	var notices []notice
	var states []State
	opts = append([]SessionOption{
		WithNotifier(NotifierFunc(func(level Level, message string) {
			notices = append(notices, notice{level, message})
		})),
		WithStateObserver(func(_, to State) { states = append(states, to) }),
	}, opts...)
	return NewSession(gen, renderer, opts...), &notices, &states
}

func TestSessionSubmitSuccess(t *testing.T) {
	gen := &stubGenerator{}
	renderer := &recordingRenderer{}
	session, notices, states := newTestSession(gen, renderer)

	names, err := session.Submit(context.Background(), "  Mary ")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected three names, got %d", len(names))
	}
	if gen.calls[0] != "Mary" {
		t.Fatalf("expected trimmed name to be sent, got %q", gen.calls[0])
	}
	if len(renderer.names) != 1 || renderer.names[0] != "Mary" {
		t.Fatalf("expected one render for Mary, got %v", renderer.names)
	}
	want := []State{StateValidating, StateSubmitting, StateAwaitingResponse, StateRendering, StateIdle}
	if !equalStates(*states, want) {
		t.Fatalf("unexpected transitions %v", *states)
	}
	if len(*notices) != 1 || (*notices)[0].level != LevelSuccess {
		t.Fatalf("expected success notice, got %v", *notices)
	}
	if !session.ResultsVisible() || session.State() != StateIdle {
		t.Fatalf("expected visible results and idle state")
	}
}

func TestSessionValidationFailureSkipsRequest(t *testing.T) {
	gen := &stubGenerator{}
	session, notices, states := newTestSession(gen, &recordingRenderer{})

	_, err := session.Submit(context.Background(), "R2-D2")
	var verr *services.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if gen.callCount() != 0 {
		t.Fatalf("expected no request for invalid input")
	}
	if !equalStates(*states, []State{StateValidating, StateError, StateIdle}) {
		t.Fatalf("unexpected transitions %v", *states)
	}
	if len(*notices) != 1 || (*notices)[0].level != LevelError || (*notices)[0].message != verr.Error() {
		t.Fatalf("unexpected notices %v", *notices)
	}
	if session.LastError() != verr.Error() {
		t.Fatalf("expected last error to be recorded")
	}
	session.Dismiss()
	if session.LastError() != "" {
		t.Fatalf("expected Dismiss to clear the last error")
	}
}

func TestSessionDuplicateSubmission(t *testing.T) {
	gen := &stubGenerator{}
	session, notices, _ := newTestSession(gen, &recordingRenderer{})

	if _, err := session.Submit(context.Background(), "Mary"); err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}
	if _, err := session.Submit(context.Background(), " Mary"); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	if gen.callCount() != 1 {
		t.Fatalf("expected duplicate not to reach the server, got %d calls", gen.callCount())
	}
	last := (*notices)[len(*notices)-1]
	if last.level != LevelInfo {
		t.Fatalf("expected info notice for duplicate, got %v", last)
	}

	session.ClearResults()
	if _, err := session.Submit(context.Background(), "Mary"); err != nil {
		t.Fatalf("expected resubmission after ClearResults, got %v", err)
	}
	if gen.callCount() != 2 {
		t.Fatalf("expected second request, got %d calls", gen.callCount())
	}
}

func TestSessionServerFailure(t *testing.T) {
	gen := &stubGenerator{generateFn: func(context.Context, string) (GenerateResponse, error) {
		return GenerateResponse{Success: false, Message: "Too many requests, please try again later", Error: "RATE_LIMIT_EXCEEDED"}, nil
	}}
	session, notices, _ := newTestSession(gen, &recordingRenderer{})

	_, err := session.Submit(context.Background(), "John")
	var serverErr *ServerError
	if !errors.As(err, &serverErr) || serverErr.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("expected server error, got %v", err)
	}
	if (*notices)[0].message != "Too many requests, please try again later" {
		t.Fatalf("expected server message to be shown, got %v", *notices)
	}
	if session.ResultsVisible() {
		t.Fatalf("expected no visible results after failure")
	}
}

func TestSessionNetworkFailureUsesGenericMessage(t *testing.T) {
	gen := &stubGenerator{generateFn: func(context.Context, string) (GenerateResponse, error) {
		return GenerateResponse{}, errors.Join(ErrNetwork, errors.New("dial tcp: connection refused"))
	}}
	session, notices, _ := newTestSession(gen, &recordingRenderer{})

	if _, err := session.Submit(context.Background(), "John"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if (*notices)[0].message != networkMessage {
		t.Fatalf("expected generic network message, got %q", (*notices)[0].message)
	}
}

func TestSessionTimeoutCancelsRequest(t *testing.T) {
	cancelled := make(chan struct{})
	gen := &stubGenerator{generateFn: func(ctx context.Context, _ string) (GenerateResponse, error) {
		<-ctx.Done()
		close(cancelled)
		return GenerateResponse{}, ctx.Err()
	}}
	session, notices, _ := newTestSession(gen, &recordingRenderer{}, WithTimeout(20*time.Millisecond))

	_, err := session.Submit(context.Background(), "John")
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("expected ErrRequestTimeout, got %v", err)
	}
	select {
	case <-cancelled:
	default:
		t.Fatalf("expected request context to be cancelled")
	}
	if (*notices)[0].message != timeoutMessage {
		t.Fatalf("expected timeout message, got %q", (*notices)[0].message)
	}
	if session.State() != StateIdle {
		t.Fatalf("expected idle after timeout, got %s", session.State())
	}
}

func TestSessionRejectsConcurrentSubmit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	gen := &stubGenerator{generateFn: func(context.Context, string) (GenerateResponse, error) {
		close(entered)
		<-release
		return GenerateResponse{Success: true, Names: threeNames()}, nil
	}}
	session := NewSession(gen, &recordingRenderer{})

	done := make(chan error, 1)
	go func() {
		_, err := session.Submit(context.Background(), "John")
		done <- err
	}()
	<-entered

	if session.State() != StateAwaitingResponse {
		t.Fatalf("expected awaiting response, got %s", session.State())
	}
	if _, err := session.Submit(context.Background(), "Mary"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}
}

func TestSessionEmptyNamesIsFailure(t *testing.T) {
	gen := &stubGenerator{generateFn: func(context.Context, string) (GenerateResponse, error) {
		return GenerateResponse{Success: true}, nil
	}}
	renderer := &recordingRenderer{}
	session, _, _ := newTestSession(gen, renderer)

	if _, err := session.Submit(context.Background(), "John"); err == nil {
		t.Fatalf("expected error for empty names")
	}
	if len(renderer.names) != 0 {
		t.Fatalf("expected nothing rendered")
	}
}

func TestTerminalRendererAndNotifier(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTerminalRenderer(&buf).Render("Mary", threeNames()); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Mary", "玛丽", "美琳", "丽雅", "Chinese Meaning"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	buf.Reset()
	NewTerminalNotifier(&buf).Notify(LevelError, "boom")
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected notifier output, got %q", buf.String())
	}
}

func TestStateString(t *testing.T) {
	if StateAwaitingResponse.String() != "awaiting_response" || State(42).String() != "state(42)" {
		t.Fatalf("unexpected state names")
	}
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type sessionRenderer struct {
	session *Session
	states  []State
}

func (r *sessionRenderer) Render(string, []domain.NameSuggestion) error {
	r.states = append(r.states, r.session.State())
	return nil
}

func TestSessionCallbacksMayReadSession(t *testing.T) {
	var session *Session
	var seenErrors []string
	var observed []State
	renderer := &sessionRenderer{}
	session = NewSession(&stubGenerator{}, renderer,
		WithNotifier(NotifierFunc(func(level Level, _ string) {
			if level == LevelError {
				seenErrors = append(seenErrors, session.LastError())
			}
			_ = session.ResultsVisible()
		})),
		WithStateObserver(func(_, _ State) { observed = append(observed, session.State()) }),
	)
	renderer.session = session

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = session.Submit(context.Background(), "123")
		_, _ = session.Submit(context.Background(), "Mary")
		session.Dismiss()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked while a callback read the session")
	}

	if len(seenErrors) != 1 || seenErrors[0] == "" {
		t.Fatalf("expected notifier to read the failure message, got %v", seenErrors)
	}
	if len(renderer.states) != 1 || renderer.states[0] != StateRendering {
		t.Fatalf("expected renderer to observe Rendering, got %v", renderer.states)
	}
	if len(observed) == 0 || observed[len(observed)-1] != StateIdle {
		t.Fatalf("expected final observed state Idle, got %v", observed)
	}
}
