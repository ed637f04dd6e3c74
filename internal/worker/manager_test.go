package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"aidesk/internal/artifact"
	"aidesk/internal/models"
)

// mockPipeline records every call and can hold jobs until released.
type mockPipeline struct {
	mu      sync.Mutex
	calls   []string
	active  map[string]int
	overlap bool
	block   chan struct{} // non-nil: every call waits here
	err     error
}

func newMockPipeline() *mockPipeline {
	return &mockPipeline{active: make(map[string]int)}
}

func (m *mockPipeline) enter(sessionID, label string) {
	m.mu.Lock()
	m.calls = append(m.calls, label)
	m.active[sessionID]++
	if m.active[sessionID] > 1 {
		m.overlap = true
	}
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (m *mockPipeline) leave(sessionID string) {
	m.mu.Lock()
	m.active[sessionID]--
	m.mu.Unlock()
}

func (m *mockPipeline) Chat(ctx context.Context, sessionID, input string) (models.Message, models.Message, error) {
	m.enter(sessionID, fmt.Sprintf("chat:%s:%s", sessionID, input))
	defer m.leave(sessionID)
	if m.err != nil {
		return models.Message{}, models.Message{}, m.err
	}
	return models.Message{Role: models.RoleUser, Content: input},
		models.Message{Role: models.RoleAssistant, Content: "re: " + input}, nil
}

func (m *mockPipeline) Summarize(ctx context.Context, sessionID string, req models.SummaryRequest) (string, error) {
	m.enter(sessionID, fmt.Sprintf("summarize:%s", sessionID))
	defer m.leave(sessionID)
	if m.err != nil {
		return "", m.err
	}
	return "summary of " + req.Input, nil
}

func (m *mockPipeline) Speak(ctx context.Context, sessionID, text string) (*artifact.Artifact, error) {
	m.enter(sessionID, fmt.Sprintf("speak:%s", sessionID))
	defer m.leave(sessionID)
	if m.err != nil {
		return nil, m.err
	}
	return &artifact.Artifact{ID: 1, SessionID: sessionID}, nil
}

func (m *mockPipeline) ClearChat(sessionID string) error {
	m.enter(sessionID, "clear:"+sessionID)
	defer m.leave(sessionID)
	return m.err
}

func (m *mockPipeline) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func testConfig() DispatcherConfig {
	return DispatcherConfig{MinWorkers: 2, MaxWorkers: 4, QueueSize: 16, WorkerIdleTimeout: time.Minute}
}

func TestManagerRunsEachActionType(t *testing.T) {
	pipeline := newMockPipeline()
	manager := NewManager(pipeline, testConfig())

	user, asst, err := manager.Chat(ChatRequest{SessionID: "s1", Input: "hi"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if user.Content != "hi" || asst.Content != "re: hi" {
		t.Fatalf("unexpected chat result: %#v %#v", user, asst)
	}

	summary, err := manager.Summarize(SummarizeRequest{SessionID: "s1", Request: models.SummaryRequest{Input: "text"}})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != "summary of text" {
		t.Fatalf("unexpected summary: %q", summary)
	}

	art, err := manager.Speak(SpeakRequest{SessionID: "s1", Text: "hello"})
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if art == nil || art.SessionID != "s1" {
		t.Fatalf("unexpected artifact: %#v", art)
	}
}

func TestClearWaitsForInFlightChat(t *testing.T) {
	pipeline := newMockPipeline()
	pipeline.block = make(chan struct{})
	manager := NewManager(pipeline, testConfig())

	chatDone := make(chan error, 1)
	go func() {
		_, _, err := manager.Chat(ChatRequest{SessionID: "s", Input: "hi"})
		chatDone <- err
	}()
	waitFor(t, func() bool {
		pipeline.mu.Lock()
		defer pipeline.mu.Unlock()
		return len(pipeline.calls) == 1
	})

	clearDone := make(chan error, 1)
	go func() {
		clearDone <- manager.ClearChat(ClearRequest{SessionID: "s"})
	}()
	time.Sleep(50 * time.Millisecond)

	pipeline.mu.Lock()
	started := len(pipeline.calls)
	pipeline.mu.Unlock()
	if started != 1 {
		t.Fatalf("clear ran while the session's chat was still in flight")
	}

	pipeline.block <- struct{}{} // release the chat
	select {
	case err := <-chatDone:
		if err != nil {
			t.Fatalf("chat: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("chat never finished")
	}

	pipeline.block <- struct{}{} // release the clear
	select {
	case err := <-clearDone:
		if err != nil {
			t.Fatalf("clear: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("clear never finished")
	}

	if pipeline.overlap {
		t.Fatalf("clear overlapped a chat for the same session")
	}
	log := pipeline.callLog()
	if len(log) != 2 || log[0] != "chat:s:hi" || log[1] != "clear:s" {
		t.Fatalf("actions ran out of order: %#v", log)
	}
}

func TestManagerPropagatesPipelineErrors(t *testing.T) {
	pipeline := newMockPipeline()
	pipeline.err = errors.New("pipeline down")
	manager := NewManager(pipeline, testConfig())

	if _, _, err := manager.Chat(ChatRequest{SessionID: "s1", Input: "hi"}); err == nil || err.Error() != "pipeline down" {
		t.Fatalf("expected pipeline error, got %v", err)
	}
}

func TestSessionJobsNeverOverlap(t *testing.T) {
	pipeline := newMockPipeline()
	pipeline.block = make(chan struct{})
	manager := NewManager(pipeline, testConfig())

	const jobs = 6
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := manager.Chat(ChatRequest{SessionID: "same", Input: fmt.Sprintf("m%d", i)}); err != nil {
				t.Errorf("chat %d: %v", i, err)
			}
		}(i)
	}

	// release each held call in turn; with serialization there is exactly
	// one in-flight call at a time
	for i := 0; i < jobs; i++ {
		deadline := time.After(2 * time.Second)
		for {
			pipeline.mu.Lock()
			started := len(pipeline.calls)
			pipeline.mu.Unlock()
			if started > i {
				break
			}
			select {
			case <-deadline:
				t.Fatalf("job %d never started", i)
			case <-time.After(5 * time.Millisecond):
			}
		}
		pipeline.block <- struct{}{}
	}
	wg.Wait()

	if pipeline.overlap {
		t.Fatalf("two jobs for one session ran concurrently")
	}
	if got := len(pipeline.callLog()); got != jobs {
		t.Fatalf("expected %d executed jobs, got %d", jobs, got)
	}
}

func TestSessionsRunConcurrently(t *testing.T) {
	pipeline := newMockPipeline()
	pipeline.block = make(chan struct{})
	manager := NewManager(pipeline, testConfig())

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			manager.Chat(ChatRequest{SessionID: id, Input: "hi"})
		}(id)
	}

	// all three sessions should be in flight at once
	deadline := time.After(2 * time.Second)
	for {
		pipeline.mu.Lock()
		started := len(pipeline.calls)
		pipeline.mu.Unlock()
		if started == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d of 3 sessions started", started)
		case <-time.After(5 * time.Millisecond):
		}
	}
	for i := 0; i < 3; i++ {
		pipeline.block <- struct{}{}
	}
	wg.Wait()
}

func TestQueueSaturationReturnsBusy(t *testing.T) {
	pipeline := newMockPipeline()
	pipeline.block = make(chan struct{})
	manager := NewManager(pipeline, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1, WorkerIdleTimeout: time.Minute})

	// occupy the only worker
	go manager.Chat(ChatRequest{SessionID: "a", Input: "held"})
	waitFor(t, func() bool {
		pipeline.mu.Lock()
		defer pipeline.mu.Unlock()
		return len(pipeline.calls) == 1
	})

	// a second session makes the dispatcher block waiting for a worker
	go manager.Chat(ChatRequest{SessionID: "b", Input: "waiting"})
	time.Sleep(50 * time.Millisecond)

	// fill the submission queue
	go manager.Chat(ChatRequest{SessionID: "c", Input: "queued"})
	time.Sleep(50 * time.Millisecond)

	if _, _, err := manager.Chat(ChatRequest{SessionID: "d", Input: "rejected"}); !errors.Is(err, ErrDispatcherBusy) {
		t.Fatalf("expected ErrDispatcherBusy, got %v", err)
	}

	// drain the held jobs so goroutines finish
	for i := 0; i < 3; i++ {
		pipeline.block <- struct{}{}
	}
}

func TestCancelSessionFailsQueuedJobs(t *testing.T) {
	pipeline := newMockPipeline()
	pipeline.block = make(chan struct{})
	manager := NewManager(pipeline, testConfig())

	// first job holds the session in flight
	firstDone := make(chan error, 1)
	go func() {
		_, _, err := manager.Chat(ChatRequest{SessionID: "s", Input: "in-flight"})
		firstDone <- err
	}()
	waitFor(t, func() bool {
		pipeline.mu.Lock()
		defer pipeline.mu.Unlock()
		return len(pipeline.calls) == 1
	})

	// these queue behind it
	queued := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			_, _, err := manager.Chat(ChatRequest{SessionID: "s", Input: fmt.Sprintf("queued%d", i)})
			queued <- err
		}(i)
	}
	time.Sleep(50 * time.Millisecond)

	manager.CancelSession("s")

	for i := 0; i < 2; i++ {
		select {
		case err := <-queued:
			if !errors.Is(err, ErrSessionCancelled) {
				t.Fatalf("expected ErrSessionCancelled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("queued caller %d still blocked after cancel", i)
		}
	}

	// the in-flight job runs to completion
	pipeline.block <- struct{}{}
	select {
	case err := <-firstDone:
		if err != nil {
			t.Fatalf("in-flight job should complete, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("in-flight job never finished")
	}

	if len(pipeline.callLog()) != 1 {
		t.Fatalf("cancelled jobs must not reach the pipeline: %#v", pipeline.callLog())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("condition never satisfied")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
