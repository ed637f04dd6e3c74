package worker

import (
	"context"
	"errors"
	"time"

	"aidesk/internal/artifact"
	"aidesk/internal/models"
)

var (
	// ErrDispatcherBusy is surfaced when the job queue is saturated.
	ErrDispatcherBusy = errors.New("dispatcher queue is full")
	// ErrSessionCancelled is delivered to callers whose queued jobs were
	// dropped because the session ended.
	ErrSessionCancelled = errors.New("session cancelled")
)

type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
}

// Pipeline is the interaction controller surface the workers drive.
type Pipeline interface {
	Chat(ctx context.Context, sessionID, input string) (models.Message, models.Message, error)
	Summarize(ctx context.Context, sessionID string, req models.SummaryRequest) (string, error)
	Speak(ctx context.Context, sessionID, text string) (*artifact.Artifact, error)
	ClearChat(sessionID string) error
}

// Manager serializes user actions: per-session FIFO order with at most one
// in-flight dispatch per session, fairness across sessions, and a bounded
// worker pool behind it.
type Manager struct {
	pipeline   Pipeline
	dispatcher *Dispatcher
}

func NewManager(pipeline Pipeline, cfg DispatcherConfig) *Manager {
	m := &Manager{pipeline: pipeline}
	m.dispatcher = NewDispatcher(cfg.MinWorkers, cfg.MaxWorkers, cfg.QueueSize, m, cfg.WorkerIdleTimeout)
	return m
}

// Chat enqueues one chat turn and blocks until it completes.
func (m *Manager) Chat(req ChatRequest) (models.Message, models.Message, error) {
	resultCh := make(chan chatReturn, 1)
	job := Job{Type: Chat, ChatTask: &chatTask{req: req, resultCh: resultCh}}
	if !m.dispatcher.Submit(job) {
		return models.Message{}, models.Message{}, ErrDispatcherBusy
	}
	ret := <-resultCh
	return ret.user, ret.assistant, ret.err
}

// Summarize enqueues one summarize action and blocks until it completes.
func (m *Manager) Summarize(req SummarizeRequest) (string, error) {
	resultCh := make(chan summarizeReturn, 1)
	job := Job{Type: Summarize, SummarizeTask: &summarizeTask{req: req, resultCh: resultCh}}
	if !m.dispatcher.Submit(job) {
		return "", ErrDispatcherBusy
	}
	ret := <-resultCh
	return ret.summary, ret.err
}

// Speak enqueues one synthesis action and blocks until it completes.
func (m *Manager) Speak(req SpeakRequest) (*artifact.Artifact, error) {
	resultCh := make(chan speakReturn, 1)
	job := Job{Type: Speak, SpeakTask: &speakTask{req: req, resultCh: resultCh}}
	if !m.dispatcher.Submit(job) {
		return nil, ErrDispatcherBusy
	}
	ret := <-resultCh
	return ret.art, ret.err
}

// ClearChat enqueues a transcript clear and blocks until it completes. The
// clear is an ordered action like any other: it waits for the session's
// in-flight dispatch instead of racing it.
func (m *Manager) ClearChat(req ClearRequest) error {
	resultCh := make(chan error, 1)
	job := Job{Type: Clear, ClearTask: &clearTask{req: req, resultCh: resultCh}}
	if !m.dispatcher.Submit(job) {
		return ErrDispatcherBusy
	}
	return <-resultCh
}

// CancelSession drops any queued jobs for an ended session.
func (m *Manager) CancelSession(sessionID string) {
	m.dispatcher.CancelSession(sessionID)
}

func (m *Manager) handleJob(job Job) {
	defer m.dispatcher.jobDone(job.sessionID())

	switch job.Type {
	case Chat:
		task := job.ChatTask
		user, assistant, err := m.pipeline.Chat(jobContext(task.req.Context), task.req.SessionID, task.req.Input)
		task.resultCh <- chatReturn{user: user, assistant: assistant, err: err}
	case Summarize:
		task := job.SummarizeTask
		summary, err := m.pipeline.Summarize(jobContext(task.req.Context), task.req.SessionID, task.req.Request)
		task.resultCh <- summarizeReturn{summary: summary, err: err}
	case Speak:
		task := job.SpeakTask
		art, err := m.pipeline.Speak(jobContext(task.req.Context), task.req.SessionID, task.req.Text)
		task.resultCh <- speakReturn{art: art, err: err}
	case Clear:
		task := job.ClearTask
		task.resultCh <- m.pipeline.ClearChat(task.req.SessionID)
	}
}

func jobContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
