package worker

import (
	"context"

	"aidesk/internal/artifact"
	"aidesk/internal/models"
)

type JobType int

const (
	Chat JobType = iota
	Summarize
	Speak
	Clear
	Stop
)

// Job carries one user action through the dispatcher to a worker.
type Job struct {
	Type          JobType
	ChatTask      *chatTask
	SummarizeTask *summarizeTask
	SpeakTask     *speakTask
	ClearTask     *clearTask
}

type ChatRequest struct {
	Context   context.Context
	SessionID string
	Input     string
}

type SummarizeRequest struct {
	Context   context.Context
	SessionID string
	Request   models.SummaryRequest
}

type SpeakRequest struct {
	Context   context.Context
	SessionID string
	Text      string
}

type ClearRequest struct {
	Context   context.Context
	SessionID string
}

type chatReturn struct {
	user      models.Message
	assistant models.Message
	err       error
}

type summarizeReturn struct {
	summary string
	err     error
}

type speakReturn struct {
	art *artifact.Artifact
	err error
}

type chatTask struct {
	req      ChatRequest
	resultCh chan chatReturn
}

type summarizeTask struct {
	req      SummarizeRequest
	resultCh chan summarizeReturn
}

type speakTask struct {
	req      SpeakRequest
	resultCh chan speakReturn
}

type clearTask struct {
	req      ClearRequest
	resultCh chan error
}

// fail delivers err to the waiting caller. Result channels are buffered so
// this never blocks.
func (job Job) fail(err error) {
	switch job.Type {
	case Chat:
		job.ChatTask.resultCh <- chatReturn{err: err}
	case Summarize:
		job.SummarizeTask.resultCh <- summarizeReturn{err: err}
	case Speak:
		job.SpeakTask.resultCh <- speakReturn{err: err}
	case Clear:
		job.ClearTask.resultCh <- err
	}
}

func (job Job) sessionID() string {
	switch job.Type {
	case Chat:
		return job.ChatTask.req.SessionID
	case Summarize:
		return job.SummarizeTask.req.SessionID
	case Speak:
		return job.SpeakTask.req.SessionID
	case Clear:
		return job.ClearTask.req.SessionID
	default:
		return ""
	}
}
