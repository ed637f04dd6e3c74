package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"aidesk/internal/acquire"
	"aidesk/internal/artifact"
	"aidesk/internal/config"
	"aidesk/internal/models"
	"aidesk/internal/service/completion"
	"aidesk/internal/service/speech"
	"aidesk/internal/session"
)

// User-correctable validation failures. Every failure is terminal for that
// single action; a fresh user-triggered action is the only retry path.
var (
	ErrMissingCredential = errors.New("api credential not configured")
	ErrEmptyInput        = errors.New("input text is empty")
	ErrInvalidOption     = errors.New("invalid option")
)

// Completer is the completion dispatcher surface the controller drives.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Synthesizer is the speech dispatcher surface the controller drives.
type Synthesizer interface {
	Synthesize(ctx context.Context, req models.SpeechRequest) ([]byte, error)
}

// Factory variables so tests can swap in fakes.
var (
	completionFactory = func(ctx context.Context, provider, model, credential string, providers map[string]config.ProviderConfig) (Completer, error) {
		return completion.NewDispatcher(ctx, provider, model, credential, providers)
	}
	speechFactory = func(ctx context.Context, credential, model string) (Synthesizer, error) {
		return speech.NewSynthesizer(ctx, credential, model)
	}
)

// sessionResources caches constructed dispatchers until the provider, model,
// or credential they were built from changes.
type sessionResources struct {
	completer  Completer
	synth      Synthesizer
	provider   string
	model      string
	credential string
}

// Controller validates preconditions, drives acquisition and dispatch, and
// reconciles results back into the session store. Callers (the worker layer)
// guarantee no two actions for the same session overlap.
type Controller struct {
	sessions    *session.Store
	acquirer    *acquire.Acquirer
	artifacts   *artifact.Store
	providers   map[string]config.ProviderConfig
	speechModel string

	mu        sync.Mutex
	resources map[string]*sessionResources
}

func New(sessions *session.Store, acquirer *acquire.Acquirer, artifacts *artifact.Store, providers map[string]config.ProviderConfig, speechModel string) *Controller {
	return &Controller{
		sessions:    sessions,
		acquirer:    acquirer,
		artifacts:   artifacts,
		providers:   providers,
		speechModel: speechModel,
		resources:   make(map[string]*sessionResources),
	}
}

// CreateSession mints a fresh session with default settings.
func (c *Controller) CreateSession() (*models.Session, error) {
	return c.sessions.Create()
}

// GetSession returns a snapshot of the session.
func (c *Controller) GetSession(id string) (*models.Session, error) {
	return c.sessions.Get(id)
}

// EndSession destroys the session, its cached dispatchers, and its artifacts.
func (c *Controller) EndSession(ctx context.Context, id string) error {
	if _, err := c.sessions.Get(id); err != nil {
		return err
	}
	c.sessions.Delete(id)
	c.mu.Lock()
	delete(c.resources, id)
	c.mu.Unlock()
	if c.artifacts != nil {
		return c.artifacts.PurgeSession(ctx, id)
	}
	return nil
}

// UpdateSettings applies a partial settings update. Cached dispatchers are
// revalidated lazily on the next dispatch.
func (c *Controller) UpdateSettings(id string, upd session.Settings) error {
	if upd.Provider != nil {
		if _, ok := c.providers[*upd.Provider]; !ok {
			return fmt.Errorf("%w: provider %q", ErrInvalidOption, *upd.Provider)
		}
	}
	if err := c.sessions.UpdateSettings(id, upd); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return nil
}

// Transcript returns the ordered chat record.
func (c *Controller) Transcript(id string) ([]models.Message, error) {
	return c.sessions.Transcript(id)
}

// Chat runs one chat turn: validate, append the user message, dispatch the
// raw input single-turn, append the assistant reply. On dispatch failure the
// user message stays in the transcript flagged as failed and no assistant
// message is appended.
func (c *Controller) Chat(ctx context.Context, sessionID, input string) (models.Message, models.Message, error) {
	var empty models.Message
	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		return empty, empty, err
	}
	if sess.Credential == "" {
		return empty, empty, ErrMissingCredential
	}
	if strings.TrimSpace(input) == "" {
		return empty, empty, ErrEmptyInput
	}

	userMsg := models.Message{Role: models.RoleUser, Content: input, CreatedAt: time.Now().UTC()}
	if err := c.sessions.AppendMessage(sessionID, userMsg); err != nil {
		return empty, empty, err
	}

	completer, err := c.completer(ctx, sess)
	if err != nil {
		_ = c.sessions.MarkLastFailed(sessionID)
		return userMsg, empty, err
	}
	reply, err := completer.Complete(ctx, input)
	if err != nil {
		_ = c.sessions.MarkLastFailed(sessionID)
		return userMsg, empty, err
	}

	asstMsg := models.Message{Role: models.RoleAssistant, Content: reply, CreatedAt: time.Now().UTC()}
	if err := c.sessions.AppendMessage(sessionID, asstMsg); err != nil {
		return userMsg, empty, err
	}
	return userMsg, asstMsg, nil
}

// ClearChat atomically empties the transcript.
func (c *Controller) ClearChat(sessionID string) error {
	return c.sessions.ClearTranscript(sessionID)
}

// Summarize acquires the input text, validates it, and dispatches the
// templated instruction. Session state is not mutated; summaries are not
// retained across actions.
func (c *Controller) Summarize(ctx context.Context, sessionID string, req models.SummaryRequest) (string, error) {
	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	if !req.Source.Valid() {
		return "", fmt.Errorf("%w: source %q", ErrInvalidOption, req.Source)
	}
	if !req.Length.Valid() {
		return "", fmt.Errorf("%w: length %q", ErrInvalidOption, req.Length)
	}
	if !req.Style.Valid() {
		return "", fmt.Errorf("%w: style %q", ErrInvalidOption, req.Style)
	}

	text, err := c.acquirer.Acquire(ctx, req.Source, req.Input)
	if err != nil {
		return "", err
	}

	// input emptiness is checked before credential presence
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	if sess.Credential == "" {
		return "", ErrMissingCredential
	}

	completer, err := c.completer(ctx, sess)
	if err != nil {
		return "", err
	}
	return completer.Complete(ctx, completion.SummaryPrompt(req.Length, req.Style, text))
}

// Speak synthesizes the text with the session's language and speed settings
// and stores the audio as the session's current artifact.
func (c *Controller) Speak(ctx context.Context, sessionID, text string) (*artifact.Artifact, error) {
	sess, err := c.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if sess.Credential == "" {
		return nil, ErrMissingCredential
	}

	synth, err := c.synthesizer(ctx, sess)
	if err != nil {
		return nil, err
	}
	audio, err := synth.Synthesize(ctx, models.SpeechRequest{
		Text:     text,
		Language: sess.Language,
		Speed:    sess.Speed,
	})
	if err != nil {
		return nil, err
	}

	art, err := c.artifacts.Save(ctx, sessionID, audio)
	if err != nil {
		return nil, &speech.Error{Err: err}
	}
	return art, nil
}

// completer returns the cached dispatcher, rebuilding it when the provider,
// model, or credential changed since construction.
func (c *Controller) completer(ctx context.Context, sess *models.Session) (Completer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.resources[sess.ID]
	if res != nil && res.completer != nil &&
		res.provider == sess.Provider && res.model == sess.Model && res.credential == sess.Credential {
		return res.completer, nil
	}
	completer, err := completionFactory(ctx, sess.Provider, sess.Model, sess.Credential, c.providers)
	if err != nil {
		return nil, err
	}
	if res == nil || res.credential != sess.Credential {
		res = &sessionResources{}
	}
	res.completer = completer
	res.provider = sess.Provider
	res.model = sess.Model
	res.credential = sess.Credential
	c.resources[sess.ID] = res
	return completer, nil
}

func (c *Controller) synthesizer(ctx context.Context, sess *models.Session) (Synthesizer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.resources[sess.ID]
	if res != nil && res.synth != nil && res.credential == sess.Credential {
		return res.synth, nil
	}
	synth, err := speechFactory(ctx, sess.Credential, c.speechModel)
	if err != nil {
		return nil, err
	}
	if res == nil || res.credential != sess.Credential {
		res = &sessionResources{credential: sess.Credential, provider: sess.Provider, model: sess.Model}
	}
	res.synth = synth
	res.credential = sess.Credential
	c.resources[sess.ID] = res
	return synth, nil
}
