package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"aidesk/internal/acquire"
	"aidesk/internal/artifact"
	"aidesk/internal/controller"
	"aidesk/internal/models"
	"aidesk/internal/service/completion"
	"aidesk/internal/service/speech"
	"aidesk/internal/session"
	"aidesk/internal/worker"
)

// ActionManager serializes the dispatching user actions per session.
type ActionManager interface {
	Chat(worker.ChatRequest) (models.Message, models.Message, error)
	Summarize(worker.SummarizeRequest) (string, error)
	Speak(worker.SpeakRequest) (*artifact.Artifact, error)
	ClearChat(worker.ClearRequest) error
	CancelSession(sessionID string)
}

// Handler wires HTTP routes to the interaction controller.
type Handler struct {
	ctrl      *controller.Controller
	actions   ActionManager
	artifacts *artifact.Store
}

// NewHandler constructs a Handler instance.
func NewHandler(ctrl *controller.Controller, artifacts *artifact.Store, cfg worker.DispatcherConfig) *Handler {
	return &Handler{
		ctrl:      ctrl,
		actions:   worker.NewManager(ctrl, cfg),
		artifacts: artifacts,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/sessions", h.createSession)
	api.GET("/languages", h.listLanguages)

	sessionRoutes := api.Group("/sessions/:id")
	sessionRoutes.DELETE("", h.endSession)
	sessionRoutes.GET("", h.getSession)
	sessionRoutes.PUT("/settings", h.updateSettings)
	sessionRoutes.GET("/transcript", h.getTranscript)
	sessionRoutes.POST("/chat", h.chat)
	sessionRoutes.DELETE("/chat", h.clearChat)
	sessionRoutes.POST("/summary", h.summarize)
	sessionRoutes.POST("/speech", h.speak)
	sessionRoutes.GET("/speech/:artifact_id", h.getAudio)
}

func (h *Handler) createSession(c *gin.Context) {
	sess, err := h.ctrl.CreateSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

func (h *Handler) getSession(c *gin.Context) {
	sess, err := h.ctrl.GetSession(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

func (h *Handler) endSession(c *gin.Context) {
	sessionID := c.Param("id")
	h.actions.CancelSession(sessionID)
	if err := h.ctrl.EndSession(c.Request.Context(), sessionID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type settingsRequest struct {
	Credential *string  `json:"credential"`
	Provider   *string  `json:"provider"`
	Model      *string  `json:"model"`
	Language   *string  `json:"language"`
	Speed      *float64 `json:"speed"`
}

func (h *Handler) updateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	err := h.ctrl.UpdateSettings(c.Param("id"), session.Settings{
		Credential: req.Credential,
		Provider:   req.Provider,
		Model:      req.Model,
		Language:   req.Language,
		Speed:      req.Speed,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getTranscript(c *gin.Context) {
	transcript, err := h.ctrl.Transcript(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if transcript == nil {
		transcript = make([]models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{"transcript": transcript})
}

type chatRequest struct {
	Input string `json:"input"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, assistant, err := h.actions.Chat(worker.ChatRequest{
		Context:   c.Request.Context(),
		SessionID: c.Param("id"),
		Input:     req.Input,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_message":      user,
		"assistant_message": assistant,
	})
}

func (h *Handler) clearChat(c *gin.Context) {
	err := h.actions.ClearChat(worker.ClearRequest{
		Context:   c.Request.Context(),
		SessionID: c.Param("id"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type summaryRequest struct {
	Source models.SummarySource `json:"source"`
	Input  string               `json:"input"`
	Length models.SummaryLength `json:"length"`
	Style  models.SummaryStyle  `json:"style"`
}

func (h *Handler) summarize(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	// the option controls come preselected on the surface; apply the same
	// defaults when a client omits them
	if req.Source == "" {
		req.Source = models.SourceText
	}
	if req.Length == "" {
		req.Length = models.LengthMedium
	}
	if req.Style == "" {
		req.Style = models.StyleDigest
	}

	summary, err := h.actions.Summarize(worker.SummarizeRequest{
		Context:   c.Request.Context(),
		SessionID: c.Param("id"),
		Request: models.SummaryRequest{
			Source: req.Source,
			Input:  req.Input,
			Length: req.Length,
			Style:  req.Style,
		},
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	if c.Query("download") == "1" {
		c.Header("Content-Disposition", `attachment; filename="summary.txt"`)
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(summary))
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

type speakRequest struct {
	Text string `json:"text"`
}

func (h *Handler) speak(c *gin.Context) {
	var req speakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sessionID := c.Param("id")
	art, err := h.actions.Speak(worker.SpeakRequest{
		Context:   c.Request.Context(),
		SessionID: sessionID,
		Text:      req.Text,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"artifact": art,
		"url":      fmt.Sprintf("/api/sessions/%s/speech/%d", sessionID, art.ID),
	})
}

func (h *Handler) getAudio(c *gin.Context) {
	artifactID, err := strconv.ParseInt(c.Param("artifact_id"), 10, 64)
	if err != nil || artifactID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid artifact id"})
		return
	}
	art, err := h.artifacts.Get(c.Request.Context(), c.Param("id"), artifactID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// inline so browsers play it; download still works via save-as
	c.Header("Content-Disposition", `inline; filename="speech.wav"`)
	c.Header("Content-Type", art.MimeType)
	c.File(art.Path)
}

func (h *Handler) listLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": models.Languages()})
}

// writeError turns pipeline failures into user-visible messages. Nothing
// propagates far enough to crash the session.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		fetchErr *acquire.FetchError
		loadErr  *acquire.LoadError
		compErr  *completion.Error
		synthErr *speech.Error
	)
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, controller.ErrMissingCredential),
		errors.Is(err, controller.ErrEmptyInput),
		errors.Is(err, controller.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, worker.ErrDispatcherBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
	case errors.As(err, &fetchErr), errors.As(err, &loadErr),
		errors.As(err, &compErr), errors.As(err, &synthErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
