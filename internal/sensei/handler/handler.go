// Package handler provides the HTTP handlers of the sensei service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/internal/sensei/biz"
)

// HeaderSessionID carries the conversation id on /v1/ask.
const HeaderSessionID = "x-session-id"

// Router classifies prompts and learns corrections.
type Router interface {
	Classify(ctx context.Context, prompt string) (*model.Classification, error)
	Correct(ctx context.Context, query, label string) (model.Category, error)
}

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, prompt string) (*model.Answer, error)
}

// Knowledge manages indexed documents.
type Knowledge interface {
	Ingest(ctx context.Context, source, content string) (*biz.IngestResult, error)
	Remove(ctx context.Context, documentID string) error
}

// Transcripts stores session messages.
type Transcripts interface {
	Append(ctx context.Context, sessionID string, msgs ...model.Message) error
	Messages(ctx context.Context, sessionID string, limit int) ([]model.Message, error)
}

// Submitter runs a task in the background.
type Submitter interface {
	Submit(task func()) error
}

// Options configures the handler.
type Options struct {
	// TranscriptTimeout bounds one background transcript write.
	TranscriptTimeout time.Duration
}

// SenseiHandler handles sensei HTTP requests.
type SenseiHandler struct {
	router      Router
	asker       Asker
	knowledge   Knowledge
	transcripts Transcripts
	pool        Submitter
	opts        Options
}

// NewSenseiHandler creates a new SenseiHandler. transcripts and pool may be
// nil, which disables session recording.
func NewSenseiHandler(router Router, asker Asker, knowledge Knowledge, transcripts Transcripts, pool Submitter, opts Options) *SenseiHandler {
	if opts.TranscriptTimeout <= 0 {
		opts.TranscriptTimeout = 5 * time.Second
	}
	return &SenseiHandler{
		router:      router,
		asker:       asker,
		knowledge:   knowledge,
		transcripts: transcripts,
		pool:        pool,
		opts:        opts,
	}
}

// Health reports liveness.
func (h *SenseiHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
