package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/pkg/infra/middleware/requestid"
	"github.com/kart-io/sensei/pkg/response"
	"github.com/kart-io/sensei/pkg/utils/id"
)

// maxSessionIDLen matches the sessions.id column width.
const maxSessionIDLen = 64

// AskResponse is the body returned by /v1/ask.
type AskResponse struct {
	Content string `json:"content"`
}

// Ask answers a prompt. The session id is echoed in the x-session-id header;
// a new one is issued when the request carries none.
func (h *SenseiHandler) Ask(c *gin.Context) {
	var req PromptRequest
	if !bind(c, &req) {
		return
	}

	sessionID := strings.TrimSpace(c.GetHeader(HeaderSessionID))
	if sessionID == "" || len(sessionID) > maxSessionIDLen {
		sessionID = id.NewULID()
	}
	c.Header(HeaderSessionID, sessionID)

	ans, err := h.asker.Ask(c.Request.Context(), req.Prompt)
	if err != nil {
		response.FailWithError(c, err)
		return
	}

	h.record(c.Request.Context(), sessionID,
		model.Message{Role: model.RoleUser, Content: req.Prompt},
		model.Message{Role: model.RoleAssistant, Content: ans.Content, Category: ans.Category.String()},
	)
	response.OK(c, AskResponse{Content: ans.Content})
}

// record appends the exchange to the session transcript in the background.
// Failures are logged and never reach the client.
func (h *SenseiHandler) record(ctx context.Context, sessionID string, msgs ...model.Message) {
	if h.transcripts == nil {
		return
	}
	reqID := requestid.Get(ctx)
	task := func() {
		wctx, cancel := context.WithTimeout(context.Background(), h.opts.TranscriptTimeout)
		defer cancel()
		if err := h.transcripts.Append(wctx, sessionID, msgs...); err != nil {
			logger.Warnw("failed to append transcript",
				"session_id", sessionID,
				"request_id", reqID,
				"error", err.Error(),
			)
		}
	}
	if h.pool == nil {
		task()
		return
	}
	if err := h.pool.Submit(task); err != nil {
		logger.Warnw("transcript dropped", "session_id", sessionID, "error", err.Error())
	}
}

// Messages returns the transcript of a session.
func (h *SenseiHandler) Messages(c *gin.Context) {
	if h.transcripts == nil {
		response.OK(c, gin.H{"session_id": c.Param("id"), "messages": []model.Message{}})
		return
	}
	sessionID := c.Param("id")
	msgs, err := h.transcripts.Messages(c.Request.Context(), sessionID, 0)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": sessionID, "messages": msgs})
}
