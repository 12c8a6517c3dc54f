package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sensei/pkg/response"
)

// PromptRequest is the body of /v1/ask and /v1/debug/classify.
type PromptRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// ClassifyResponse is the body returned by /v1/debug/classify.
type ClassifyResponse struct {
	Category      string `json:"category"`
	EnhancedQuery string `json:"enhanced_query"`
}

// CorrectRequest teaches the router the category of a query.
type CorrectRequest struct {
	Query           string `json:"query" binding:"required"`
	CorrectCategory string `json:"correct_category" binding:"required"`
}

// CorrectResponse confirms a stored correction.
type CorrectResponse struct {
	Status   string `json:"status"`
	Query    string `json:"query"`
	Category string `json:"category"`
}

// Classify returns the category and enhanced query of a prompt.
func (h *SenseiHandler) Classify(c *gin.Context) {
	var req PromptRequest
	if !bind(c, &req) {
		return
	}

	cls, err := h.router.Classify(c.Request.Context(), req.Prompt)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, ClassifyResponse{
		Category:      cls.Category.String(),
		EnhancedQuery: cls.EnhancedQuery,
	})
}

// Correct stores a human correction. It succeeds only once the correction is
// durable.
func (h *SenseiHandler) Correct(c *gin.Context) {
	var req CorrectRequest
	if !bind(c, &req) {
		return
	}

	cat, err := h.router.Correct(c.Request.Context(), req.Query, req.CorrectCategory)
	if err != nil {
		response.FailWithError(c, err)
		return
	}

	logger.Infow("classification corrected", "category", cat.String())
	response.OK(c, CorrectResponse{
		Status:   "ok",
		Query:    req.Query,
		Category: cat.String(),
	})
}
