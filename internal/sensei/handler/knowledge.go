package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sensei/pkg/response"
)

// AddDocumentRequest is the body of /v1/knowledge/add.
type AddDocumentRequest struct {
	Content string `json:"content" binding:"required"`
	Source  string `json:"source" binding:"max=512"`
}

// AddDocumentResponse reports an ingested document.
type AddDocumentResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Persisted  bool   `json:"persisted"`
}

// AddDocument chunks and indexes a document. If the document could not be
// stored it is still served from memory and the response is 202 degraded.
func (h *SenseiHandler) AddDocument(c *gin.Context) {
	var req AddDocumentRequest
	if !bind(c, &req) {
		return
	}

	res, err := h.knowledge.Ingest(c.Request.Context(), req.Source, req.Content)
	if err != nil && res == nil {
		response.FailWithError(c, err)
		return
	}

	out := AddDocumentResponse{
		Status:     "ok",
		DocumentID: res.DocumentID,
		Chunks:     res.Chunks,
		Persisted:  res.Persisted,
	}
	if err != nil {
		out.Status = "degraded"
		c.JSON(http.StatusAccepted, out)
		return
	}
	response.OK(c, out)
}

// RemoveDocument deletes a document from the index and the store.
func (h *SenseiHandler) RemoveDocument(c *gin.Context) {
	if err := h.knowledge.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, gin.H{"status": "ok"})
}
