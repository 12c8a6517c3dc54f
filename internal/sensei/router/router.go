// Package router registers the sensei HTTP routes and middleware chain.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sensei/internal/sensei/handler"
	"github.com/kart-io/sensei/pkg/infra/middleware"
	"github.com/kart-io/sensei/pkg/infra/middleware/requestid"
	mwopts "github.com/kart-io/sensei/pkg/options/middleware"
)

// Register installs the middleware chain and the sensei routes on engine.
// Middleware must be installed before routes so every group inherits it.
func Register(engine *gin.Engine, h *handler.SenseiHandler, mw *mwopts.Options) {
	if mw == nil {
		mw = mwopts.NewOptions()
	}
	logger.Info("Registering sensei routes...")

	engine.Use(
		middleware.RecoveryWithOptions(*mw.Recovery, nil),
		requestid.New(),
		middleware.Tracing(*mw.Tracing),
		middleware.LoggerWithOptions(*mw.Logger),
		middleware.Timeout(mw.Timeout.Duration),
	)

	engine.GET("/health", h.Health)

	v1 := engine.Group("/v1")
	{
		v1.POST("/ask", h.Ask)
		v1.POST("/debug/classify", h.Classify)
		v1.POST("/feedback/correct", h.Correct)

		knowledge := v1.Group("/knowledge")
		{
			knowledge.POST("/add", h.AddDocument)
			knowledge.DELETE("/:id", h.RemoveDocument)
		}

		v1.GET("/sessions/:id/messages", h.Messages)
	}

	logger.Info("HTTP routes registered")
}
