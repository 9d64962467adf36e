package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/kotonoha/dictation-backend/internal/http/handlers"
	httpMW "github.com/kotonoha/dictation-backend/internal/http/middleware"
	"github.com/kotonoha/dictation-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	ContentHandler *httpH.ContentHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.ContentHandler != nil {
			api.POST("/sentences/generate", cfg.ContentHandler.GenerateWithAudio)
			api.POST("/sentences/generate-text", cfg.ContentHandler.GenerateTextOnly)
			api.POST("/sentences/synthesize", cfg.ContentHandler.SynthesizeForSentence)
			api.POST("/sentences/random", cfg.ContentHandler.RandomSentence(false))
			api.POST("/sentences/random-optimized", cfg.ContentHandler.RandomSentence(true))
		}
	}

	return r
}
