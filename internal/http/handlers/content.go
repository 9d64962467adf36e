package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kotonoha/dictation-backend/internal/domain"
	"github.com/kotonoha/dictation-backend/internal/platform/apierr"
	"github.com/kotonoha/dictation-backend/internal/platform/logger"
	"github.com/kotonoha/dictation-backend/internal/services"
)

// ContentHandler exposes the generation and read endpoints. Every error body
// is {"error": string}; batch endpoints report successful items only.
type ContentHandler struct {
	content services.ContentService
	log     *logger.Logger
}

func NewContentHandler(content services.ContentService, log *logger.Logger) *ContentHandler {
	return &ContentHandler{
		content: content,
		log:     log.With("handler", "ContentHandler"),
	}
}

func respondErr(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// POST /api/sentences/generate
// body: { "difficulty"?, "topic"?, "count"?=1, "useNormalDistribution"?=false }
func (ch *ContentHandler) GenerateWithAudio(c *gin.Context) {
	var req struct {
		Difficulty            string `json:"difficulty"`
		Topic                 string `json:"topic"`
		Count                 *int   `json:"count"`
		UseNormalDistribution bool   `json:"useNormalDistribution"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	count := 1
	if req.Count != nil {
		count = *req.Count
	}

	result, err := ch.content.GenerateBatch(c.Request.Context(), services.BatchRequest{
		Difficulty:            domain.Difficulty(req.Difficulty),
		Topic:                 req.Topic,
		Count:                 count,
		UseNormalDistribution: req.UseNormalDistribution,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	resp := gin.H{
		"success":   true,
		"count":     len(result.Sentences),
		"sentences": result.Sentences,
	}
	if result.DifficultyDistribution != nil {
		resp["difficultyDistribution"] = result.DifficultyDistribution
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/sentences/generate-text
// body: { "difficulty", "topic"? }
func (ch *ContentHandler) GenerateTextOnly(c *gin.Context) {
	var req struct {
		Difficulty string `json:"difficulty"`
		Topic      string `json:"topic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := ch.content.GenerateTextOnly(c.Request.Context(), domain.Difficulty(req.Difficulty), req.Topic)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"sentenceId":   result.SentenceID,
		"text_en":      result.TextEN,
		"text_ja":      result.TextJA,
		"difficulty":   result.Difficulty,
		"topic":        result.Topic,
		"grammar":      result.Grammar,
		"sentenceType": result.SentenceType,
	})
}

// POST /api/sentences/synthesize
// body: { "sentenceId" }
func (ch *ContentHandler) SynthesizeForSentence(c *gin.Context) {
	var req struct {
		SentenceID string `json:"sentenceId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := ch.content.SynthesizeForSentence(c.Request.Context(), req.SentenceID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"sentenceId": result.SentenceID,
		"audioUrl":   result.AudioURL,
		"audioSize":  result.AudioSize,
		"voice":      result.Voice,
	})
}

// POST /api/sentences/random and /api/sentences/random-optimized
// body: { "difficulty" }
// Responds with the raw sentence row.
func (ch *ContentHandler) RandomSentence(fast bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Difficulty string `json:"difficulty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		s, err := ch.content.RandomSentence(c.Request.Context(), domain.Difficulty(req.Difficulty), fast)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}
