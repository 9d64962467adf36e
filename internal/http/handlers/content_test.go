package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kotonoha/dictation-backend/internal/domain"
	"github.com/kotonoha/dictation-backend/internal/platform/apierr"
	"github.com/kotonoha/dictation-backend/internal/platform/logger"
	"github.com/kotonoha/dictation-backend/internal/services"
)

type fakeContentService struct {
	batchReq    *services.BatchRequest
	batchRes    *services.BatchResult
	batchErr    error
	textRes     *services.TextResult
	textErr     error
	synthRes    *services.SynthesisResult
	synthErr    error
	randomRes   *domain.Sentence
	randomErr   error
	randomFast  bool
	randomLevel domain.Difficulty
}

func (f *fakeContentService) GenerateBatch(_ context.Context, req services.BatchRequest) (*services.BatchResult, error) {
	f.batchReq = &req
	return f.batchRes, f.batchErr
}

func (f *fakeContentService) GenerateTextOnly(_ context.Context, _ domain.Difficulty, _ string) (*services.TextResult, error) {
	return f.textRes, f.textErr
}

func (f *fakeContentService) SynthesizeForSentence(_ context.Context, _ string) (*services.SynthesisResult, error) {
	return f.synthRes, f.synthErr
}

func (f *fakeContentService) RandomSentence(_ context.Context, difficulty domain.Difficulty, fast bool) (*domain.Sentence, error) {
	f.randomLevel = difficulty
	f.randomFast = fast
	return f.randomRes, f.randomErr
}

func newTestRouter(t *testing.T, svc services.ContentService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	ch := NewContentHandler(svc, log)
	engine := gin.New()
	api := engine.Group("/api/sentences")
	api.POST("/generate", ch.GenerateWithAudio)
	api.POST("/generate-text", ch.GenerateTextOnly)
	api.POST("/synthesize", ch.SynthesizeForSentence)
	api.POST("/random", ch.RandomSentence(false))
	api.POST("/random-optimized", ch.RandomSentence(true))
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestGenerateWithAudio(t *testing.T) {
	url := "https://cdn.example.com/a.mp3"
	svc := &fakeContentService{batchRes: &services.BatchResult{Sentences: []services.SentenceResult{
		{
			SentenceID: uuid.New(),
			TextEN:     "Hi.",
			TextJA:     "やあ。",
			Difficulty: domain.DifficultyB1,
			AudioURL:   &url,
		},
	}}}
	engine := newTestRouter(t, svc)

	w := doJSON(t, engine, "/api/sentences/generate", `{"difficulty":"B1","count":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["success"] != true {
		t.Fatalf("want success=true, got %v", body)
	}
	if body["count"] != float64(1) {
		t.Fatalf("want count=1, got %v", body["count"])
	}
	if _, ok := body["difficultyDistribution"]; ok {
		t.Fatalf("distribution must be omitted in fixed-difficulty mode")
	}
	items := body["sentences"].([]any)
	first := items[0].(map[string]any)
	if first["audioUrl"] != url {
		t.Fatalf("audioUrl mismatch: %v", first)
	}
}

func TestGenerateWithAudioDefaultCount(t *testing.T) {
	svc := &fakeContentService{batchRes: &services.BatchResult{Sentences: []services.SentenceResult{}}}
	engine := newTestRouter(t, svc)

	w := doJSON(t, engine, "/api/sentences/generate", `{"difficulty":"A1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	if svc.batchReq == nil || svc.batchReq.Count != 1 {
		t.Fatalf("missing count must default to 1, got %+v", svc.batchReq)
	}
}

func TestGenerateWithAudioDistribution(t *testing.T) {
	svc := &fakeContentService{batchRes: &services.BatchResult{
		Sentences:              []services.SentenceResult{},
		DifficultyDistribution: map[domain.Difficulty]int{domain.DifficultyB1: 2, domain.DifficultyA2: 1},
	}}
	engine := newTestRouter(t, svc)

	w := doJSON(t, engine, "/api/sentences/generate", `{"useNormalDistribution":true,"count":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	dist, ok := body["difficultyDistribution"].(map[string]any)
	if !ok {
		t.Fatalf("want difficultyDistribution in response, got %v", body)
	}
	if dist["B1"] != float64(2) {
		t.Fatalf("distribution mismatch: %v", dist)
	}
	if svc.batchReq == nil || !svc.batchReq.UseNormalDistribution {
		t.Fatalf("useNormalDistribution not forwarded: %+v", svc.batchReq)
	}
}

func TestGenerateWithAudioValidationError(t *testing.T) {
	svc := &fakeContentService{batchErr: apierr.Validation(fmt.Errorf("count must be between 1 and 10"))}
	engine := newTestRouter(t, svc)

	w := doJSON(t, engine, "/api/sentences/generate", `{"difficulty":"B1","count":99}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "count must be between 1 and 10" {
		t.Fatalf("error body mismatch: %v", body)
	}
}

func TestGenerateWithAudioMalformedBody(t *testing.T) {
	engine := newTestRouter(t, &fakeContentService{})

	w := doJSON(t, engine, "/api/sentences/generate", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
}

func TestGenerateWithAudioUpstreamStatusPassthrough(t *testing.T) {
	svc := &fakeContentService{batchErr: apierr.Upstream("gemini", http.StatusTooManyRequests, "rate limited")}
	engine := newTestRouter(t, svc)

	w := doJSON(t, engine, "/api/sentences/generate", `{"difficulty":"B1"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("want provider status passthrough 429, got %d", w.Code)
	}
}

func TestGenerateTextOnlyEndpoint(t *testing.T) {
	id := uuid.New()
	svc := &fakeContentService{textRes: &services.TextResult{
		SentenceID:   id,
		TextEN:       "Hi.",
		TextJA:       "やあ。",
		Difficulty:   domain.DifficultyA1,
		Topic:        "weather",
		Grammar:      "be verb",
		SentenceType: domain.SentenceTypeDeclarative,
	}}
	engine := newTestRouter(t, svc)

	w := doJSON(t, engine, "/api/sentences/generate-text", `{"difficulty":"A1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["sentenceId"] != id.String() || body["text_en"] != "Hi." || body["grammar"] != "be verb" {
		t.Fatalf("response mismatch: %v", body)
	}
}

func TestSynthesizeEndpoint(t *testing.T) {
	id := uuid.New()
	svc := &fakeContentService{synthRes: &services.SynthesisResult{
		SentenceID: id,
		AudioURL:   "https://cdn.example.com/" + id.String() + ".mp3",
		AudioSize:  1234,
		Voice:      domain.VoiceProfile{LanguageCode: "en-US", Name: "en-US-Standard-C"},
	}}
	engine := newTestRouter(t, svc)

	w := doJSON(t, engine, "/api/sentences/synthesize", fmt.Sprintf(`{"sentenceId":%q}`, id))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["audioSize"] != float64(1234) {
		t.Fatalf("audioSize mismatch: %v", body)
	}
	voice := body["voice"].(map[string]any)
	if voice["name"] != "en-US-Standard-C" {
		t.Fatalf("voice mismatch: %v", voice)
	}
}

func TestSynthesizeEndpointNotFound(t *testing.T) {
	svc := &fakeContentService{synthErr: apierr.NotFound(fmt.Errorf("Sentence not found with id: abc"))}
	engine := newTestRouter(t, svc)

	w := doJSON(t, engine, "/api/sentences/synthesize", `{"sentenceId":"abc"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "Sentence not found with id: abc" {
		t.Fatalf("error body mismatch: %v", body)
	}
}

func TestRandomEndpointsSelectStrategy(t *testing.T) {
	s := &domain.Sentence{ID: uuid.New(), TextEN: "Hi.", TextJA: "やあ。", Difficulty: domain.DifficultyB2}

	svc := &fakeContentService{randomRes: s}
	engine := newTestRouter(t, svc)

	w := doJSON(t, engine, "/api/sentences/random", `{"difficulty":"B2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	if svc.randomFast {
		t.Fatalf("/random must use the count/offset strategy")
	}
	if svc.randomLevel != domain.DifficultyB2 {
		t.Fatalf("difficulty not forwarded: %s", svc.randomLevel)
	}

	w = doJSON(t, engine, "/api/sentences/random-optimized", `{"difficulty":"B2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	if !svc.randomFast {
		t.Fatalf("/random-optimized must use the RPC strategy")
	}

	body := decodeBody(t, w)
	if body["text_en"] != "Hi." {
		t.Fatalf("raw sentence row expected: %v", body)
	}
}

func TestRandomEndpointEmptyPool(t *testing.T) {
	svc := &fakeContentService{randomErr: apierr.NotFound(fmt.Errorf("No sentences found for this difficulty."))}
	engine := newTestRouter(t, svc)

	w := doJSON(t, engine, "/api/sentences/random", `{"difficulty":"C1"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "No sentences found for this difficulty." {
		t.Fatalf("error body mismatch: %v", body)
	}
}
