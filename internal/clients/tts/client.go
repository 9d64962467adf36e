package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kotonoha/dictation-backend/internal/domain"
	"github.com/kotonoha/dictation-backend/internal/pkg/httpx"
	"github.com/kotonoha/dictation-backend/internal/platform/apierr"
	"github.com/kotonoha/dictation-backend/internal/platform/logger"
	"github.com/kotonoha/dictation-backend/internal/utils"
)

// Client synthesizes MP3 audio for a sentence via the Google Cloud
// Text-to-Speech REST API.
type Client interface {
	PickVoice() domain.VoiceProfile
	Synthesize(ctx context.Context, text string, voice domain.VoiceProfile) ([]byte, error)
}

// Standard voices only, for cost efficiency. Gender hints are informational.
var voicePool = []domain.VoiceProfile{
	{LanguageCode: "en-US", Name: "en-US-Standard-C", GenderHint: "female"},
	{LanguageCode: "en-US", Name: "en-US-Standard-E", GenderHint: "female"},
	{LanguageCode: "en-US", Name: "en-US-Standard-G", GenderHint: "female"},
	{LanguageCode: "en-US", Name: "en-US-Standard-B", GenderHint: "male"},
	{LanguageCode: "en-US", Name: "en-US-Standard-D", GenderHint: "male"},
	{LanguageCode: "en-US", Name: "en-US-Standard-I", GenderHint: "male"},
	{LanguageCode: "en-GB", Name: "en-GB-Standard-A", GenderHint: "female"},
	{LanguageCode: "en-GB", Name: "en-GB-Standard-C", GenderHint: "female"},
	{LanguageCode: "en-GB", Name: "en-GB-Standard-F", GenderHint: "female"},
	{LanguageCode: "en-GB", Name: "en-GB-Standard-B", GenderHint: "male"},
	{LanguageCode: "en-GB", Name: "en-GB-Standard-D", GenderHint: "male"},
	{LanguageCode: "en-AU", Name: "en-AU-Standard-A", GenderHint: "female"},
	{LanguageCode: "en-AU", Name: "en-AU-Standard-C", GenderHint: "female"},
	{LanguageCode: "en-AU", Name: "en-AU-Standard-B", GenderHint: "male"},
	{LanguageCode: "en-AU", Name: "en-AU-Standard-D", GenderHint: "male"},
}

// VoicePool exposes a copy of the fixed pool for assertions and reporting.
func VoicePool() []domain.VoiceProfile {
	out := make([]domain.VoiceProfile, len(voicePool))
	copy(out, voicePool)
	return out
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rng        *rand.Rand

	maxRetries int
}

// NewClient reads config from the environment. A nil rng gets a time-seeded
// source; tests inject a deterministic one.
func NewClient(log *logger.Logger, rng *rand.Rand) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(utils.GetEnv("GOOGLE_CLOUD_API_KEY", "", log))
	if apiKey == "" {
		return nil, fmt.Errorf("missing GOOGLE_CLOUD_API_KEY")
	}

	baseURL := strings.TrimRight(utils.GetEnv("TTS_BASE_URL", "https://texttospeech.googleapis.com", log), "/")
	timeoutSec := utils.GetEnvAsInt("TTS_TIMEOUT_SECONDS", 30, log)
	maxRetries := utils.GetEnvAsInt("TTS_MAX_RETRIES", 0, log)

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &client{
		log:        log.With("service", "TTSClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		rng:        rng,
		maxRetries: maxRetries,
	}, nil
}

// PickVoice draws uniformly from the fixed pool; no session affinity.
func (c *client) PickVoice() domain.VoiceProfile {
	return voicePool[c.rng.Intn(len(voicePool))]
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize returns decoded MP3 bytes for text spoken by voice.
func (c *client) Synthesize(ctx context.Context, text string, voice domain.VoiceProfile) ([]byte, error) {
	var body synthesizeRequest
	body.Input.Text = text
	body.Voice.LanguageCode = voice.LanguageCode
	body.Voice.Name = voice.Name
	body.AudioConfig.AudioEncoding = "MP3"

	var out synthesizeResponse
	if err := c.do(ctx, &body, &out); err != nil {
		return nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, apierr.Parse(out.AudioContent, fmt.Errorf("tts audioContent is not valid base64: %w", err))
	}
	return audio, nil
}

func (c *client) doOnce(ctx context.Context, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}

	// The TTS API authenticates with a key query parameter, not a header.
	endpoint := fmt.Sprintf("%s/v1/text:synthesize?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, apierr.Upstream("tts", resp.StatusCode, string(raw))
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return apierr.Parse(string(raw), fmt.Errorf("tts decode error: %w", uErr))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("TTS request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}
