package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kotonoha/dictation-backend/internal/clients/gcp"
	"github.com/kotonoha/dictation-backend/internal/clients/tts"
	"github.com/kotonoha/dictation-backend/internal/data/repos/sentence"
	"github.com/kotonoha/dictation-backend/internal/domain"
	"github.com/kotonoha/dictation-backend/internal/generation"
	pkgerrors "github.com/kotonoha/dictation-backend/internal/pkg/errors"
	"github.com/kotonoha/dictation-backend/internal/platform/apierr"
	"github.com/kotonoha/dictation-backend/internal/platform/logger"
)

const (
	minBatchCount = 1
	maxBatchCount = 10
)

// Pipeline stages per batch item, used for failure logging.
const (
	stageSampling       = "sampling"
	stageGenerating     = "generating"
	stagePersistingText = "persisting_text"
	stageSynthesizing   = "synthesizing"
	stageUploadingAudio = "uploading_audio"
)

// Generator is the text-pair producer the orchestrator composes; satisfied by
// generation.Generator.
type Generator interface {
	Generate(ctx context.Context, params domain.GenerationParameters) (domain.SentencePair, error)
}

type BatchRequest struct {
	Difficulty            domain.Difficulty
	Topic                 string
	Count                 int
	UseNormalDistribution bool
}

// SentenceResult is one successful batch item. AudioURL and Voice are nil
// when audio could not be produced; the sentence itself is still valid
// content.
type SentenceResult struct {
	SentenceID   uuid.UUID            `json:"sentenceId"`
	TextEN       string               `json:"text_en"`
	TextJA       string               `json:"text_ja"`
	Difficulty   domain.Difficulty    `json:"difficulty"`
	Topic        string               `json:"topic"`
	Grammar      string               `json:"grammar"`
	SentenceType domain.SentenceType  `json:"sentenceType"`
	AudioURL     *string              `json:"audioUrl"`
	Voice        *domain.VoiceProfile `json:"voice"`
}

// BatchResult reports only successful items; failed items are logged and
// skipped. DifficultyDistribution is populated only in distribution mode and
// counts every sampled item, including ones that later failed.
type BatchResult struct {
	Sentences              []SentenceResult
	DifficultyDistribution map[domain.Difficulty]int
}

type TextResult struct {
	SentenceID   uuid.UUID
	TextEN       string
	TextJA       string
	Difficulty   domain.Difficulty
	Topic        string
	Grammar      string
	SentenceType domain.SentenceType
}

type SynthesisResult struct {
	SentenceID uuid.UUID
	AudioURL   string
	AudioSize  int
	Voice      domain.VoiceProfile
}

// ContentService composes sampling, generation, persistence, synthesis and
// storage into the endpoint-level operations.
type ContentService interface {
	GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error)
	GenerateTextOnly(ctx context.Context, difficulty domain.Difficulty, topic string) (*TextResult, error)
	SynthesizeForSentence(ctx context.Context, sentenceID string) (*SynthesisResult, error)
	RandomSentence(ctx context.Context, difficulty domain.Difficulty, fast bool) (*domain.Sentence, error)
}

type contentService struct {
	sampler   *generation.Sampler
	generator Generator
	repo      sentence.Repo
	synth     tts.Client
	bucket    gcp.BucketService
	log       *logger.Logger
}

func NewContentService(
	sampler *generation.Sampler,
	generator Generator,
	repo sentence.Repo,
	synth tts.Client,
	bucket gcp.BucketService,
	log *logger.Logger,
) ContentService {
	return &contentService{
		sampler:   sampler,
		generator: generator,
		repo:      repo,
		synth:     synth,
		bucket:    bucket,
		log:       log.With("service", "ContentService"),
	}
}

func audioKey(id uuid.UUID) string { return id.String() + ".mp3" }

// GenerateBatch runs the five-stage pipeline once per item, sequentially.
// A failure while generating or persisting aborts that item only; a failure
// while synthesizing or uploading keeps the item with a nil audio URL,
// because a persisted sentence without audio is still useful content.
func (cs *contentService) GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if !req.UseNormalDistribution {
		if req.Difficulty == "" {
			return nil, apierr.Validation(fmt.Errorf("either difficulty or useNormalDistribution must be specified"))
		}
		if !req.Difficulty.Valid() {
			return nil, apierr.Validation(fmt.Errorf("unknown difficulty %q", req.Difficulty))
		}
	}
	if req.Count < minBatchCount || req.Count > maxBatchCount {
		return nil, apierr.Validation(fmt.Errorf("count must be between %d and %d", minBatchCount, maxBatchCount))
	}

	result := &BatchResult{Sentences: []SentenceResult{}}
	if req.UseNormalDistribution {
		result.DifficultyDistribution = map[domain.Difficulty]int{}
	}

	for i := 0; i < req.Count; i++ {
		itemLog := cs.log.With("item", i)

		params, err := cs.sampler.Parameters(req.UseNormalDistribution, req.Difficulty, req.Topic)
		if err != nil {
			itemLog.Warn("Batch item failed", "stage", stageSampling, "error", err.Error())
			continue
		}
		if result.DifficultyDistribution != nil {
			result.DifficultyDistribution[params.Difficulty]++
		}

		pair, err := cs.generator.Generate(ctx, params)
		if err != nil {
			itemLog.Warn("Batch item failed", "stage", stageGenerating, "error", err.Error())
			continue
		}

		s, err := cs.repo.Create(ctx, nil, pair.TextEN, pair.TextJA, params.Difficulty)
		if err != nil {
			itemLog.Warn("Batch item failed", "stage", stagePersistingText, "error", err.Error())
			continue
		}

		item := SentenceResult{
			SentenceID:   s.ID,
			TextEN:       s.TextEN,
			TextJA:       s.TextJA,
			Difficulty:   params.Difficulty,
			Topic:        params.Topic,
			Grammar:      params.GrammarFocus,
			SentenceType: params.SentenceType,
		}

		voice := cs.synth.PickVoice()
		audio, err := cs.synth.Synthesize(ctx, pair.TextEN, voice)
		if err != nil {
			itemLog.Warn("Continuing without audio", "stage", stageSynthesizing, "sentence_id", s.ID.String(), "error", err.Error())
			result.Sentences = append(result.Sentences, item)
			continue
		}
		item.Voice = &voice

		// First-write-wins here: the key derives from a freshly inserted
		// row, so an existing object means a duplicate run whose audio a
		// client may already have fetched.
		if err := cs.bucket.Upload(ctx, audioKey(s.ID), audio, "audio/mpeg", false); err != nil {
			itemLog.Warn("Continuing without audio", "stage", stageUploadingAudio, "sentence_id", s.ID.String(), "error", err.Error())
			result.Sentences = append(result.Sentences, item)
			continue
		}

		url := cs.bucket.PublicURL(audioKey(s.ID))
		item.AudioURL = &url
		result.Sentences = append(result.Sentences, item)
	}

	return result, nil
}

func (cs *contentService) GenerateTextOnly(ctx context.Context, difficulty domain.Difficulty, topic string) (*TextResult, error) {
	if difficulty == "" {
		return nil, apierr.Validation(fmt.Errorf("difficulty is required"))
	}
	if !difficulty.Valid() {
		return nil, apierr.Validation(fmt.Errorf("unknown difficulty %q", difficulty))
	}

	params, err := cs.sampler.Parameters(false, difficulty, topic)
	if err != nil {
		return nil, err
	}

	pair, err := cs.generator.Generate(ctx, params)
	if err != nil {
		return nil, err
	}

	s, err := cs.repo.Create(ctx, nil, pair.TextEN, pair.TextJA, params.Difficulty)
	if err != nil {
		return nil, apierr.Storage(err)
	}

	return &TextResult{
		SentenceID:   s.ID,
		TextEN:       s.TextEN,
		TextJA:       s.TextJA,
		Difficulty:   params.Difficulty,
		Topic:        params.Topic,
		Grammar:      params.GrammarFocus,
		SentenceType: params.SentenceType,
	}, nil
}

// SynthesizeForSentence regenerates audio for an existing sentence. Upload
// overwrites: re-synthesis is an idempotent replace by design.
func (cs *contentService) SynthesizeForSentence(ctx context.Context, sentenceID string) (*SynthesisResult, error) {
	if sentenceID == "" {
		return nil, apierr.Validation(fmt.Errorf("sentenceId is required"))
	}

	id, err := uuid.Parse(sentenceID)
	if err != nil {
		return nil, apierr.NotFound(fmt.Errorf("Sentence not found with id: %s", sentenceID))
	}

	s, err := cs.repo.GetByID(ctx, nil, id)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound(fmt.Errorf("Sentence not found with id: %s", sentenceID))
	}
	if err != nil {
		return nil, apierr.Storage(err)
	}

	voice := cs.synth.PickVoice()
	audio, err := cs.synth.Synthesize(ctx, s.TextEN, voice)
	if err != nil {
		return nil, err
	}

	if err := cs.bucket.Upload(ctx, audioKey(s.ID), audio, "audio/mpeg", true); err != nil {
		return nil, apierr.Storage(err)
	}

	return &SynthesisResult{
		SentenceID: s.ID,
		AudioURL:   cs.bucket.PublicURL(audioKey(s.ID)),
		AudioSize:  len(audio),
		Voice:      voice,
	}, nil
}

func (cs *contentService) RandomSentence(ctx context.Context, difficulty domain.Difficulty, fast bool) (*domain.Sentence, error) {
	if difficulty == "" {
		return nil, apierr.Validation(fmt.Errorf("difficulty is required"))
	}
	if !difficulty.Valid() {
		return nil, apierr.Validation(fmt.Errorf("unknown difficulty %q", difficulty))
	}

	var (
		s   *domain.Sentence
		err error
	)
	if fast {
		s, err = cs.repo.GetRandomByDifficultyFast(ctx, nil, difficulty)
	} else {
		s, err = cs.repo.GetRandomByDifficulty(ctx, nil, difficulty)
	}
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, apierr.NotFound(fmt.Errorf("No sentences found for this difficulty."))
	}
	if err != nil {
		return nil, apierr.Storage(err)
	}
	return s, nil
}
