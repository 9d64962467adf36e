package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kotonoha/dictation-backend/internal/domain"
	"github.com/kotonoha/dictation-backend/internal/platform/apierr"
	"github.com/kotonoha/dictation-backend/internal/platform/logger"
)

type fakeLLM struct {
	resp      string
	err       error
	gotPrompt string
}

func (f *fakeLLM) GenerateText(_ context.Context, prompt string) (string, error) {
	f.gotPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.resp, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestExtractSentencePairFenced(t *testing.T) {
	raw := "```json\n{\"text_en\":\"Hi.\",\"text_ja\":\"やあ。\"}\n```"

	pair, err := ExtractSentencePair(raw)
	if err != nil {
		t.Fatalf("ExtractSentencePair: %v", err)
	}
	if pair.TextEN != "Hi." || pair.TextJA != "やあ。" {
		t.Fatalf("ExtractSentencePair: got %+v", pair)
	}
}

func TestExtractSentencePairUnfenced(t *testing.T) {
	raw := "  {\"text_en\":\"Hi.\",\"text_ja\":\"やあ。\"}  "

	pair, err := ExtractSentencePair(raw)
	if err != nil {
		t.Fatalf("ExtractSentencePair: %v", err)
	}
	if pair.TextEN != "Hi." || pair.TextJA != "やあ。" {
		t.Fatalf("ExtractSentencePair: got %+v", pair)
	}
}

func TestExtractSentencePairUntaggedFence(t *testing.T) {
	raw := "```\n{\"text_en\":\"Hi.\",\"text_ja\":\"やあ。\"}\n```"

	pair, err := ExtractSentencePair(raw)
	if err != nil {
		t.Fatalf("ExtractSentencePair: %v", err)
	}
	if pair.TextEN != "Hi." {
		t.Fatalf("ExtractSentencePair: got %+v", pair)
	}
}

func TestExtractSentencePairMalformed(t *testing.T) {
	_, err := ExtractSentencePair("not json")

	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *apierr.Error, got %v", err)
	}
	if apiErr.Code != apierr.CodeParse {
		t.Fatalf("want code %s got %s", apierr.CodeParse, apiErr.Code)
	}
	if apiErr.Raw != "not json" {
		t.Fatalf("want raw payload retained, got %q", apiErr.Raw)
	}
}

func TestExtractSentencePairMissingField(t *testing.T) {
	_, err := ExtractSentencePair(`{"text_en":"Hi."}`)

	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != apierr.CodeParse {
		t.Fatalf("want parse error for missing text_ja, got %v", err)
	}
}

func TestBuildPromptEmbedsParameters(t *testing.T) {
	prompt := BuildPrompt(domain.GenerationParameters{
		Difficulty:   domain.DifficultyB2,
		Topic:        "travel",
		GrammarFocus: "passive_voice",
		SentenceType: domain.SentenceTypeInterrogative,
	})

	for _, want := range []string{
		"CEFR level: B2",
		"Topic: travel",
		"Grammar focus: passive voice", // underscores replaced
		"Sentence type: interrogative",
		`"text_en" and "text_ja"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "Grammar focus: passive_voice") {
		t.Fatalf("prompt kept underscored grammar label")
	}
}

func TestGeneratorGenerate(t *testing.T) {
	llm := &fakeLLM{resp: "```json\n{\"text_en\":\"She is a teacher.\",\"text_ja\":\"彼女は先生です。\"}\n```"}
	g := NewGenerator(llm, testLogger(t))

	pair, err := g.Generate(context.Background(), domain.GenerationParameters{
		Difficulty:   domain.DifficultyA1,
		Topic:        "work",
		GrammarFocus: "be_verb",
		SentenceType: domain.SentenceTypeDeclarative,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if pair.TextEN != "She is a teacher." {
		t.Fatalf("Generate: got %+v", pair)
	}
	if !strings.Contains(llm.gotPrompt, "Grammar focus: be verb") {
		t.Fatalf("Generate did not pass a rendered prompt")
	}
}

func TestGeneratorPropagatesUpstreamError(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("boom")}
	g := NewGenerator(llm, testLogger(t))

	if _, err := g.Generate(context.Background(), domain.GenerationParameters{}); err == nil {
		t.Fatalf("Generate: expected error")
	}
}
