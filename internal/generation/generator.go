package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kotonoha/dictation-backend/internal/domain"
	"github.com/kotonoha/dictation-backend/internal/platform/apierr"
	"github.com/kotonoha/dictation-backend/internal/platform/logger"
)

// TextGenerator is the outbound language-model call the generator depends on.
// The Gemini client implements it; tests fake it.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Generator turns sampled parameters into a validated EN/JA sentence pair.
// It persists nothing.
type Generator struct {
	llm TextGenerator
	log *logger.Logger
}

func NewGenerator(llm TextGenerator, log *logger.Logger) *Generator {
	return &Generator{llm: llm, log: log.With("service", "SentenceGenerator")}
}

func (g *Generator) Generate(ctx context.Context, params domain.GenerationParameters) (domain.SentencePair, error) {
	raw, err := g.llm.GenerateText(ctx, BuildPrompt(params))
	if err != nil {
		return domain.SentencePair{}, err
	}
	pair, err := ExtractSentencePair(raw)
	if err != nil {
		g.log.Debug("Model output failed extraction", "raw", raw)
		return domain.SentencePair{}, err
	}
	return pair, nil
}

// BuildPrompt renders the instruction prompt for one sentence. Underscores in
// the grammar label are replaced with spaces for readability.
func BuildPrompt(params domain.GenerationParameters) string {
	return fmt.Sprintf(`Generate a short English sentence for dictation practice and its Japanese translation.

Requirements:
- CEFR level: %s
- Topic: %s
- Grammar focus: %s
- Sentence type: %s

Grammar examples:
- be_verb: "She is a teacher."
- present_simple: "I work every day."
- past_simple: "They visited Japan last year."
- present_perfect: "I have lived here for 5 years."
- if_first_conditional: "If it rains, I will stay home."
- passive_voice: "The book was written by her."
- articles: "I saw a cat. The cat was black."
- personal_pronouns: "He gave it to her."
- past_continuous: "I was reading when you called."
- will_future: "I will help you tomorrow."
- modals_basic: "You should study more."
- to_infinitive: "I want to learn English."
- prepositions: "The book is on the table."
- question_words: "Where do you live?"
- present_perfect_continuous: "I have been waiting for an hour."
- gerunds: "I enjoy swimming."
- conjunctions: "I stayed home because it was raining."
- phrasal_verbs: "Please turn off the lights."
- quantifiers: "I have some questions."
- causative_verbs: "I had my hair cut."
- modal_perfects: "You should have called me."
- ellipsis: "Want some coffee?" (Do you want some coffee?)

Sentence type examples:
- declarative: State a fact
- interrogative: Ask a question
- imperative: Give a command or request
- exclamatory: Express strong emotion with "What" or "How"

The output MUST be a JSON object with two keys: "text_en" and "text_ja".
Example: {"text_en": "Hello, world.", "text_ja": "こんにちは、世界。"}`,
		params.Difficulty,
		params.Topic,
		strings.ReplaceAll(params.GrammarFocus, "_", " "),
		params.SentenceType,
	)
}

var fencedJSONRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// ExtractSentencePair parses model output into the required two-key object.
// A fenced code block is stripped when present; anything that does not yield
// both non-empty fields fails closed as a parse error carrying the raw
// payload.
func ExtractSentencePair(raw string) (domain.SentencePair, error) {
	jsonString := strings.TrimSpace(raw)
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		jsonString = strings.TrimSpace(m[1])
	}

	var pair domain.SentencePair
	if err := json.Unmarshal([]byte(jsonString), &pair); err != nil {
		return domain.SentencePair{}, apierr.Parse(raw, err)
	}
	if pair.TextEN == "" || pair.TextJA == "" {
		return domain.SentencePair{}, apierr.Parse(raw, fmt.Errorf("model output missing text_en or text_ja"))
	}
	return pair, nil
}
