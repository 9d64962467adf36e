package generation

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kotonoha/dictation-backend/internal/domain"
	"github.com/kotonoha/dictation-backend/internal/platform/apierr"
)

// SamplerConfig carries the fixed pools the sampler draws from. Built once at
// construction; never mutated afterwards.
type SamplerConfig struct {
	Topics        []string
	Grammar       map[domain.Difficulty][]string
	SentenceTypes []domain.SentenceType
}

func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Topics:        defaultTopics,
		Grammar:       defaultGrammar,
		SentenceTypes: domain.SentenceTypes,
	}
}

var defaultTopics = []string{
	"daily routine", "weather", "food", "travel", "hobbies", "culture", "technology", "nature",
	"health", "education", "sports", "business", "music", "movies", "art", "history",
	"science", "fashion", "environment", "transportation", "shopping", "family", "holidays",
	"emotions", "opinions", "news", "animals", "architecture", "mythology", "philosophy",
	"relationships", "work", "literature", "economics", "politics", "entertainment",
	"religion", "urban life", "rural life", "innovation", "language learning", "technology trends",
	"social media", "gaming", "mental health", "wellness", "fitness", "cooking", "photography",
}

// Each level introduces its own constructs on top of every lower level.
var defaultGrammar = map[domain.Difficulty][]string{
	domain.DifficultyA1: {"be_verb", "present_simple", "plural", "this_that", "there_is", "articles", "personal_pronouns"},
	domain.DifficultyA2: {"past_simple", "present_continuous", "past_continuous", "going_to", "will_future", "can_could", "have_to", "modals_basic", "to_infinitive", "prepositions", "question_words"},
	domain.DifficultyB1: {"present_perfect", "present_perfect_continuous", "comparatives_superlatives", "if_first_conditional", "if_second_conditional", "relative_pronouns", "gerunds", "conjunctions", "phrasal_verbs", "quantifiers"},
	domain.DifficultyB2: {"passive_voice", "past_perfect", "if_third_conditional", "reported_speech", "wish", "causative_verbs", "modal_perfects"},
	domain.DifficultyC1: {"mixed_conditionals", "participle_clauses", "inversion", "subjunctive", "cleft_sentences", "ellipsis"},
}

const (
	normalMean   = 2.0 // scale index of B1
	normalStdDev = 1.0
)

// Sampler selects generation parameters per request. It holds no mutable
// state besides the injected random source.
type Sampler struct {
	cfg SamplerConfig
	rng *rand.Rand
}

// NewSampler builds a sampler; a nil rng gets a time-seeded source. Tests
// inject a deterministic one.
func NewSampler(cfg SamplerConfig, rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Sampler{cfg: cfg, rng: rng}
}

// Difficulty resolves the level for one item. With useNormalDistribution the
// requested level is ignored and a discrete normal draw centered on B1 is
// used instead; otherwise the requested level is returned verbatim.
func (s *Sampler) Difficulty(useNormalDistribution bool, requested domain.Difficulty) (domain.Difficulty, error) {
	if useNormalDistribution {
		return domain.DifficultyFromIndex(s.normalIndex()), nil
	}
	if requested == "" {
		return "", apierr.Validation(fmt.Errorf("either difficulty or useNormalDistribution must be specified"))
	}
	if !requested.Valid() {
		return "", apierr.Validation(fmt.Errorf("unknown difficulty %q", requested))
	}
	return requested, nil
}

// normalIndex draws a standard-normal sample via Box-Muller, shifts it onto
// the 0..4 scale and clamps.
func (s *Sampler) normalIndex() int {
	u1 := s.rng.Float64()
	for u1 == 0 { // log(0) guard
		u1 = s.rng.Float64()
	}
	u2 := s.rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	idx := int(math.Round(z*normalStdDev + normalMean))
	if idx < 0 {
		idx = 0
	}
	if idx > len(domain.Difficulties)-1 {
		idx = len(domain.Difficulties) - 1
	}
	return idx
}

// Topic returns the explicit topic when given, else a uniform pick.
func (s *Sampler) Topic(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s.cfg.Topics[s.rng.Intn(len(s.cfg.Topics))]
}

// GrammarFocus picks uniformly from the cumulative pool of constructs
// available at or below level.
func (s *Sampler) GrammarFocus(level domain.Difficulty) (string, error) {
	pool := s.grammarPool(level)
	if len(pool) == 0 {
		return "", fmt.Errorf("no grammar constructs configured for level %s", level)
	}
	return pool[s.rng.Intn(len(pool))], nil
}

func (s *Sampler) grammarPool(level domain.Difficulty) []string {
	idx := level.Index()
	var pool []string
	for i := 0; i <= idx; i++ {
		pool = append(pool, s.cfg.Grammar[domain.Difficulties[i]]...)
	}
	return pool
}

func (s *Sampler) SentenceType() domain.SentenceType {
	return s.cfg.SentenceTypes[s.rng.Intn(len(s.cfg.SentenceTypes))]
}

// Parameters assembles one full ephemeral parameter set for a generation
// call.
func (s *Sampler) Parameters(useNormalDistribution bool, requested domain.Difficulty, topic string) (domain.GenerationParameters, error) {
	level, err := s.Difficulty(useNormalDistribution, requested)
	if err != nil {
		return domain.GenerationParameters{}, err
	}
	grammar, err := s.GrammarFocus(level)
	if err != nil {
		return domain.GenerationParameters{}, err
	}
	return domain.GenerationParameters{
		Difficulty:   level,
		Topic:        s.Topic(topic),
		GrammarFocus: grammar,
		SentenceType: s.SentenceType(),
	}, nil
}
