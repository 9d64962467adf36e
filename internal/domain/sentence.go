package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Difficulty is the CEFR-like 5-level scale content is generated against.
type Difficulty string

const (
	DifficultyA1 Difficulty = "A1"
	DifficultyA2 Difficulty = "A2"
	DifficultyB1 Difficulty = "B1"
	DifficultyB2 Difficulty = "B2"
	DifficultyC1 Difficulty = "C1"
)

// Difficulties is ordered lowest to highest; index positions drive the
// normal-distribution sampler.
var Difficulties = []Difficulty{DifficultyA1, DifficultyA2, DifficultyB1, DifficultyB2, DifficultyC1}

func (d Difficulty) Valid() bool {
	for _, v := range Difficulties {
		if v == d {
			return true
		}
	}
	return false
}

// Index returns the 0-based position on the scale, -1 for unknown levels.
func (d Difficulty) Index() int {
	for i, v := range Difficulties {
		if v == d {
			return i
		}
	}
	return -1
}

func DifficultyFromIndex(i int) Difficulty {
	if i < 0 {
		i = 0
	}
	if i >= len(Difficulties) {
		i = len(Difficulties) - 1
	}
	return Difficulties[i]
}

type SentenceType string

const (
	SentenceTypeDeclarative   SentenceType = "declarative"
	SentenceTypeInterrogative SentenceType = "interrogative"
	SentenceTypeImperative    SentenceType = "imperative"
	SentenceTypeExclamatory   SentenceType = "exclamatory"
)

var SentenceTypes = []SentenceType{
	SentenceTypeDeclarative,
	SentenceTypeInterrogative,
	SentenceTypeImperative,
	SentenceTypeExclamatory,
}

// Sentence is the persisted dictation item. text_en and text_ja are written
// together on insert and never partially populated.
type Sentence struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TextEN     string     `gorm:"column:text_en;not null" json:"text_en"`
	TextJA     string     `gorm:"column:text_ja;not null" json:"text_ja"`
	Difficulty Difficulty `gorm:"not null;index" json:"difficulty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Sentence) TableName() string { return "sentence" }

func (s *Sentence) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// SentencePair is a validated model output before persistence.
type SentencePair struct {
	TextEN string `json:"text_en"`
	TextJA string `json:"text_ja"`
}

// GenerationParameters is ephemeral per-call input for the generator; it is
// never persisted.
type GenerationParameters struct {
	Difficulty   Difficulty
	Topic        string
	GrammarFocus string
	SentenceType SentenceType
}

// VoiceProfile identifies a TTS voice. GenderHint is informational only.
type VoiceProfile struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
	GenderHint   string `json:"-"`
}
