package sentence

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kotonoha/dictation-backend/internal/domain"
	pkgerrors "github.com/kotonoha/dictation-backend/internal/pkg/errors"
	"github.com/kotonoha/dictation-backend/internal/platform/logger"
)

// Repo persists generated sentences. Missing rows surface as
// pkgerrors.ErrNotFound, never as a plain query error.
type Repo interface {
	Create(ctx context.Context, tx *gorm.DB, textEN, textJA string, difficulty domain.Difficulty) (*domain.Sentence, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Sentence, error)
	// GetRandomByDifficulty samples uniformly with a count followed by a
	// random-offset fetch. Two round trips, correct distribution.
	GetRandomByDifficulty(ctx context.Context, tx *gorm.DB, difficulty domain.Difficulty) (*domain.Sentence, error)
	// GetRandomByDifficultyFast delegates sampling to the
	// get_random_sentence_by_difficulty SQL function in one round trip,
	// falling back to count/offset only when that function is missing.
	GetRandomByDifficultyFast(ctx context.Context, tx *gorm.DB, difficulty domain.Difficulty) (*domain.Sentence, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
	rng *rand.Rand
}

// NewRepo builds a sentence repo. A nil rng gets a time-seeded source; tests
// inject a deterministic one for the offset draw.
func NewRepo(db *gorm.DB, baseLog *logger.Logger, rng *rand.Rand) Repo {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &repo{db: db, log: baseLog.With("repo", "SentenceRepo"), rng: rng}
}

func (r *repo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *repo) Create(ctx context.Context, tx *gorm.DB, textEN, textJA string, difficulty domain.Difficulty) (*domain.Sentence, error) {
	s := &domain.Sentence{
		TextEN:     textEN,
		TextJA:     textJA,
		Difficulty: difficulty,
	}
	if err := r.conn(tx).WithContext(ctx).Create(s).Error; err != nil {
		return nil, fmt.Errorf("insert sentence: %w", err)
	}
	return s, nil
}

func (r *repo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Sentence, error) {
	var s domain.Sentence
	err := r.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) GetRandomByDifficulty(ctx context.Context, tx *gorm.DB, difficulty domain.Difficulty) (*domain.Sentence, error) {
	conn := r.conn(tx).WithContext(ctx)

	var count int64
	if err := conn.Model(&domain.Sentence{}).
		Where("difficulty = ?", difficulty).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, pkgerrors.ErrNotFound
	}

	offset := r.rng.Intn(int(count))

	var s domain.Sentence
	err := conn.
		Where("difficulty = ?", difficulty).
		Order("id").
		Offset(offset).
		Limit(1).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Row deleted between the two round trips.
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) GetRandomByDifficultyFast(ctx context.Context, tx *gorm.DB, difficulty domain.Difficulty) (*domain.Sentence, error) {
	conn := r.conn(tx).WithContext(ctx)

	var rows []domain.Sentence
	err := conn.
		Raw("SELECT * FROM get_random_sentence_by_difficulty(?)", string(difficulty)).
		Scan(&rows).Error
	if err != nil {
		if !isMissingFunctionErr(err) {
			return nil, err
		}
		r.log.Warn("Random-sentence RPC unavailable, falling back to count/offset", "error", err.Error())
		return r.GetRandomByDifficulty(ctx, tx, difficulty)
	}
	if len(rows) == 0 {
		return nil, pkgerrors.ErrNotFound
	}
	return &rows[0], nil
}

// isMissingFunctionErr matches only the "function not found" error class so
// the fallback never masks unrelated failures. Postgres reports SQLSTATE
// 42883; sqlite reports the missing routine as "no such table" / "no such
// function", so the routine name is required in that case.
func isMissingFunctionErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "42883") {
		return true
	}
	if !strings.Contains(msg, "get_random_sentence_by_difficulty") {
		return false
	}
	return strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such function") ||
		strings.Contains(msg, "no such table")
}
