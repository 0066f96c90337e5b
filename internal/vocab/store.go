package vocab

import (
	"context"
	"time"
)

// WordStore persists learning items. Every method is scoped by the owning
// user id; a row owned by someone else behaves exactly like a missing row.
type WordStore interface {
	ListWords(ctx context.Context, userID int64) ([]Word, error)
	// SearchWords filters and pages in ListWords order.
	SearchWords(ctx context.Context, userID int64, q WordQuery) (WordPage, error)
	GetWord(ctx context.Context, userID, id int64) (Word, error)
	CreateWord(ctx context.Context, userID int64, in WordInput) (Word, error)
	UpdateWord(ctx context.Context, userID, id int64, in WordInput) error
	// SetNextReview rewrites next_review_date only.
	SetNextReview(ctx context.Context, userID, id int64, at time.Time) error
	DeleteWord(ctx context.Context, userID, id int64) error
}

// SentenceStore persists archived sentences with the same ownership rules as WordStore.
type SentenceStore interface {
	ListSentences(ctx context.Context, userID int64) ([]Sentence, error)
	GetSentence(ctx context.Context, userID, id int64) (Sentence, error)
	CreateSentence(ctx context.Context, userID int64, in SentenceInput) (Sentence, error)
	UpdateSentence(ctx context.Context, userID, id int64, in SentenceInput) error
	DeleteSentence(ctx context.Context, userID, id int64) error
}

// Store bundles both repositories.
type Store interface {
	WordStore
	SentenceStore
}
