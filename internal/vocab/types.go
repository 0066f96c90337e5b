// Package vocab defines learning items, archived sentences and the
// user-scoped repositories that persist them.
package vocab

import (
	"errors"
	"strings"
	"time"
)

// Difficulty is the self-assessed tag on a learning item.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty accepts the three tags case-insensitively. Empty means Medium.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DifficultyMedium, nil
	case "easy":
		return DifficultyEasy, nil
	case "medium":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	default:
		return "", ErrInvalidDifficulty
	}
}

// Word is a learning item owned by exactly one user.
type Word struct {
	ID              int64      `json:"id"`
	Word            string     `json:"word"`
	Meaning         string     `json:"meaning"`
	ExampleSentence string     `json:"example_sentence"`
	Notes           string     `json:"notes"`
	Difficulty      Difficulty `json:"difficulty"`
	Tags            []string   `json:"tags"`
	UserID          int64      `json:"user_id"`
	CreatedAt       time.Time  `json:"created_at"`
	NextReviewDate  *time.Time `json:"next_review_date"`
}

// WordInput carries the user-editable fields of a Word.
type WordInput struct {
	Word            string
	Meaning         string
	ExampleSentence string
	Notes           string
	Difficulty      Difficulty
	Tags            []string
}

// Normalized fills the Medium default and cleans up tags.
func (in WordInput) Normalized() WordInput {
	if in.Difficulty == "" {
		in.Difficulty = DifficultyMedium
	}
	in.Tags = NormalizeTags(in.Tags)
	return in
}

// Sentence is an archived sentence with its AI analysis.
type Sentence struct {
	ID            int64     `json:"id"`
	Text          string    `json:"text"`
	Explanation   string    `json:"explanation"`
	FormalVersion string    `json:"formal_version"`
	CasualVersion string    `json:"casual_version"`
	UserID        int64     `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// MaxPageSize bounds WordQuery.Limit.
const MaxPageSize = 100

// WordQuery narrows a word listing. Search is a case-insensitive substring
// of the word text; an empty Difficulty matches every tag. A zero Limit
// means no limit.
type WordQuery struct {
	Search     string
	Difficulty Difficulty
	Limit      int
	Offset     int
}

// Matches reports whether w passes the query's filters.
func (q WordQuery) Matches(w Word) bool {
	if q.Difficulty != "" && w.Difficulty != q.Difficulty {
		return false
	}
	if q.Search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(w.Word), strings.ToLower(q.Search))
}

// WordPage is one page of a filtered listing. Total counts every match.
type WordPage struct {
	Items []Word
	Total int
}

// SentenceInput carries the user-editable fields of a Sentence.
type SentenceInput struct {
	Text          string
	Explanation   string
	FormalVersion string
	CasualVersion string
}

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidDifficulty = errors.New("difficulty must be Easy, Medium or Hard")
)

// NormalizeTags trims, drops empties and removes duplicates while keeping order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
