package vocab

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

var _ Store = (*InMemory)(nil)

// InMemory implements Store with in-process concurrency safety.
// It backs tests and store-less development runs.
type InMemory struct {
	mu        sync.RWMutex
	now       func() time.Time
	wordSeq   int64
	sentSeq   int64
	words     map[int64]*Word
	sentences map[int64]*Sentence
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		now:       time.Now,
		words:     make(map[int64]*Word),
		sentences: make(map[int64]*Sentence),
	}
}

// WithClock overrides the time source used for created_at and the initial review date.
func (s *InMemory) WithClock(fn func() time.Time) *InMemory {
	if fn != nil {
		s.now = fn
	}
	return s
}

func (s *InMemory) ListWords(ctx context.Context, userID int64) ([]Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Word
	for _, w := range s.words {
		if w.UserID == userID {
			res = append(res, copyWord(w))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (s *InMemory) SearchWords(ctx context.Context, userID int64, q WordQuery) (WordPage, error) {
	all, err := s.ListWords(ctx, userID)
	if err != nil {
		return WordPage{}, err
	}
	var matched []Word
	for _, w := range all {
		if q.Matches(w) {
			matched = append(matched, w)
		}
	}
	page := WordPage{Total: len(matched)}
	if q.Offset >= len(matched) {
		return page, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	page.Items = matched
	return page, nil
}

func (s *InMemory) GetWord(ctx context.Context, userID, id int64) (Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.words[id]
	if !ok || w.UserID != userID {
		return Word{}, ErrNotFound
	}
	return copyWord(w), nil
}

func (s *InMemory) CreateWord(ctx context.Context, userID int64, in WordInput) (Word, error) {
	in = in.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wordSeq++
	now := s.now().UTC()
	next := now
	w := &Word{
		ID:              s.wordSeq,
		Word:            in.Word,
		Meaning:         in.Meaning,
		ExampleSentence: in.ExampleSentence,
		Notes:           in.Notes,
		Difficulty:      in.Difficulty,
		Tags:            in.Tags,
		UserID:          userID,
		CreatedAt:       now,
		NextReviewDate:  &next,
	}
	s.words[w.ID] = w
	return copyWord(w), nil
}

func (s *InMemory) UpdateWord(ctx context.Context, userID, id int64, in WordInput) error {
	in = in.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.words[id]
	if !ok || w.UserID != userID {
		return ErrNotFound
	}
	w.Word = in.Word
	w.Meaning = in.Meaning
	w.ExampleSentence = in.ExampleSentence
	w.Notes = in.Notes
	w.Difficulty = in.Difficulty
	w.Tags = in.Tags
	return nil
}

func (s *InMemory) SetNextReview(ctx context.Context, userID, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.words[id]
	if !ok || w.UserID != userID {
		return ErrNotFound
	}
	at = at.UTC()
	w.NextReviewDate = &at
	return nil
}

func (s *InMemory) DeleteWord(ctx context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.words[id]
	if !ok || w.UserID != userID {
		return ErrNotFound
	}
	delete(s.words, id)
	return nil
}

func (s *InMemory) ListSentences(ctx context.Context, userID int64) ([]Sentence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Sentence
	for _, st := range s.sentences {
		if st.UserID == userID {
			res = append(res, *st)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (s *InMemory) GetSentence(ctx context.Context, userID, id int64) (Sentence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sentences[id]
	if !ok || st.UserID != userID {
		return Sentence{}, ErrNotFound
	}
	return *st, nil
}

func (s *InMemory) CreateSentence(ctx context.Context, userID int64, in SentenceInput) (Sentence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentSeq++
	st := &Sentence{
		ID:            s.sentSeq,
		Text:          in.Text,
		Explanation:   in.Explanation,
		FormalVersion: in.FormalVersion,
		CasualVersion: in.CasualVersion,
		UserID:        userID,
		CreatedAt:     s.now().UTC(),
	}
	s.sentences[st.ID] = st
	return *st, nil
}

func (s *InMemory) UpdateSentence(ctx context.Context, userID, id int64, in SentenceInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sentences[id]
	if !ok || st.UserID != userID {
		return ErrNotFound
	}
	st.Text = in.Text
	st.Explanation = in.Explanation
	st.FormalVersion = in.FormalVersion
	st.CasualVersion = in.CasualVersion
	return nil
}

func (s *InMemory) DeleteSentence(ctx context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sentences[id]
	if !ok || st.UserID != userID {
		return ErrNotFound
	}
	delete(s.sentences, id)
	return nil
}

func copyWord(w *Word) Word {
	out := *w
	out.Tags = slices.Clone(w.Tags)
	if w.NextReviewDate != nil {
		t := *w.NextReviewDate
		out.NextReviewDate = &t
	}
	return out
}
