package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"one4allvocab.org/internal/vocab"
)

const wordColumns = `
	w.id, w.word, w.meaning, w.example_sentence, w.notes, w.difficulty,
	w.user_id, w.created_at, w.next_review_date,
	array(select t.tag from word_tags t where t.word_id = w.id order by t.position)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWord(row rowScanner, types *pgtype.Map) (vocab.Word, error) {
	var (
		w    vocab.Word
		diff string
		next sql.NullTime
		tags []string
	)
	if err := row.Scan(&w.ID, &w.Word, &w.Meaning, &w.ExampleSentence, &w.Notes, &diff,
		&w.UserID, &w.CreatedAt, &next, types.SQLScanner(&tags)); err != nil {
		return vocab.Word{}, err
	}
	w.Difficulty = vocab.Difficulty(diff)
	if next.Valid {
		t := next.Time.UTC()
		w.NextReviewDate = &t
	}
	if len(tags) > 0 {
		w.Tags = tags
	}
	return w, nil
}

func (s *Store) ListWords(ctx context.Context, userID int64) ([]vocab.Word, error) {
	ctx, span := startSpan(ctx, "ListWords", userID)
	defer span.End()
	rows, err := s.db.QueryContext(ctx,
		`select `+wordColumns+` from words w where w.user_id = $1 order by w.created_at desc, w.id desc`, userID)
	if err != nil {
		return nil, queryFailed(span, "list words", userID, err)
	}
	defer rows.Close()

	types := pgtype.NewMap()
	var out []vocab.Word
	for rows.Next() {
		w, err := scanWord(rows, types)
		if err != nil {
			return nil, queryFailed(span, "scan word", userID, err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(span, "list words", userID, err)
	}
	return out, nil
}

const wordFilter = `
	w.user_id = $1
	and ($2::text = '' or strpos(lower(w.word), lower($2::text)) > 0)
	and ($3::text = '' or w.difficulty = $3::text)`

// SearchWords counts the matches first, then reads one page. A NULL limit
// is the same as no limit in Postgres.
func (s *Store) SearchWords(ctx context.Context, userID int64, q vocab.WordQuery) (vocab.WordPage, error) {
	ctx, span := startSpan(ctx, "SearchWords", userID)
	defer span.End()

	var page vocab.WordPage
	if err := s.db.QueryRowContext(ctx, `select count(*) from words w where `+wordFilter,
		userID, q.Search, string(q.Difficulty)).Scan(&page.Total); err != nil {
		return vocab.WordPage{}, queryFailed(span, "count words", userID, err)
	}
	if page.Total == 0 || q.Offset >= page.Total {
		return page, nil
	}

	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+wordColumns+` from words w where `+wordFilter+`
		order by w.created_at desc, w.id desc limit $4 offset $5`,
		userID, q.Search, string(q.Difficulty), limit, q.Offset)
	if err != nil {
		return vocab.WordPage{}, queryFailed(span, "search words", userID, err)
	}
	defer rows.Close()

	types := pgtype.NewMap()
	for rows.Next() {
		w, err := scanWord(rows, types)
		if err != nil {
			return vocab.WordPage{}, queryFailed(span, "scan word", userID, err)
		}
		page.Items = append(page.Items, w)
	}
	if err := rows.Err(); err != nil {
		return vocab.WordPage{}, queryFailed(span, "search words", userID, err)
	}
	return page, nil
}

func (s *Store) GetWord(ctx context.Context, userID, id int64) (vocab.Word, error) {
	ctx, span := startSpan(ctx, "GetWord", userID)
	defer span.End()
	row := s.db.QueryRowContext(ctx,
		`select `+wordColumns+` from words w where w.id = $1 and w.user_id = $2`, id, userID)
	w, err := scanWord(row, pgtype.NewMap())
	if errors.Is(err, sql.ErrNoRows) {
		return vocab.Word{}, vocab.ErrNotFound
	}
	if err != nil {
		return vocab.Word{}, queryFailed(span, "get word", userID, err)
	}
	return w, nil
}

// CreateWord makes the new word due immediately.
func (s *Store) CreateWord(ctx context.Context, userID int64, in vocab.WordInput) (vocab.Word, error) {
	ctx, span := startSpan(ctx, "CreateWord", userID)
	defer span.End()
	in = in.Normalized()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vocab.Word{}, queryFailed(span, "begin", userID, err)
	}
	defer func() { _ = tx.Rollback() }()

	w := vocab.Word{
		Word:            in.Word,
		Meaning:         in.Meaning,
		ExampleSentence: in.ExampleSentence,
		Notes:           in.Notes,
		Difficulty:      in.Difficulty,
		Tags:            in.Tags,
		UserID:          userID,
	}
	var next time.Time
	err = tx.QueryRowContext(ctx, `
		insert into words (word, meaning, example_sentence, notes, difficulty, user_id, next_review_date)
		values ($1, $2, $3, $4, $5, $6, now())
		returning id, created_at, next_review_date
	`, in.Word, in.Meaning, in.ExampleSentence, in.Notes, string(in.Difficulty), userID).
		Scan(&w.ID, &w.CreatedAt, &next)
	if err != nil {
		return vocab.Word{}, queryFailed(span, "insert word", userID, err)
	}
	if err := insertTags(ctx, tx, w.ID, in.Tags); err != nil {
		return vocab.Word{}, queryFailed(span, "insert tags", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return vocab.Word{}, queryFailed(span, "commit", userID, err)
	}
	next = next.UTC()
	w.NextReviewDate = &next
	return w, nil
}

// UpdateWord rewrites every editable field and replaces the tag set.
// next_review_date is left alone.
func (s *Store) UpdateWord(ctx context.Context, userID, id int64, in vocab.WordInput) error {
	ctx, span := startSpan(ctx, "UpdateWord", userID)
	defer span.End()
	in = in.Normalized()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return queryFailed(span, "begin", userID, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update words
		set word = $1, meaning = $2, example_sentence = $3, notes = $4, difficulty = $5
		where id = $6 and user_id = $7
	`, in.Word, in.Meaning, in.ExampleSentence, in.Notes, string(in.Difficulty), id, userID)
	if err != nil {
		return queryFailed(span, "update word", userID, err)
	}
	if err := expectOne(res, span, "update word", userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from word_tags where word_id = $1`, id); err != nil {
		return queryFailed(span, "clear tags", userID, err)
	}
	if err := insertTags(ctx, tx, id, in.Tags); err != nil {
		return queryFailed(span, "insert tags", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return queryFailed(span, "commit", userID, err)
	}
	return nil
}

func (s *Store) SetNextReview(ctx context.Context, userID, id int64, at time.Time) error {
	ctx, span := startSpan(ctx, "SetNextReview", userID)
	defer span.End()
	res, err := s.db.ExecContext(ctx,
		`update words set next_review_date = $1 where id = $2 and user_id = $3`, at.UTC(), id, userID)
	if err != nil {
		return queryFailed(span, "set next review", userID, err)
	}
	return expectOne(res, span, "set next review", userID)
}

// DeleteWord removes the tag rows and then the word in one transaction.
func (s *Store) DeleteWord(ctx context.Context, userID, id int64) error {
	ctx, span := startSpan(ctx, "DeleteWord", userID)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return queryFailed(span, "begin", userID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		delete from word_tags
		where word_id = $1 and exists (select 1 from words where id = $1 and user_id = $2)
	`, id, userID); err != nil {
		return queryFailed(span, "delete tags", userID, err)
	}
	res, err := tx.ExecContext(ctx, `delete from words where id = $1 and user_id = $2`, id, userID)
	if err != nil {
		return queryFailed(span, "delete word", userID, err)
	}
	if err := expectOne(res, span, "delete word", userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return queryFailed(span, "commit", userID, err)
	}
	return nil
}

func insertTags(ctx context.Context, tx *sql.Tx, wordID int64, tags []string) error {
	for i, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`insert into word_tags (word_id, position, tag) values ($1, $2, $3)`, wordID, i, tag); err != nil {
			return err
		}
	}
	return nil
}
