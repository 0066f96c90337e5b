package pg

import (
	"context"
	"database/sql"
	"errors"

	"one4allvocab.org/internal/vocab"
)

const sentenceColumns = `id, text, explanation, formal_version, casual_version, user_id, created_at`

func scanSentence(row rowScanner) (vocab.Sentence, error) {
	var st vocab.Sentence
	err := row.Scan(&st.ID, &st.Text, &st.Explanation, &st.FormalVersion, &st.CasualVersion, &st.UserID, &st.CreatedAt)
	return st, err
}

func (s *Store) ListSentences(ctx context.Context, userID int64) ([]vocab.Sentence, error) {
	ctx, span := startSpan(ctx, "ListSentences", userID)
	defer span.End()
	rows, err := s.db.QueryContext(ctx,
		`select `+sentenceColumns+` from sentences where user_id = $1 order by created_at desc, id desc`, userID)
	if err != nil {
		return nil, queryFailed(span, "list sentences", userID, err)
	}
	defer rows.Close()

	var out []vocab.Sentence
	for rows.Next() {
		st, err := scanSentence(rows)
		if err != nil {
			return nil, queryFailed(span, "scan sentence", userID, err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(span, "list sentences", userID, err)
	}
	return out, nil
}

func (s *Store) GetSentence(ctx context.Context, userID, id int64) (vocab.Sentence, error) {
	ctx, span := startSpan(ctx, "GetSentence", userID)
	defer span.End()
	st, err := scanSentence(s.db.QueryRowContext(ctx,
		`select `+sentenceColumns+` from sentences where id = $1 and user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return vocab.Sentence{}, vocab.ErrNotFound
	}
	if err != nil {
		return vocab.Sentence{}, queryFailed(span, "get sentence", userID, err)
	}
	return st, nil
}

func (s *Store) CreateSentence(ctx context.Context, userID int64, in vocab.SentenceInput) (vocab.Sentence, error) {
	ctx, span := startSpan(ctx, "CreateSentence", userID)
	defer span.End()
	st := vocab.Sentence{
		Text:          in.Text,
		Explanation:   in.Explanation,
		FormalVersion: in.FormalVersion,
		CasualVersion: in.CasualVersion,
		UserID:        userID,
	}
	err := s.db.QueryRowContext(ctx, `
		insert into sentences (text, explanation, formal_version, casual_version, user_id)
		values ($1, $2, $3, $4, $5)
		returning id, created_at
	`, in.Text, in.Explanation, in.FormalVersion, in.CasualVersion, userID).Scan(&st.ID, &st.CreatedAt)
	if err != nil {
		return vocab.Sentence{}, queryFailed(span, "insert sentence", userID, err)
	}
	return st, nil
}

func (s *Store) UpdateSentence(ctx context.Context, userID, id int64, in vocab.SentenceInput) error {
	ctx, span := startSpan(ctx, "UpdateSentence", userID)
	defer span.End()
	res, err := s.db.ExecContext(ctx, `
		update sentences
		set text = $1, explanation = $2, formal_version = $3, casual_version = $4
		where id = $5 and user_id = $6
	`, in.Text, in.Explanation, in.FormalVersion, in.CasualVersion, id, userID)
	if err != nil {
		return queryFailed(span, "update sentence", userID, err)
	}
	return expectOne(res, span, "update sentence", userID)
}

func (s *Store) DeleteSentence(ctx context.Context, userID, id int64) error {
	ctx, span := startSpan(ctx, "DeleteSentence", userID)
	defer span.End()
	res, err := s.db.ExecContext(ctx, `delete from sentences where id = $1 and user_id = $2`, id, userID)
	if err != nil {
		return queryFailed(span, "delete sentence", userID, err)
	}
	return expectOne(res, span, "delete sentence", userID)
}
