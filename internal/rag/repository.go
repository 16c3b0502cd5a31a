package rag

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Repository stores passages with their embeddings and serves similarity
// search for retrieval.
type Repository interface {
	InsertPassage(ctx context.Context, p *Passage, embedding []float32) (int64, error)
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]Passage, error)
}

// PgRepository implements Repository on Postgres with pgvector.
type PgRepository struct {
	db *pgxpool.Pool
}

func NewPgRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

func (r *PgRepository) InsertPassage(ctx context.Context, p *Passage, embedding []float32) (int64, error) {
	var id int64

	err := r.db.QueryRow(ctx, `
		INSERT INTO passage (content, source, page, record_index)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`,
		p.Content,
		p.Source,
		p.Page,
		p.RecordIndex,
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	if embedding != nil {
		vec := pgvector.NewVector(embedding)
		_, err = r.db.Exec(ctx, `
			INSERT INTO passage_embedding (passage_id, embedding)
			VALUES ($1, $2)
		`, id, vec)
		if err != nil {
			return 0, err
		}
	}

	return id, nil
}

// SearchSimilar returns the passages closest to the query embedding.
func (r *PgRepository) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]Passage, error) {
	if limit <= 0 {
		limit = 5
	}

	vec := pgvector.NewVector(embedding)

	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.content, p.source, p.page, p.record_index, p.created_at
		FROM passage p
		JOIN passage_embedding e ON p.id = e.passage_id
		ORDER BY e.embedding <-> $1
		LIMIT $2
	`, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passages []Passage
	for rows.Next() {
		var p Passage
		if err := rows.Scan(
			&p.ID,
			&p.Content,
			&p.Source,
			&p.Page,
			&p.RecordIndex,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		passages = append(passages, p)
	}

	return passages, rows.Err()
}
