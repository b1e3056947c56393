package db

import (
	"context"

	"github.com/infra-rca/backend/internal/model"
	"github.com/pgvector/pgvector-go"
)

// EnsureEmbeddingSchema - embeddings 테이블 생성 (pgvector 확장 필요)
func (db *Postgres) EnsureEmbeddingSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`
		CREATE TABLE IF NOT EXISTS embeddings (
			id BIGSERIAL PRIMARY KEY,
			incident_id TEXT NOT NULL,
			incident_summary TEXT NOT NULL,
			embedding vector(768),
			model TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS embeddings_incident_id_idx ON embeddings(incident_id)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) InsertEmbedding(ctx context.Context, incidentID, summary, model string, vector []float32) (int64, error) {
	query := `
		INSERT INTO embeddings (incident_id, incident_summary, embedding, model)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := db.Pool.QueryRow(ctx, query, incidentID, summary, pgvector.NewVector(vector), model).Scan(&id)
	return id, err
}

// GetLatestEmbedding - 해당 Incident의 가장 최근 임베딩 벡터
func (db *Postgres) GetLatestEmbedding(ctx context.Context, incidentID string) ([]float32, error) {
	query := `
		SELECT embedding
		FROM embeddings
		WHERE incident_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var vec pgvector.Vector
	if err := db.Pool.QueryRow(ctx, query, incidentID).Scan(&vec); err != nil {
		return nil, err
	}
	return vec.Slice(), nil
}

// SearchSimilarIncidents - 코사인 거리 기반 유사 Incident 검색 (자기 자신 제외)
func (db *Postgres) SearchSimilarIncidents(ctx context.Context, incidentID string, vector []float32, limit int) ([]model.SimilarIncident, error) {
	query := `
		SELECT incident_id, incident_summary, embedding <=> $1 AS distance
		FROM embeddings
		WHERE incident_id != $2
		ORDER BY distance ASC
		LIMIT $3
	`
	rows, err := db.Pool.Query(ctx, query, pgvector.NewVector(vector), incidentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.SimilarIncident
	for rows.Next() {
		var s model.SimilarIncident
		if err := rows.Scan(&s.IncidentID, &s.Summary, &s.Distance); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	if list == nil {
		list = []model.SimilarIncident{}
	}
	return list, rows.Err()
}
