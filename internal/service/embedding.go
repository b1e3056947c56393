package service

import (
	"context"
	"fmt"

	"github.com/infra-rca/backend/internal/model"
)

type EmbeddingRepo interface {
	InsertEmbedding(ctx context.Context, incidentID, summary, model string, vector []float32) (int64, error)
	GetLatestEmbedding(ctx context.Context, incidentID string) ([]float32, error)
	SearchSimilarIncidents(ctx context.Context, incidentID string, vector []float32, limit int) ([]model.SimilarIncident, error)
}

type EmbeddingClient interface {
	EmbedText(ctx context.Context, text string) ([]float32, string, error)
}

type EmbeddingService struct {
	repo   EmbeddingRepo
	client EmbeddingClient
}

func NewEmbeddingService(repo EmbeddingRepo, client EmbeddingClient) *EmbeddingService {
	return &EmbeddingService{repo: repo, client: client}
}

// CreateEmbedding - RCA 요약을 임베딩해서 저장 (유사 Incident 검색 소스)
func (s *EmbeddingService) CreateEmbedding(ctx context.Context, incidentID, summary string) (int64, string, error) {
	if incidentID == "" || summary == "" {
		return 0, "", fmt.Errorf("incident_id and incident_summary are required")
	}
	vector, embedModel, err := s.client.EmbedText(ctx, summary)
	if err != nil {
		return 0, embedModel, err
	}
	id, err := s.repo.InsertEmbedding(ctx, incidentID, summary, embedModel, vector)
	return id, embedModel, err
}

// FindSimilarIncidents - 저장된 임베딩 기준 코사인 거리 상위 limit건
func (s *EmbeddingService) FindSimilarIncidents(ctx context.Context, incidentID string, limit int) ([]model.SimilarIncident, error) {
	if incidentID == "" {
		return nil, fmt.Errorf("incident_id is required")
	}
	if limit <= 0 {
		limit = 5
	}
	vector, err := s.repo.GetLatestEmbedding(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("no embedding stored for incident %s: %w", incidentID, err)
	}
	return s.repo.SearchSimilarIncidents(ctx, incidentID, vector, limit)
}
