package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/infra-rca/backend/internal/db"
	"github.com/infra-rca/backend/internal/model"
)

// RcaService - Incident/리포트 조회 전용 (쓰기 경로는 IncidentService)
type RcaService struct {
	repo       *db.Postgres
	embeddings *EmbeddingService // nil이면 유사 Incident 생략
}

func NewRcaService(repo *db.Postgres, embeddings *EmbeddingService) *RcaService {
	return &RcaService{repo: repo, embeddings: embeddings}
}

func (s *RcaService) GetIncidentList(ctx context.Context) ([]model.IncidentListResponse, error) {
	return s.repo.GetIncidentList(ctx)
}

// GetIncidentDetail - Incident + 멤버 알림 + 리포트 + 유사 Incident 조합
func (s *RcaService) GetIncidentDetail(ctx context.Context, id string) (*model.IncidentDetailResponse, error) {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, ErrIncidentNotFound
	}

	alerts, err := s.repo.GetAlertsByIncidentID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &model.IncidentDetailResponse{
		Incident: *incident,
		Alerts:   alerts,
	}

	if report, err := s.repo.GetReportByIncidentID(ctx, id); err == nil {
		detail.Report = report
	} else if !db.IsNoRows(err) {
		return nil, err
	}

	if s.embeddings != nil && detail.Report != nil && detail.Report.Status == model.ReportComplete {
		if similar, err := s.embeddings.FindSimilarIncidents(ctx, id, 5); err == nil {
			if raw, err := json.Marshal(similar); err == nil {
				detail.SimilarIncidents = raw
			}
		} else {
			log.Printf("Similar incident lookup failed for %s: %v", id, err)
		}
	}
	return detail, nil
}

// FindSimilar - 임베딩 기반 유사 Incident 검색
func (s *RcaService) FindSimilar(ctx context.Context, incidentID string, limit int) ([]model.SimilarIncident, error) {
	if s.embeddings == nil {
		return []model.SimilarIncident{}, nil
	}
	return s.embeddings.FindSimilarIncidents(ctx, incidentID, limit)
}

// GetReport - Incident의 RCA 리포트 조회 (없으면 ErrIncidentNotFound)
func (s *RcaService) GetReport(ctx context.Context, incidentID string) (*model.RCAReport, error) {
	report, err := s.repo.GetReportByIncidentID(ctx, incidentID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrIncidentNotFound
		}
		return nil, err
	}
	return report, nil
}
