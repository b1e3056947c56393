package db

import (
	"context"
	"encoding/json"

	"github.com/infra-rca/backend/internal/model"
)

// EnsureReportSchema - rca_reports 테이블 생성 (Incident 당 1건)
func (db *Postgres) EnsureReportSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS rca_reports (
			report_id TEXT PRIMARY KEY,
			incident_id TEXT NOT NULL UNIQUE,
			root_cause TEXT NOT NULL DEFAULT '',
			confidence_score INT NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT '',
			timeline JSONB NOT NULL DEFAULT '[]',
			evidence JSONB NOT NULL DEFAULT '{}',
			remediation_steps JSONB NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'pending',
			error_message TEXT,
			metadata JSONB,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS rca_reports_status_idx ON rca_reports(status)`,
		`CREATE INDEX IF NOT EXISTS rca_reports_completed_at_idx ON rca_reports(completed_at)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// SaveReport - 분석 결과 저장
//
// 재분석 시에는 같은 incident_id의 기존 리포트를 덮어씀
// (확정된 리포트는 명시적 재분석 외에는 변경되지 않음)
func (db *Postgres) SaveReport(ctx context.Context, report *model.RCAReport) error {
	timeline, evidence, steps, err := report.MarshalEvidence()
	if err != nil {
		return err
	}

	var metadata []byte
	if report.Metadata != nil {
		if metadata, err = json.Marshal(report.Metadata); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO rca_reports (
			report_id, incident_id, root_cause, confidence_score, summary,
			timeline, evidence, remediation_steps, status, error_message,
			metadata, started_at, completed_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		ON CONFLICT (incident_id) DO UPDATE SET
			report_id = EXCLUDED.report_id,
			root_cause = EXCLUDED.root_cause,
			confidence_score = EXCLUDED.confidence_score,
			summary = EXCLUDED.summary,
			timeline = EXCLUDED.timeline,
			evidence = EXCLUDED.evidence,
			remediation_steps = EXCLUDED.remediation_steps,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			metadata = EXCLUDED.metadata,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
	`
	_, err = db.Pool.Exec(ctx, query,
		report.ReportID,
		report.IncidentID,
		report.RootCause,
		report.ConfidenceScore,
		report.Summary,
		timeline,
		evidence,
		steps,
		string(report.Status),
		report.ErrorMessage,
		metadata,
		report.StartedAt,
		report.CompletedAt,
	)
	return err
}

// GetReportByIncidentID - Incident의 리포트 조회
func (db *Postgres) GetReportByIncidentID(ctx context.Context, incidentID string) (*model.RCAReport, error) {
	query := `
		SELECT report_id, incident_id, root_cause, confidence_score, summary,
		       timeline, evidence, remediation_steps, status, error_message,
		       metadata, started_at, completed_at
		FROM rca_reports
		WHERE incident_id = $1
	`
	var r model.RCAReport
	var timeline, evidence, steps []byte
	var metadata *[]byte
	err := db.Pool.QueryRow(ctx, query, incidentID).Scan(
		&r.ReportID, &r.IncidentID, &r.RootCause, &r.ConfidenceScore, &r.Summary,
		&timeline, &evidence, &steps, &r.Status, &r.ErrorMessage,
		&metadata, &r.StartedAt, &r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(timeline, &r.Timeline); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(evidence, &r.Evidence); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &r.RemediationSteps); err != nil {
		return nil, err
	}
	if metadata != nil && len(*metadata) > 0 {
		if err := json.Unmarshal(*metadata, &r.Metadata); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
