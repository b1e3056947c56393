package db

import (
	"context"
	"fmt"
	"time"

	"github.com/infra-rca/backend/internal/model"
)

// EnsureIncidentSchema - incidents 테이블 생성
func (db *Postgres) EnsureIncidentSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS incidents (
			incident_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			severity TEXT NOT NULL DEFAULT 'warning',
			primary_alert_fingerprint TEXT,
			correlation_reason TEXT NOT NULL DEFAULT '',
			affected_services TEXT[] NOT NULL DEFAULT '{}',
			affected_labels JSONB NOT NULL DEFAULT '{}',
			started_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ,
			rca_completed_at TIMESTAMPTZ,
			slack_thread_ts TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS incidents_status_idx ON incidents(status)`,
		`CREATE INDEX IF NOT EXISTS incidents_started_at_idx ON incidents(started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS incidents_severity_idx ON incidents(severity)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// CreateIncident - 새 Incident 저장
func (db *Postgres) CreateIncident(ctx context.Context, inc *model.Incident) error {
	query := `
		INSERT INTO incidents (
			incident_id, title, status, severity, primary_alert_fingerprint,
			correlation_reason, affected_services, affected_labels, started_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err := db.Pool.Exec(ctx, query,
		inc.IncidentID,
		inc.Title,
		string(inc.Status),
		string(inc.Severity),
		inc.PrimaryAlertFingerprint,
		inc.CorrelationReason,
		inc.AffectedServices,
		inc.AffectedLabels,
		inc.StartedAt,
	)
	return err
}

// UpdateIncident - Incident 전체 갱신 (멤버 추가/대표 알림 재선정 반영)
func (db *Postgres) UpdateIncident(ctx context.Context, inc *model.Incident) error {
	query := `
		UPDATE incidents SET
			title = $2,
			status = $3,
			severity = $4,
			primary_alert_fingerprint = $5,
			correlation_reason = $6,
			affected_services = $7,
			affected_labels = $8,
			resolved_at = $9,
			rca_completed_at = $10,
			updated_at = NOW()
		WHERE incident_id = $1
	`
	tag, err := db.Pool.Exec(ctx, query,
		inc.IncidentID,
		inc.Title,
		string(inc.Status),
		string(inc.Severity),
		inc.PrimaryAlertFingerprint,
		inc.CorrelationReason,
		inc.AffectedServices,
		inc.AffectedLabels,
		inc.ResolvedAt,
		inc.RCACompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no incident found with id: %s", inc.IncidentID)
	}
	return nil
}

// UpdateIncidentStatus - 상태 전이만 반영
func (db *Postgres) UpdateIncidentStatus(ctx context.Context, incidentID string, status model.IncidentStatus, resolvedAt, rcaCompletedAt *time.Time) error {
	query := `
		UPDATE incidents SET
			status = $2,
			resolved_at = COALESCE($3, resolved_at),
			rca_completed_at = COALESCE($4, rca_completed_at),
			updated_at = NOW()
		WHERE incident_id = $1
	`
	tag, err := db.Pool.Exec(ctx, query, incidentID, string(status), resolvedAt, rcaCompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no incident found with id: %s", incidentID)
	}
	return nil
}

// SaveThreadTS - Incident에 Slack thread_ts 저장 (재기동 시 쓰레드 연결 유지)
func (db *Postgres) SaveThreadTS(ctx context.Context, incidentID, threadTS string) error {
	query := `
		UPDATE incidents SET slack_thread_ts = $2, updated_at = NOW()
		WHERE incident_id = $1
	`
	_, err := db.Pool.Exec(ctx, query, incidentID, threadTS)
	return err
}

// LoadThreadTS - Incident의 Slack thread_ts 조회 (없으면 빈 문자열)
func (db *Postgres) LoadThreadTS(ctx context.Context, incidentID string) (string, error) {
	var threadTS string
	err := db.Pool.QueryRow(ctx,
		`SELECT slack_thread_ts FROM incidents WHERE incident_id = $1`,
		incidentID,
	).Scan(&threadTS)
	if err != nil {
		if IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return threadTS, nil
}

// GetIncident - 단건 조회
func (db *Postgres) GetIncident(ctx context.Context, incidentID string) (*model.Incident, error) {
	query := `
		SELECT incident_id, title, status, severity, primary_alert_fingerprint,
		       correlation_reason, affected_services, affected_labels,
		       started_at, resolved_at, rca_completed_at, created_at, updated_at
		FROM incidents
		WHERE incident_id = $1
	`
	var inc model.Incident
	err := db.Pool.QueryRow(ctx, query, incidentID).Scan(
		&inc.IncidentID, &inc.Title, &inc.Status, &inc.Severity,
		&inc.PrimaryAlertFingerprint, &inc.CorrelationReason,
		&inc.AffectedServices, &inc.AffectedLabels,
		&inc.StartedAt, &inc.ResolvedAt, &inc.RCACompletedAt,
		&inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// GetOpenIncidents - 상관관계 후보가 되는 open/analyzing 상태 Incident 목록
func (db *Postgres) GetOpenIncidents(ctx context.Context) ([]model.Incident, error) {
	query := `
		SELECT incident_id, title, status, severity, primary_alert_fingerprint,
		       correlation_reason, affected_services, affected_labels,
		       started_at, resolved_at, rca_completed_at, created_at, updated_at
		FROM incidents
		WHERE status IN ('open', 'analyzing')
		ORDER BY started_at DESC
	`
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Incident
	for rows.Next() {
		var inc model.Incident
		if err := rows.Scan(
			&inc.IncidentID, &inc.Title, &inc.Status, &inc.Severity,
			&inc.PrimaryAlertFingerprint, &inc.CorrelationReason,
			&inc.AffectedServices, &inc.AffectedLabels,
			&inc.StartedAt, &inc.ResolvedAt, &inc.RCACompletedAt,
			&inc.CreatedAt, &inc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, inc)
	}
	if list == nil {
		list = []model.Incident{}
	}
	return list, rows.Err()
}

// GetIncidentList - 목록 조회 (연결된 Alert 개수 포함)
func (db *Postgres) GetIncidentList(ctx context.Context) ([]model.IncidentListResponse, error) {
	query := `
		SELECT i.incident_id, i.title, i.severity, i.status, i.started_at, i.resolved_at,
		       COUNT(a.fingerprint) AS alert_count
		FROM incidents i
		LEFT JOIN alerts a ON a.incident_id = i.incident_id
		GROUP BY i.incident_id
		ORDER BY i.started_at DESC
	`
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.IncidentListResponse
	for rows.Next() {
		var i model.IncidentListResponse
		if err := rows.Scan(&i.IncidentID, &i.Title, &i.Severity, &i.Status, &i.StartedAt, &i.ResolvedAt, &i.AlertCount); err != nil {
			return nil, err
		}
		list = append(list, i)
	}
	if list == nil {
		list = []model.IncidentListResponse{}
	}
	return list, rows.Err()
}
