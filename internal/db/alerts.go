package db

import (
	"context"
	"time"

	"github.com/infra-rca/backend/internal/model"
)

// EnsureAlertSchema - alerts 테이블 생성
func (db *Postgres) EnsureAlertSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS alerts (
			fingerprint TEXT PRIMARY KEY,
			incident_id TEXT,
			alertname TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT 'warning',
			status TEXT NOT NULL DEFAULT 'firing',
			labels JSONB NOT NULL DEFAULT '{}',
			annotations JSONB NOT NULL DEFAULT '{}',
			starts_at TIMESTAMPTZ NOT NULL,
			ends_at TIMESTAMPTZ,
			generator_url TEXT NOT NULL DEFAULT '',
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS alerts_incident_id_idx ON alerts(incident_id) WHERE incident_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS alerts_status_idx ON alerts(status)`,
		`CREATE INDEX IF NOT EXISTS alerts_starts_at_idx ON alerts(starts_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// UpsertAlert - fingerprint 기준으로 알림을 저장/갱신
//
// 같은 fingerprint의 재전송은 status/ends_at만 갱신하고 중복 레코드를 만들지 않음.
// incident_id는 최초 연결 이후 덮어쓰지 않음 (COALESCE)
func (db *Postgres) UpsertAlert(ctx context.Context, alert model.Alert, incidentID *string) error {
	query := `
		INSERT INTO alerts (
			fingerprint, incident_id, alertname, severity, status,
			labels, annotations, starts_at, ends_at, generator_url, received_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (fingerprint) DO UPDATE SET
			incident_id = COALESCE(alerts.incident_id, EXCLUDED.incident_id),
			status = EXCLUDED.status,
			ends_at = EXCLUDED.ends_at,
			annotations = EXCLUDED.annotations,
			updated_at = NOW()
	`

	var endsAt *time.Time
	if !alert.EndsAt.IsZero() {
		endsAt = &alert.EndsAt
	}

	_, err := db.Pool.Exec(ctx, query,
		alert.Fingerprint,
		incidentID,
		alert.AlertName(),
		string(alert.Severity()),
		string(alert.Status),
		alert.Labels,
		alert.Annotations,
		alert.StartsAt,
		endsAt,
		alert.GeneratorURL,
	)
	return err
}

// GetAlert - fingerprint로 단건 조회
func (db *Postgres) GetAlert(ctx context.Context, fingerprint string) (*model.Alert, error) {
	query := `
		SELECT fingerprint, incident_id, status, labels, annotations,
		       starts_at, COALESCE(ends_at, '0001-01-01T00:00:00Z'::timestamptz), generator_url, received_at
		FROM alerts
		WHERE fingerprint = $1
	`
	var a model.Alert
	err := db.Pool.QueryRow(ctx, query, fingerprint).Scan(
		&a.Fingerprint,
		&a.IncidentID,
		&a.Status,
		&a.Labels,
		&a.Annotations,
		&a.StartsAt,
		&a.EndsAt,
		&a.GeneratorURL,
		&a.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAlertsByIncidentID - 특정 Incident에 속한 Alert 목록 (발생 시각 순)
func (db *Postgres) GetAlertsByIncidentID(ctx context.Context, incidentID string) ([]model.Alert, error) {
	query := `
		SELECT fingerprint, incident_id, status, labels, annotations,
		       starts_at, COALESCE(ends_at, '0001-01-01T00:00:00Z'::timestamptz), generator_url, received_at
		FROM alerts
		WHERE incident_id = $1
		ORDER BY starts_at ASC
	`
	rows, err := db.Pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(
			&a.Fingerprint, &a.IncidentID, &a.Status, &a.Labels, &a.Annotations,
			&a.StartsAt, &a.EndsAt, &a.GeneratorURL, &a.ReceivedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	if list == nil {
		list = []model.Alert{}
	}
	return list, rows.Err()
}

// CountFiringAlerts - Incident 내 아직 firing 중인 알림 수
// 0이면 Incident를 resolved로 전이할 수 있음
func (db *Postgres) CountFiringAlerts(ctx context.Context, incidentID string) (int, error) {
	query := `SELECT COUNT(*) FROM alerts WHERE incident_id = $1 AND status = 'firing'`
	var count int
	err := db.Pool.QueryRow(ctx, query, incidentID).Scan(&count)
	return count, err
}

// LatestResolvedAt - Incident 멤버 중 가장 늦게 resolved된 시각
func (db *Postgres) LatestResolvedAt(ctx context.Context, incidentID string) (*time.Time, error) {
	query := `SELECT MAX(ends_at) FROM alerts WHERE incident_id = $1 AND status = 'resolved'`
	var resolvedAt *time.Time
	err := db.Pool.QueryRow(ctx, query, incidentID).Scan(&resolvedAt)
	return resolvedAt, err
}
