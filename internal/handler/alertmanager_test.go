package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/infra-rca/backend/internal/config"
	"github.com/infra-rca/backend/internal/model"
	"github.com/infra-rca/backend/internal/service"
)

// memStore - 핸들러 경로 검증용 인메모리 저장소
type memStore struct {
	mu        sync.Mutex
	incidents map[string]*model.Incident
	alerts    map[string]model.Alert
	reports   map[string]*model.RCAReport
}

func newMemStore() *memStore {
	return &memStore{
		incidents: map[string]*model.Incident{},
		alerts:    map[string]model.Alert{},
		reports:   map[string]*model.RCAReport{},
	}
}

func (m *memStore) UpsertAlert(_ context.Context, alert model.Alert, incidentID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// 실제 SQL과 동일하게 기존 incident 연결은 덮어쓰지 않음
	alert.IncidentID = incidentID
	if prev, ok := m.alerts[alert.Fingerprint]; ok && prev.IncidentID != nil {
		alert.IncidentID = prev.IncidentID
	}
	m.alerts[alert.Fingerprint] = alert
	return nil
}

func (m *memStore) GetAlert(_ context.Context, fingerprint string) (*model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[fingerprint]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &alert, nil
}

func (m *memStore) GetAlertsByIncidentID(_ context.Context, incidentID string) ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Alert
	for _, alert := range m.alerts {
		if alert.IncidentID != nil && *alert.IncidentID == incidentID {
			out = append(out, alert)
		}
	}
	return out, nil
}

func (m *memStore) CountFiringAlerts(_ context.Context, incidentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, alert := range m.alerts {
		if alert.IncidentID != nil && *alert.IncidentID == incidentID && alert.Status == model.AlertFiring {
			count++
		}
	}
	return count, nil
}

func (m *memStore) LatestResolvedAt(_ context.Context, _ string) (*time.Time, error) {
	return nil, nil
}

func (m *memStore) CreateIncident(_ context.Context, inc *model.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *inc
	m.incidents[inc.IncidentID] = &copied
	return nil
}

func (m *memStore) UpdateIncident(_ context.Context, inc *model.Incident) error {
	return m.CreateIncident(context.Background(), inc)
}

func (m *memStore) UpdateIncidentStatus(_ context.Context, incidentID string, status model.IncidentStatus, resolvedAt, rcaCompletedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc, ok := m.incidents[incidentID]; ok {
		inc.Status = status
		inc.ResolvedAt = resolvedAt
		inc.RCACompletedAt = rcaCompletedAt
	}
	return nil
}

func (m *memStore) GetIncident(_ context.Context, incidentID string) (*model.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[incidentID]
	if !ok {
		return nil, errors.New("no rows")
	}
	copied := *inc
	return &copied, nil
}

func (m *memStore) GetOpenIncidents(_ context.Context) ([]model.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Incident
	for _, inc := range m.incidents {
		if inc.IsOpen() {
			out = append(out, *inc)
		}
	}
	return out, nil
}

func (m *memStore) SaveReport(_ context.Context, report *model.RCAReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *report
	m.reports[report.IncidentID] = &copied
	return nil
}

// noopAnalyzer - 분석 없이 즉시 실패 리포트 반환 (핸들러 테스트에서는 루프가 관심사가 아님)
type noopAnalyzer struct{}

func (noopAnalyzer) RunAnalysis(_ context.Context, incident *model.Incident, _ []model.Alert) *model.RCAReport {
	msg := "not analyzed in tests"
	now := time.Now().UTC()
	return &model.RCAReport{
		ReportID:     "test",
		IncidentID:   incident.IncidentID,
		Status:       model.ReportFailed,
		ErrorMessage: &msg,
		StartedAt:    now,
		CompletedAt:  &now,
	}
}

func newWebhookRouter() (*gin.Engine, *memStore) {
	gin.SetMode(gin.TestMode)
	store := newMemStore()
	engine := service.NewCorrelationEngine(config.CorrelationConfig{
		Window:            5 * time.Minute,
		SemanticThreshold: 0.70,
		MinScore:          2,
	}, service.LexicalSimilarity{})
	incidents := service.NewIncidentService(store, engine, noopAnalyzer{}, nil, nil)
	alerts := service.NewAlertService(incidents)

	r := gin.New()
	r.POST("/api/v1/alerts/webhook", NewAlertmanagerHandler(alerts).Webhook)
	return r, store
}

func TestWebhookRejectsInvalidPayload(t *testing.T) {
	r, _ := newWebhookRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/webhook", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestWebhookProcessesAlerts(t *testing.T) {
	r, store := newWebhookRouter()

	payload := `{
		"version": "4",
		"status": "firing",
		"receiver": "rca-backend",
		"alerts": [
			{
				"status": "firing",
				"labels": {"alertname": "HighErrorRate", "severity": "warning", "service": "payment-api"},
				"annotations": {"summary": "error rate above 5%"},
				"startsAt": "2026-03-01T10:00:00Z",
				"fingerprint": "fp-1"
			},
			{
				"status": "firing",
				"labels": {"severity": "warning"},
				"startsAt": "2026-03-01T10:00:00Z",
				"fingerprint": "fp-broken"
			}
		]
	}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/webhook", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var res model.AlertWebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if res.AlertCount != 2 || res.Processed != 1 || res.Rejected != 1 {
		t.Errorf("response = %+v, want alertCount=2 processed=1 rejected=1", res)
	}

	// alertname이 없는 알림은 폐기되고 나머지는 Incident 생성
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.incidents) != 1 {
		t.Errorf("incidents = %d, want 1", len(store.incidents))
	}
	if _, ok := store.alerts["fp-broken"]; ok {
		t.Error("rejected alert must not be stored")
	}
}
