package service

import (
	"context"
	"testing"
	"time"

	"github.com/infra-rca/backend/internal/config"
	"github.com/infra-rca/backend/internal/model"
)

func testCorrelationConfig() config.CorrelationConfig {
	return config.CorrelationConfig{
		Window:            5 * time.Minute,
		SemanticThreshold: 0.70,
		MinScore:          2,
	}
}

func newTestEngine() *CorrelationEngine {
	return NewCorrelationEngine(testCorrelationConfig(), LexicalSimilarity{})
}

func makeAlert(fingerprint string, startsAt time.Time, labels map[string]string) model.Alert {
	return model.Alert{
		Status:      model.AlertFiring,
		Labels:      labels,
		Annotations: map[string]string{},
		StartsAt:    startsAt,
		Fingerprint: fingerprint,
	}
}

func candidateFor(alert model.Alert) IncidentCandidate {
	incident := NewIncidentForAlert(alert)
	return IncidentCandidate{Incident: incident, Primary: &alert}
}

func TestCorrelateJoinsSameService(t *testing.T) {
	engine := newTestEngine()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := makeAlert("fp-1", base, map[string]string{
		"alertname": "HighErrorRate",
		"severity":  "warning",
		"service":   "payment-api",
		"namespace": "prod",
	})
	cand := candidateFor(first)

	second := makeAlert("fp-2", base.Add(2*time.Minute), map[string]string{
		"alertname": "PodCrashLooping",
		"severity":  "critical",
		"service":   "payment-api",
		"namespace": "prod",
	})

	decision := engine.Correlate(context.Background(), second, []IncidentCandidate{cand})
	if decision.Incident == nil {
		t.Fatal("expected the alert to join the existing incident")
	}
	// same service +3, same namespace +2
	if decision.Score < 5 {
		t.Errorf("score = %d, want >= 5", decision.Score)
	}
	if decision.Reason == "" {
		t.Error("expected a human-readable correlation reason")
	}
}

func TestCorrelateCrossReference(t *testing.T) {
	engine := newTestEngine()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// 네트워크 장비 장애가 먼저 발생
	infra := makeAlert("fp-infra", base, map[string]string{
		"alertname": "NetworkInterfaceDown",
		"severity":  "critical",
		"device":    "vrouter-02",
		"node":      "vrouter-02",
	})
	cand := candidateFor(infra)

	// 다른 서비스의 증상 알림이 target_node로 장비를 가리킴
	symptom := makeAlert("fp-sym", base.Add(time.Minute), map[string]string{
		"alertname":   "ServiceUnreachable",
		"severity":    "warning",
		"service":     "checkout",
		"namespace":   "prod",
		"target_node": "vrouter-02",
	})

	decision := engine.Correlate(context.Background(), symptom, []IncidentCandidate{cand})
	if decision.Incident == nil {
		t.Fatal("expected cross-referenced alert to join the incident")
	}
	// cross-reference alone is +5
	if decision.Score < 5 {
		t.Errorf("score = %d, want >= 5", decision.Score)
	}
}

func TestCorrelateReverseCrossReference(t *testing.T) {
	engine := newTestEngine()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Incident 쪽 대표 알림이 upstream으로 새 알림의 개체를 가리킴
	first := makeAlert("fp-1", base, map[string]string{
		"alertname": "UpstreamTimeout",
		"severity":  "warning",
		"service":   "checkout",
		"upstream":  "payment-api",
	})
	cand := candidateFor(first)

	second := makeAlert("fp-2", base.Add(time.Minute), map[string]string{
		"alertname": "HighLatency",
		"severity":  "warning",
		"service":   "payment-api",
	})

	decision := engine.Correlate(context.Background(), second, []IncidentCandidate{cand})
	if decision.Incident == nil {
		t.Fatal("expected reverse cross-reference to correlate")
	}
}

func TestCorrelateWindowExclusion(t *testing.T) {
	engine := newTestEngine()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := makeAlert("fp-1", base, map[string]string{
		"alertname": "HighErrorRate",
		"service":   "payment-api",
		"namespace": "prod",
	})
	cand := candidateFor(first)

	// 동일 service라도 윈도우(5분)를 벗어나면 신규 Incident
	late := makeAlert("fp-2", base.Add(6*time.Minute), map[string]string{
		"alertname": "HighErrorRate",
		"service":   "payment-api",
		"namespace": "prod",
	})

	decision := engine.Correlate(context.Background(), late, []IncidentCandidate{cand})
	if decision.Incident != nil {
		t.Errorf("alert outside the window joined incident %s", decision.Incident.IncidentID)
	}
}

func TestCorrelateSkipsResolvedIncidents(t *testing.T) {
	engine := newTestEngine()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := makeAlert("fp-1", base, map[string]string{
		"alertname": "HighErrorRate",
		"service":   "payment-api",
	})
	cand := candidateFor(first)
	cand.Incident.Status = model.IncidentResolved

	second := makeAlert("fp-2", base.Add(time.Minute), map[string]string{
		"alertname": "HighErrorRate",
		"service":   "payment-api",
	})

	decision := engine.Correlate(context.Background(), second, []IncidentCandidate{cand})
	if decision.Incident != nil {
		t.Error("resolved incident must not accept new members")
	}
}

func TestCorrelateBelowMinScore(t *testing.T) {
	engine := newTestEngine()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := makeAlert("fp-1", base, map[string]string{
		"alertname": "DiskPressure",
		"service":   "storage-api",
		"namespace": "infra",
	})
	cand := candidateFor(first)

	// 시간만 겹치고 아무 라벨도 공유하지 않음
	unrelated := makeAlert("fp-2", base.Add(time.Minute), map[string]string{
		"alertname": "CertificateExpiringSoon",
		"service":   "frontend",
		"namespace": "web",
	})

	decision := engine.Correlate(context.Background(), unrelated, []IncidentCandidate{cand})
	if decision.Incident != nil {
		t.Errorf("unrelated alert joined incident with score %d", decision.Score)
	}
}

func TestCorrelateTieBreakDeterministic(t *testing.T) {
	engine := newTestEngine()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	labels := map[string]string{
		"alertname": "HighErrorRate",
		"service":   "payment-api",
		"namespace": "prod",
	}

	// 동일 점수/동일 시간 간격의 후보 두 개: ID 사전순이 이겨야 함
	a := candidateFor(makeAlert("fp-a", base, labels))
	a.Incident.IncidentID = "INC-aaaa"
	b := candidateFor(makeAlert("fp-b", base, labels))
	b.Incident.IncidentID = "INC-bbbb"

	alert := makeAlert("fp-new", base.Add(time.Minute), labels)

	for i := 0; i < 10; i++ {
		decision := engine.Correlate(context.Background(), alert, []IncidentCandidate{b, a})
		if decision.Incident == nil {
			t.Fatal("expected a correlation decision")
		}
		if decision.Incident.IncidentID != "INC-aaaa" {
			t.Fatalf("tie-break picked %s, want INC-aaaa", decision.Incident.IncidentID)
		}
	}
}

func TestCorrelatePrefersSmallerTimeDelta(t *testing.T) {
	engine := newTestEngine()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	labels := map[string]string{
		"alertname": "HighErrorRate",
		"service":   "payment-api",
	}

	far := candidateFor(makeAlert("fp-far", base, labels))
	far.Incident.IncidentID = "INC-aaaa"
	near := candidateFor(makeAlert("fp-near", base.Add(3*time.Minute), labels))
	near.Incident.IncidentID = "INC-zzzz"

	alert := makeAlert("fp-new", base.Add(4*time.Minute), labels)

	decision := engine.Correlate(context.Background(), alert, []IncidentCandidate{far, near})
	if decision.Incident == nil || decision.Incident.IncidentID != "INC-zzzz" {
		t.Fatalf("expected the closer incident to win the tie, got %+v", decision.Incident)
	}
}

func TestScoreInfrastructureLabels(t *testing.T) {
	engine := newTestEngine()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	infra := makeAlert("fp-1", base, map[string]string{
		"alertname":  "BGPSessionDown",
		"severity":   "critical",
		"device":     "core-sw-01",
		"datacenter": "dc-east",
	})
	cand := candidateFor(infra)

	symptom := makeAlert("fp-2", base.Add(time.Minute), map[string]string{
		"alertname":  "APIHighLatency",
		"severity":   "warning",
		"service":    "orders",
		"datacenter": "dc-east",
	})

	score := engine.Score(context.Background(), symptom, cand)
	// shared datacenter +4, infra affinity +3
	if score < 7 {
		t.Errorf("score = %d, want >= 7", score)
	}
}

func TestSelectPrimaryAlert(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		alerts []model.Alert
		want   string
	}{
		{
			name: "earliest wins",
			alerts: []model.Alert{
				makeAlert("fp-late", base.Add(time.Minute), map[string]string{"alertname": "NetworkInterfaceDown", "severity": "critical"}),
				makeAlert("fp-early", base, map[string]string{"alertname": "HighLatency", "severity": "warning"}),
			},
			want: "fp-early",
		},
		{
			name: "same time prefers causal score",
			alerts: []model.Alert{
				makeAlert("fp-symptom", base, map[string]string{"alertname": "ServiceHealthCheckFailed", "severity": "warning"}),
				makeAlert("fp-cause", base, map[string]string{"alertname": "NetworkInterfaceDown", "severity": "critical"}),
			},
			want: "fp-cause",
		},
		{
			name: "full tie falls back to fingerprint order",
			alerts: []model.Alert{
				makeAlert("fp-b", base, map[string]string{"alertname": "HighLatency"}),
				makeAlert("fp-a", base, map[string]string{"alertname": "HighLatency"}),
			},
			want: "fp-a",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SelectPrimaryAlert(tc.alerts)
			if got == nil {
				t.Fatal("expected a primary alert")
			}
			if got.Fingerprint != tc.want {
				t.Errorf("primary = %s, want %s", got.Fingerprint, tc.want)
			}
		})
	}

	if got := SelectPrimaryAlert(nil); got != nil {
		t.Errorf("empty input should return nil, got %v", got)
	}
}

func TestMergeAlertIntoIncident(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := makeAlert("fp-1", base, map[string]string{
		"alertname": "HighErrorRate",
		"severity":  "warning",
		"service":   "payment-api",
		"namespace": "prod",
	})
	incident := NewIncidentForAlert(first)

	second := makeAlert("fp-2", base.Add(-time.Minute), map[string]string{
		"alertname": "PodOOMKilled",
		"severity":  "critical",
		"service":   "checkout",
		"namespace": "prod",
		"node":      "worker-7",
	})
	MergeAlertIntoIncident(incident, second, "Correlated by same namespace: prod")

	if incident.Severity != model.SeverityCritical {
		t.Errorf("severity = %s, want critical after merging a critical alert", incident.Severity)
	}
	if !incident.StartedAt.Equal(second.StartsAt) {
		t.Errorf("started_at should move back to the earliest alert, got %s", incident.StartedAt)
	}
	if len(incident.AffectedServices) != 2 {
		t.Fatalf("affected services = %v, want both payment-api and checkout", incident.AffectedServices)
	}
	// 기존 라벨은 유지, 새 키만 채움
	if incident.AffectedLabels["service"] != "payment-api" {
		t.Errorf("existing service label overwritten: %s", incident.AffectedLabels["service"])
	}
	if incident.AffectedLabels["node"] != "worker-7" {
		t.Errorf("new node label not filled in: %v", incident.AffectedLabels)
	}
	if incident.CorrelationReason == "" {
		t.Error("correlation reason not recorded")
	}
}

func TestNewIncidentForAlert(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	alert := makeAlert("fp-1", base, map[string]string{
		"alertname": "NetworkInterfaceDown",
		"severity":  "critical",
		"device":    "vrouter-02",
		"node":      "vrouter-02",
	})

	incident := NewIncidentForAlert(alert)
	if incident.Status != model.IncidentOpen {
		t.Errorf("status = %s, want open", incident.Status)
	}
	if incident.PrimaryAlertFingerprint == nil || *incident.PrimaryAlertFingerprint != "fp-1" {
		t.Error("the founding alert must be the primary alert")
	}
	if incident.Severity != model.SeverityCritical {
		t.Errorf("severity = %s, want critical", incident.Severity)
	}
	if len(incident.AffectedServices) != 1 || incident.AffectedServices[0] != "vrouter-02" {
		t.Errorf("affected services = %v, want [vrouter-02]", incident.AffectedServices)
	}
}
