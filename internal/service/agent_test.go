package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/infra-rca/backend/internal/client"
	"github.com/infra-rca/backend/internal/config"
	"github.com/infra-rca/backend/internal/model"
)

func testAgentConfig() config.AgentConfig {
	return config.AgentConfig{
		MaxIterations: 10,
		MaxConcurrent: 3,
		ToolTimeout:   time.Second,
		TurnTimeout:   5 * time.Second,
		MaxRetries:    2,
	}
}

type providerResponse struct {
	turn *client.ModelTurn
	err  error
}

// fakeProvider - 스크립트된 응답을 순서대로 반환
type fakeProvider struct {
	mu        sync.Mutex
	responses []providerResponse
	calls     int
	inFlight  int
	peak      int
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Send(_ context.Context, _ string, _ []client.Turn, _ []client.ToolSchema) (*client.ModelTurn, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	resp := f.responses[idx]
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return resp.turn, resp.err
}

type fakeLogQuerier struct {
	result *client.LogQueryResult
	err    error
	calls  int
}

func (f *fakeLogQuerier) QueryRange(_ context.Context, _ string, _, _ time.Time, _ int) (*client.LogQueryResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeMetricQuerier struct {
	result *client.MetricQueryResult
	err    error
}

func (f *fakeMetricQuerier) QueryRange(_ context.Context, _ string, _, _ time.Time, _ time.Duration) (*client.MetricQueryResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func validFinalizeCall(id string) client.ToolCall {
	return client.ToolCall{
		ID:   id,
		Name: ToolFinalizeReport,
		Arguments: map[string]any{
			"root_cause":       "BGP session flap on core-sw-01 partitioned the east segment",
			"confidence_score": float64(85),
			"summary":          "Network partition caused cascading service timeouts.",
			"timeline": []any{
				map[string]any{"timestamp": "2026-03-01T10:00:00Z", "event": "BGP session down", "source": "alert"},
			},
			"evidence": map[string]any{
				"logs":    []any{map[string]any{"timestamp": "2026-03-01T10:00:05Z", "message": "bgp neighbor down"}},
				"metrics": []any{},
			},
			"remediation_steps": []any{
				map[string]any{"priority": "immediate", "action": "Restart the BGP session", "command": "clear bgp neighbor 10.0.0.1", "risk": "medium"},
			},
		},
	}
}

func queryLogsCall(id string) client.ToolCall {
	return client.ToolCall{
		ID:        id,
		Name:      ToolQueryLogs,
		Arguments: map[string]any{"query": `{service="payment-api"}`},
	}
}

func testIncident() (*model.Incident, []model.Alert) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	alert := makeAlert("fp-1", base, map[string]string{
		"alertname": "BGPSessionDown",
		"severity":  "critical",
		"device":    "core-sw-01",
	})
	incident := NewIncidentForAlert(alert)
	return incident, []model.Alert{alert}
}

func newTestAgent(provider client.LLMProvider, logs LogQuerier, metrics MetricQuerier, cfg config.AgentConfig) *AgentService {
	return NewAgentService(provider, NewQueryToolset(logs, metrics), cfg)
}

func TestRunAnalysisFinalizesReport(t *testing.T) {
	provider := &fakeProvider{responses: []providerResponse{
		{turn: &client.ModelTurn{
			ToolCalls:    []client.ToolCall{queryLogsCall("call-1")},
			InputTokens:  100,
			OutputTokens: 20,
		}},
		{turn: &client.ModelTurn{
			ToolCalls:    []client.ToolCall{validFinalizeCall("call-2")},
			InputTokens:  200,
			OutputTokens: 50,
		}},
	}}
	logs := &fakeLogQuerier{result: &client.LogQueryResult{Entries: []client.LogEntry{}}}
	agent := newTestAgent(provider, logs, &fakeMetricQuerier{}, testAgentConfig())

	incident, alerts := testIncident()
	report := agent.RunAnalysis(context.Background(), incident, alerts)

	if report.Status != model.ReportComplete {
		t.Fatalf("status = %s, want complete (error: %v)", report.Status, report.ErrorMessage)
	}
	if report.RootCause == "" || len(report.RemediationSteps) == 0 {
		t.Error("finalized report missing root cause or remediation steps")
	}
	if report.CompletedAt == nil {
		t.Error("completed report must have completed_at")
	}
	if logs.calls != 1 {
		t.Errorf("log tool called %d times, want 1", logs.calls)
	}
	if report.Metadata == nil {
		t.Fatal("metadata missing")
	}
	if report.Metadata.TokensUsed != 370 {
		t.Errorf("tokens_used = %d, want 370", report.Metadata.TokensUsed)
	}
	if report.Metadata.ToolCalls != 2 {
		t.Errorf("tool_calls = %d, want 2", report.Metadata.ToolCalls)
	}
}

func TestRunAnalysisRejectsInvalidFinalize(t *testing.T) {
	// 첫 finalize는 remediation step이 없어서 거부, 모델이 고쳐서 재시도
	invalid := validFinalizeCall("call-1")
	invalid.Arguments = map[string]any{
		"root_cause":       "something broke",
		"confidence_score": float64(50),
		"summary":          "partial",
	}
	provider := &fakeProvider{responses: []providerResponse{
		{turn: &client.ModelTurn{ToolCalls: []client.ToolCall{invalid}}},
		{turn: &client.ModelTurn{ToolCalls: []client.ToolCall{validFinalizeCall("call-2")}}},
	}}
	agent := newTestAgent(provider, &fakeLogQuerier{}, &fakeMetricQuerier{}, testAgentConfig())

	incident, alerts := testIncident()
	report := agent.RunAnalysis(context.Background(), incident, alerts)

	if report.Status != model.ReportComplete {
		t.Fatalf("status = %s, want complete after model fixed the arguments", report.Status)
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (rejection fed back as a tool error)", provider.calls)
	}
}

func TestRunAnalysisMaxIterations(t *testing.T) {
	// 모델이 계속 쿼리만 하고 finalize하지 않음
	provider := &fakeProvider{responses: []providerResponse{
		{turn: &client.ModelTurn{ToolCalls: []client.ToolCall{queryLogsCall("call")}}},
	}}
	logs := &fakeLogQuerier{result: &client.LogQueryResult{}}
	cfg := testAgentConfig()
	cfg.MaxIterations = 3
	agent := newTestAgent(provider, logs, &fakeMetricQuerier{}, cfg)

	incident, alerts := testIncident()
	report := agent.RunAnalysis(context.Background(), incident, alerts)

	if report.Status != model.ReportFailed {
		t.Fatalf("status = %s, want failed", report.Status)
	}
	if report.ErrorMessage == nil || !strings.Contains(*report.ErrorMessage, "max iterations") {
		t.Errorf("error message = %v, want max iterations detail", report.ErrorMessage)
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want exactly MaxIterations", provider.calls)
	}
}

func TestRunAnalysisRecordsGapOnUnavailableBackend(t *testing.T) {
	// Loki가 내려가 있어도 분석은 계속되고 리포트에 공백이 기록됨
	provider := &fakeProvider{responses: []providerResponse{
		{turn: &client.ModelTurn{ToolCalls: []client.ToolCall{queryLogsCall("call-1")}}},
		{turn: &client.ModelTurn{ToolCalls: []client.ToolCall{validFinalizeCall("call-2")}}},
	}}
	logs := &fakeLogQuerier{err: fmt.Errorf("%w: connection refused", client.ErrToolUnavailable)}
	agent := newTestAgent(provider, logs, &fakeMetricQuerier{}, testAgentConfig())

	incident, alerts := testIncident()
	report := agent.RunAnalysis(context.Background(), incident, alerts)

	if report.Status != model.ReportComplete {
		t.Fatalf("status = %s, want complete despite the data gap", report.Status)
	}
	found := false
	for _, gap := range report.Evidence.Gaps {
		if strings.Contains(gap, "unreachable") {
			found = true
		}
	}
	if !found {
		t.Errorf("evidence gaps = %v, want the unreachable backend recorded", report.Evidence.Gaps)
	}
}

func TestRunAnalysisFatalProviderError(t *testing.T) {
	provider := &fakeProvider{responses: []providerResponse{
		{err: fmt.Errorf("%w: invalid api key", client.ErrProviderFatal)},
	}}
	agent := newTestAgent(provider, &fakeLogQuerier{}, &fakeMetricQuerier{}, testAgentConfig())

	incident, alerts := testIncident()
	report := agent.RunAnalysis(context.Background(), incident, alerts)

	if report.Status != model.ReportFailed {
		t.Fatalf("status = %s, want failed", report.Status)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, fatal errors must not be retried", provider.calls)
	}
}

func TestRunAnalysisRetriesTransientError(t *testing.T) {
	provider := &fakeProvider{responses: []providerResponse{
		{err: fmt.Errorf("%w: 503", client.ErrProviderTransient)},
		{turn: &client.ModelTurn{ToolCalls: []client.ToolCall{validFinalizeCall("call-1")}}},
	}}
	agent := newTestAgent(provider, &fakeLogQuerier{}, &fakeMetricQuerier{}, testAgentConfig())

	incident, alerts := testIncident()
	report := agent.RunAnalysis(context.Background(), incident, alerts)

	if report.Status != model.ReportComplete {
		t.Fatalf("status = %s, want complete after a transient retry", report.Status)
	}
	if provider.calls != 2 {
		t.Errorf("provider calls = %d, want 2", provider.calls)
	}
}

func TestRunAnalysisTextFallback(t *testing.T) {
	// 도구 호출 없이 본문에 리포트 JSON을 낸 경우
	body := `Here is my analysis:
{
  "root_cause": "disk full on worker-3",
  "confidence_score": 70,
  "summary": "The data volume filled up and writes began to fail.",
  "remediation_steps": [
    {"priority": "immediate", "action": "Expand the data volume", "risk": "low"}
  ]
}`
	provider := &fakeProvider{responses: []providerResponse{
		{turn: &client.ModelTurn{Text: body}},
	}}
	agent := newTestAgent(provider, &fakeLogQuerier{}, &fakeMetricQuerier{}, testAgentConfig())

	incident, alerts := testIncident()
	report := agent.RunAnalysis(context.Background(), incident, alerts)

	if report.Status != model.ReportComplete {
		t.Fatalf("status = %s, want complete from text fallback (error: %v)", report.Status, report.ErrorMessage)
	}
	if report.RootCause != "disk full on worker-3" {
		t.Errorf("root_cause = %q", report.RootCause)
	}
}

func TestRunAnalysisNudgesStalledModel(t *testing.T) {
	// 증거를 모은 뒤 finalize 없이 멈추면 독촉 후 계속 진행
	provider := &fakeProvider{responses: []providerResponse{
		{turn: &client.ModelTurn{ToolCalls: []client.ToolCall{queryLogsCall("call-1")}}},
		{turn: &client.ModelTurn{Text: "The evidence points to a BGP flap."}},
		{turn: &client.ModelTurn{ToolCalls: []client.ToolCall{validFinalizeCall("call-2")}}},
	}}
	logs := &fakeLogQuerier{result: &client.LogQueryResult{}}
	agent := newTestAgent(provider, logs, &fakeMetricQuerier{}, testAgentConfig())

	incident, alerts := testIncident()
	report := agent.RunAnalysis(context.Background(), incident, alerts)

	if report.Status != model.ReportComplete {
		t.Fatalf("status = %s, want complete after the nudge (error: %v)", report.Status, report.ErrorMessage)
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want 3", provider.calls)
	}
}

func TestRunAnalysisPlainTextFails(t *testing.T) {
	provider := &fakeProvider{responses: []providerResponse{
		{turn: &client.ModelTurn{Text: "I could not determine the root cause."}},
	}}
	agent := newTestAgent(provider, &fakeLogQuerier{}, &fakeMetricQuerier{}, testAgentConfig())

	incident, alerts := testIncident()
	report := agent.RunAnalysis(context.Background(), incident, alerts)

	if report.Status != model.ReportFailed {
		t.Fatalf("status = %s, want failed when the model gives up without a report", report.Status)
	}
}

func TestRunAnalysisConcurrencyLimit(t *testing.T) {
	provider := &fakeProvider{responses: []providerResponse{
		{turn: &client.ModelTurn{ToolCalls: []client.ToolCall{validFinalizeCall("call")}}},
	}}
	cfg := testAgentConfig()
	cfg.MaxConcurrent = 1
	agent := newTestAgent(provider, &fakeLogQuerier{}, &fakeMetricQuerier{}, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			incident, alerts := testIncident()
			report := agent.RunAnalysis(context.Background(), incident, alerts)
			if report.Status != model.ReportComplete {
				t.Errorf("status = %s, want complete", report.Status)
			}
		}()
	}
	wg.Wait()

	if provider.peak > 1 {
		t.Errorf("observed %d concurrent provider calls, want at most 1", provider.peak)
	}
}

func TestQueryWindowDefaults(t *testing.T) {
	base := time.Now().UTC().Add(-2 * time.Minute)
	alert := makeAlert("fp-1", base, map[string]string{"alertname": "HighErrorRate"})
	incident := NewIncidentForAlert(alert)

	window := queryWindow(incident, []model.Alert{alert})
	if !window.Start.Equal(base.Add(-15 * time.Minute)) {
		t.Errorf("window start = %s, want 15m before the earliest alert", window.Start)
	}
	if window.End.Before(base) {
		t.Errorf("window end = %s, must cover the alert time", window.End)
	}
}

func TestRetryBackoffBounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		delay := retryBackoff(attempt)
		if delay < time.Second {
			t.Errorf("attempt %d: delay %s below the 1s base", attempt, delay)
		}
		if delay > 45*time.Second {
			t.Errorf("attempt %d: delay %s above the 30s cap plus jitter", attempt, delay)
		}
	}
}
