// RCA Agent 루프
// Incident 하나를 받아 LLM과의 제한된 멀티턴 대화로 근본 원인 리포트를 생성
//
// 처리 흐름:
//  1. 전역 세마포어 획득 (동시 분석 수 제한, 기본 3 / FIFO 대기)
//  2. 대화 초기화: 시스템 프롬프트 + Incident/Alert 요약 + 쿼리 힌트
//  3. 반복 (최대 MaxIterations회):
//     - provider 호출 (일시 오류는 백오프+지터로 턴 단위 재시도)
//     - 도구 호출 없으면: 본문을 리포트로 파싱 시도, 실패 시 failed
//     - finalize-report: 검증 통과한 첫 호출이 확정 (이후 호출 무시)
//     - query-logs/query-metrics: 실행 결과를 다음 턴으로 전달
//       실패는 에러 결과로 되돌려보내고, 백엔드 접근 불가/타임아웃은 공백으로 기록
//  4. 모든 종료 경로에서 유효한 RCAReport 반환 (예외를 밖으로 내보내지 않음)

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/infra-rca/backend/internal/client"
	"github.com/infra-rca/backend/internal/config"
	"github.com/infra-rca/backend/internal/model"
	"golang.org/x/sync/semaphore"
)

const rcaSystemPrompt = `You are an expert Site Reliability Engineer performing root cause analysis on correlated infrastructure alerts.

Workflow:
1. Understand the alerts: severity, labels, annotations and chronological order. The earliest alert is often closest to the root cause.
2. Gather evidence with the query-logs (LogQL) and query-metrics (PromQL) tools. Start broad, then narrow down. Use the exact timestamps given in the time context.
3. Distinguish root cause from symptoms. Infrastructure failures (interface down, BGP, disk full, OOM) usually cause application symptoms (timeouts, health check failures), not the other way around.
4. Call finalize-report exactly once when you have enough evidence. Include a timeline, the evidence you actually observed, and at least one remediation step with a concrete command.

Rules:
- Never fabricate log lines or metric values. If a tool reports an error or a data gap, note the gap and work with what you have.
- Assign lower confidence scores when evidence is incomplete.
- Order remediation steps by priority: immediate actions first, then short_term, then long_term.
- Do not answer with plain text. Finish by calling the finalize-report tool.`

type AgentService struct {
	provider client.LLMProvider
	tools    *QueryToolset
	cfg      config.AgentConfig

	// sem: 시스템 전체 동시 분석 수 제한 (대기자는 FIFO)
	sem *semaphore.Weighted
}

func NewAgentService(provider client.LLMProvider, tools *QueryToolset, cfg config.AgentConfig) *AgentService {
	return &AgentService{
		provider: provider,
		tools:    tools,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// finalizeArgs - finalize-report 도구 인자
type finalizeArgs struct {
	RootCause        string                  `json:"root_cause"`
	ConfidenceScore  int                     `json:"confidence_score"`
	Summary          string                  `json:"summary"`
	Timeline         []model.TimelineEvent   `json:"timeline"`
	Evidence         model.EvidenceBundle    `json:"evidence"`
	RemediationSteps []model.RemediationStep `json:"remediation_steps"`
}

// RunAnalysis - Incident 분석 실행
// 에러를 반환하지 않음: 실패도 failed 상태의 유효한 리포트로 표현
func (s *AgentService) RunAnalysis(ctx context.Context, incident *model.Incident, alerts []model.Alert) *model.RCAReport {
	report := &model.RCAReport{
		ReportID:   uuid.NewString(),
		IncidentID: incident.IncidentID,
		Status:     model.ReportPending,
		StartedAt:  time.Now().UTC(),
	}

	// 큐 대기도 루프 전체 상한으로 제한 (wedged provider가 슬롯을 무한 점유하지 못함)
	queueCtx, cancelQueue := context.WithTimeout(ctx, s.cfg.WallClock())
	defer cancelQueue()
	if err := s.sem.Acquire(queueCtx, 1); err != nil {
		return s.fail(report, nil, fmt.Sprintf("analysis queue wait timed out after %s: %v", s.cfg.WallClock(), err))
	}
	defer s.sem.Release(1)

	loopCtx, cancelLoop := context.WithTimeout(ctx, s.cfg.WallClock())
	defer cancelLoop()

	return s.runLoop(loopCtx, report, incident, alerts)
}

func (s *AgentService) runLoop(ctx context.Context, report *model.RCAReport, incident *model.Incident, alerts []model.Alert) *model.RCAReport {
	window := queryWindow(incident, alerts)
	turns := []client.Turn{{Role: client.RoleUser, Text: openingPrompt(incident, alerts, window)}}
	schemas := s.tools.Schemas()

	meta := &model.AnalysisMetadata{Provider: s.provider.Name(), Model: s.provider.Model()}
	var gaps []string

	for iteration := 1; iteration <= s.cfg.MaxIterations; iteration++ {
		log.Printf("RCA iteration %d/%d (incident_id=%s, provider=%s)",
			iteration, s.cfg.MaxIterations, incident.IncidentID, s.provider.Name())

		modelTurn, err := s.sendWithRetry(ctx, turns, schemas)
		if err != nil {
			return s.fail(report, meta, fmt.Sprintf("provider error (%s): %v", s.provider.Name(), err))
		}
		meta.TokensUsed += modelTurn.InputTokens + modelTurn.OutputTokens

		turns = append(turns, client.Turn{
			Role:      client.RoleAssistant,
			Text:      modelTurn.Text,
			ToolCalls: modelTurn.ToolCalls,
		})

		if !modelTurn.HasToolCalls() {
			// 도구 호출 없는 종료: 본문이 리포트 스키마면 폴백 파싱으로 수용
			if args, ok := parseReportText(modelTurn.Text); ok {
				if err := s.complete(report, meta, args, gaps); err == nil {
					return report
				}
			}
			// 증거를 모아놓고 finalize 없이 멈춘 경우는 한 번 더 독촉
			if meta.ToolCalls > 0 && iteration < s.cfg.MaxIterations {
				log.Printf("Model stopped without finalize-report after %d tool calls, prompting to continue (incident_id=%s)",
					meta.ToolCalls, incident.IncidentID)
				turns = append(turns, client.Turn{
					Role: client.RoleUser,
					Text: "You MUST call the finalize-report tool now to complete this analysis. " +
						"Report what you know from the evidence gathered so far, with a lower confidence score if evidence is limited. " +
						"Do not respond with text. Only call finalize-report.",
				})
				continue
			}
			return s.fail(report, meta, "model ended the turn without calling finalize-report")
		}

		results := make([]client.ToolResult, 0, len(modelTurn.ToolCalls))
		for _, call := range modelTurn.ToolCalls {
			meta.ToolCalls++

			if call.Name == ToolFinalizeReport {
				args, err := decodeFinalizeArgs(call.Arguments)
				if err == nil {
					err = s.complete(report, meta, args, gaps)
				}
				if err == nil {
					// 검증을 통과한 첫 finalize가 확정, 같은 턴의 나머지 호출은 무시
					return report
				}
				// 검증 실패는 대화로 되돌려보내서 모델이 고쳐 재시도하게 함
				log.Printf("finalize-report rejected (incident_id=%s): %v", incident.IncidentID, err)
				results = append(results, client.ToolResult{
					CallID:  call.ID,
					Name:    call.Name,
					Content: fmt.Sprintf("report rejected: %v. Fix the arguments and call finalize-report again.", err),
					IsError: true,
				})
				continue
			}

			content, gap, err := s.executeQueryTool(ctx, call, window)
			if gap != "" {
				gaps = append(gaps, gap)
			}
			if err != nil {
				results = append(results, client.ToolResult{
					CallID:  call.ID,
					Name:    call.Name,
					Content: err.Error(),
					IsError: true,
				})
				continue
			}
			results = append(results, client.ToolResult{CallID: call.ID, Name: call.Name, Content: content})
		}
		turns = append(turns, client.Turn{Role: client.RoleTool, ToolResults: results})
	}

	return s.fail(report, meta, fmt.Sprintf("max iterations (%d) exceeded without a finalized report", s.cfg.MaxIterations))
}

// executeQueryTool - 도구 1건 실행 (개별 타임아웃 적용)
// 접근 불가/타임아웃이면 gap 설명을 함께 반환하고 분석은 계속 진행
func (s *AgentService) executeQueryTool(ctx context.Context, call client.ToolCall, window TimeRange) (content, gap string, err error) {
	toolCtx, cancel := context.WithTimeout(ctx, s.cfg.ToolTimeout)
	defer cancel()

	content, err = s.tools.Execute(toolCtx, call, window)
	if err == nil {
		return content, "", nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		gap = fmt.Sprintf("%s timed out after %s", call.Name, s.cfg.ToolTimeout)
	case errors.Is(err, client.ErrToolUnavailable):
		gap = fmt.Sprintf("%s backend unreachable: %v", call.Name, err)
	default:
		// 인자 오류 등은 공백이 아니라 모델이 고칠 입력 문제
		return "", "", err
	}
	notice := fmt.Sprintf("%s. Partial data only - continue the analysis with what you have and note this gap in the report.", gap)
	return "", gap, errors.New(notice)
}

// sendWithRetry - provider 호출, 일시 오류는 백오프+지터로 재시도
// 치명 오류(인증 실패 등)는 즉시 중단
func (s *AgentService) sendWithRetry(ctx context.Context, turns []client.Turn, schemas []client.ToolSchema) (*client.ModelTurn, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBackoff(attempt)
			log.Printf("Retrying provider call in %s (attempt %d/%d): %v", delay, attempt+1, s.cfg.MaxRetries, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
		turn, err := s.provider.Send(callCtx, rcaSystemPrompt, turns, schemas)
		cancel()
		if err == nil {
			return turn, nil
		}
		if errors.Is(err, client.ErrProviderFatal) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

// retryBackoff - 지수 백오프 + 지터 (1s, 2s, 4s, ... 최대 30s)
func retryBackoff(attempt int) time.Duration {
	base := time.Second << (attempt - 1)
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

// complete - finalize 인자를 검증하고 리포트 확정
func (s *AgentService) complete(report *model.RCAReport, meta *model.AnalysisMetadata, args *finalizeArgs, gaps []string) error {
	candidate := *report
	candidate.RootCause = args.RootCause
	candidate.ConfidenceScore = args.ConfidenceScore
	candidate.Summary = args.Summary
	candidate.Timeline = args.Timeline
	candidate.Evidence = args.Evidence
	candidate.RemediationSteps = args.RemediationSteps
	if err := candidate.ValidateComplete(); err != nil {
		return err
	}

	// 루프에서 감지한 텔레메트리 공백을 evidence에 병합 (근거를 지어내지 않음)
	for _, gap := range gaps {
		if !containsString(candidate.Evidence.Gaps, gap) {
			candidate.Evidence.Gaps = append(candidate.Evidence.Gaps, gap)
		}
	}

	now := time.Now().UTC()
	candidate.Status = model.ReportComplete
	candidate.CompletedAt = &now
	meta.DurationSeconds = now.Sub(report.StartedAt).Seconds()
	candidate.Metadata = meta
	*report = candidate
	return nil
}

func (s *AgentService) fail(report *model.RCAReport, meta *model.AnalysisMetadata, detail string) *model.RCAReport {
	now := time.Now().UTC()
	report.Status = model.ReportFailed
	report.ErrorMessage = &detail
	report.CompletedAt = &now
	if meta != nil {
		meta.DurationSeconds = now.Sub(report.StartedAt).Seconds()
		report.Metadata = meta
	}
	log.Printf("RCA analysis failed (incident_id=%s): %s", report.IncidentID, detail)
	return report
}

func decodeFinalizeArgs(arguments map[string]any) (*finalizeArgs, error) {
	payload, err := json.Marshal(arguments)
	if err != nil {
		return nil, fmt.Errorf("unparsable finalize-report arguments: %v", err)
	}
	var args finalizeArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, fmt.Errorf("unparsable finalize-report arguments: %v", err)
	}
	return &args, nil
}

// parseReportText - 모델이 도구 호출 없이 본문에 리포트 JSON을 낸 경우의 폴백 파싱
func parseReportText(text string) (*finalizeArgs, bool) {
	trimmed := strings.TrimSpace(text)
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}
	var args finalizeArgs
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return nil, false
	}
	if args.RootCause == "" || args.Summary == "" {
		return nil, false
	}
	return &args, true
}

// queryWindow - 조회 기본 범위: 가장 이른 알림 15분 전 ~ 현재(또는 알림 5분 후)
func queryWindow(incident *model.Incident, alerts []model.Alert) TimeRange {
	start := incident.StartedAt
	for _, alert := range alerts {
		if alert.StartsAt.Before(start) {
			start = alert.StartsAt
		}
	}
	now := time.Now().UTC()
	end := start.Add(5 * time.Minute)
	if now.After(end) {
		end = now
	}
	return TimeRange{Start: start.Add(-15 * time.Minute), End: end}
}

// openingPrompt - Incident/Alert 요약 + 시간 컨텍스트 + 쿼리 힌트
// 정확한 타임스탬프를 명시해서 모델이 시각을 지어내지 않게 함
func openingPrompt(incident *model.Incident, alerts []model.Alert, window TimeRange) string {
	type alertInfo struct {
		AlertName   string            `json:"alertname"`
		Severity    string            `json:"severity"`
		Status      string            `json:"status"`
		Labels      map[string]string `json:"labels"`
		Annotations map[string]string `json:"annotations,omitempty"`
		StartsAt    string            `json:"starts_at"`
		IsPrimary   bool              `json:"is_primary"`
	}

	infos := make([]alertInfo, 0, len(alerts))
	for _, alert := range alerts {
		isPrimary := incident.PrimaryAlertFingerprint != nil && *incident.PrimaryAlertFingerprint == alert.Fingerprint
		infos = append(infos, alertInfo{
			AlertName:   alert.AlertName(),
			Severity:    string(alert.Severity()),
			Status:      string(alert.Status),
			Labels:      alert.Labels,
			Annotations: alert.Annotations,
			StartsAt:    alert.StartsAt.UTC().Format(time.RFC3339),
			IsPrimary:   isPrimary,
		})
	}
	alertsJSON, _ := json.MarshalIndent(infos, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following incident and determine its root cause.\n\n")
	fmt.Fprintf(&b, "## Incident\n\n- id: %s\n- title: %s\n- severity: %s\n- correlation: %s\n- started_at: %s\n\n",
		incident.IncidentID, incident.Title, incident.Severity,
		incident.CorrelationReason, incident.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "## Member Alerts (%d, chronological)\n\n```json\n%s\n```\n\n", len(alerts), alertsJSON)
	fmt.Fprintf(&b, "## Time Context - USE THESE EXACT TIMESTAMPS\n\n- query start: %s\n- query end: %s\n\n",
		window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	fmt.Fprintf(&b, "## Query Hints\n\n%s\n\n", queryHints(incident, alerts))
	fmt.Fprintf(&b, "Begin by querying relevant logs and metrics, then call finalize-report.")
	return b.String()
}

// queryHints - 라벨 기반 LogQL/PromQL 시작 쿼리 제안
func queryHints(incident *model.Incident, alerts []model.Alert) string {
	labels := map[string]string{}
	for _, key := range []string{"service", "namespace", "app", "job"} {
		if v := incident.AffectedLabels[key]; v != "" {
			labels[key] = v
		}
	}
	if len(labels) == 0 && len(alerts) > 0 {
		for _, key := range []string{"service", "namespace"} {
			if v := alerts[0].Labels[key]; v != "" {
				labels[key] = v
			}
		}
	}

	hints := []string{
		fmt.Sprintf("- logs, errors only: `%s`", client.BuildErrorQuery(labels)),
		fmt.Sprintf("- logs, everything: `%s`", client.BuildLabelFilter(labels)),
	}
	if svc := labels["service"]; svc != "" {
		hints = append(hints,
			fmt.Sprintf("- metrics, error rate: `rate(http_requests_total{service=%q, status=~\"5..\"}[5m])`", svc),
			fmt.Sprintf("- metrics, restarts: `increase(kube_pod_container_status_restarts_total{namespace=%q}[15m])`", labels["namespace"]))
	}
	hints = append(hints, "- metrics, node cpu: `100 * (1 - avg(rate(node_cpu_seconds_total{mode=\"idle\"}[5m])))`")
	return strings.Join(hints, "\n")
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
