// Agent 도구 정의 및 실행
//
// 도구 집합은 고정: query-logs, query-metrics, finalize-report
// 인자 파싱/검증 실패는 에러 결과로 대화에 되돌려보내고 (모델이 고쳐서 재시도),
// 백엔드 접근 불가는 ErrToolUnavailable로 구분해 데이터 공백으로 처리

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/infra-rca/backend/internal/client"
)

const (
	ToolQueryLogs      = "query-logs"
	ToolQueryMetrics   = "query-metrics"
	ToolFinalizeReport = "finalize-report"
)

type LogQuerier interface {
	QueryRange(ctx context.Context, logql string, start, end time.Time, limit int) (*client.LogQueryResult, error)
}

type MetricQuerier interface {
	QueryRange(ctx context.Context, promql string, start, end time.Time, step time.Duration) (*client.MetricQueryResult, error)
}

// TimeRange - 도구 호출의 기본 조회 범위 (start/end 생략 시 사용)
type TimeRange struct {
	Start time.Time
	End   time.Time
}

type QueryToolset struct {
	logs    LogQuerier
	metrics MetricQuerier
}

func NewQueryToolset(logs LogQuerier, metrics MetricQuerier) *QueryToolset {
	return &QueryToolset{logs: logs, metrics: metrics}
}

// Schemas - provider에 전달할 도구 정의 (finalize-report 포함)
func (t *QueryToolset) Schemas() []client.ToolSchema {
	return []client.ToolSchema{
		{
			Name: ToolQueryLogs,
			Description: "Query logs from Loki using LogQL. Returns log lines with timestamps and labels. " +
				"Use label selectors like {service=\"payment\"} |= \"error\" to narrow down.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "LogQL query string, e.g. '{namespace=\"prod\"} |~ \"(ERROR|WARN)\"'",
					},
					"start": map[string]any{
						"type":        "string",
						"description": "RFC 3339 start time (the stored incident window is always applied)",
					},
					"end": map[string]any{
						"type":        "string",
						"description": "RFC 3339 end time (the stored incident window is always applied)",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum log entries to return (default 500, max 2000)",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name: ToolQueryMetrics,
			Description: "Query metrics from Cortex using PromQL over a time range. " +
				"Returns series with per-step data points.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "PromQL query string, e.g. 'rate(http_requests_total{service=\"payment\"}[5m])'",
					},
					"start": map[string]any{
						"type":        "string",
						"description": "RFC 3339 start time (the stored incident window is always applied)",
					},
					"end": map[string]any{
						"type":        "string",
						"description": "RFC 3339 end time (the stored incident window is always applied)",
					},
					"step": map[string]any{
						"type":        "string",
						"description": "Query resolution step as a duration, e.g. '60s' (default 60s)",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name: ToolFinalizeReport,
			Description: "Submit the final root cause analysis report. Call this exactly once, " +
				"after gathering enough evidence. Every complete report needs a root cause, " +
				"a confidence score and at least one remediation step.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"root_cause": map[string]any{
						"type":        "string",
						"description": "The identified root cause of the incident",
					},
					"confidence_score": map[string]any{
						"type":        "integer",
						"description": "Confidence in the root cause, 0-100",
					},
					"summary": map[string]any{
						"type":        "string",
						"description": "Short human-readable incident summary",
					},
					"timeline": map[string]any{
						"type":        "array",
						"description": "Chronological list of events leading to the incident",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"timestamp": map[string]any{"type": "string"},
								"event":     map[string]any{"type": "string"},
								"source":    map[string]any{"type": "string", "description": "alert, log or metric"},
								"details":   map[string]any{"type": "string"},
							},
							"required": []string{"timestamp", "event"},
						},
					},
					"evidence": map[string]any{
						"type":        "object",
						"description": "Supporting evidence. Only include data actually observed via tools.",
						"properties": map[string]any{
							"logs": map[string]any{
								"type": "array",
								"items": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"timestamp": map[string]any{"type": "string"},
										"message":   map[string]any{"type": "string"},
										"labels":    map[string]any{"type": "object"},
									},
									"required": []string{"timestamp", "message"},
								},
							},
							"metrics": map[string]any{
								"type": "array",
								"items": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"query":       map[string]any{"type": "string"},
										"labels":      map[string]any{"type": "object"},
										"observation": map[string]any{"type": "string"},
									},
									"required": []string{"query", "observation"},
								},
							},
						},
					},
					"remediation_steps": map[string]any{
						"type":        "array",
						"description": "Ordered remediation actions",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"priority": map[string]any{
									"type": "string",
									"enum": []string{"immediate", "short_term", "long_term"},
								},
								"action":      map[string]any{"type": "string"},
								"command":     map[string]any{"type": "string"},
								"description": map[string]any{"type": "string"},
								"risk": map[string]any{
									"type": "string",
									"enum": []string{"low", "medium", "high"},
								},
							},
							"required": []string{"priority", "action", "risk"},
						},
					},
				},
				"required": []string{"root_cause", "confidence_score", "summary", "remediation_steps"},
			},
		},
	}
}

// Execute - query-logs / query-metrics 실행 (finalize-report는 루프가 직접 처리)
// 반환 에러가 ErrToolUnavailable이거나 타임아웃이면 데이터 공백으로 취급됨
func (t *QueryToolset) Execute(ctx context.Context, call client.ToolCall, window TimeRange) (string, error) {
	switch call.Name {
	case ToolQueryLogs:
		return t.executeQueryLogs(ctx, call.Arguments, window)
	case ToolQueryMetrics:
		return t.executeQueryMetrics(ctx, call.Arguments, window)
	default:
		return "", fmt.Errorf("unknown tool: %s (available: %s, %s, %s)",
			call.Name, ToolQueryLogs, ToolQueryMetrics, ToolFinalizeReport)
	}
}

func (t *QueryToolset) executeQueryLogs(ctx context.Context, args map[string]any, window TimeRange) (string, error) {
	query, err := stringArg(args, "query", true)
	if err != nil {
		return "", err
	}
	start, end, err := timeRangeArgs(args, window)
	if err != nil {
		return "", err
	}
	limit := intArg(args, "limit", client.DefaultLogLimit)

	result, err := t.logs.QueryRange(ctx, query, start, end, limit)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal log result: %w", err)
	}
	return string(payload), nil
}

func (t *QueryToolset) executeQueryMetrics(ctx context.Context, args map[string]any, window TimeRange) (string, error) {
	query, err := stringArg(args, "query", true)
	if err != nil {
		return "", err
	}
	start, end, err := timeRangeArgs(args, window)
	if err != nil {
		return "", err
	}
	step := time.Minute
	if raw, err := stringArg(args, "step", false); err == nil && raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return "", fmt.Errorf("invalid step %q: must be a positive duration like '60s'", raw)
		}
		step = parsed
	}

	result, err := t.metrics.QueryRange(ctx, query, start, end, step)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metric result: %w", err)
	}
	return string(payload), nil
}

// timeRangeArgs - 조회 범위는 항상 저장된 Incident 윈도우로 고정
//
// 모델이 보낸 start/end는 환각된 타임스탬프일 수 있으므로 신뢰하지 않고,
// 윈도우와 다르면 로그만 남긴 뒤 버림
func timeRangeArgs(args map[string]any, window TimeRange) (time.Time, time.Time, error) {
	start := window.Start
	end := window.End

	if raw, err := stringArg(args, "start", false); err == nil && raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err != nil || !parsed.Equal(start) {
			log.Printf("Overriding model-supplied start %q with incident window %s", raw, start.Format(time.RFC3339))
		}
	}
	if raw, err := stringArg(args, "end", false); err == nil && raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err != nil || !parsed.Equal(end) {
			log.Printf("Overriding model-supplied end %q with incident window %s", raw, end.Format(time.RFC3339))
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range: end %s must be after start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return start, end, nil
}

func stringArg(args map[string]any, key string, required bool) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return "", fmt.Errorf("missing required argument %q", key)
		}
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	if required && value == "" {
		return "", fmt.Errorf("argument %q must not be empty", key)
	}
	return value, nil
}

// intArg - JSON 숫자는 float64로 디코딩되므로 양쪽 모두 처리
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return fallback
}
