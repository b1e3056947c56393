package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// RCA Report 모델 (Incident 당 1건)
// ============================================================================

// ReportStatus - RCA 리포트 상태
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportComplete ReportStatus = "complete"
	ReportFailed   ReportStatus = "failed"
)

// RemediationPriority - 조치 우선순위
type RemediationPriority string

const (
	PriorityImmediate RemediationPriority = "immediate"
	PriorityShortTerm RemediationPriority = "short_term"
	PriorityLongTerm  RemediationPriority = "long_term"
)

// RemediationRisk - 조치 위험도
type RemediationRisk string

const (
	RiskLow    RemediationRisk = "low"
	RiskMedium RemediationRisk = "medium"
	RiskHigh   RemediationRisk = "high"
)

// TimelineEvent - 장애 진행 순서의 한 항목
type TimelineEvent struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Source    string `json:"source,omitempty"` // alert, log, metric
	Details   string `json:"details,omitempty"`
}

// LogEvidence - 근거로 제시된 로그 발췌
type LogEvidence struct {
	Timestamp string            `json:"timestamp"`
	Message   string            `json:"message"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// MetricEvidence - 근거로 제시된 메트릭 포인트
type MetricEvidence struct {
	Query       string            `json:"query"`
	Labels      map[string]string `json:"labels,omitempty"`
	Observation string            `json:"observation"`
}

// EvidenceBundle - 로그/메트릭 근거 묶음
// 텔레메트리 수집 실패 시 Gaps에 누락 사유를 기록 (근거를 지어내지 않음)
type EvidenceBundle struct {
	Logs    []LogEvidence    `json:"logs"`
	Metrics []MetricEvidence `json:"metrics"`
	Gaps    []string         `json:"gaps,omitempty"`
}

// RemediationStep - 개별 조치 항목
type RemediationStep struct {
	Priority    RemediationPriority `json:"priority"`
	Action      string              `json:"action"`
	Command     string              `json:"command,omitempty"`
	Description string              `json:"description,omitempty"`
	Risk        RemediationRisk     `json:"risk"`
}

// AnalysisMetadata - 분석 실행 메타데이터 (LLM provider/model, 사용량)
type AnalysisMetadata struct {
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	TokensUsed      int     `json:"tokens_used"`
	ToolCalls       int     `json:"tool_calls"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RCAReport - Agent 분석 결과
//
// 불변식:
//   - ConfidenceScore ∈ [0,100]
//   - complete이면 RootCause 비어있지 않고 RemediationSteps ≥ 1
//   - failed이면 ErrorMessage 비어있지 않음
//
// 한 번 complete/failed로 확정되면 재분석 요청 전까지 불변
type RCAReport struct {
	ReportID        string            `json:"report_id"`
	IncidentID      string            `json:"incident_id"`
	RootCause       string            `json:"root_cause"`
	ConfidenceScore int               `json:"confidence_score"`
	Summary         string            `json:"summary"`
	Timeline        []TimelineEvent   `json:"timeline"`
	Evidence        EvidenceBundle    `json:"evidence"`
	RemediationSteps []RemediationStep `json:"remediation_steps"`
	Status          ReportStatus      `json:"status"`
	ErrorMessage    *string           `json:"error_message,omitempty"`
	Metadata        *AnalysisMetadata `json:"metadata,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// ValidateComplete - complete 리포트의 불변식 검증
// finalize-report 도구 인자 검증에도 사용됨
func (r *RCAReport) ValidateComplete() error {
	if strings.TrimSpace(r.RootCause) == "" {
		return fmt.Errorf("root_cause is required")
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 100 {
		return fmt.Errorf("confidence_score must be between 0 and 100, got %d", r.ConfidenceScore)
	}
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("summary is required")
	}
	if len(r.RemediationSteps) == 0 {
		return fmt.Errorf("at least one remediation step is required")
	}
	for i, step := range r.RemediationSteps {
		if strings.TrimSpace(step.Action) == "" {
			return fmt.Errorf("remediation_steps[%d].action is required", i)
		}
		switch step.Priority {
		case PriorityImmediate, PriorityShortTerm, PriorityLongTerm:
		default:
			return fmt.Errorf("remediation_steps[%d].priority must be immediate, short_term or long_term", i)
		}
		switch step.Risk {
		case RiskLow, RiskMedium, RiskHigh, "":
		default:
			return fmt.Errorf("remediation_steps[%d].risk must be low, medium or high", i)
		}
	}
	return nil
}

// MarshalEvidence - DB JSONB 저장용 직렬화
func (r *RCAReport) MarshalEvidence() (timeline, evidence, steps []byte, err error) {
	if timeline, err = json.Marshal(r.Timeline); err != nil {
		return nil, nil, nil, err
	}
	if evidence, err = json.Marshal(r.Evidence); err != nil {
		return nil, nil, nil, err
	}
	if steps, err = json.Marshal(r.RemediationSteps); err != nil {
		return nil, nil, nil, err
	}
	return timeline, evidence, steps, nil
}
