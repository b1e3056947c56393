package model

import "time"

// ============================================================================
// Incident 모델 (장애 단위)
// ============================================================================

// IncidentStatus - Incident 상태
type IncidentStatus string

const (
	IncidentOpen      IncidentStatus = "open"
	IncidentAnalyzing IncidentStatus = "analyzing"
	IncidentResolved  IncidentStatus = "resolved"
	IncidentClosed    IncidentStatus = "closed"
)

// ValidTransitions - 허용되는 상태 전이
// analyzing -> open은 분석 완료/실패 양쪽에서 사용 (재진입 가능)
// resolved/closed는 불변 이력으로 취급하며 재오픈하지 않음
var ValidTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentOpen:      {IncidentAnalyzing, IncidentResolved, IncidentClosed},
	IncidentAnalyzing: {IncidentOpen, IncidentResolved, IncidentClosed},
	IncidentResolved:  {IncidentClosed},
	IncidentClosed:    {},
}

// CanTransition - from에서 to로의 전이 허용 여부
func CanTransition(from, to IncidentStatus) bool {
	for _, next := range ValidTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Incident - 상관관계로 묶인 알림 그룹
//
// Alert와의 순환 참조를 피하기 위해 멤버는 fingerprint 목록으로만 보관하고
// 전체 Alert 데이터는 DB 조회로 해석
type Incident struct {
	IncidentID string         `json:"incident_id"`
	Title      string         `json:"title"`
	Status     IncidentStatus `json:"status"`

	// Severity: 멤버 알림 중 가장 높은 심각도
	Severity AlertSeverity `json:"severity"`

	// PrimaryAlertFingerprint: 근본 원인으로 추정되는 대표 알림
	PrimaryAlertFingerprint *string `json:"primary_alert_fingerprint"`

	// CorrelationReason: 알림이 묶인 근거 (사람이 읽는 설명)
	CorrelationReason string `json:"correlation_reason"`

	// AffectedServices: 멤버 알림의 service/app/job/device 라벨 집합
	AffectedServices []string `json:"affected_services"`

	// AffectedLabels: 상관관계 판단에 사용되는 라벨의 병합본
	AffectedLabels map[string]string `json:"affected_labels"`

	// StartedAt: 가장 이른 멤버 알림의 발생 시각
	StartedAt time.Time `json:"started_at"`

	// ResolvedAt: 모든 멤버 알림이 resolved된 시각 (미해결 시 nil)
	ResolvedAt *time.Time `json:"resolved_at"`

	// RCACompletedAt: RCA 분석 완료 시각 (미완료 시 nil)
	RCACompletedAt *time.Time `json:"rca_completed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen - 새 알림을 받을 수 있는 상태인지 (open 또는 analyzing)
func (i *Incident) IsOpen() bool {
	return i.Status == IncidentOpen || i.Status == IncidentAnalyzing
}
