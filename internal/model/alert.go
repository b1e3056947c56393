// Alertmanager 웹훅 페이로드 및 개별 알림 구조체를 정의
// handler, service, client 레이어에서 공통으로 사용하기 때문에 model 레이어에 별도로 정의

package model

import (
	"fmt"
	"time"
)

// AlertSeverity - 알림 심각도
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityInfo     AlertSeverity = "info"
)

// AlertStatus - 알림 상태
type AlertStatus string

const (
	AlertFiring   AlertStatus = "firing"
	AlertResolved AlertStatus = "resolved"
)

// severityRank - severity 비교용 순위 (숫자가 클수록 심각)
var severityRank = map[AlertSeverity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// MoreSevere - a가 b보다 심각한지 비교
func MoreSevere(a, b AlertSeverity) bool {
	return severityRank[a] > severityRank[b]
}

// AlertmanagerWebhook - Alertmanager 웹훅 페이로드
// 여러 개의 알림이 그룹으로 묶여서 전송 가능
type AlertmanagerWebhook struct {
	Version string `json:"version"`

	// 동일한 GroupKey를 가진 알림들은 함께 그룹핑됨
	GroupKey string `json:"groupKey"`

	// max_alerts 설정으로 인해 생략된 알림이 있을 경우 그 개수
	TruncatedAlerts int    `json:"truncatedAlerts"`
	Status          string `json:"status"`
	Receiver        string `json:"receiver"`

	// route.group_by 설정에 따라 결정되는 그룹핑에 사용된 라벨
	GroupLabels map[string]string `json:"groupLabels"`

	// 그룹 내 모든 알림에 공통으로 존재하는 라벨
	CommonLabels map[string]string `json:"commonLabels"`

	// 그룹 내 모든 알림에 공통으로 존재하는 어노테이션
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`

	// 개별 알림 리스트
	Alerts []Alert `json:"alerts"`
}

// Alert - 개별 알림
// 각 Alert은 고유한 Fingerprint를 가지며, 이를 통해 동일한 알림을 식별
type Alert struct {
	Status AlertStatus `json:"status"`

	// - alertname: 알림 이름 (예: "NetworkInterfaceDown", "HighMemoryUsage")
	// - severity: 심각도 (critical, warning, info)
	// - service / namespace / node: 상관관계 판단에 사용되는 식별 라벨
	Labels map[string]string `json:"labels"`

	// - summary: 알림 요약
	// - description: 알림 상세 설명
	// - runbook_url: 대응 매뉴얼 URL
	Annotations map[string]string `json:"annotations"`

	// StartsAt: 알림 발생 시각 (UTC)
	StartsAt time.Time `json:"startsAt"`

	// EndsAt: 알림 종료 시각 (UTC)
	// resolved 상태일 때만 유효한 값 설정
	// firing 상태일 때는 "0001-01-01T00:00:00Z"
	EndsAt time.Time `json:"endsAt"`

	// GeneratorURL: 알림을 생성한 Prometheus 쿼리 URL
	GeneratorURL string `json:"generatorURL"`

	// Fingerprint: 알림 고유 식별자 (Labels의 조합으로 생성되는 해시값)
	// 같은 조건의 알림 재전송을 식별하는 dedup 키로 사용
	Fingerprint string `json:"fingerprint"`

	// IncidentID: 상관관계 분석으로 연결된 Incident ID (미연결 시 nil)
	IncidentID *string `json:"incident_id,omitempty"`

	// ReceivedAt: 시스템이 알림을 수신한 시각
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// AlertName - alertname 라벨 조회
func (a Alert) AlertName() string {
	return a.Labels["alertname"]
}

// Severity - severity 라벨을 AlertSeverity로 변환 (알 수 없으면 warning)
func (a Alert) Severity() AlertSeverity {
	switch AlertSeverity(a.Labels["severity"]) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityInfo:
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// Resolved - resolved 상태 여부
func (a Alert) Resolved() bool {
	return a.Status == AlertResolved
}

// ValidationError - 필수 필드 누락 등 입력 검증 실패
// 해당 알림 한 건만 폐기되며 기존 Incident에는 영향을 주지 않음
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert: %s (%s)", e.Field, e.Reason)
}

// Validate - 상관관계 분석에 필요한 필수 필드 검증
func (a Alert) Validate() error {
	if a.Fingerprint == "" {
		return &ValidationError{Field: "fingerprint", Reason: "required"}
	}
	if a.AlertName() == "" {
		return &ValidationError{Field: "labels.alertname", Reason: "required"}
	}
	if a.StartsAt.IsZero() {
		return &ValidationError{Field: "startsAt", Reason: "required"}
	}
	switch a.Status {
	case AlertFiring, AlertResolved:
	default:
		return &ValidationError{Field: "status", Reason: "must be firing or resolved"}
	}
	if sev := a.Labels["severity"]; sev != "" {
		if _, ok := severityRank[AlertSeverity(sev)]; !ok {
			return &ValidationError{Field: "labels.severity", Reason: "must be critical, warning or info"}
		}
	}
	return nil
}
