package model

import (
	"encoding/json"
	"time"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type AuthLogoutResponse struct {
	Status string `json:"status"`
}

type AuthMeResponse struct {
	UserID  int64  `json:"userId"`
	LoginID string `json:"loginId"`
}

// AlertWebhookResponse - Alertmanager 웹훅 수신 응답
type AlertWebhookResponse struct {
	Status     string `json:"status"`
	AlertCount int    `json:"alertCount"`
	Processed  int    `json:"processed"`
	Rejected   int    `json:"rejected"`
}

// IncidentListResponse - Incident 목록 조회용 구조체
type IncidentListResponse struct {
	IncidentID string         `json:"incident_id"`
	Title      string         `json:"title"`
	Severity   AlertSeverity  `json:"severity"`
	Status     IncidentStatus `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	ResolvedAt *time.Time     `json:"resolved_at"`
	AlertCount int            `json:"alert_count"` // 연결된 Alert 개수
}

// IncidentDetailResponse - Incident 상세 조회용 구조체
type IncidentDetailResponse struct {
	Incident Incident `json:"incident"`

	// 연결된 Alert 목록 (상세 조회 시 포함)
	Alerts []Alert `json:"alerts"`

	// RCA 리포트 (없으면 nil)
	Report *RCAReport `json:"report,omitempty"`

	// 유사 과거 Incident (embedding 검색 결과, JSONB 그대로 전달)
	SimilarIncidents json.RawMessage `json:"similar_incidents,omitempty" swaggertype:"object"`
}

// IncidentDetailEnvelope - Incident 상세 API 응답 구조체
type IncidentDetailEnvelope struct {
	Status string                  `json:"status"`
	Data   *IncidentDetailResponse `json:"data"`
}

// IncidentUpdateResponse - Incident 수정 API 응답 구조체
type IncidentUpdateResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	IncidentID string `json:"incident_id"`
}

// AnalyzeResponse - 수동 (재)분석 트리거 응답
type AnalyzeResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	IncidentID string `json:"incident_id"`
}

// ReportEnvelope - RCA 리포트 조회 응답 구조체
type ReportEnvelope struct {
	Status string     `json:"status"`
	Data   *RCAReport `json:"data"`
}
