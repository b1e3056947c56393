package model

type EmbeddingRequest struct {
	IncidentID      string `json:"incident_id"`
	IncidentSummary string `json:"incident_summary"`
}

type EmbeddingResponse struct {
	Status      string `json:"status"`
	EmbeddingID int64  `json:"embedding_id"`
	Model       string `json:"model"`
}

// SimilarIncident - embedding 코사인 거리 기반 유사 Incident 검색 결과
type SimilarIncident struct {
	IncidentID string  `json:"incident_id"`
	Summary    string  `json:"summary"`
	Distance   float64 `json:"distance"`
}
