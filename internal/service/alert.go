// Alertmanager 웹훅 수신 파이프라인
//
// 처리 흐름:
//  1. 웹훅 그룹 안의 개별 알림을 순서대로 처리 (그룹 단위가 아닌 알림 단위)
//  2. 검증 실패한 알림은 해당 건만 폐기하고 나머지는 계속 진행
//  3. 알림마다 상관관계 분석 -> Incident 합류/생성은 IncidentService에 위임

package service

import (
	"context"
	"log"

	"github.com/infra-rca/backend/internal/model"
)

type AlertService struct {
	incidents *IncidentService
}

func NewAlertService(incidents *IncidentService) *AlertService {
	return &AlertService{incidents: incidents}
}

// ProcessWebhook - 웹훅 한 건 처리, (처리 성공 수, 폐기 수) 반환
// 알림 일부가 실패해도 전체 웹훅은 실패하지 않음
func (s *AlertService) ProcessWebhook(ctx context.Context, webhook model.AlertmanagerWebhook) (int, int) {
	if webhook.TruncatedAlerts > 0 {
		log.Printf("Webhook group %s truncated %d alerts", webhook.GroupKey, webhook.TruncatedAlerts)
	}

	processed, rejected := 0, 0
	for _, alert := range webhook.Alerts {
		incidentID, isNew, err := s.incidents.HandleAlert(ctx, alert)
		if err != nil {
			log.Printf("Rejected alert %s: %v", alert.Fingerprint, err)
			rejected++
			continue
		}
		processed++
		if isNew {
			log.Printf("Alert %s opened incident %s", alert.AlertName(), incidentID)
		}
	}
	return processed, rejected
}
