package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/infra-rca/backend/internal/model"
	"github.com/infra-rca/backend/internal/service"
)

type AlertmanagerHandler struct {
	svc *service.AlertService
}

func NewAlertmanagerHandler(svc *service.AlertService) *AlertmanagerHandler {
	return &AlertmanagerHandler{svc: svc}
}

// Webhook godoc
// @Summary Receive Alertmanager webhook
// @Description Correlates each alert into an incident and triggers RCA analysis.
// @Tags alerts
// @Accept json
// @Produce json
// @Param request body model.AlertmanagerWebhook true "Alertmanager webhook payload"
// @Success 200 {object} model.AlertWebhookResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/alerts/webhook [post]
func (h *AlertmanagerHandler) Webhook(c *gin.Context) {
	var webhook model.AlertmanagerWebhook

	// Alertmanager가 보낸 페이로드를 AlertmanagerWebhook 구조체로 변환
	if err := c.ShouldBindJSON(&webhook); err != nil {
		log.Printf("Failed to parse webhook: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	// status: firing(발생) 또는 resolved(해결)
	// alertCount: 이번 웹훅에 포함된 알림 개수
	log.Printf("Received alert webhook: status=%s, alertCount=%d, receiver=%s",
		webhook.Status, len(webhook.Alerts), webhook.Receiver)

	processed, rejected := h.svc.ProcessWebhook(c.Request.Context(), webhook)

	c.JSON(http.StatusOK, model.AlertWebhookResponse{
		Status:     "received",
		AlertCount: len(webhook.Alerts),
		Processed:  processed,
		Rejected:   rejected,
	})
}
