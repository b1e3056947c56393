package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// 헬스체크 엔드포인트
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// 루트 엔드포인트
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Infra RCA API server is running",
	})
}

// ReadyProbe - 의존 서비스 연결 확인, 실패는 false로만 보고
type ReadyProbe func(ctx context.Context) bool

// ReadinessHandler - DB/Loki/Cortex/LLM 연결 상태를 한 번에 점검
type ReadinessHandler struct {
	database ReadyProbe
	loki     ReadyProbe
	cortex   ReadyProbe
	llm      ReadyProbe
}

func NewReadinessHandler(database, loki, cortex, llm ReadyProbe) *ReadinessHandler {
	return &ReadinessHandler{database: database, loki: loki, cortex: cortex, llm: llm}
}

// Ready godoc
// @Summary Readiness check
// @Description Probes database, Loki, Cortex and LLM connectivity, 503 when any probe fails
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/ready [get]
func (h *ReadinessHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	database := h.database(ctx)
	loki := h.loki(ctx)
	cortex := h.cortex(ctx)
	llm := h.llm(ctx)
	ready := database && loki && cortex && llm

	checks := gin.H{
		"database": database,
		"loki":     loki,
		"cortex":   cortex,
		"llm":      llm,
	}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": ready, "checks": checks})
}
