package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/infra-rca/backend/internal/model"
	"github.com/infra-rca/backend/internal/service"
)

type RcaHandler struct {
	query     *service.RcaService
	incidents *service.IncidentService
}

func NewRcaHandler(query *service.RcaService, incidents *service.IncidentService) *RcaHandler {
	return &RcaHandler{query: query, incidents: incidents}
}

// GetIncidents godoc
// @Summary List incidents
// @Tags incidents
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.IncidentListResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/incidents [get]
func (h *RcaHandler) GetIncidents(c *gin.Context) {
	res, err := h.query.GetIncidentList(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetIncidentDetail godoc
// @Summary Get incident detail
// @Description Returns the incident, its member alerts, the RCA report and similar past incidents.
// @Tags incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} model.IncidentDetailEnvelope
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/incidents/{id} [get]
func (h *RcaHandler) GetIncidentDetail(c *gin.Context) {
	id := c.Param("id")

	res, err := h.query.GetIncidentDetail(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrIncidentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.IncidentDetailEnvelope{
		Status: "success",
		Data:   res,
	})
}

// GetReport godoc
// @Summary Get RCA report
// @Tags incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} model.ReportEnvelope
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/incidents/{id}/report [get]
func (h *RcaHandler) GetReport(c *gin.Context) {
	id := c.Param("id")

	report, err := h.query.GetReport(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrIncidentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.ReportEnvelope{Status: "success", Data: report})
}

// AnalyzeIncident godoc
// @Summary Trigger RCA analysis
// @Description Re-runs the analysis. Failed analyses are not retried automatically.
// @Tags incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 202 {object} model.AnalyzeResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/v1/incidents/{id}/analyze [post]
func (h *RcaHandler) AnalyzeIncident(c *gin.Context) {
	id := c.Param("id")

	err := h.incidents.TriggerAnalysis(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, model.AnalyzeResponse{
			Status:     "accepted",
			Message:    "분석이 시작되었습니다.",
			IncidentID: id,
		})
	case errors.Is(err, service.ErrIncidentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
	case errors.Is(err, service.ErrAnalysisInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "analysis already in flight"})
	case errors.Is(err, service.ErrIncidentImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": "incident is resolved or closed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CloseIncident godoc
// @Summary Close incident
// @Tags incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} model.IncidentUpdateResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/incidents/{id}/close [post]
func (h *RcaHandler) CloseIncident(c *gin.Context) {
	id := c.Param("id")

	if err := h.incidents.ForceClose(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrIncidentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.IncidentUpdateResponse{
		Status:     "success",
		Message:    "Incident가 종료되었습니다.",
		IncidentID: id,
	})
}

// GetSimilarIncidents godoc
// @Summary Find similar past incidents
// @Tags incidents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Incident ID"
// @Param limit query int false "Max results (default 5)"
// @Success 200 {array} model.SimilarIncident
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/incidents/{id}/similar [get]
func (h *RcaHandler) GetSimilarIncidents(c *gin.Context) {
	id := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	similar, err := h.query.FindSimilar(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, similar)
}
