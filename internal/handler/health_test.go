package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newReadinessRouter(database, loki, cortex, llm bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	probe := func(ok bool) ReadyProbe {
		return func(context.Context) bool { return ok }
	}
	h := NewReadinessHandler(probe(database), probe(loki), probe(cortex), probe(llm))
	r := gin.New()
	r.GET("/health/ready", h.Ready)
	return r
}

func TestReadinessAllHealthy(t *testing.T) {
	r := newReadinessRouter(true, true, true, true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res struct {
		Ready  bool            `json:"ready"`
		Checks map[string]bool `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !res.Ready {
		t.Error("ready = false, want true")
	}
	for _, name := range []string{"database", "loki", "cortex", "llm"} {
		if !res.Checks[name] {
			t.Errorf("check %s = false, want true", name)
		}
	}
}

func TestReadinessFailingProbeReturns503(t *testing.T) {
	r := newReadinessRouter(true, false, true, true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var res struct {
		Ready  bool            `json:"ready"`
		Checks map[string]bool `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if res.Ready {
		t.Error("ready = true, want false")
	}
	if res.Checks["loki"] || !res.Checks["database"] {
		t.Errorf("checks = %v, want loki=false database=true", res.Checks)
	}
}
