// Cortex 메트릭 조회 클라이언트 (PromQL query_range)
//
// 환경변수:
//   - CORTEX_URL: Cortex 서버 URL (예: http://cortex.monitoring.svc:9009)

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/infra-rca/backend/internal/config"
)

const maxSeriesPoints = 500

type CortexClient struct {
	baseURL    string
	httpClient *http.Client
}

// MetricPoint - 시계열의 한 점
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricSeries - label 조합 하나의 시계열
type MetricSeries struct {
	Labels map[string]string `json:"labels"`
	Points []MetricPoint     `json:"points"`
}

// MetricQueryResult - query-metrics 도구 결과
type MetricQueryResult struct {
	Series    []MetricSeries `json:"series"`
	Truncated bool           `json:"truncated"`
}

type cortexQueryResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Metric map[string]string `json:"metric"`
			Values [][2]any          `json:"values"`
		} `json:"result"`
	} `json:"data"`
	Error string `json:"error"`
}

func NewCortexClient(cfg config.CortexConfig) *CortexClient {
	return &CortexClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *CortexClient) IsConfigured() bool {
	return c.baseURL != ""
}

func (c *CortexClient) Ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/ready", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// QueryRange - PromQL range 쿼리 실행
func (c *CortexClient) QueryRange(ctx context.Context, promql string, start, end time.Time, step time.Duration) (*MetricQueryResult, error) {
	if step <= 0 {
		step = time.Minute
	}

	params := url.Values{}
	params.Set("query", promql)
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("step", strconv.Itoa(int(step.Seconds()))+"s")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/prom/query_range?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: cortex: %v", ErrToolUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("invalid PromQL query: %s", string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: cortex returned status %d: %s", ErrToolUnavailable, resp.StatusCode, string(body))
	}

	var cortexResp cortexQueryResponse
	if err := json.Unmarshal(body, &cortexResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if cortexResp.Status != "success" {
		return nil, fmt.Errorf("cortex query failed: %s", cortexResp.Error)
	}

	result := &MetricQueryResult{Series: []MetricSeries{}}
	for _, raw := range cortexResp.Data.Result {
		series := MetricSeries{Labels: raw.Metric, Points: make([]MetricPoint, 0, len(raw.Values))}
		for _, value := range raw.Values {
			point, ok := parsePromPoint(value)
			if !ok {
				continue
			}
			series.Points = append(series.Points, point)
		}
		// 시계열이 너무 길면 뒤쪽(최근)을 우선 유지
		if len(series.Points) > maxSeriesPoints {
			series.Points = series.Points[len(series.Points)-maxSeriesPoints:]
			result.Truncated = true
		}
		result.Series = append(result.Series, series)
	}
	return result, nil
}

// parsePromPoint - Prometheus value 쌍 [unix_ts, "value"] 파싱
func parsePromPoint(value [2]any) (MetricPoint, bool) {
	ts, ok := value[0].(float64)
	if !ok {
		return MetricPoint{}, false
	}
	str, ok := value[1].(string)
	if !ok {
		return MetricPoint{}, false
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return MetricPoint{}, false
	}
	return MetricPoint{Timestamp: time.Unix(int64(ts), 0).UTC(), Value: v}, true
}
