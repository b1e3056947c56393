// Loki 로그 조회 클라이언트 (LogQL query_range)
//
// 환경변수:
//   - LOKI_URL: Loki 서버 URL (예: http://loki.monitoring.svc:3100)
//
// Agent 도구 계약:
//   - 결과는 limit으로 상한 (기본 500, 최대 2000), 초과분은 잘라내고 Truncated 표시
//   - 백엔드 연결 실패는 ErrToolUnavailable로 감싸서 반환 (루프를 중단시키지 않음)

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/infra-rca/backend/internal/config"
)

// ErrToolUnavailable - 조회 백엔드(Loki/Cortex)에 접근 불가
var ErrToolUnavailable = errors.New("query backend unreachable")

const (
	DefaultLogLimit = 500
	MaxLogLimit     = 2000
)

type LokiClient struct {
	baseURL    string
	httpClient *http.Client
}

// LogEntry - 조회된 로그 한 줄
type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// LogQueryResult - query-logs 도구 결과
type LogQueryResult struct {
	Entries   []LogEntry `json:"entries"`
	Truncated bool       `json:"truncated"`
}

type lokiQueryResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

func NewLokiClient(cfg config.LokiConfig) *LokiClient {
	return &LokiClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *LokiClient) IsConfigured() bool {
	return c.baseURL != ""
}

// QueryRange - LogQL range 쿼리 실행
func (c *LokiClient) QueryRange(ctx context.Context, logql string, start, end time.Time, limit int) (*LogQueryResult, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	// Loki는 나노초 타임스탬프 사용
	params := url.Values{}
	params.Set("query", logql)
	params.Set("start", strconv.FormatInt(start.UnixNano(), 10))
	params.Set("end", strconv.FormatInt(end.UnixNano(), 10))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("direction", "backward")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/loki/api/v1/query_range?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: loki: %v", ErrToolUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusBadRequest {
		// 잘못된 LogQL은 모델이 고칠 수 있으므로 그대로 전달
		return nil, fmt.Errorf("invalid LogQL query: %s", string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: loki returned status %d: %s", ErrToolUnavailable, resp.StatusCode, string(body))
	}

	var lokiResp lokiQueryResponse
	if err := json.Unmarshal(body, &lokiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	entries := make([]LogEntry, 0, limit)
	for _, stream := range lokiResp.Data.Result {
		for _, value := range stream.Values {
			ns, err := strconv.ParseInt(value[0], 10, 64)
			if err != nil {
				continue
			}
			entries = append(entries, LogEntry{
				Timestamp: time.Unix(0, ns).UTC(),
				Message:   value[1],
				Labels:    stream.Stream,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	truncated := false
	if len(entries) >= limit {
		entries = entries[:limit]
		truncated = true
	}
	return &LogQueryResult{Entries: entries, Truncated: truncated}, nil
}

// BuildLabelFilter - label map을 LogQL selector로 변환
// 예: {service="api", namespace="prod"}
func BuildLabelFilter(labels map[string]string) string {
	if len(labels) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	filters := make([]string, 0, len(keys))
	for _, k := range keys {
		filters = append(filters, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(filters, ", ") + "}"
}

// BuildErrorQuery - 에러 로그 조회용 LogQL 쿼리 생성 (Agent 힌트용)
func BuildErrorQuery(labels map[string]string) string {
	return BuildLabelFilter(labels) + ` |~ "(?i)(error|exception|fail|fatal)"`
}

func (c *LokiClient) Ready(ctx context.Context) bool {
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
