// 외부 Slack API와 통신하는 클라이언트 정의
// Client 레이어에서만 사용하는 구조체 및 Slack 공통 메서드 정의
//
// 환경변수:
//   - SLACK_BOT_TOKEN: Slack Bot Token (xoxb-...)
//   - SLACK_CHANNEL_ID: Slack 채널 ID (C...)
//
// Webhook 대신 Bot Token을 사용하는 이유:
//   - thread_ts 반환: 메시지 전송 후 timestamp를 받아 쓰레드 관리 가능
//   - 스레드 답글: RCA 리포트와 resolved 알림을 Incident 쓰레드로 전송 가능

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/infra-rca/backend/internal/config"
)

// SlackClient(메시지 메타데이터) 구조체 정의
type SlackClient struct {
	botToken    string
	channelID   string
	frontendURL string
	httpClient  *http.Client

	// threadMap: incident_id -> thread_ts 매핑
	//   - RCA 리포트와 resolved 알림을 Incident 생성 메시지 쓰레드로 보내기 위함
	// sync.Map 사용 이유: 동시성 안전 (여러 Incident가 동시에 처리될 수 있음)
	threadMap sync.Map

	// store: thread_ts 영속화 (nil이면 메모리만 사용)
	store ThreadStore
}

// ThreadStore - thread_ts를 저장소에 보관해 재기동 후에도 쓰레드 연결 유지
type ThreadStore interface {
	SaveThreadTS(ctx context.Context, incidentID, threadTS string) error
	LoadThreadTS(ctx context.Context, incidentID string) (string, error)
}

// SlackMessage(메시지 내용) 구조체 정의
type SlackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
	ThreadTS    string            `json:"thread_ts,omitempty"`
}

// SlackAttachment(메시지 포맷) 구조체 정의
type SlackAttachment struct {
	// - critical: #dc3545 (빨강)
	// - warning: #ffc107 (노랑)
	// - resolved: #36a64f (초록)
	Color      string       `json:"color"`
	Title      string       `json:"title"`
	Text       string       `json:"text"`
	Footer     string       `json:"footer,omitempty"`
	FooterIcon string       `json:"footer_icon,omitempty"`
	Ts         int64        `json:"ts,omitempty"`
	Fields     []SlackField `json:"fields,omitempty"`
}

// SlackField(메시지 포맷 필드) 구조체 정의
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// SlackResponse(메시지 응답) 구조체 정의
type SlackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

// SlackClient 객체 생성
func NewSlackClient(cfg config.SlackConfig) *SlackClient {
	return &SlackClient{
		botToken:    cfg.BotToken,
		channelID:   cfg.ChannelID,
		frontendURL: cfg.FrontendURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SlackClient에 Bot Token과 Channel ID가 모두 설정되어 있는지 체크
func (c *SlackClient) IsConfigured() bool {
	return c.botToken != "" && c.channelID != ""
}

// Slack API 호출
func (c *SlackClient) send(msg SlackMessage) (*SlackResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequest("POST", "https://slack.com/api/chat.postMessage", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var slackResp SlackResponse
	if err := json.Unmarshal(body, &slackResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !slackResp.OK {
		return nil, fmt.Errorf("slack API error: %s", slackResp.Error)
	}

	return &slackResp, nil
}

// SetThreadStore - thread_ts 영속 저장소 연결
func (c *SlackClient) SetThreadStore(store ThreadStore) {
	c.store = store
}

// Incident 생성 알림 전송 후 thread_ts를 저장
func (c *SlackClient) StoreThreadTS(incidentID, threadTS string) {
	c.threadMap.Store(incidentID, threadTS)
	if c.store != nil {
		if err := c.store.SaveThreadTS(context.Background(), incidentID, threadTS); err != nil {
			log.Printf("Failed to persist slack thread_ts for %s: %v", incidentID, err)
		}
	}
}

// 쓰레드 답글 전송 전 thread_ts를 조회
// 메모리에 없으면 저장소에서 복원 (재기동 후의 resolved/리포트 답글 대응)
func (c *SlackClient) GetThreadTS(incidentID string) (string, bool) {
	if val, ok := c.threadMap.Load(incidentID); ok {
		return val.(string), true
	}
	if c.store != nil {
		threadTS, err := c.store.LoadThreadTS(context.Background(), incidentID)
		if err != nil {
			log.Printf("Failed to load slack thread_ts for %s: %v", incidentID, err)
			return "", false
		}
		if threadTS != "" {
			c.threadMap.Store(incidentID, threadTS)
			return threadTS, true
		}
	}
	return "", false
}

// Incident 종료 후 thread_ts를 제거 (메모리 정리)
func (c *SlackClient) DeleteThreadTS(incidentID string) {
	c.threadMap.Delete(incidentID)
}

// RCA 리포트를 Incident 쓰레드에 전송
func (c *SlackClient) SendReportToThread(incidentID, markdown string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color: "#6f42c1", // purple for AI analysis
				Title: "🤖 RCA 분석 결과",
				Text:  toSlackMarkdown(markdown),
			},
		},
	}
	if threadTS, ok := c.GetThreadTS(incidentID); ok {
		msg.ThreadTS = threadTS
	}

	_, err := c.send(msg)
	return err
}
