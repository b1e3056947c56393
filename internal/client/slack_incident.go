// Slack Incident 알림 메시지 관련 메서드 정의

package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/infra-rca/backend/internal/model"
)

// Incident 생성/해소 알림을 Slack으로 전송
//
// opened와 resolved 알림을 다르게 처리:
//   - opened: 새 메시지 전송 후 thread_ts 저장
//   - resolved: 기존 쓰레드에 답글로 전송 후 thread_ts 삭제
func (c *SlackClient) SendIncidentOpened(incident *model.Incident, primary model.Alert) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	severity := string(incident.Severity)
	title := fmt.Sprintf("🔥 [%s] %s", severity, incident.Title)

	fields := []SlackField{
		{Title: "Primary Alert", Value: primary.AlertName(), Short: true},
		{Title: "Severity", Value: severity, Short: true},
		{Title: "Services", Value: strings.Join(incident.AffectedServices, ", "), Short: true},
		{Title: "Started", Value: incident.StartedAt.Format(time.RFC3339), Short: true},
	}
	if incident.CorrelationReason != "" {
		fields = append(fields, SlackField{Title: "Correlation", Value: incident.CorrelationReason, Short: false})
	}
	// Incident 페이지 링크 추가
	if c.frontendURL != "" {
		link := fmt.Sprintf("<%s/incidents/%s|🔍 Incident 대시보드 보러가기>", c.frontendURL, incident.IncidentID)
		fields = append(fields, SlackField{Title: "Incident", Value: link, Short: false})
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color:      colorBySeverity(incident.Severity),
				Title:      title,
				Text:       primary.Annotations["description"],
				Fields:     fields,
				Footer:     "infra-rca",
				FooterIcon: "https://kubernetes.io/images/favicon.png",
				Ts:         time.Now().Unix(),
			},
		},
	}

	resp, err := c.send(msg)
	if err != nil {
		return err
	}
	if resp.TS != "" {
		c.StoreThreadTS(incident.IncidentID, resp.TS)
	}
	return nil
}

func (c *SlackClient) SendIncidentResolved(incident *model.Incident) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	resolvedAt := time.Now()
	if incident.ResolvedAt != nil {
		resolvedAt = *incident.ResolvedAt
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color: "#36a64f", // green
				Title: fmt.Sprintf("✅ [resolved] %s", incident.Title),
				Fields: []SlackField{
					{Title: "Started", Value: incident.StartedAt.Format(time.RFC3339), Short: true},
					{Title: "Resolved", Value: resolvedAt.Format(time.RFC3339), Short: true},
				},
				Footer: "infra-rca",
				Ts:     time.Now().Unix(),
			},
		},
	}

	// resolved 알림: 기존 쓰레드로 전송
	if threadTS, ok := c.GetThreadTS(incident.IncidentID); ok {
		msg.ThreadTS = threadTS
	}

	_, err := c.send(msg)
	if err != nil {
		return err
	}
	c.DeleteThreadTS(incident.IncidentID)
	return nil
}

// Severity에 따른 적절한 메시지 색상 반환
func colorBySeverity(severity model.AlertSeverity) string {
	switch severity {
	case model.SeverityCritical:
		return "#dc3545" // red
	case model.SeverityWarning:
		return "#ffc107" // yellow
	default:
		return "#17a2b8" // blue
	}
}

// toSlackMarkdown - 일반 Markdown을 Slack mrkdwn으로 변환
// 코드 블록과 인라인 코드 안의 내용은 건드리지 않음
func toSlackMarkdown(text string) string {
	var out strings.Builder
	parts := strings.Split(text, "```")
	for i, part := range parts {
		if i > 0 {
			out.WriteString("```")
		}
		if i%2 == 1 {
			out.WriteString(part)
			continue
		}
		out.WriteString(slackInline(part))
	}
	return out.String()
}

func slackInline(text string) string {
	var out strings.Builder
	spans := strings.Split(text, "`")
	for i, span := range spans {
		if i > 0 {
			out.WriteString("`")
		}
		if i%2 == 1 {
			out.WriteString(span)
			continue
		}
		out.WriteString(slackPlain(span))
	}
	return out.String()
}

// slackPlain - heading을 굵은 글씨로, **bold**를 *bold*로 변환
func slackPlain(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		stripped := strings.TrimLeft(line, "#")
		if stripped != line && strings.HasPrefix(stripped, " ") {
			line = "*" + strings.TrimSpace(stripped) + "*"
		}
		lines[i] = strings.ReplaceAll(line, "**", "*")
	}
	return strings.Join(lines, "\n")
}
