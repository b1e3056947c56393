// Package template renders RCA reports as markdown.
//
// Slack 스레드 답글과 API 응답의 마크다운 본문 양쪽에서 사용됩니다.
// Slack mrkdwn 변환(** -> *, 헤딩 -> 볼드)은 client 레이어에서 처리합니다.
package template

import (
	"fmt"
	"strings"
	"time"

	"github.com/infra-rca/backend/internal/model"
)

// RenderReport - 완료된 RCA 리포트를 마크다운 문서로 렌더링
func RenderReport(incident *model.Incident, report *model.RCAReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("## %s\n\n", incident.Title))
	b.WriteString(fmt.Sprintf("**Incident:** %s | **Severity:** %s | **Confidence:** %d%%\n\n",
		incident.IncidentID, incident.Severity, report.ConfidenceScore))

	b.WriteString("### Root Cause\n")
	b.WriteString(report.RootCause)
	b.WriteString("\n\n### Summary\n")
	b.WriteString(report.Summary)
	b.WriteString("\n")

	if len(report.Timeline) > 0 {
		b.WriteString("\n### Timeline\n")
		for _, ev := range report.Timeline {
			line := fmt.Sprintf("- `%s` %s", ev.Timestamp, ev.Event)
			if ev.Details != "" {
				line += ": " + ev.Details
			}
			b.WriteString(line + "\n")
		}
	}

	if len(report.RemediationSteps) > 0 {
		b.WriteString("\n### Remediation\n")
		for i, step := range report.RemediationSteps {
			b.WriteString(fmt.Sprintf("%d. [%s] %s (risk: %s)\n", i+1, step.Priority, step.Action, step.Risk))
			if step.Command != "" {
				b.WriteString(fmt.Sprintf("   ```\n   %s\n   ```\n", step.Command))
			}
		}
	}

	if len(report.Evidence.Gaps) > 0 {
		b.WriteString("\n### Data Gaps\n")
		for _, gap := range report.Evidence.Gaps {
			b.WriteString("- " + gap + "\n")
		}
	}

	if report.Metadata != nil {
		b.WriteString(fmt.Sprintf("\n_%s/%s, %d tokens, %.1fs_\n",
			report.Metadata.Provider, report.Metadata.Model,
			report.Metadata.TokensUsed, report.Metadata.DurationSeconds))
	}
	return b.String()
}

// RenderFailure - 실패한 분석을 짧은 마크다운으로 렌더링
func RenderFailure(incident *model.Incident, report *model.RCAReport) string {
	msg := "unknown error"
	if report.ErrorMessage != nil {
		msg = *report.ErrorMessage
	}
	when := report.StartedAt.Format(time.RFC3339)
	if report.CompletedAt != nil {
		when = report.CompletedAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("## %s\n\n**RCA analysis failed** at %s\n\n> %s\n", incident.Title, when, msg)
}
