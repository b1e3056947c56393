// Alert 상관관계 엔진
// 새로 들어온 알림을 열려 있는 Incident와 비교해 합류/신규 생성을 결정
//
// 처리 흐름:
//  1. 시간 윈도우(기본 ±5분) 안의 open/analyzing Incident만 후보로 선정
//  2. 후보별로 독립 신호의 합으로 점수 계산 (라벨 일치, 교차 참조, 의미 유사도 등)
//  3. 최소 점수(기본 2) 이상 중 최고점 Incident에 합류
//     - 동점이면 시간 간격이 작은 쪽, 그래도 같으면 ID 사전순이 작은 쪽 (결정적)
//  4. 후보가 없으면 신규 Incident 생성 (해당 알림이 대표 알림)

package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/infra-rca/backend/internal/config"
	"github.com/infra-rca/backend/internal/model"
)

// CorrelationLabels - 직접 일치를 보는 식별 라벨
var CorrelationLabels = []string{"service", "namespace", "node", "instance", "job", "app"}

// InfrastructureLabels - namespace를 넘어 묶을 수 있는 인프라 라벨
var InfrastructureLabels = []string{"datacenter", "network_segment", "cluster", "zone", "region", "rack", "network_path"}

// CrossReferenceLabels - 다른 개체를 가리키는 참조 라벨
var CrossReferenceLabels = []string{"target_node", "destination", "source", "peer", "upstream", "downstream", "dependency"}

// identityLabels - 교차 참조의 대상이 되는 개체 식별 라벨
var identityLabels = []string{"node", "instance", "service", "device", "host"}

// infraAlertPatterns - 인프라 장애(근본 원인일 가능성이 높음)를 암시하는 알림명 패턴
var infraAlertPatterns = []string{
	"interface", "bgp", "ospf", "network", "route", "switch", "router",
	"connectivity", "partition", "unreachable", "carrier", "link",
}

// causalIndicators - 대표 알림 선정용 인과 지표 (점수가 클수록 근본 원인에 가까움)
var causalIndicators = map[string]int{
	// 인프라 알림 - 최우선 (근본 원인)
	"interface": 15,
	"bgp":       14,
	"carrier":   14,
	"ospf":      13,
	"partition": 13,
	"route":     12,
	"network":   11,
	// 자원 고갈 알림
	"disk":    10,
	"storage": 10,
	"memory":  9,
	"oom":     9,
	"cpu":     8,
	"quota":   8,
	// 증상 알림 - 낮은 우선순위
	"connectivity": 5,
	"error":        4,
	"health":       3,
	"timeout":      3,
	"latency":      3,
	"unavailable":  2,
}

// IncidentCandidate - 상관관계 후보 (대표 알림 포함)
type IncidentCandidate struct {
	Incident *model.Incident
	Primary  *model.Alert
}

// CorrelationDecision - 상관관계 판정 결과
// Incident가 nil이면 신규 Incident를 생성해야 함
type CorrelationDecision struct {
	Incident *model.Incident
	Score    int
	Reason   string
}

type CorrelationEngine struct {
	cfg        config.CorrelationConfig
	similarity Similarity
}

func NewCorrelationEngine(cfg config.CorrelationConfig, similarity Similarity) *CorrelationEngine {
	return &CorrelationEngine{cfg: cfg, similarity: similarity}
}

// Correlate - 알림 하나를 후보 Incident들과 비교해 판정
// 같은 입력에 대해 항상 같은 결과를 반환함 (point-in-time 순수 계산)
func (e *CorrelationEngine) Correlate(ctx context.Context, alert model.Alert, candidates []IncidentCandidate) CorrelationDecision {
	type scored struct {
		cand  IncidentCandidate
		score int
		delta time.Duration
	}

	eligible := make([]scored, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Incident == nil || !cand.Incident.IsOpen() {
			continue
		}
		delta := alert.StartsAt.Sub(cand.Incident.StartedAt)
		if delta < 0 {
			delta = -delta
		}
		// 윈도우 밖이면 점수와 무관하게 후보에서 제외
		if delta > e.cfg.Window {
			continue
		}
		score := e.Score(ctx, alert, cand)
		if score < e.cfg.MinScore {
			continue
		}
		eligible = append(eligible, scored{cand: cand, score: score, delta: delta})
	}

	if len(eligible) == 0 {
		return CorrelationDecision{Reason: "no open incident within window"}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].score != eligible[j].score {
			return eligible[i].score > eligible[j].score
		}
		if eligible[i].delta != eligible[j].delta {
			return eligible[i].delta < eligible[j].delta
		}
		return eligible[i].cand.Incident.IncidentID < eligible[j].cand.Incident.IncidentID
	})

	best := eligible[0]
	return CorrelationDecision{
		Incident: best.cand.Incident,
		Score:    best.score,
		Reason:   e.correlationReason(ctx, alert, best.cand),
	}
}

// Score - 알림과 Incident 사이의 상관관계 점수 계산
//
// 신호별 가중치:
//   - 같은 service: +3, 같은 namespace: +2
//   - 그 외 공유 식별 라벨 정확 일치: 키당 +2
//   - 인프라 라벨 일치 (datacenter 등): 키당 +4
//   - 교차 참조 (target_node 등이 상대 개체를 가리킴): +5
//   - annotation 텍스트에 상대 service/node 언급: +3
//   - 인프라 알림 <-> 애플리케이션 증상 친화도: +3
//   - 의미 유사도 >= 임계값(기본 0.70): +4
func (e *CorrelationEngine) Score(ctx context.Context, alert model.Alert, cand IncidentCandidate) int {
	score := 0
	labels := alert.Labels
	incLabels := cand.Incident.AffectedLabels

	if v := labels["service"]; v != "" && v == incLabels["service"] {
		score += 3
	}
	if v := labels["namespace"]; v != "" && v == incLabels["namespace"] {
		score += 2
	}
	for _, key := range CorrelationLabels {
		if key == "service" || key == "namespace" {
			continue
		}
		if v := labels[key]; v != "" && v == incLabels[key] {
			score += 2
		}
	}
	for _, key := range InfrastructureLabels {
		if v := labels[key]; v != "" && v == incLabels[key] {
			score += 4
		}
	}
	if hasCrossReference(alert, cand) {
		score += 5
	}
	if hasAnnotationMention(alert, cand) {
		score += 3
	}
	if hasInfraAffinity(alert, cand.Incident) {
		score += 3
	}
	if e.similarity != nil {
		sim, err := e.similarity.Compare(ctx, annotationText(alert.Annotations), candidateText(cand))
		if err != nil {
			log.Printf("Semantic similarity failed, skipping bonus: %v", err)
		} else if sim >= e.cfg.SemanticThreshold {
			score += 4
		}
	}
	return score
}

// hasCrossReference - 참조 라벨이 상대의 식별 라벨을 가리키는지 (양방향)
func hasCrossReference(alert model.Alert, cand IncidentCandidate) bool {
	primaryLabels := map[string]string{}
	if cand.Primary != nil {
		primaryLabels = cand.Primary.Labels
	}

	// 새 알림의 참조 라벨 -> Incident 대표 알림의 개체
	for _, ref := range CrossReferenceLabels {
		value := alert.Labels[ref]
		if value == "" {
			continue
		}
		for _, id := range identityLabels {
			if value == primaryLabels[id] || value == cand.Incident.AffectedLabels[id] {
				return true
			}
		}
		for _, svc := range cand.Incident.AffectedServices {
			if value == svc {
				return true
			}
		}
	}

	// Incident 쪽의 참조 라벨 -> 새 알림의 개체
	for _, ref := range CrossReferenceLabels {
		value := primaryLabels[ref]
		if value == "" {
			value = cand.Incident.AffectedLabels[ref]
		}
		if value == "" {
			continue
		}
		for _, id := range identityLabels {
			if value == alert.Labels[id] {
				return true
			}
		}
	}
	return false
}

// hasAnnotationMention - annotation 텍스트가 상대의 service/node 이름을 언급하는지
func hasAnnotationMention(alert model.Alert, cand IncidentCandidate) bool {
	alertText := strings.ToLower(annotationText(alert.Annotations))
	if alertText != "" {
		if node := cand.Incident.AffectedLabels["node"]; node != "" && strings.Contains(alertText, strings.ToLower(node)) {
			return true
		}
		for _, svc := range cand.Incident.AffectedServices {
			if svc != "" && strings.Contains(alertText, strings.ToLower(svc)) {
				return true
			}
		}
	}
	if cand.Primary != nil {
		incidentText := strings.ToLower(annotationText(cand.Primary.Annotations))
		if incidentText == "" {
			return false
		}
		for _, id := range []string{"service", "node"} {
			if v := alert.Labels[id]; v != "" && strings.Contains(incidentText, strings.ToLower(v)) {
				return true
			}
		}
	}
	return false
}

// hasInfraAffinity - 한쪽이 인프라 알림이고 다른 쪽과 지역/세그먼트를 공유하는지
func hasInfraAffinity(alert model.Alert, incident *model.Incident) bool {
	alertIsInfra := isInfraName(alert.AlertName())
	incidentIsInfra := isInfraName(incident.Title)
	if alertIsInfra == incidentIsInfra {
		return false
	}
	for _, key := range []string{"datacenter", "zone", "region"} {
		if v := alert.Labels[key]; v != "" && v == incident.AffectedLabels[key] {
			return true
		}
	}
	if v := alert.Labels["network_path"]; v != "" && v == incident.AffectedLabels["network_segment"] {
		return true
	}
	if v := alert.Labels["network_segment"]; v != "" && v == incident.AffectedLabels["network_path"] {
		return true
	}
	return false
}

func isInfraName(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range infraAlertPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func annotationText(annotations map[string]string) string {
	return strings.TrimSpace(annotations["summary"] + " " + annotations["description"])
}

func candidateText(cand IncidentCandidate) string {
	if cand.Primary != nil {
		if text := annotationText(cand.Primary.Annotations); text != "" {
			return text
		}
	}
	return cand.Incident.Title
}

// SelectPrimaryAlert - 대표(근본 원인 추정) 알림 선정
//
// 가장 이른 StartsAt을 우선하고, 발생 시각이 같으면 인과 지표 점수가
// 높은 쪽(인프라 알림 > 증상 알림)을, 그래도 같으면 fingerprint 사전순
func SelectPrimaryAlert(alerts []model.Alert) *model.Alert {
	if len(alerts) == 0 {
		return nil
	}
	best := alerts[0]
	for _, alert := range alerts[1:] {
		switch {
		case alert.StartsAt.Before(best.StartsAt):
			best = alert
		case alert.StartsAt.Equal(best.StartsAt):
			as, bs := causalScore(alert), causalScore(best)
			if as > bs || (as == bs && alert.Fingerprint < best.Fingerprint) {
				best = alert
			}
		}
	}
	return &best
}

// causalScore - 알림이 근본 원인일 가능성 점수
func causalScore(alert model.Alert) int {
	score := 0
	name := strings.ToLower(alert.AlertName())
	for indicator, points := range causalIndicators {
		if strings.Contains(name, indicator) {
			score += points
		}
	}
	if alert.Severity() == model.SeverityCritical {
		score += 5
	}
	return score
}

// correlationReason - 합류 근거를 사람이 읽을 수 있게 요약 (상위 4개 신호)
func (e *CorrelationEngine) correlationReason(ctx context.Context, alert model.Alert, cand IncidentCandidate) string {
	reasons := []string{}
	labels := alert.Labels
	incLabels := cand.Incident.AffectedLabels

	for _, key := range CorrelationLabels {
		if v := labels[key]; v != "" && v == incLabels[key] {
			reasons = append(reasons, fmt.Sprintf("same %s: %s", key, v))
		}
	}
	for _, key := range InfrastructureLabels {
		if v := labels[key]; v != "" && v == incLabels[key] {
			reasons = append(reasons, fmt.Sprintf("shared %s: %s", key, v))
		}
	}
	if hasCrossReference(alert, cand) {
		reasons = append(reasons, "cross-reference to incident entity")
	}
	if hasAnnotationMention(alert, cand) {
		reasons = append(reasons, "annotation mentions incident entity")
	}
	if hasInfraAffinity(alert, cand.Incident) {
		if isInfraName(alert.AlertName()) {
			reasons = append(reasons, "infrastructure alert in shared segment")
		} else {
			reasons = append(reasons, "symptom of infrastructure incident")
		}
	}
	if e.similarity != nil {
		if sim, err := e.similarity.Compare(ctx, annotationText(alert.Annotations), candidateText(cand)); err == nil && sim >= e.cfg.SemanticThreshold {
			reasons = append(reasons, fmt.Sprintf("semantic similarity %.2f", sim))
		}
	}

	if len(reasons) == 0 {
		return "Correlated by time proximity"
	}
	if len(reasons) > 4 {
		reasons = reasons[:4]
	}
	return "Correlated by " + strings.Join(reasons, ", ")
}

// NewIncidentForAlert - 알림 하나로 신규 Incident 생성 (해당 알림이 대표)
func NewIncidentForAlert(alert model.Alert) *model.Incident {
	now := time.Now().UTC()
	fingerprint := alert.Fingerprint
	return &model.Incident{
		IncidentID:              "INC-" + uuid.NewString(),
		Title:                   alert.AlertName(),
		Status:                  model.IncidentOpen,
		Severity:                alert.Severity(),
		PrimaryAlertFingerprint: &fingerprint,
		CorrelationReason:       "",
		AffectedServices:        serviceLabels(alert),
		AffectedLabels:          correlationLabelSubset(alert.Labels),
		StartedAt:               alert.StartsAt,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// MergeAlertIntoIncident - 기존 Incident에 멤버 합류 반영
// 라벨은 비어 있는 키만 채우고(기존 값 유지), severity는 최대값으로 갱신
func MergeAlertIntoIncident(incident *model.Incident, alert model.Alert, reason string) {
	services := map[string]bool{}
	for _, svc := range incident.AffectedServices {
		services[svc] = true
	}
	for _, svc := range serviceLabels(alert) {
		if !services[svc] {
			incident.AffectedServices = append(incident.AffectedServices, svc)
			services[svc] = true
		}
	}
	sort.Strings(incident.AffectedServices)

	if incident.AffectedLabels == nil {
		incident.AffectedLabels = map[string]string{}
	}
	for key, value := range correlationLabelSubset(alert.Labels) {
		if _, exists := incident.AffectedLabels[key]; !exists {
			incident.AffectedLabels[key] = value
		}
	}

	if model.MoreSevere(alert.Severity(), incident.Severity) {
		incident.Severity = alert.Severity()
	}
	if alert.StartsAt.Before(incident.StartedAt) {
		incident.StartedAt = alert.StartsAt
	}
	if reason != "" {
		incident.CorrelationReason = reason
	}
	incident.UpdatedAt = time.Now().UTC()
}

// serviceLabels - service/app/job/device 라벨 값 수집 (네트워크 장비 포함)
func serviceLabels(alert model.Alert) []string {
	services := []string{}
	for _, key := range []string{"service", "app", "job", "device"} {
		if v := alert.Labels[key]; v != "" {
			services = append(services, v)
		}
	}
	sort.Strings(services)
	return services
}

func correlationLabelSubset(labels map[string]string) map[string]string {
	subset := map[string]string{}
	for _, key := range append(append([]string{}, CorrelationLabels...), InfrastructureLabels...) {
		if v := labels[key]; v != "" {
			subset[key] = v
		}
	}
	// 참조 라벨도 보관해서 역방향 교차 참조 판정에 사용
	for _, key := range CrossReferenceLabels {
		if v := labels[key]; v != "" {
			subset[key] = v
		}
	}
	return subset
}
