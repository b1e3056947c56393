// Incident 생명주기 관리
// open -> analyzing -> open(리포트 보유) -> resolved -> closed
//
// 동시성 규칙:
//   - Incident 하나에 대한 모든 변경(멤버 합류, 상태 전이, 리포트 저장)은
//     incident id 단위 뮤텍스로 직렬화
//   - 분석 루프는 detached goroutine으로 실행되어 알림 수신을 막지 않음
//   - Incident당 동시에 하나의 분석만 허용 (진행 중이면 새 알림은 멤버만 갱신)
//   - resolved/closed Incident는 불변 이력: 같은 시그니처가 재발화하면 새 Incident 생성

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/infra-rca/backend/internal/db"
	"github.com/infra-rca/backend/internal/model"
	"github.com/infra-rca/backend/internal/template"
)

var (
	ErrIncidentNotFound  = errors.New("incident not found")
	ErrAnalysisInFlight  = errors.New("analysis already in flight")
	ErrIncidentImmutable = errors.New("incident is resolved or closed")
)

// IncidentStore - 생명주기 관리에 필요한 저장소 연산
type IncidentStore interface {
	UpsertAlert(ctx context.Context, alert model.Alert, incidentID *string) error
	GetAlert(ctx context.Context, fingerprint string) (*model.Alert, error)
	GetAlertsByIncidentID(ctx context.Context, incidentID string) ([]model.Alert, error)
	CountFiringAlerts(ctx context.Context, incidentID string) (int, error)
	LatestResolvedAt(ctx context.Context, incidentID string) (*time.Time, error)
	CreateIncident(ctx context.Context, inc *model.Incident) error
	UpdateIncident(ctx context.Context, inc *model.Incident) error
	UpdateIncidentStatus(ctx context.Context, incidentID string, status model.IncidentStatus, resolvedAt, rcaCompletedAt *time.Time) error
	GetIncident(ctx context.Context, incidentID string) (*model.Incident, error)
	GetOpenIncidents(ctx context.Context) ([]model.Incident, error)
	SaveReport(ctx context.Context, report *model.RCAReport) error
}

// Analyzer - RCA 분석 실행 (실패도 failed 리포트로 반환)
type Analyzer interface {
	RunAnalysis(ctx context.Context, incident *model.Incident, alerts []model.Alert) *model.RCAReport
}

// Notifier - Incident 이벤트 알림 (Slack)
type Notifier interface {
	SendIncidentOpened(incident *model.Incident, primary model.Alert) error
	SendIncidentResolved(incident *model.Incident) error
	SendReportToThread(incidentID, markdown string) error
}

type IncidentService struct {
	store      IncidentStore
	engine     *CorrelationEngine
	agent      Analyzer
	notifier   Notifier          // nil이면 알림 생략
	embeddings *EmbeddingService // nil이면 임베딩 생략

	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	analyzing map[string]bool
}

func NewIncidentService(store IncidentStore, engine *CorrelationEngine, agent Analyzer, notifier Notifier, embeddings *EmbeddingService) *IncidentService {
	return &IncidentService{
		store:      store,
		engine:     engine,
		agent:      agent,
		notifier:   notifier,
		embeddings: embeddings,
		locks:      map[string]*sync.Mutex{},
		analyzing:  map[string]bool{},
	}
}

// lockFor - incident id 단위 뮤텍스 (single-writer-per-incident)
func (s *IncidentService) lockFor(incidentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[incidentID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[incidentID] = lock
	}
	return lock
}

// HandleAlert - 검증된 알림 한 건을 상관관계 분석하고 Incident에 반영
//
// 처리 흐름:
//  1. 필수 필드 검증 (실패 시 해당 알림만 폐기)
//  2. 같은 fingerprint의 레코드가 있으면 재전송 처리 (중복 생성 금지)
//  3. open/analyzing Incident를 후보로 상관관계 점수 계산
//  4. 합류 대상이 있으면 incident 락 안에서 멤버십 갱신 + 대표 알림 재선정
//  5. 없으면 신규 Incident 생성
//  6. firing이면 분석 트리거 판단 (비동기), resolved면 Incident 해소 판정
func (s *IncidentService) HandleAlert(ctx context.Context, alert model.Alert) (string, bool, error) {
	if err := alert.Validate(); err != nil {
		return "", false, err
	}
	if alert.ReceivedAt.IsZero() {
		alert.ReceivedAt = time.Now().UTC()
	}

	existing, err := s.store.GetAlert(ctx, alert.Fingerprint)
	if err != nil && !db.IsNoRows(err) {
		return "", false, fmt.Errorf("failed to look up alert: %w", err)
	}
	if existing != nil {
		return s.handleRedelivery(ctx, alert, existing)
	}

	return s.correlate(ctx, alert)
}

// handleRedelivery - 이미 저장된 fingerprint의 재전송 처리
//
// 처리 흐름:
//  1. resolved였던 알림이 다시 firing하고 기존 Incident도 닫혀 있으면 재발화:
//     fingerprint에 접미사를 붙인 새 레코드로 새 Incident를 구성
//     (기존 레코드는 불변 이력인 기존 Incident의 멤버로 남음)
//  2. 상태가 바뀌면 기존 레코드를 제자리 갱신 (incident 연결 유지)
//  3. 상태가 같으면 중복 재전송으로 무시
func (s *IncidentService) handleRedelivery(ctx context.Context, alert model.Alert, existing *model.Alert) (string, bool, error) {
	if existing.Resolved() && !alert.Resolved() && existing.IncidentID != nil {
		prior, err := s.store.GetIncident(ctx, *existing.IncidentID)
		if err == nil && !prior.IsOpen() {
			refire := alert
			refire.Fingerprint = refireFingerprint(alert.Fingerprint)
			log.Printf("Alert %s re-fired after incident %s was resolved, opening a new incident", alert.Fingerprint, prior.IncidentID)
			return s.correlate(ctx, refire)
		}
	}

	if existing.Status == alert.Status {
		log.Printf("Duplicate alert ignored: %s", alert.Fingerprint)
		if existing.IncidentID != nil {
			return *existing.IncidentID, false, nil
		}
		return "", false, nil
	}

	if existing.IncidentID == nil {
		// 미연결 레코드는 상관관계부터 다시 태움
		return s.correlate(ctx, alert)
	}

	// 상태 전환: 레코드는 하나만 유지하고 status/ends_at만 갱신
	incidentID := *existing.IncidentID
	lock := s.lockFor(incidentID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.UpsertAlert(ctx, alert, existing.IncidentID); err != nil {
		return "", false, fmt.Errorf("failed to update alert: %w", err)
	}
	log.Printf("Updated alert %s: %s -> %s", alert.Fingerprint, existing.Status, alert.Status)

	if alert.Resolved() {
		if incident, err := s.store.GetIncident(ctx, incidentID); err == nil {
			s.checkResolution(ctx, incident)
		}
	}
	return incidentID, false, nil
}

// refireFingerprint - 재발화 알림용 고유 fingerprint (원본에 접미사 부여)
func refireFingerprint(fingerprint string) string {
	return fingerprint + "-" + uuid.NewString()[:8]
}

func (s *IncidentService) correlate(ctx context.Context, alert model.Alert) (string, bool, error) {
	candidates, err := s.openCandidates(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to load open incidents: %w", err)
	}
	decision := s.engine.Correlate(ctx, alert, candidates)

	if decision.Incident == nil {
		return s.createIncident(ctx, alert)
	}
	return s.joinIncident(ctx, alert, decision)
}

func (s *IncidentService) openCandidates(ctx context.Context) ([]IncidentCandidate, error) {
	incidents, err := s.store.GetOpenIncidents(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]IncidentCandidate, 0, len(incidents))
	for i := range incidents {
		cand := IncidentCandidate{Incident: &incidents[i]}
		if fp := incidents[i].PrimaryAlertFingerprint; fp != nil {
			if primary, err := s.store.GetAlert(ctx, *fp); err == nil {
				cand.Primary = primary
			}
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

func (s *IncidentService) createIncident(ctx context.Context, alert model.Alert) (string, bool, error) {
	incident := NewIncidentForAlert(alert)
	if err := s.store.CreateIncident(ctx, incident); err != nil {
		return "", false, fmt.Errorf("failed to create incident: %w", err)
	}
	if err := s.store.UpsertAlert(ctx, alert, &incident.IncidentID); err != nil {
		return "", false, fmt.Errorf("failed to save alert: %w", err)
	}
	log.Printf("Created incident %s for alert %s", incident.IncidentID, alert.AlertName())

	if s.notifier != nil {
		go func() {
			if err := s.notifier.SendIncidentOpened(incident, alert); err != nil {
				log.Printf("Failed to send incident notification: %v", err)
			}
		}()
	}

	if alert.Resolved() {
		// resolved 알림이 단독 Incident를 만든 경우: 생성 직후 바로 해소
		lock := s.lockFor(incident.IncidentID)
		lock.Lock()
		defer lock.Unlock()
		s.checkResolution(ctx, incident)
	} else {
		s.maybeStartAnalysis(incident.IncidentID)
	}
	return incident.IncidentID, true, nil
}

func (s *IncidentService) joinIncident(ctx context.Context, alert model.Alert, decision CorrelationDecision) (string, bool, error) {
	incidentID := decision.Incident.IncidentID
	lock := s.lockFor(incidentID)
	lock.Lock()

	// 락 획득 사이에 상태가 바뀌었을 수 있으므로 다시 읽음
	incident, err := s.store.GetIncident(ctx, incidentID)
	if err != nil {
		lock.Unlock()
		return "", false, fmt.Errorf("failed to reload incident %s: %w", incidentID, err)
	}
	if !incident.IsOpen() {
		// 점수 계산과 락 획득 사이에 resolved됨: 불변 이력이므로 새 Incident 생성
		lock.Unlock()
		return s.createIncident(ctx, alert)
	}

	MergeAlertIntoIncident(incident, alert, decision.Reason)
	if err := s.store.UpsertAlert(ctx, alert, &incidentID); err != nil {
		lock.Unlock()
		return "", false, fmt.Errorf("failed to save alert: %w", err)
	}

	// 대표 알림 재선정 (멤버가 늘어날 때마다)
	members, err := s.store.GetAlertsByIncidentID(ctx, incidentID)
	if err == nil {
		if primary := SelectPrimaryAlert(members); primary != nil {
			incident.PrimaryAlertFingerprint = &primary.Fingerprint
		}
	}
	if err := s.store.UpdateIncident(ctx, incident); err != nil {
		lock.Unlock()
		return "", false, fmt.Errorf("failed to update incident: %w", err)
	}
	log.Printf("Correlated alert %s with incident %s (score=%d)", alert.AlertName(), incidentID, decision.Score)

	if alert.Resolved() {
		s.checkResolution(ctx, incident)
		lock.Unlock()
	} else {
		lock.Unlock()
		s.maybeStartAnalysis(incidentID)
	}
	return incidentID, false, nil
}

// checkResolution - 모든 멤버가 resolved면 Incident를 resolved로 전이
// 호출자는 incident 락을 잡고 있어야 함
func (s *IncidentService) checkResolution(ctx context.Context, incident *model.Incident) {
	firing, err := s.store.CountFiringAlerts(ctx, incident.IncidentID)
	if err != nil {
		log.Printf("Failed to count firing alerts for %s: %v", incident.IncidentID, err)
		return
	}
	if firing > 0 {
		return
	}

	resolvedAt, err := s.store.LatestResolvedAt(ctx, incident.IncidentID)
	if err != nil || resolvedAt == nil {
		now := time.Now().UTC()
		resolvedAt = &now
	}
	if err := s.transition(ctx, incident, model.IncidentResolved, resolvedAt, incident.RCACompletedAt); err != nil {
		log.Printf("Failed to resolve incident %s: %v", incident.IncidentID, err)
		return
	}
	incident.ResolvedAt = resolvedAt
	log.Printf("Incident %s resolved (all member alerts resolved)", incident.IncidentID)

	if s.notifier != nil {
		snapshot := *incident
		go func() {
			if err := s.notifier.SendIncidentResolved(&snapshot); err != nil {
				log.Printf("Failed to send resolved notification: %v", err)
			}
		}()
	}
}

// transition - 상태 전이 테이블 검증 후 저장
func (s *IncidentService) transition(ctx context.Context, incident *model.Incident, to model.IncidentStatus, resolvedAt, rcaCompletedAt *time.Time) error {
	if !model.CanTransition(incident.Status, to) {
		return fmt.Errorf("invalid transition %s -> %s", incident.Status, to)
	}
	if err := s.store.UpdateIncidentStatus(ctx, incident.IncidentID, to, resolvedAt, rcaCompletedAt); err != nil {
		return err
	}
	incident.Status = to
	return nil
}

// maybeStartAnalysis - 분석이 진행 중이 아니면 detached로 시작
// "시작 여부 판단"만 동기, 루프 자체는 비동기
func (s *IncidentService) maybeStartAnalysis(incidentID string) {
	s.mu.Lock()
	if s.analyzing[incidentID] {
		s.mu.Unlock()
		return
	}
	s.analyzing[incidentID] = true
	s.mu.Unlock()

	go s.runAnalysis(incidentID)
}

// TriggerAnalysis - 명시적 재분석 요청 (실패한 분석은 자동 재시도되지 않음)
// open 상태에서만 허용: resolved/closed Incident는 불변 이력
func (s *IncidentService) TriggerAnalysis(ctx context.Context, incidentID string) error {
	incident, err := s.store.GetIncident(ctx, incidentID)
	if err != nil {
		return ErrIncidentNotFound
	}
	switch incident.Status {
	case model.IncidentAnalyzing:
		return ErrAnalysisInFlight
	case model.IncidentResolved, model.IncidentClosed:
		return ErrIncidentImmutable
	}

	s.mu.Lock()
	if s.analyzing[incidentID] {
		s.mu.Unlock()
		return ErrAnalysisInFlight
	}
	s.analyzing[incidentID] = true
	s.mu.Unlock()

	go s.runAnalysis(incidentID)
	return nil
}

// runAnalysis - 분석 1회 실행 (리포트 저장까지)
// 실행 중인 루프는 취소되지 않고 반드시 완료(성공/실패)까지 진행됨
func (s *IncidentService) runAnalysis(incidentID string) {
	defer func() {
		s.mu.Lock()
		delete(s.analyzing, incidentID)
		s.mu.Unlock()
	}()

	ctx := context.Background()
	lock := s.lockFor(incidentID)

	lock.Lock()
	incident, err := s.store.GetIncident(ctx, incidentID)
	if err != nil {
		lock.Unlock()
		log.Printf("Failed to load incident %s for analysis: %v", incidentID, err)
		return
	}
	if incident.Status != model.IncidentOpen {
		lock.Unlock()
		return
	}
	if err := s.transition(ctx, incident, model.IncidentAnalyzing, incident.ResolvedAt, incident.RCACompletedAt); err != nil {
		lock.Unlock()
		log.Printf("Failed to start analysis for %s: %v", incidentID, err)
		return
	}
	alerts, err := s.store.GetAlertsByIncidentID(ctx, incidentID)
	lock.Unlock()
	if err != nil {
		log.Printf("Failed to load alerts for %s: %v", incidentID, err)
		alerts = nil
	}

	// 루프는 락 밖에서 실행: 분석 중에도 알림 수신/멤버십 갱신 가능
	report := s.agent.RunAnalysis(ctx, incident, alerts)

	lock.Lock()
	defer lock.Unlock()

	if err := s.store.SaveReport(ctx, report); err != nil {
		log.Printf("Failed to save RCA report for %s: %v", incidentID, err)
	}

	current, err := s.store.GetIncident(ctx, incidentID)
	if err != nil {
		log.Printf("Failed to reload incident %s after analysis: %v", incidentID, err)
		return
	}
	var rcaCompletedAt *time.Time
	if report.Status == model.ReportComplete {
		rcaCompletedAt = report.CompletedAt
	} else {
		rcaCompletedAt = current.RCACompletedAt
	}

	if current.Status == model.IncidentAnalyzing {
		// 성공/실패 모두 open으로 복귀 (실패 상세는 리포트에 남음)
		if err := s.transition(ctx, current, model.IncidentOpen, current.ResolvedAt, rcaCompletedAt); err != nil {
			log.Printf("Failed to finish analysis transition for %s: %v", incidentID, err)
		}
	} else if rcaCompletedAt != nil {
		// 분석 중에 resolved된 경우: 상태는 유지하고 완료 시각만 기록
		if err := s.store.UpdateIncidentStatus(ctx, incidentID, current.Status, current.ResolvedAt, rcaCompletedAt); err != nil {
			log.Printf("Failed to stamp rca_completed_at for %s: %v", incidentID, err)
		}
	}

	if report.Status == model.ReportComplete {
		log.Printf("RCA analysis complete (incident_id=%s, confidence=%d)", incidentID, report.ConfidenceScore)
		if s.notifier != nil {
			markdown := template.RenderReport(current, report)
			go func() {
				if err := s.notifier.SendReportToThread(incidentID, markdown); err != nil {
					log.Printf("Failed to send report to Slack: %v", err)
				}
			}()
		}
		if s.embeddings != nil {
			go func() {
				if _, _, err := s.embeddings.CreateEmbedding(context.Background(), incidentID, report.Summary); err != nil {
					log.Printf("Failed to store incident embedding: %v", err)
				}
			}()
		}
	} else {
		log.Printf("RCA analysis failed (incident_id=%s): %v", incidentID, errorDetail(report))
		if s.notifier != nil {
			markdown := template.RenderFailure(current, report)
			go func() {
				if err := s.notifier.SendReportToThread(incidentID, markdown); err != nil {
					log.Printf("Failed to send failure notice to Slack: %v", err)
				}
			}()
		}
	}
}

func errorDetail(report *model.RCAReport) string {
	if report.ErrorMessage != nil {
		return *report.ErrorMessage
	}
	return "unknown error"
}

// ForceClose - 외부 수동 종료 (어떤 열린 상태에서도 허용)
func (s *IncidentService) ForceClose(ctx context.Context, incidentID string) error {
	lock := s.lockFor(incidentID)
	lock.Lock()
	defer lock.Unlock()

	incident, err := s.store.GetIncident(ctx, incidentID)
	if err != nil {
		return ErrIncidentNotFound
	}
	if incident.Status == model.IncidentClosed {
		return nil
	}
	return s.transition(ctx, incident, model.IncidentClosed, incident.ResolvedAt, incident.RCACompletedAt)
}
