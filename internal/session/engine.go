package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/denisplykin/sales-coach-service/internal/analyzer"
	"github.com/denisplykin/sales-coach-service/internal/audio"
	"github.com/denisplykin/sales-coach-service/internal/callplan"
	"github.com/denisplykin/sales-coach-service/internal/config"
	"github.com/denisplykin/sales-coach-service/internal/hub"
	"github.com/denisplykin/sales-coach-service/internal/metrics"
)

// Transcriber turns an audio window into text.
type Transcriber interface {
	TranscribeWindow(ctx context.Context, audio []byte, language string) (string, error)
}

// Classifier answers the semantic questions the engine asks about transcript
// windows. Implemented by the analyzer client; faked in tests.
type Classifier interface {
	CheckItem(ctx context.Context, item callplan.ChecklistItem, transcript string) (analyzer.ItemResult, error)
	ValidateEvidence(ctx context.Context, subject, evidence string) (analyzer.ValidationResult, error)
	DetectStage(ctx context.Context, transcript string, stages callplan.Structure, elapsedSeconds int) (analyzer.StageResult, error)
	ExtractFields(ctx context.Context, transcript string, known map[string]string, fields []callplan.ClientCardField) (map[string]analyzer.FieldResult, error)
}

// ManagerConfig contains configuration for the session manager.
type ManagerConfig struct {
	Analysis       config.AnalysisConfig
	Buffer         audio.BufferConfig
	SessionTimeout time.Duration
	WindowTimeout  time.Duration
}

// Manager owns all active sessions and runs the analysis cycle that turns
// transcribed audio windows into checklist, stage, and client card updates.
type Manager struct {
	sessions map[string]*Session
	hub      *hub.Hub
	mu       sync.RWMutex

	logger      *slog.Logger
	cfg         ManagerConfig
	plans       *callplan.Store
	transcriber Transcriber
	classifier  Classifier
	metrics     *metrics.Metrics

	now func() time.Time

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewManager creates a session manager and starts its cleanup routine.
func NewManager(logger *slog.Logger, plans *callplan.Store, transcriber Transcriber, classifier Classifier, m *metrics.Metrics, cfg ManagerConfig) *Manager {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 10 * time.Minute
	}
	if cfg.WindowTimeout <= 0 {
		cfg.WindowTimeout = 90 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	mgr := &Manager{
		sessions:    make(map[string]*Session),
		hub:         hub.New(logger),
		logger:      logger,
		cfg:         cfg,
		plans:       plans,
		transcriber: transcriber,
		classifier:  classifier,
		metrics:     m,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		cleanup:     make(chan struct{}),
	}

	go mgr.startCleanupRoutine()

	return mgr
}

// CreateSession creates a session, or returns the existing one.
func (m *Manager) CreateSession(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.sessions[sessionID]; exists {
		return existing
	}

	s := newSession(sessionID, m.cfg.Analysis.DefaultLanguage, m.cfg.Buffer, m.now)
	m.seedStage(s)
	m.sessions[sessionID] = s

	if m.metrics != nil {
		m.metrics.RecordSessionCreated()
		m.metrics.SetActiveSessions(len(m.sessions))
	}

	m.logger.Info("Created coaching session",
		slog.String("session_id", sessionID),
		slog.String("language", s.Language),
	)

	return s
}

// seedStage puts a fresh session into the plan's first stage so snapshots
// report a current stage before the first analysis cycle runs.
func (m *Manager) seedStage(s *Session) {
	structure := m.plans.Structure()
	if len(structure) == 0 {
		return
	}
	s.setStage(structure[0].ID, false)
}

// GetSession retrieves an existing session.
func (m *Manager) GetSession(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.sessions[sessionID]
	return s, exists
}

// Hub returns the broadcast hub. Subscribers are shared across sessions;
// every snapshot carries its session id so observers can filter.
func (m *Manager) Hub() *hub.Hub {
	return m.hub
}

// ActiveSessionCount returns the number of active sessions.
func (m *Manager) ActiveSessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RemoveSession drops a session.
func (m *Manager) RemoveSession(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return false
	}

	delete(m.sessions, sessionID)
	s.deactivate()

	duration := m.now().Sub(s.StartTime)
	if m.metrics != nil {
		m.metrics.RecordSessionDestroyed(duration.Seconds())
		m.metrics.SetActiveSessions(len(m.sessions))
	}

	m.logger.Info("Removed coaching session",
		slog.String("session_id", sessionID),
		slog.Duration("duration", duration),
	)

	return true
}

// Stop gracefully stops the manager and its cleanup routine.
func (m *Manager) Stop() {
	m.logger.Info("Stopping session manager...")

	m.cancel()
	<-m.cleanup

	m.logger.Info("Session manager stopped",
		slog.Int("remaining_sessions", m.ActiveSessionCount()),
	)
}

// AddChunk feeds one audio fragment into a session's buffer. When the buffer
// declares a window ready, the window is drained and analyzed asynchronously
// so ingest never blocks on transcription.
func (m *Manager) AddChunk(sessionID string, chunk []byte) error {
	s, exists := m.GetSession(sessionID)
	if !exists {
		return fmt.Errorf("unknown session %s", sessionID)
	}

	s.Touch()
	if m.metrics != nil {
		m.metrics.RecordChunkReceived(len(chunk))
	}

	if !s.Buffer.Add(chunk) {
		return nil
	}

	window := s.Buffer.Bytes()
	s.Buffer.Reset()

	if m.metrics != nil {
		m.metrics.RecordWindowFlushed(len(window))
	}

	go m.processWindow(s, window)

	return nil
}

// processWindow transcribes one audio window and runs the analysis cycle.
func (m *Manager) processWindow(s *Session, window []byte) {
	if !s.IsActive() {
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.WindowTimeout)
	defer cancel()

	if m.metrics != nil {
		m.metrics.RecordTranscriptionRequest()
	}

	startTime := m.now()
	text, err := m.transcriber.TranscribeWindow(ctx, window, s.Language)
	duration := m.now().Sub(startTime)

	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordTranscriptionFailure(duration.Seconds())
		}
		m.logger.Error("Transcription failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
		if s.IsActive() {
			s.logDecision("transcript", "transcription failed, window dropped", err.Error())
		}
		return
	}

	if m.metrics != nil {
		m.metrics.RecordTranscriptionSuccess(duration.Seconds())
	}

	if strings.TrimSpace(text) == "" {
		m.logger.Debug("Empty transcription window", slog.String("session_id", s.ID))
		return
	}

	m.AnalyzeText(ctx, s, text)
}

// AnalyzeText runs one full analysis cycle over newly recognized text. Also
// used directly by the debug transcript endpoint, bypassing audio entirely.
func (m *Manager) AnalyzeText(ctx context.Context, s *Session, text string) {
	if !s.IsActive() {
		m.logger.Debug("Dropping analysis result for removed session",
			slog.String("session_id", s.ID),
		)
		return
	}

	s.Touch()
	s.appendTranscript(text, m.cfg.Analysis.MaxTranscriptWords)

	s.logDecision("transcript", "window recognized",
		truncate(text, m.cfg.Analysis.TranscriptPreviewChars))

	// The greeting pre-check runs before the bootstrap gate so the very
	// first "halo" of the call is never lost to the warmup window.
	m.checkGreeting(s, text)

	if s.CallElapsed() < m.cfg.Analysis.GetBootstrapDelay() {
		s.logDecision("system", "analysis suppressed during warmup", "")
		m.publishSnapshot(s)
		return
	}

	// One cycle at a time per session; overlapping windows queue here.
	s.analysisMu.Lock()
	defer s.analysisMu.Unlock()

	cycleStart := m.now()

	m.resolveStage(ctx, s)
	m.runChecklist(ctx, s)
	m.runClientCard(ctx, s)

	if m.metrics != nil {
		m.metrics.RecordAnalysisCycle(m.now().Sub(cycleStart).Seconds())
	}

	m.publishSnapshot(s)
}

// checkGreeting completes the greeting checklist item on a plain keyword
// match, without waiting for the classifier.
func (m *Manager) checkGreeting(s *Session, text string) {
	itemID := m.cfg.Analysis.GreetingItemID
	if itemID == "" || s.IsCompleted(itemID) {
		return
	}
	if _, ok := m.plans.Structure().ItemByID(itemID); !ok {
		return
	}

	lower := strings.ToLower(text)
	for _, keyword := range m.cfg.Analysis.GreetingKeywords {
		if !strings.Contains(lower, keyword) {
			continue
		}

		evidence := truncate(strings.TrimSpace(text), 100)

		if s.completeItem(itemID, CompletedItem{
			Evidence:    evidence,
			Confidence:  1.0,
			Source:      SourceKeyword,
			CompletedAt: m.now(),
		}) {
			if m.metrics != nil {
				m.metrics.RecordItemCompleted()
			}
			s.logDecision("pre_check", "greeting detected by keyword "+keyword, evidence)
			m.logger.Info("Greeting completed by keyword",
				slog.String("session_id", s.ID),
				slog.String("keyword", keyword),
			)
		}
		return
	}
}

// resolveStage updates the current stage. The planned timeline drives the
// stage until the classifier places the conversation with enough confidence;
// after that content stays in charge and a failed or unsure classification
// never displaces a content-established stage.
func (m *Manager) resolveStage(ctx context.Context, s *Session) {
	structure := m.plans.Structure()
	if len(structure) == 0 {
		return
	}

	elapsed := int(s.CallElapsed().Seconds())
	timelineStage := structure.StageForElapsed(elapsed)

	current, contentDriven := s.stageState()
	if current == "" {
		s.setStage(timelineStage, false)
		current = timelineStage
		s.logDecision("stage", "starting at "+timelineStage+" per call plan", "")
	} else if !contentDriven && timelineStage != current {
		s.setStage(timelineStage, false)
		s.logDecision("stage", "advanced to "+timelineStage+" per call plan", "")
		if m.metrics != nil {
			m.metrics.RecordStageTransition()
		}
		current = timelineStage
	}

	result, err := m.classifier.DetectStage(ctx, s.transcriptTail(m.cfg.Analysis.StageContextChars), structure, elapsed)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordClassifierError()
		}
		s.logDecision("stage", "classifier unavailable, staying in "+current, err.Error())
		return
	}

	if result.Confidence < m.cfg.Analysis.StageMinConfidence {
		s.logDecision("stage",
			fmt.Sprintf("ignored %s at confidence %.2f, staying in %s", result.StageID, result.Confidence, current),
			result.Reasoning)
		return
	}

	if result.StageID == current {
		if !contentDriven {
			s.setStage(current, true)
			s.logDecision("stage", "content confirmed "+current, result.Reasoning)
		}
		return
	}

	s.setStage(result.StageID, true)
	if m.metrics != nil {
		m.metrics.RecordStageTransition()
	}
	s.logDecision("stage",
		fmt.Sprintf("moved to %s at confidence %.2f", result.StageID, result.Confidence),
		result.Reasoning)
	m.logger.Info("Stage transition",
		slog.String("session_id", s.ID),
		slog.String("from", current),
		slog.String("to", result.StageID),
		slog.Float64("confidence", result.Confidence),
	)
}

// runChecklist checks every incomplete item that is off cooldown against the
// latest transcript tail and applies the acceptance guards in order.
func (m *Manager) runChecklist(ctx context.Context, s *Session) {
	cfg := m.cfg.Analysis
	tail := s.transcriptTail(cfg.ChecklistContextChars)
	if tail == "" {
		return
	}

	for _, stage := range m.plans.Structure() {
		for _, item := range stage.Items {
			if s.IsCompleted(item.ID) {
				continue
			}
			if !s.cooldownExpired(item.ID, cfg.GetItemCooldown()) {
				continue
			}
			s.markChecked(item.ID)

			result, err := m.classifier.CheckItem(ctx, item, tail)
			if err != nil {
				if m.metrics != nil {
					m.metrics.RecordClassifierError()
				}
				m.logger.Warn("Item check failed",
					slog.String("session_id", s.ID),
					slog.String("item_id", item.ID),
					slog.String("error", err.Error()),
				)
				continue
			}

			if !result.Completed {
				continue
			}

			if reason := m.rejectItem(ctx, s, item, result); reason != "" {
				if m.metrics != nil {
					m.metrics.RecordItemRejected(reason)
				}
				s.logDecision("checklist",
					fmt.Sprintf("rejected %s: %s", item.ID, reason),
					result.Evidence)
				continue
			}

			if s.completeItem(item.ID, CompletedItem{
				Evidence:    strings.TrimSpace(result.Evidence),
				Confidence:  result.Confidence,
				Source:      SourceClassifier,
				CompletedAt: m.now(),
			}) {
				if m.metrics != nil {
					m.metrics.RecordItemCompleted()
				}
				s.logDecision("checklist",
					fmt.Sprintf("completed %s at confidence %.2f", item.ID, result.Confidence),
					result.Evidence)
				m.logger.Info("Checklist item completed",
					slog.String("session_id", s.ID),
					slog.String("item_id", item.ID),
					slog.Float64("confidence", result.Confidence),
				)
			}
		}
	}
}

// rejectItem applies the acceptance guards to a positive classifier verdict.
// Returns an empty string when the completion should be accepted.
func (m *Manager) rejectItem(ctx context.Context, s *Session, item callplan.ChecklistItem, result analyzer.ItemResult) string {
	cfg := m.cfg.Analysis

	if result.Confidence < cfg.ItemMinConfidence {
		return "low_confidence"
	}

	evidence := strings.TrimSpace(result.Evidence)
	if len(evidence) < cfg.MinEvidenceChars {
		return "weak_evidence"
	}

	if !cfg.DisableEvidenceValidation {
		validation, err := m.classifier.ValidateEvidence(ctx, item.Content, evidence)
		if err != nil {
			if m.metrics != nil {
				m.metrics.RecordClassifierError()
			}
			// Fail closed: an unverified quote is not an accepted quote.
			return "validation_unavailable"
		}
		if !validation.Valid {
			return "failed_validation"
		}
	}

	if owner, taken := s.evidenceOwner(normalizeEvidence(evidence)); taken && owner != item.ID {
		return "duplicate_evidence"
	}

	return ""
}

// runClientCard extracts client card fields from the transcript tail and
// applies the acceptance guards to each proposal. Accepted values are final;
// only a manual override can change them afterwards.
func (m *Manager) runClientCard(ctx context.Context, s *Session) {
	cfg := m.cfg.Analysis
	fields := m.plans.ClientCardFields()
	known := s.KnownFieldValues()
	if len(known) >= len(fields) {
		return
	}

	tail := s.transcriptTail(cfg.ClientCardContextChars)
	if tail == "" {
		return
	}

	results, err := m.classifier.ExtractFields(ctx, tail, known, fields)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordClassifierError()
		}
		m.logger.Warn("Client card extraction failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	fieldByID := make(map[string]callplan.ClientCardField, len(fields))
	for _, f := range fields {
		fieldByID[f.ID] = f
	}

	for fieldID, proposal := range results {
		field, ok := fieldByID[fieldID]
		if !ok {
			continue
		}

		reason := m.rejectField(ctx, s, field, known, proposal)
		if reason != "" {
			if m.metrics != nil {
				m.metrics.RecordFieldRejected(reason)
			}
			s.logDecision("client_card",
				fmt.Sprintf("rejected %s: %s", fieldID, reason),
				proposal.Value)
			continue
		}

		if s.setField(fieldID, FieldValue{
			Value:      strings.TrimSpace(proposal.Value),
			Evidence:   strings.TrimSpace(proposal.Evidence),
			Confidence: proposal.Confidence,
			Source:     SourceClassifier,
			CapturedAt: m.now(),
		}) {
			if m.metrics != nil {
				m.metrics.RecordFieldPopulated()
			}
			s.logDecision("client_card",
				fmt.Sprintf("captured %s at confidence %.2f", fieldID, proposal.Confidence),
				proposal.Value)
			m.logger.Info("Client card field captured",
				slog.String("session_id", s.ID),
				slog.String("field_id", fieldID),
				slog.Float64("confidence", proposal.Confidence),
			)
		}
	}
}

// rejectField applies the acceptance guards to one field proposal.
func (m *Manager) rejectField(ctx context.Context, s *Session, field callplan.ClientCardField, known map[string]string, proposal analyzer.FieldResult) string {
	cfg := m.cfg.Analysis

	if _, exists := known[field.ID]; exists {
		return "already_set"
	}

	value := strings.TrimSpace(proposal.Value)
	if len(value) <= cfg.MinFieldValueChars {
		return "value_too_short"
	}

	if proposal.Confidence < cfg.FieldMinConfidence {
		return "low_confidence"
	}

	evidence := strings.TrimSpace(proposal.Evidence)
	if len(evidence) < cfg.MinEvidenceChars {
		return "weak_evidence"
	}

	if !cfg.DisableEvidenceValidation {
		validation, err := m.classifier.ValidateEvidence(ctx, field.Label+": "+value, evidence)
		if err != nil {
			if m.metrics != nil {
				m.metrics.RecordClassifierError()
			}
			return "validation_unavailable"
		}
		if !validation.Valid {
			return "failed_validation"
		}
	}

	return ""
}

// ResetSession wipes a session's tracked state for a fresh call under the
// same id, and announces the blank state to subscribers.
func (m *Manager) ResetSession(sessionID string) error {
	s, exists := m.GetSession(sessionID)
	if !exists {
		return fmt.Errorf("unknown session %s", sessionID)
	}

	s.Reset()
	m.seedStage(s)
	s.logDecision("system", "session reset", "")
	m.logger.Info("Session reset", slog.String("session_id", sessionID))

	m.publishSnapshot(s)
	return nil
}

// ToggleItem manually flips a checklist item's completion state. This is the
// only way an item can become incomplete again.
func (m *Manager) ToggleItem(sessionID, itemID string) (bool, error) {
	s, exists := m.GetSession(sessionID)
	if !exists {
		return false, fmt.Errorf("unknown session %s", sessionID)
	}
	if _, ok := m.plans.Structure().ItemByID(itemID); !ok {
		return false, fmt.Errorf("unknown checklist item %s", itemID)
	}

	nowCompleted := s.toggleItem(itemID, m.now())
	if nowCompleted {
		s.logDecision("checklist", "manually completed "+itemID, "")
	} else {
		s.logDecision("checklist", "manually cleared "+itemID, "")
	}

	m.publishSnapshot(s)
	return nowCompleted, nil
}

// SetField manually sets a client card field, overwriting any extracted
// value. An empty value clears the field.
func (m *Manager) SetField(sessionID, fieldID, value string) error {
	s, exists := m.GetSession(sessionID)
	if !exists {
		return fmt.Errorf("unknown session %s", sessionID)
	}

	found := false
	for _, f := range m.plans.ClientCardFields() {
		if f.ID == fieldID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown client card field %s", fieldID)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		s.clearField(fieldID)
		s.logDecision("client_card", "manually cleared "+fieldID, "")
	} else {
		s.overwriteField(fieldID, FieldValue{
			Value:      value,
			Confidence: 1.0,
			Source:     SourceManual,
			CapturedAt: m.now(),
		})
		s.logDecision("client_card", "manually set "+fieldID, value)
	}

	m.publishSnapshot(s)
	return nil
}

// publishSnapshot builds the current state snapshot and fans it out.
func (m *Manager) publishSnapshot(s *Session) {
	if !s.IsActive() {
		return
	}

	snapshot := m.BuildSnapshot(s)
	if err := m.hub.Publish(snapshot); err != nil {
		m.logger.Warn("Snapshot publish failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if m.metrics != nil {
		m.metrics.RecordSnapshotPublished()
		m.metrics.SetCoachSubscribers(m.hub.SubscriberCount())
	}
}

// startCleanupRoutine removes sessions with no activity past the timeout.
func (m *Manager) startCleanupRoutine() {
	defer close(m.cleanup)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	m.logger.Info("Session cleanup routine started",
		slog.Duration("timeout", m.cfg.SessionTimeout),
	)

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("Session cleanup routine stopping")
			return

		case <-ticker.C:
			m.cleanupExpiredSessions()
		}
	}
}

// cleanupExpiredSessions removes sessions that have been inactive too long.
func (m *Manager) cleanupExpiredSessions() {
	now := m.now()
	var expired []string

	m.mu.RLock()
	for id, s := range m.sessions {
		s.mu.RLock()
		lastActivity := s.LastActivity
		s.mu.RUnlock()

		if now.Sub(lastActivity) > m.cfg.SessionTimeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.logger.Info("Cleaning up expired sessions",
			slog.Int("expired_count", len(expired)),
		)
		for _, id := range expired {
			m.RemoveSession(id)
		}
	}
}
