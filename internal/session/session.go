package session

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/denisplykin/sales-coach-service/internal/audio"
)

// Completion sources.
const (
	SourceClassifier = "classifier"
	SourceKeyword    = "keyword"
	SourceManual     = "manual"
)

// maxDecisionLog caps the per-session decision log.
const maxDecisionLog = 500

// CompletedItem records an accepted checklist completion.
type CompletedItem struct {
	Evidence    string    `json:"evidence"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"`
	CompletedAt time.Time `json:"completed_at"`
}

// FieldValue records an accepted client card field.
type FieldValue struct {
	Value      string    `json:"value"`
	Evidence   string    `json:"evidence"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
}

// Decision is one entry in the session's audit log. Every acceptance,
// rejection, and transition lands here so a coach reviewing the call can see
// why the tracker did what it did.
type Decision struct {
	Time     time.Time `json:"time"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
	Detail   string    `json:"detail,omitempty"`
}

// Session holds the full tracked state of one live call.
type Session struct {
	ID           string
	Language     string
	StartTime    time.Time
	LastActivity time.Time

	// Audio window accumulation
	Buffer *audio.Buffer

	// Rolling transcript, capped by word count
	transcriptWords []string

	// Stage state. contentDriven flips once a confident content
	// classification lands; before that the planned timeline drives the
	// current stage.
	currentStageID string
	stageEnteredAt time.Time
	contentDriven  bool

	// Checklist state
	completed   map[string]CompletedItem
	lastChecked map[string]time.Time

	// Evidence quotes already consumed by an accepted completion,
	// normalized. The same utterance never proves two items.
	seenEvidence map[string]string

	// Client card state
	fields map[string]FieldValue

	// Decision log, oldest first, capped at maxDecisionLog
	decisions []Decision

	// Cleared when the manager drops the session. Analysis results that
	// arrive afterwards are discarded instead of mutating a ghost.
	active bool

	// Serializes analysis cycles so overlapping windows never interleave
	analysisMu sync.Mutex

	now func() time.Time

	mu sync.RWMutex
}

func newSession(id, language string, bufferCfg audio.BufferConfig, now func() time.Time) *Session {
	start := now()
	return &Session{
		ID:           id,
		Language:     language,
		StartTime:    start,
		LastActivity: start,
		Buffer:       audio.NewBuffer(bufferCfg),
		completed:    make(map[string]CompletedItem),
		lastChecked:  make(map[string]time.Time),
		seenEvidence: make(map[string]string),
		fields:       make(map[string]FieldValue),
		now:          now,
		active:       true,
	}
}

// Reset reinitializes all tracked state atomically, keeping the session's
// identity and language. Used when a new call reuses an existing session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	s.StartTime = start
	s.LastActivity = start
	s.Buffer.Reset()
	s.transcriptWords = nil
	s.currentStageID = ""
	s.stageEnteredAt = time.Time{}
	s.contentDriven = false
	s.completed = make(map[string]CompletedItem)
	s.lastChecked = make(map[string]time.Time)
	s.seenEvidence = make(map[string]string)
	s.fields = make(map[string]FieldValue)
	s.decisions = nil
}

// IsActive reports whether the session still belongs to the manager.
func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Session) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// CallElapsed returns time since the call started.
func (s *Session) CallElapsed() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().Sub(s.StartTime)
}

// CurrentStage returns the current stage id and how long the call has been in
// it.
func (s *Session) CurrentStage() (string, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentStageID == "" {
		return "", 0
	}
	return s.currentStageID, s.now().Sub(s.stageEnteredAt)
}

// SetLanguage updates the transcription language hint.
func (s *Session) SetLanguage(language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Language = language
}

// CurrentLanguage returns the transcription language hint.
func (s *Session) CurrentLanguage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Language
}

// Touch updates the last activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActivity = s.now()
}

// appendTranscript adds recognized text to the rolling transcript, trimming
// the oldest words past the cap.
func (s *Session) appendTranscript(text string, maxWords int) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcriptWords = append(s.transcriptWords, words...)
	if len(s.transcriptWords) > maxWords {
		s.transcriptWords = s.transcriptWords[len(s.transcriptWords)-maxWords:]
	}
}

// Transcript returns the full rolling transcript.
func (s *Session) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strings.Join(s.transcriptWords, " ")
}

// transcriptTail returns up to maxChars of the most recent transcript,
// breaking on a word boundary.
func (s *Session) transcriptTail(maxChars int) string {
	full := s.Transcript()
	if len(full) <= maxChars {
		return full
	}

	start := len(full) - maxChars
	for start < len(full) && !utf8.RuneStart(full[start]) {
		start++
	}
	tail := full[start:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return tail
}

// IsCompleted reports whether a checklist item has been completed.
func (s *Session) IsCompleted(itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.completed[itemID]
	return ok
}

// CompletedItems returns a copy of the completed checklist state.
func (s *Session) CompletedItems() map[string]CompletedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]CompletedItem, len(s.completed))
	for id, item := range s.completed {
		out[id] = item
	}
	return out
}

// FieldValues returns a copy of the client card state.
func (s *Session) FieldValues() map[string]FieldValue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]FieldValue, len(s.fields))
	for id, v := range s.fields {
		out[id] = v
	}
	return out
}

// KnownFieldValues returns the populated field values keyed by field id, for
// feeding back into extraction prompts.
func (s *Session) KnownFieldValues() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.fields))
	for id, v := range s.fields {
		out[id] = v.Value
	}
	return out
}

// logDecision appends an audit entry, evicting the oldest past the cap.
func (s *Session) logDecision(category, message, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.decisions = append(s.decisions, Decision{
		Time:     s.now(),
		Category: category,
		Message:  message,
		Detail:   detail,
	})
	if len(s.decisions) > maxDecisionLog {
		s.decisions = s.decisions[len(s.decisions)-maxDecisionLog:]
	}
}

// RecentDecisions returns up to n most recent decisions, oldest first.
func (s *Session) RecentDecisions(n int) []Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if len(s.decisions) > n {
		start = len(s.decisions) - n
	}

	out := make([]Decision, len(s.decisions)-start)
	copy(out, s.decisions[start:])
	return out
}

// normalizeEvidence canonicalizes a quote for duplicate detection.
func normalizeEvidence(evidence string) string {
	return strings.Join(strings.Fields(strings.ToLower(evidence)), " ")
}

// truncate caps s at max bytes without splitting a multibyte rune at the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
