package session

// snapshotDecisions is how many recent decision log entries ride along with
// each broadcast snapshot.
const snapshotDecisions = 50

// Snapshot is the full session state pushed to coaching UI subscribers after
// every analysis cycle.
type Snapshot struct {
	Type                string                `json:"type"`
	SessionID           string                `json:"sessionId"`
	CallElapsedSeconds  int                   `json:"callElapsedSeconds"`
	CurrentStageID      string                `json:"currentStageId"`
	StageElapsedSeconds int                   `json:"stageElapsedSeconds"`
	Stages              []StageSnapshot       `json:"stages"`
	ClientCard          map[string]FieldValue `json:"clientCard"`
	TranscriptPreview   string                `json:"transcriptPreview"`
	DebugLog            []Decision            `json:"debugLog"`
}

// StageSnapshot is one stage's state within a snapshot.
type StageSnapshot struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	StartOffsetSeconds int            `json:"startOffsetSeconds"`
	DurationSeconds    int            `json:"durationSeconds"`
	IsCurrent          bool           `json:"isCurrent"`
	TimingStatus       string         `json:"timingStatus"`
	TimingMessage      string         `json:"timingMessage"`
	Items              []ItemSnapshot `json:"items"`
}

// ItemSnapshot is one checklist item's state within a snapshot.
type ItemSnapshot struct {
	ID         string  `json:"id"`
	Kind       string  `json:"type"`
	Content    string  `json:"content"`
	Completed  bool    `json:"completed"`
	Evidence   string  `json:"evidence,omitempty"`
	Source     string  `json:"source,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// BuildSnapshot assembles the broadcast state for one session.
func (m *Manager) BuildSnapshot(s *Session) Snapshot {
	structure := m.plans.Structure()
	completed := s.CompletedItems()
	elapsed := int(s.CallElapsed().Seconds())
	currentStage, stageElapsed := s.CurrentStage()
	grace := m.cfg.Analysis.StageGraceSeconds

	stages := make([]StageSnapshot, 0, len(structure))
	for _, stage := range structure {
		timing := structure.TimingStatusWithGrace(stage.ID, elapsed, grace)

		items := make([]ItemSnapshot, 0, len(stage.Items))
		for _, item := range stage.Items {
			snap := ItemSnapshot{
				ID:      item.ID,
				Kind:    item.Kind,
				Content: item.Content,
			}
			if done, ok := completed[item.ID]; ok {
				snap.Completed = true
				snap.Evidence = done.Evidence
				snap.Source = done.Source
				snap.Confidence = done.Confidence
			}
			items = append(items, snap)
		}

		stages = append(stages, StageSnapshot{
			ID:                 stage.ID,
			Name:               stage.Name,
			StartOffsetSeconds: stage.StartOffsetSeconds,
			DurationSeconds:    stage.DurationSeconds,
			IsCurrent:          stage.ID == currentStage,
			TimingStatus:       timing.Status,
			TimingMessage:      timing.Message,
			Items:              items,
		})
	}

	return Snapshot{
		Type:                "update",
		SessionID:           s.ID,
		CallElapsedSeconds:  elapsed,
		CurrentStageID:      currentStage,
		StageElapsedSeconds: int(stageElapsed.Seconds()),
		Stages:              stages,
		ClientCard:          s.FieldValues(),
		TranscriptPreview:   s.transcriptTail(m.cfg.Analysis.TranscriptPreviewChars),
		DebugLog:            s.RecentDecisions(snapshotDecisions),
	}
}
