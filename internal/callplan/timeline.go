package callplan

import "fmt"

// Timing status values for a stage relative to the call clock.
const (
	TimingNotStarted   = "not_started"
	TimingOnTime       = "on_time"
	TimingSlightlyLate = "slightly_late"
	TimingVeryLate     = "very_late"
	TimingUnknown      = "unknown"
)

// DefaultLateGraceSeconds is how far past a stage's planned end the stage is
// still reported as only slightly late.
const DefaultLateGraceSeconds = 120

// TimingStatus describes whether a stage is on schedule at a given call time.
type TimingStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StageForElapsed returns the stage that should be active at the given call
// time according to the static time table. Stages are scanned in reverse so
// the latest stage whose start offset has been reached wins; elapsed times
// before every stage's start map to the first stage. Total over elapsed >= 0.
func (s Structure) StageForElapsed(elapsedSeconds int) string {
	if len(s) == 0 {
		return ""
	}

	for i := len(s) - 1; i >= 0; i-- {
		if elapsedSeconds >= s[i].StartOffsetSeconds {
			return s[i].ID
		}
	}

	return s[0].ID
}

// TimingStatusFor reports whether the given stage is not started, on time, or
// behind schedule at the given call time, using the default grace window.
func (s Structure) TimingStatusFor(stageID string, elapsedSeconds int) TimingStatus {
	return s.TimingStatusWithGrace(stageID, elapsedSeconds, DefaultLateGraceSeconds)
}

// TimingStatusWithGrace is TimingStatusFor with an explicit grace window.
func (s Structure) TimingStatusWithGrace(stageID string, elapsedSeconds, graceSeconds int) TimingStatus {
	stage, ok := s.StageByID(stageID)
	if !ok {
		return TimingStatus{Status: TimingUnknown, Message: "Stage not found"}
	}

	start := stage.StartOffsetSeconds
	end := start + stage.DurationSeconds

	switch {
	case elapsedSeconds < start:
		return TimingStatus{
			Status:  TimingNotStarted,
			Message: fmt.Sprintf("Starts in %d min", (start-elapsedSeconds)/60),
		}
	case elapsedSeconds <= end:
		return TimingStatus{Status: TimingOnTime, Message: "On track"}
	case elapsedSeconds <= end+graceSeconds:
		return TimingStatus{Status: TimingSlightlyLate, Message: "Slightly behind"}
	default:
		return TimingStatus{
			Status:  TimingVeryLate,
			Message: fmt.Sprintf("%d min behind", (elapsedSeconds-end)/60),
		}
	}
}
