package callplan

import "testing"

func threeStages() Structure {
	return Structure{
		{ID: "open", Name: "Open", StartOffsetSeconds: 0, DurationSeconds: 120,
			Items: []ChecklistItem{{ID: "a", Kind: KindSay, Content: "a"}}},
		{ID: "middle", Name: "Middle", StartOffsetSeconds: 120, DurationSeconds: 300,
			Items: []ChecklistItem{{ID: "b", Kind: KindSay, Content: "b"}}},
		{ID: "close", Name: "Close", StartOffsetSeconds: 420, DurationSeconds: 180,
			Items: []ChecklistItem{{ID: "c", Kind: KindSay, Content: "c"}}},
	}
}

func TestStageForElapsed(t *testing.T) {
	s := threeStages()

	tests := []struct {
		elapsed int
		want    string
	}{
		{0, "open"},
		{119, "open"},
		{120, "middle"},
		{419, "middle"},
		{420, "close"},
		{10000, "close"},
	}

	for _, tt := range tests {
		if got := s.StageForElapsed(tt.elapsed); got != tt.want {
			t.Errorf("StageForElapsed(%d) = %q, want %q", tt.elapsed, got, tt.want)
		}
	}

	// The mapping is monotonic in elapsed time.
	prev := -1
	indexOf := func(id string) int {
		for i, stage := range s {
			if stage.ID == id {
				return i
			}
		}
		return -1
	}
	for elapsed := 0; elapsed <= 600; elapsed += 10 {
		idx := indexOf(s.StageForElapsed(elapsed))
		if idx < prev {
			t.Fatalf("stage index went backwards at elapsed=%d", elapsed)
		}
		prev = idx
	}

	if got := (Structure{}).StageForElapsed(100); got != "" {
		t.Errorf("empty structure should map to empty stage, got %q", got)
	}
}

func TestTimingStatus(t *testing.T) {
	s := threeStages()

	tests := []struct {
		name    string
		stageID string
		elapsed int
		want    string
	}{
		{"before start", "middle", 0, TimingNotStarted},
		{"at start", "middle", 120, TimingOnTime},
		{"at planned end", "middle", 420, TimingOnTime},
		{"inside grace", "middle", 421, TimingSlightlyLate},
		{"end of grace", "middle", 540, TimingSlightlyLate},
		{"past grace", "middle", 541, TimingVeryLate},
		{"unknown stage", "nope", 100, TimingUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.TimingStatusFor(tt.stageID, tt.elapsed)
			if got.Status != tt.want {
				t.Errorf("status = %q, want %q", got.Status, tt.want)
			}
			if got.Message == "" {
				t.Error("expected a message")
			}
		})
	}
}

func TestTimingStatusMessages(t *testing.T) {
	s := threeStages()

	if got := s.TimingStatusFor("close", 120); got.Message != "Starts in 5 min" {
		t.Errorf("unexpected not-started message: %q", got.Message)
	}
	if got := s.TimingStatusFor("open", 60); got.Message != "On track" {
		t.Errorf("unexpected on-time message: %q", got.Message)
	}
	// open ends at 120; with the default 120s grace, 420 is 300s late.
	if got := s.TimingStatusFor("open", 420); got.Message != "5 min behind" {
		t.Errorf("unexpected very-late message: %q", got.Message)
	}
}

func TestTimingStatusWithCustomGrace(t *testing.T) {
	s := threeStages()

	if got := s.TimingStatusWithGrace("open", 150, 60); got.Status != TimingSlightlyLate {
		t.Errorf("expected slightly late inside custom grace, got %q", got.Status)
	}
	if got := s.TimingStatusWithGrace("open", 181, 60); got.Status != TimingVeryLate {
		t.Errorf("expected very late past custom grace, got %q", got.Status)
	}
}
