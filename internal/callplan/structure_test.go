package callplan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultStructureIsValid(t *testing.T) {
	s := DefaultStructure()
	if err := s.Validate(); err != nil {
		t.Fatalf("default structure invalid: %v", err)
	}
	if len(s) != 7 {
		t.Errorf("expected 7 stages, got %d", len(s))
	}
	if s.ItemCount() != 29 {
		t.Errorf("expected 29 items, got %d", s.ItemCount())
	}
}

func TestValidateRejectsBadStructures(t *testing.T) {
	tests := []struct {
		name      string
		structure Structure
	}{
		{
			name:      "empty",
			structure: Structure{},
		},
		{
			name: "duplicate stage id",
			structure: Structure{
				{ID: "a", Name: "A", DurationSeconds: 60, Items: []ChecklistItem{{ID: "i1", Kind: KindSay, Content: "x"}}},
				{ID: "a", Name: "B", StartOffsetSeconds: 60, DurationSeconds: 60, Items: []ChecklistItem{{ID: "i2", Kind: KindSay, Content: "y"}}},
			},
		},
		{
			name: "duplicate item id across stages",
			structure: Structure{
				{ID: "a", Name: "A", DurationSeconds: 60, Items: []ChecklistItem{{ID: "i1", Kind: KindSay, Content: "x"}}},
				{ID: "b", Name: "B", StartOffsetSeconds: 60, DurationSeconds: 60, Items: []ChecklistItem{{ID: "i1", Kind: KindSay, Content: "y"}}},
			},
		},
		{
			name: "invalid kind",
			structure: Structure{
				{ID: "a", Name: "A", DurationSeconds: 60, Items: []ChecklistItem{{ID: "i1", Kind: "shout", Content: "x"}}},
			},
		},
		{
			name: "zero duration",
			structure: Structure{
				{ID: "a", Name: "A", DurationSeconds: 0, Items: []ChecklistItem{{ID: "i1", Kind: KindSay, Content: "x"}}},
			},
		},
		{
			name: "stage without items",
			structure: Structure{
				{ID: "a", Name: "A", DurationSeconds: 60},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.structure.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestStageAndItemLookup(t *testing.T) {
	s := DefaultStructure()

	stage, ok := s.StageByID("stage_3_trial_intro")
	if !ok || stage.Name != "Trial Class Introduction" {
		t.Errorf("StageByID failed: ok=%v stage=%+v", ok, stage)
	}
	if _, ok := s.StageByID("nope"); ok {
		t.Error("expected miss for unknown stage")
	}

	item, ok := s.ItemByID("ask_commitment")
	if !ok || item.Kind != KindDiscuss {
		t.Errorf("ItemByID failed: ok=%v item=%+v", ok, item)
	}
	if _, ok := s.ItemByID("nope"); ok {
		t.Error("expected miss for unknown item")
	}
}

func TestLoadStructureFromYAML(t *testing.T) {
	content := `structure:
  - id: intro
    name: Introduction
    start_offset_seconds: 0
    duration_seconds: 300
    items:
      - id: say_hello
        kind: say
        content: Say hello
      - id: ask_name
        kind: discuss
        content: Ask for a name
`
	path := filepath.Join(t.TempDir(), "structure.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadStructure(path)
	if err != nil {
		t.Fatalf("LoadStructure failed: %v", err)
	}
	if len(s) != 1 || len(s[0].Items) != 2 {
		t.Fatalf("unexpected structure: %+v", s)
	}
	if s[0].Items[1].Kind != KindDiscuss {
		t.Errorf("expected discuss kind, got %q", s[0].Items[1].Kind)
	}
}

func TestLoadStructureErrors(t *testing.T) {
	if _, err := LoadStructure(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("structure: [this is not: valid"), 0o644)
	if _, err := LoadStructure(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	os.WriteFile(invalid, []byte("structure:\n  - id: a\n    name: A\n"), 0o644)
	if _, err := LoadStructure(invalid); err == nil {
		t.Error("expected validation error for incomplete structure")
	}
}
