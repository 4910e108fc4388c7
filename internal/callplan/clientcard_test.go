package callplan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultClientCardFieldsAreValid(t *testing.T) {
	fields := DefaultClientCardFields()

	if err := ValidateClientCardFields(fields); err != nil {
		t.Fatalf("default client card should validate: %v", err)
	}
	if len(fields) != 11 {
		t.Errorf("expected 11 default fields, got %d", len(fields))
	}

	ids := make(map[string]bool)
	for _, f := range fields {
		ids[f.ID] = true
	}
	for _, want := range []string{"child_name", "parent_goal", "objections", "additional_notes"} {
		if !ids[want] {
			t.Errorf("default card missing field %s", want)
		}
	}
}

func TestValidateClientCardFieldsRejections(t *testing.T) {
	tests := []struct {
		name    string
		fields  []ClientCardField
		wantErr string
	}{
		{
			name:    "empty card",
			fields:  nil,
			wantErr: "at least one field",
		},
		{
			name:    "missing id",
			fields:  []ClientCardField{{Label: "X", Category: "notes"}},
			wantErr: "missing required property: id",
		},
		{
			name:    "missing label",
			fields:  []ClientCardField{{ID: "x", Category: "notes"}},
			wantErr: "missing required property: label",
		},
		{
			name: "duplicate id",
			fields: []ClientCardField{
				{ID: "x", Label: "X", Category: "notes"},
				{ID: "x", Label: "X again", Category: "notes"},
			},
			wantErr: "duplicate client card field id",
		},
		{
			name:    "unknown category",
			fields:  []ClientCardField{{ID: "x", Label: "X", Category: "misc"}},
			wantErr: "invalid client card category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClientCardFields(tt.fields)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestExtractionHint(t *testing.T) {
	if hint := ExtractionHint("child_name"); !strings.Contains(hint, "name") {
		t.Errorf("unexpected hint for child_name: %q", hint)
	}
	if hint := ExtractionHint("no_such_field"); hint != "Extract relevant information from the conversation" {
		t.Errorf("unexpected fallback hint: %q", hint)
	}
}

func TestLoadClientCardFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.yaml")
	content := `fields:
  - id: pet_name
    label: Pet's Name
    hint: Name of the pet
    category: notes
  - id: pet_breed
    label: Breed
    multiline: true
    category: notes
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fields, err := LoadClientCardFields(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].ID != "pet_name" || fields[0].Label != "Pet's Name" {
		t.Errorf("unexpected first field: %+v", fields[0])
	}
	if !fields[1].Multiline {
		t.Error("multiline flag not parsed")
	}
}

func TestLoadClientCardFieldsErrors(t *testing.T) {
	if _, err := LoadClientCardFields(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("fields: [{id: x, label: X, category: bogus}]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadClientCardFields(bad); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("expected validation error, got %v", err)
	}
}
