package callplan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Client card field categories used for UI grouping.
var validFieldCategories = map[string]bool{
	"child_info":  true,
	"parent_info": true,
	"needs":       true,
	"concerns":    true,
	"notes":       true,
}

// ClientCardField defines a single structured fact to capture about the
// client during the call.
type ClientCardField struct {
	ID        string `yaml:"id" json:"id"`
	Label     string `yaml:"label" json:"label"`
	Hint      string `yaml:"hint" json:"hint"`
	Multiline bool   `yaml:"multiline" json:"multiline"`
	Category  string `yaml:"category" json:"category"`
}

// DefaultClientCardFields returns the built-in client card schema for trial
// class sales calls.
func DefaultClientCardFields() []ClientCardField {
	return []ClientCardField{
		{ID: "child_name", Label: "Child's Name", Hint: "Name and age of the child", Multiline: false, Category: "child_info"},
		{ID: "child_interests", Label: "Child's Interests", Hint: "Games, activities, subjects they enjoy", Multiline: true, Category: "child_info"},
		{ID: "child_experience", Label: "Prior Experience", Hint: "Any coding or tech experience", Multiline: true, Category: "child_info"},
		{ID: "parent_goal", Label: "Parent's Goal", Hint: "What parent wants child to achieve", Multiline: true, Category: "parent_info"},
		{ID: "learning_motivation", Label: "Why Learning Now", Hint: "Motivation or trigger for enrolling", Multiline: true, Category: "parent_info"},
		{ID: "main_pain_point", Label: "Main Pain Point", Hint: "Primary challenge or concern", Multiline: true, Category: "needs"},
		{ID: "desired_outcome", Label: "Desired Outcome", Hint: "What success looks like for them", Multiline: true, Category: "needs"},
		{ID: "objections", Label: "Objections Raised", Hint: "Price, time, quality, or other concerns", Multiline: true, Category: "concerns"},
		{ID: "budget_constraint", Label: "Budget Situation", Hint: "Any budget constraints mentioned", Multiline: false, Category: "concerns"},
		{ID: "schedule_constraint", Label: "Schedule Constraints", Hint: "Available times, schedule flexibility", Multiline: false, Category: "concerns"},
		{ID: "additional_notes", Label: "Additional Notes", Hint: "Any other important details", Multiline: true, Category: "notes"},
	}
}

// extractionHints guide the classifier when pulling field values out of the
// conversation. Keyed by field id; fields without an entry get a generic hint.
var extractionHints = map[string]string{
	"child_name":          "Extract child's name and age if mentioned (e.g. 'Budi, 10 years old')",
	"child_interests":     "Extract what the child likes: games (Minecraft, Roblox), activities, favorite subjects",
	"child_experience":    "Note if child has tried coding, used computers, or has tech experience",
	"parent_goal":         "What does the parent want for their child? Skills, career prep, creativity, logical thinking?",
	"learning_motivation": "Why are they seeking lessons now? School requirement, child's request, parent's initiative?",
	"main_pain_point":     "The biggest challenge or concern. E.g., 'child struggles with logic', 'bored with traditional learning'",
	"desired_outcome":     "What would success look like? Better grades, career readiness, confidence, creativity?",
	"objections":          "Any concerns raised: too expensive, no time, doubt about results, child's motivation",
	"budget_constraint":   "Budget mentioned? Payment concerns? Looking for discounts or installments?",
	"schedule_constraint": "When can they attend? Weekends only? After school? Specific time preferences?",
	"additional_notes":    "Anything else important that doesn't fit other categories",
}

// ExtractionHint returns the classifier guidance text for a field.
func ExtractionHint(fieldID string) string {
	if hint, ok := extractionHints[fieldID]; ok {
		return hint
	}
	return "Extract relevant information from the conversation"
}

// ValidateClientCardFields checks a client card schema: non-empty, required
// fields present, unique ids, known categories.
func ValidateClientCardFields(fields []ClientCardField) error {
	if len(fields) == 0 {
		return fmt.Errorf("client card must contain at least one field")
	}

	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		if field.ID == "" {
			return fmt.Errorf("client card field missing required property: id")
		}
		if field.Label == "" {
			return fmt.Errorf("client card field %s missing required property: label", field.ID)
		}
		if seen[field.ID] {
			return fmt.Errorf("duplicate client card field id: %s", field.ID)
		}
		seen[field.ID] = true

		if !validFieldCategories[field.Category] {
			return fmt.Errorf("invalid client card category %q for field %s", field.Category, field.ID)
		}
	}

	return nil
}

// LoadClientCardFields reads a client card schema from a YAML file and
// validates it.
func LoadClientCardFields(path string) ([]ClientCardField, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client card file %s: %w", path, err)
	}

	var wrapper struct {
		Fields []ClientCardField `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse client card file %s: %w", path, err)
	}

	if err := ValidateClientCardFields(wrapper.Fields); err != nil {
		return nil, fmt.Errorf("client card validation failed: %w", err)
	}

	return wrapper.Fields, nil
}
