package callplan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Checklist item kinds. "discuss" items expect the manager to ask about or
// discuss something with the client; "say" items expect the manager to explain
// or state something.
const (
	KindDiscuss = "discuss"
	KindSay     = "say"
)

// ChecklistItem is a single expected sales action within a stage.
// Immutable once loaded.
type ChecklistItem struct {
	ID      string `yaml:"id" json:"id"`
	Kind    string `yaml:"kind" json:"type"`
	Content string `yaml:"content" json:"content"`
}

// CallStage is one named phase of the scripted call with an expected time
// window and its checklist items.
type CallStage struct {
	ID                 string          `yaml:"id" json:"id"`
	Name               string          `yaml:"name" json:"name"`
	StartOffsetSeconds int             `yaml:"start_offset_seconds" json:"startOffsetSeconds"`
	DurationSeconds    int             `yaml:"duration_seconds" json:"durationSeconds"`
	Items              []ChecklistItem `yaml:"items" json:"items"`
}

// Structure is the ordered list of stages making up a call plan.
type Structure []CallStage

// DefaultStructure returns the built-in trial class call plan: seven stages
// covering opening through closing, with per-stage checklist items.
func DefaultStructure() Structure {
	return Structure{
		{
			ID:                 "stage_1_opening",
			Name:               "Opening & Greeting",
			StartOffsetSeconds: 0,
			DurationSeconds:    120,
			Items: []ChecklistItem{
				{ID: "greet_client", Kind: KindSay, Content: "Greet the client warmly and introduce yourself"},
				{ID: "confirm_time", Kind: KindDiscuss, Content: "Confirm they have time for the trial class"},
				{ID: "explain_agenda", Kind: KindSay, Content: "Explain today's agenda and trial class structure"},
			},
		},
		{
			ID:                 "stage_2_discovery",
			Name:               "Understanding Needs",
			StartOffsetSeconds: 120,
			DurationSeconds:    300,
			Items: []ChecklistItem{
				{ID: "ask_child_age", Kind: KindDiscuss, Content: "Ask about the child's age and current grade"},
				{ID: "ask_interests", Kind: KindDiscuss, Content: "Discover what the child likes (games, activities, subjects)"},
				{ID: "ask_goals", Kind: KindDiscuss, Content: "Understand parent's goals for the child"},
				{ID: "ask_experience", Kind: KindDiscuss, Content: "Check if child has any coding/tech experience"},
				{ID: "identify_pain_points", Kind: KindDiscuss, Content: "Identify challenges or concerns parent has"},
			},
		},
		{
			ID:                 "stage_3_trial_intro",
			Name:               "Trial Class Introduction",
			StartOffsetSeconds: 420,
			DurationSeconds:    180,
			Items: []ChecklistItem{
				{ID: "explain_platform", Kind: KindSay, Content: "Explain how the learning platform works"},
				{ID: "show_curriculum", Kind: KindSay, Content: "Show the curriculum tailored to their child's level"},
				{ID: "set_expectations", Kind: KindSay, Content: "Set expectations for the trial class"},
			},
		},
		{
			ID:                 "stage_4_trial_class",
			Name:               "Conducting Trial Class",
			StartOffsetSeconds: 600,
			DurationSeconds:    1200,
			Items: []ChecklistItem{
				{ID: "engage_child", Kind: KindDiscuss, Content: "Actively engage with the child during lesson"},
				{ID: "demonstrate_method", Kind: KindSay, Content: "Demonstrate teaching methodology and approach"},
				{ID: "check_understanding", Kind: KindDiscuss, Content: "Check child's understanding throughout"},
				{ID: "encourage_participation", Kind: KindSay, Content: "Encourage active participation and questions"},
				{ID: "show_progress", Kind: KindSay, Content: "Show visible progress during the trial"},
			},
		},
		{
			ID:                 "stage_5_feedback",
			Name:               "Trial Feedback & Discussion",
			StartOffsetSeconds: 1800,
			DurationSeconds:    300,
			Items: []ChecklistItem{
				{ID: "ask_child_feedback", Kind: KindDiscuss, Content: "Ask the child how they felt about the lesson"},
				{ID: "ask_parent_feedback", Kind: KindDiscuss, Content: "Get parent's immediate feedback and observations"},
				{ID: "highlight_strengths", Kind: KindSay, Content: "Highlight what the child did well"},
				{ID: "suggest_next_steps", Kind: KindSay, Content: "Suggest learning path and next topics"},
			},
		},
		{
			ID:                 "stage_6_objections",
			Name:               "Address Concerns",
			StartOffsetSeconds: 2100,
			DurationSeconds:    300,
			Items: []ChecklistItem{
				{ID: "address_price", Kind: KindDiscuss, Content: "Address pricing concerns if raised"},
				{ID: "address_schedule", Kind: KindDiscuss, Content: "Discuss schedule flexibility and options"},
				{ID: "address_doubts", Kind: KindDiscuss, Content: "Address any doubts about effectiveness"},
				{ID: "show_proof", Kind: KindSay, Content: "Share success stories and testimonials"},
			},
		},
		{
			ID:                 "stage_7_closing",
			Name:               "Closing & Next Steps",
			StartOffsetSeconds: 2400,
			DurationSeconds:    300,
			Items: []ChecklistItem{
				{ID: "summarize_value", Kind: KindSay, Content: "Summarize the value and benefits discussed"},
				{ID: "present_packages", Kind: KindSay, Content: "Present available packages and pricing"},
				{ID: "ask_commitment", Kind: KindDiscuss, Content: "Ask if they're ready to enroll"},
				{ID: "schedule_followup", Kind: KindDiscuss, Content: "Schedule follow-up or next class"},
				{ID: "thank_participant", Kind: KindSay, Content: "Thank them for their time and participation"},
			},
		},
	}
}

// LoadStructure reads a call structure from a YAML file and validates it.
func LoadStructure(path string) (Structure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read call structure file %s: %w", path, err)
	}

	var wrapper struct {
		Structure Structure `yaml:"structure"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to parse call structure file %s: %w", path, err)
	}

	if err := wrapper.Structure.Validate(); err != nil {
		return nil, fmt.Errorf("call structure validation failed: %w", err)
	}

	return wrapper.Structure, nil
}

// Validate checks structural integrity: non-empty, required fields present,
// stage ids unique, item ids unique across all stages, valid item kinds.
func (s Structure) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("structure must contain at least one stage")
	}

	stageIDs := make(map[string]bool, len(s))
	itemIDs := make(map[string]bool)

	for _, stage := range s {
		if stage.ID == "" {
			return fmt.Errorf("stage missing required field: id")
		}
		if stage.Name == "" {
			return fmt.Errorf("stage %s missing required field: name", stage.ID)
		}
		if stage.StartOffsetSeconds < 0 {
			return fmt.Errorf("stage %s has negative start offset: %d", stage.ID, stage.StartOffsetSeconds)
		}
		if stage.DurationSeconds <= 0 {
			return fmt.Errorf("stage %s must have positive duration, got %d", stage.ID, stage.DurationSeconds)
		}
		if stageIDs[stage.ID] {
			return fmt.Errorf("duplicate stage id: %s", stage.ID)
		}
		stageIDs[stage.ID] = true

		if len(stage.Items) == 0 {
			return fmt.Errorf("stage %s must contain at least one item", stage.ID)
		}

		for _, item := range stage.Items {
			if item.ID == "" {
				return fmt.Errorf("stage %s has an item missing required field: id", stage.ID)
			}
			if item.Content == "" {
				return fmt.Errorf("item %s missing required field: content", item.ID)
			}
			if itemIDs[item.ID] {
				return fmt.Errorf("duplicate item id: %s", item.ID)
			}
			itemIDs[item.ID] = true

			if item.Kind != KindDiscuss && item.Kind != KindSay {
				return fmt.Errorf("item %s kind must be %q or %q, got %q", item.ID, KindDiscuss, KindSay, item.Kind)
			}
		}
	}

	return nil
}

// StageByID returns the stage with the given id, or false if absent.
func (s Structure) StageByID(id string) (CallStage, bool) {
	for _, stage := range s {
		if stage.ID == id {
			return stage, true
		}
	}
	return CallStage{}, false
}

// ItemByID returns the checklist item with the given id from any stage.
func (s Structure) ItemByID(id string) (ChecklistItem, bool) {
	for _, stage := range s {
		for _, item := range stage.Items {
			if item.ID == id {
				return item, true
			}
		}
	}
	return ChecklistItem{}, false
}

// ItemCount returns the total number of checklist items across all stages.
func (s Structure) ItemCount() int {
	n := 0
	for _, stage := range s {
		n += len(stage.Items)
	}
	return n
}
