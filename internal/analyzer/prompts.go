package analyzer

import (
	"fmt"
	"strings"

	"github.com/denisplykin/sales-coach-service/internal/callplan"
)

// itemFraming returns the verb phrase the prompt uses for an item kind.
// Discussion items ask whether the topic was raised at all, not whether the
// teacher delivered a monologue about it.
func itemFraming(kind string) string {
	if kind == callplan.KindDiscuss {
		return "asked about or discussed"
	}
	return "explained or mentioned"
}

func buildCheckItemPrompt(item callplan.ChecklistItem, transcript string) string {
	var b strings.Builder

	b.WriteString("You are analyzing a live sales call transcript between a teacher and a client.\n")
	b.WriteString("The transcript is machine-transcribed speech and may contain recognition errors.\n\n")
	fmt.Fprintf(&b, "Question: has the teacher %s the following?\n", itemFraming(item.Kind))
	fmt.Fprintf(&b, "Action: %s\n\n", item.Content)
	b.WriteString("Transcript (most recent part of the call):\n")
	b.WriteString(transcript)
	b.WriteString("\n\n")
	b.WriteString("Answer completed=true ONLY if the transcript contains a concrete utterance performing this action. ")
	b.WriteString("Topical overlap is not enough. If completed=true, quote the exact transcript fragment as evidence.\n\n")
	b.WriteString("Respond with JSON only, no markdown:\n")
	b.WriteString(`{"completed": true/false, "confidence": 0.0-1.0, "evidence": "exact quote or empty", "reasoning": "one sentence"}`)

	return b.String()
}

func buildValidationPrompt(subject, evidence string) string {
	var b strings.Builder

	b.WriteString("You are validating evidence from a sales call transcript.\n\n")
	fmt.Fprintf(&b, "Claim: %s\n", subject)
	fmt.Fprintf(&b, "Evidence quote: \"%s\"\n\n", evidence)
	b.WriteString("Does this quote genuinely support the claim? A greeting, filler, or an ")
	b.WriteString("unrelated remark does not support a specific claim even if it appears in the same call.\n\n")
	b.WriteString("Respond with JSON only, no markdown:\n")
	b.WriteString(`{"is_valid": true/false, "explanation": "one sentence"}`)

	return b.String()
}

func buildStagePrompt(transcript string, stages callplan.Structure, elapsedSeconds int) string {
	var b strings.Builder

	b.WriteString("You are tracking which stage of a structured sales call is currently in progress.\n\n")
	b.WriteString("Call stages:\n")
	for _, stage := range stages {
		descriptors := make([]string, 0, 3)
		for i, item := range stage.Items {
			if i >= 3 {
				break
			}
			descriptors = append(descriptors, item.Content)
		}
		fmt.Fprintf(&b, "- id=%q name=%q (planned start: minute %d): %s\n",
			stage.ID, stage.Name, stage.StartOffsetSeconds/60, strings.Join(descriptors, "; "))
	}

	fmt.Fprintf(&b, "\nElapsed call time: %d minutes %d seconds (reference only, the conversation content decides).\n\n",
		elapsedSeconds/60, elapsedSeconds%60)
	b.WriteString("Transcript (most recent part of the call):\n")
	b.WriteString(transcript)
	b.WriteString("\n\n")
	b.WriteString("Which stage is the conversation in right now? Judge by what is actually being said.\n\n")
	b.WriteString("Respond with JSON only, no markdown:\n")
	b.WriteString(`{"stage_id": "one of the ids above", "confidence": 0.0-1.0, "reasoning": "one sentence"}`)

	return b.String()
}

func buildExtractionPrompt(transcript string, known map[string]string, fields []callplan.ClientCardField) string {
	var b strings.Builder

	b.WriteString("You are filling in a client profile card from a sales call transcript.\n\n")
	b.WriteString("Fields to extract (only these, only if explicitly stated in the transcript):\n")
	for _, field := range fields {
		if _, ok := known[field.ID]; ok {
			continue
		}
		hint := field.Hint
		if extra := callplan.ExtractionHint(field.ID); extra != "" {
			hint = extra
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", field.ID, field.Label, hint)
	}

	if len(known) > 0 {
		b.WriteString("\nAlready known (do NOT re-extract these):\n")
		for id, value := range known {
			fmt.Fprintf(&b, "- %s: %s\n", id, value)
		}
	}

	b.WriteString("\nTranscript (most recent part of the call):\n")
	b.WriteString(transcript)
	b.WriteString("\n\n")
	b.WriteString("For every field you can fill, quote the exact transcript fragment the value came from. ")
	b.WriteString("Skip fields the transcript does not mention. Never guess.\n\n")
	b.WriteString("Respond with JSON only, no markdown. Map field id to value:\n")
	b.WriteString(`{"field_id": {"value": "...", "evidence": "exact quote", "confidence": 0.0-1.0}}`)

	return b.String()
}
