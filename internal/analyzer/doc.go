// Package analyzer provides the HTTP client for the semantic classifier API
// used to judge checklist completion, stage placement, evidence relevance,
// and client card extraction from transcript windows. Acceptance guards live
// in the session engine; this package only asks questions and parses answers.
package analyzer
