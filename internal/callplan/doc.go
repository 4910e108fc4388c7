// Package callplan defines the scripted call structure (stages and checklist
// items), the client card field schema, and the time-based stage timeline.
package callplan
