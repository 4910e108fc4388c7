// Package session implements the live call tracking engine. A session
// accumulates audio into windows, turns them into transcript through the
// transcription client, and runs an analysis cycle per window: keyword
// greeting pre-check, stage resolution, checklist completion with acceptance
// guards, and client card extraction. Every accepted or rejected change is
// recorded in a per-session decision log and the resulting state snapshot is
// fanned out to coaching UI subscribers.
package session
