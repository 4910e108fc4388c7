// Package audio provides the chunk buffer that accumulates raw audio
// fragments from an ingest connection into transcription-ready windows.
package audio
