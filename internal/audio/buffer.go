package audio

import (
	"sync"
	"time"
)

// BufferConfig controls when an accumulating buffer declares a window ready
// for transcription.
type BufferConfig struct {
	Interval  time.Duration // minimum time since last reset
	MinChunks int           // minimum fragment count
	MinBytes  int           // minimum accumulated size
}

// DefaultBufferConfig returns the thresholds tuned for browser WebM audio:
// a 10 second window with at least 8 fragments and 60KB of data, enough for
// the container to be structurally decodable.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{
		Interval:  10 * time.Second,
		MinChunks: 8,
		MinBytes:  60000,
	}
}

// Buffer accumulates opaque audio fragments from one ingest connection and
// decides when enough has been collected to form a transcribable window.
// Readiness requires all three thresholds simultaneously: elapsed time alone
// would trigger on near-empty buffers during silence, and byte size alone
// could fire mid-fragment before a structurally valid window exists.
type Buffer struct {
	cfg BufferConfig

	data       []byte
	chunkCount int
	lastReset  time.Time

	now func() time.Time

	mu sync.Mutex
}

// BufferStats is a point-in-time view of buffer accumulation, for monitoring.
type BufferStats struct {
	Chunks         int           `json:"chunks"`
	Bytes          int           `json:"bytes"`
	SinceLastReset time.Duration `json:"since_last_reset"`
}

// NewBuffer creates a buffer with the given thresholds. Zero or negative
// threshold values fall back to the defaults.
func NewBuffer(cfg BufferConfig) *Buffer {
	def := DefaultBufferConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MinChunks <= 0 {
		cfg.MinChunks = def.MinChunks
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = def.MinBytes
	}

	b := &Buffer{
		cfg: cfg,
		now: time.Now,
	}
	b.lastReset = b.now()
	return b
}

// Add appends one fragment and reports whether the buffer is ready for
// draining. Ready means the configured interval has elapsed since the last
// reset AND at least MinChunks fragments have been appended AND the
// accumulated size is at least MinBytes.
func (b *Buffer) Add(chunk []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, chunk...)
	b.chunkCount++

	elapsed := b.now().Sub(b.lastReset)

	return elapsed >= b.cfg.Interval &&
		b.chunkCount >= b.cfg.MinChunks &&
		len(b.data) >= b.cfg.MinBytes
}

// Bytes returns a copy of the accumulated data without resetting counters.
// The caller must call Reset after consuming the window, whether or not the
// downstream processing succeeded, to guarantee forward progress.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Reset clears the accumulated data and counters and restarts the interval
// clock.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = b.data[:0]
	b.chunkCount = 0
	b.lastReset = b.now()
}

// HasData reports whether any fragments have been appended since last reset.
func (b *Buffer) HasData() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chunkCount > 0
}

// Stats returns current accumulation counters.
func (b *Buffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BufferStats{
		Chunks:         b.chunkCount,
		Bytes:          len(b.data),
		SinceLastReset: b.now().Sub(b.lastReset),
	}
}
