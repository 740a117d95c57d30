package antigaming

// DefaultHistoryCapacity bounds the per-agent behavior history.
const DefaultHistoryCapacity = 50

// minSamplesForDetection gates the detector bank: below this the engine
// returns a neutral verdict instead of inferring from thin data.
const minSamplesForDetection = 5

// History is one agent's bounded, insertion-ordered sample sequence. It is
// not synchronized; the engine guards each instance with the owning agent's
// lock (see Engine).
type History struct {
	capacity int
	samples  []BehaviorSample
}

// NewHistory creates a history with the given capacity (DefaultHistoryCapacity
// if non-positive).
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		capacity: capacity,
		samples:  make([]BehaviorSample, 0, capacity),
	}
}

// Append inserts a sample at the tail, evicting the oldest sample once the
// sequence exceeds capacity. Timestamps are kept monotonically non-decreasing:
// a sample stamped earlier than the current tail is clamped to the tail's
// timestamp rather than rejected.
func (h *History) Append(sample BehaviorSample) {
	if n := len(h.samples); n > 0 && sample.Timestamp.Before(h.samples[n-1].Timestamp) {
		sample.Timestamp = h.samples[n-1].Timestamp
	}

	h.samples = append(h.samples, sample)
	if len(h.samples) > h.capacity {
		// Shift rather than re-slice so the backing array doesn't grow
		// unboundedly over the process lifetime.
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:h.capacity]
	}
}

// Recent returns up to the last n samples in chronological order. The result
// is a copy; callers never hold references into the store.
func (h *History) Recent(n int) []BehaviorSample {
	if n <= 0 {
		return nil
	}
	if n > len(h.samples) {
		n = len(h.samples)
	}
	out := make([]BehaviorSample, n)
	copy(out, h.samples[len(h.samples)-n:])
	return out
}

// Len returns the number of stored samples.
func (h *History) Len() int {
	return len(h.samples)
}
