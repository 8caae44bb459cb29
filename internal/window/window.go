// Package window implements a bounded FIFO of recent samples with a running mean.
package window

// DefaultSize is the number of samples a feed keeps for its moving average.
const DefaultSize = 120

// Rolling holds up to size of the most recent samples, oldest evicted first.
// It is not safe for concurrent use.
type Rolling struct {
	buf    []int
	start  int
	count  int
	sum    int64
	latest int
}

// New returns an empty window. A non-positive size falls back to DefaultSize.
func New(size int) *Rolling {
	if size <= 0 {
		size = DefaultSize
	}
	return &Rolling{buf: make([]int, size)}
}

// Push appends v, evicting the oldest sample when the window is full.
func (w *Rolling) Push(v int) {
	w.latest = v
	if w.count == len(w.buf) {
		w.sum -= int64(w.buf[w.start])
		w.buf[w.start] = v
		w.start = (w.start + 1) % len(w.buf)
	} else {
		w.buf[(w.start+w.count)%len(w.buf)] = v
		w.count++
	}
	w.sum += int64(v)
}

// Mean returns the arithmetic mean of the held samples. An empty window
// returns the most recent raw value instead.
func (w *Rolling) Mean() float64 {
	if w.count == 0 {
		return float64(w.latest)
	}
	return float64(w.sum) / float64(w.count)
}

// Latest returns the most recently pushed value.
func (w *Rolling) Latest() int { return w.latest }

// Len returns the number of samples held.
func (w *Rolling) Len() int { return w.count }

// Cap returns the maximum number of samples held.
func (w *Rolling) Cap() int { return len(w.buf) }

// Values returns the held samples in chronological order.
func (w *Rolling) Values() []int {
	out := make([]int, w.count)
	for i := range out {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}
