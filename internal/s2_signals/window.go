package s2_signals

import "math"

// trailingWindow keeps the current observation plus a fixed lookback of prior ones.
// Mean/Std are only defined once the window is full and every value is present.
type trailingWindow struct {
	size   int
	values []float64
}

func newTrailingWindow(size int) *trailingWindow {
	return &trailingWindow{
		size:   size,
		values: make([]float64, 0, size),
	}
}

// Push appends v and evicts the oldest observation when full
func (w *trailingWindow) Push(v float64) {
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.size-1]
	}
	w.values = append(w.values, v)
}

// Reset clears the window (ticker boundary)
func (w *trailingWindow) Reset() {
	w.values = w.values[:0]
}

func (w *trailingWindow) ready() bool {
	if len(w.values) < w.size {
		return false
	}
	for _, v := range w.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (w *trailingWindow) constant() bool {
	for _, v := range w.values[1:] {
		if v != w.values[0] {
			return false
		}
	}
	return true
}

// Mean returns the window mean, NaN unless the window is full and complete
func (w *trailingWindow) Mean() float64 {
	if !w.ready() {
		return math.NaN()
	}
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	return sum / float64(len(w.values))
}

// Std returns the sample std (n-1), NaN unless the window is full and complete
func (w *trailingWindow) Std() float64 {
	if !w.ready() {
		return math.NaN()
	}
	if w.constant() {
		// 부동소수점 오차로 0 이 아닌 값이 나오지 않도록
		return 0
	}
	mean := w.Mean()
	var ss float64
	for _, v := range w.values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(w.values)-1))
}
