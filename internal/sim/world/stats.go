package world

import "github.com/BinaryBen1/virus-simulation/internal/sim/epidemic"

type StatsBucket struct {
	NewInfections    int `json:"new_infections"`
	BecameInfectious int `json:"became_infectious"`
	Removed          int `json:"removed"`
}

// IncidenceStats keeps a rolling window of transition counts split into
// fixed-size tick buckets.
type IncidenceStats struct {
	bucketTicks uint64
	windowTicks uint64

	buckets []StatsBucket
	curIdx  int
	curBase uint64 // start tick (inclusive) of current bucket
}

func NewIncidenceStats(bucketTicks, windowTicks uint64) *IncidenceStats {
	if bucketTicks == 0 {
		bucketTicks = 600
	}
	if windowTicks < bucketTicks {
		windowTicks = bucketTicks
	}
	n := int(windowTicks / bucketTicks)
	return &IncidenceStats{
		bucketTicks: bucketTicks,
		windowTicks: uint64(n) * bucketTicks,
		buckets:     make([]StatsBucket, n),
	}
}

func (s *IncidenceStats) rotate(nowTick uint64) {
	// Skip whole windows at once after a long gap.
	if nowTick >= s.curBase+s.windowTicks+s.bucketTicks {
		gap := (nowTick - s.curBase) / s.bucketTicks
		for i := range s.buckets {
			s.buckets[i] = StatsBucket{}
		}
		s.curBase += gap * s.bucketTicks
		return
	}
	for nowTick >= s.curBase+s.bucketTicks {
		s.curIdx = (s.curIdx + 1) % len(s.buckets)
		s.buckets[s.curIdx] = StatsBucket{}
		s.curBase += s.bucketTicks
	}
}

func (s *IncidenceStats) Record(nowTick uint64, newInfections int, tr epidemic.Transitions) {
	if s == nil {
		return
	}
	s.rotate(nowTick)
	b := &s.buckets[s.curIdx]
	b.NewInfections += newInfections
	b.BecameInfectious += tr.BecameInfectious
	b.Removed += tr.Removed
}

func (s *IncidenceStats) WindowTicks() uint64 {
	if s == nil {
		return 0
	}
	return s.windowTicks
}

func (s *IncidenceStats) Summarize(nowTick uint64) StatsBucket {
	if s == nil {
		return StatsBucket{}
	}
	s.rotate(nowTick)
	var out StatsBucket
	for _, b := range s.buckets {
		out.NewInfections += b.NewInfections
		out.BecameInfectious += b.BecameInfectious
		out.Removed += b.Removed
	}
	return out
}
