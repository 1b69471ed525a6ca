package timing

import "github.com/sarchlab/solclock/marstime"

// halfSol is the millisol that splits a sol in two.
const halfSol = 500.0

// BoundaryTracker remembers where the previous pulse of a lineage landed so
// the next pulse can tell which calendar boundaries it crossed. The clock
// owns the tracker of the main lineage. It is not safe for concurrent use.
type BoundaryTracker struct {
	lastSol         int
	lastMillisol    float64
	lastIntMillisol int
}

// NewBoundaryTracker creates a tracker positioned at start.
func NewBoundaryTracker(start marstime.MarsTime) *BoundaryTracker {
	return &BoundaryTracker{
		lastSol:         start.MissionSol(),
		lastMillisol:    start.Millisol(),
		lastIntMillisol: start.MillisolInt(),
	}
}

// Observe compares t with the remembered position, remembers t, and reports
// the boundaries crossed.
func (b *BoundaryTracker) Observe(
	t marstime.MarsTime,
) (newSol, newHalfSol, newMSol bool) {
	currentSol := t.MissionSol()
	newSol = currentSol != b.lastSol
	if newSol {
		b.lastSol = currentSol
	}

	currentMillisol := t.Millisol()
	newHalfSol = newSol ||
		(b.lastMillisol <= halfSol && currentMillisol > halfSol)
	b.lastMillisol = currentMillisol

	currentInt := t.MillisolInt()
	newMSol = currentInt != b.lastIntMillisol
	if newMSol {
		b.lastIntMillisol = currentInt
	}

	return newSol, newHalfSol, newMSol
}

// Fork returns an independent copy, for starting a second lineage from the
// same point.
func (b *BoundaryTracker) Fork() *BoundaryTracker {
	c := *b
	return &c
}
