// Package timing drives simulated time. A Clock turns real elapsed time into
// millisols, packages every step into an immutable Pulse and hands the pulse
// to each registered Temporal in registration order.
package timing

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sarchlab/solclock/marstime"
)

// A Pulse is one step forward of the simulation. It is a value; nothing
// about a pulse changes after it is created.
type Pulse struct {
	id         uint64
	elapsed    float64
	time       marstime.MarsTime
	newSol     bool
	newHalfSol bool
	newMSol    bool
}

// NewPulse creates a pulse. The elapsed millisols must be finite and
// positive, otherwise ErrInvalidElapsed is returned.
func NewPulse(
	id uint64,
	elapsed float64,
	t marstime.MarsTime,
	isNewSol, isNewHalfSol, isNewMSol bool,
) (Pulse, error) {
	if err := validateElapsed(elapsed); err != nil {
		return Pulse{}, err
	}

	return Pulse{
		id:         id,
		elapsed:    elapsed,
		time:       t,
		newSol:     isNewSol,
		newHalfSol: isNewHalfSol,
		newMSol:    isNewMSol,
	}, nil
}

func validateElapsed(elapsed float64) error {
	if math.IsNaN(elapsed) || math.IsInf(elapsed, 0) || elapsed <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidElapsed, elapsed)
	}

	return nil
}

// mustMoveForward rejects an elapsed time too small to change the time at
// float precision.
func mustMoveForward(from, to marstime.MarsTime, elapsed float64) error {
	if !to.After(from) {
		return fmt.Errorf("%w: %v does not move time past %s",
			ErrInvalidElapsed, elapsed, from)
	}

	return nil
}

// ID returns the sequence number of the pulse.
func (p Pulse) ID() uint64 { return p.id }

// Elapsed returns the millisols that passed with this pulse.
func (p Pulse) Elapsed() float64 { return p.elapsed }

// MarsTime returns the simulated time after the pulse.
func (p Pulse) MarsTime() marstime.MarsTime { return p.time }

// IsNewSol tells if the pulse crossed into a new sol.
func (p Pulse) IsNewSol() bool { return p.newSol }

// IsNewHalfSol tells if the pulse crossed a new sol or the middle of a sol.
func (p Pulse) IsNewHalfSol() bool { return p.newHalfSol }

// IsNewMSol tells if the pulse started a new integer millisol.
func (p Pulse) IsNewMSol() bool { return p.newMSol }

// AddElapsed derives the next pulse of a lineage by moving extra millisols
// further. The result keeps the id, accumulates the elapsed time and
// recomputes the boundary flags against tracker, which is updated. Each
// lineage must use its own tracker. An extra time that does not move the
// time forward returns ErrInvalidElapsed.
func (p Pulse) AddElapsed(extra float64, tracker *BoundaryTracker) (Pulse, error) {
	if err := validateElapsed(extra); err != nil {
		return Pulse{}, err
	}

	newTime := p.time.Add(extra)
	if err := mustMoveForward(p.time, newTime, extra); err != nil {
		return Pulse{}, err
	}

	newSol, newHalfSol, newMSol := tracker.Observe(newTime)

	return NewPulse(p.id, p.elapsed+extra, newTime, newSol, newHalfSol, newMSol)
}

func (p Pulse) String() string {
	return fmt.Sprintf("pulse %d @ %s (+%.3f msol)", p.id, p.time, p.elapsed)
}

type pulseJSON struct {
	ID         uint64            `json:"id"`
	Elapsed    float64           `json:"elapsed"`
	Time       marstime.MarsTime `json:"time"`
	NewSol     bool              `json:"new_sol"`
	NewHalfSol bool              `json:"new_half_sol"`
	NewMSol    bool              `json:"new_msol"`
}

// MarshalJSON encodes the pulse for diagnostics.
func (p Pulse) MarshalJSON() ([]byte, error) {
	return json.Marshal(pulseJSON{
		ID:         p.id,
		Elapsed:    p.elapsed,
		Time:       p.time,
		NewSol:     p.newSol,
		NewHalfSol: p.newHalfSol,
		NewMSol:    p.newMSol,
	})
}
