// Package marstime provides the colony calendar. A MarsTime is an instant
// given as orbit, month, sol of month and millisol of sol, together with the
// number of sols since the mission started.
package marstime

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MarsTime is an immutable instant of the colony calendar. The zero value is
// not a valid time; use New or MustNew.
type MarsTime struct {
	orbit      int
	month      int
	sol        int
	millisol   float64
	missionSol int
}

// New creates a MarsTime. The month and sol are counted from 1 and the
// millisol must be in [0, 1000).
func New(
	orbit, month, solOfMonth int,
	millisol float64,
	missionSol int,
) (MarsTime, error) {
	switch {
	case orbit < 0:
		return MarsTime{}, fmt.Errorf("marstime: invalid orbit %d", orbit)
	case month < 1 || month > MonthsPerOrbit:
		return MarsTime{}, fmt.Errorf("marstime: invalid month %d", month)
	case solOfMonth < 1 || solOfMonth > SolsInMonth(month, orbit):
		return MarsTime{}, fmt.Errorf(
			"marstime: invalid sol %d in month %d of orbit %d",
			solOfMonth, month, orbit)
	case math.IsNaN(millisol) || millisol < 0 || millisol >= MillisolsPerSol:
		return MarsTime{}, fmt.Errorf("marstime: invalid millisol %v", millisol)
	case missionSol < 1:
		return MarsTime{}, fmt.Errorf(
			"marstime: invalid mission sol %d", missionSol)
	}

	return MarsTime{
		orbit:      orbit,
		month:      month,
		sol:        solOfMonth,
		millisol:   millisol,
		missionSol: missionSol,
	}, nil
}

// MustNew is like New but panics on invalid input.
func MustNew(
	orbit, month, solOfMonth int,
	millisol float64,
	missionSol int,
) MarsTime {
	t, err := New(orbit, month, solOfMonth, millisol, missionSol)
	if err != nil {
		panic(err)
	}

	return t
}

// Orbit returns the orbit (year) number.
func (t MarsTime) Orbit() int { return t.orbit }

// Month returns the month of the orbit, starting from 1.
func (t MarsTime) Month() int { return t.month }

// MonthName returns the name of the month.
func (t MarsTime) MonthName() string { return MonthName(t.month) }

// SolOfMonth returns the sol of the month, starting from 1.
func (t MarsTime) SolOfMonth() int { return t.sol }

// Millisol returns the millisol of the sol, in [0, 1000).
func (t MarsTime) Millisol() float64 { return t.millisol }

// MillisolInt returns the truncated millisol of the sol.
func (t MarsTime) MillisolInt() int { return int(t.millisol) }

// MissionSol returns the number of the sol since the mission started.
func (t MarsTime) MissionSol() int { return t.missionSol }

// Date returns the calendar date of the instant.
func (t MarsTime) Date() MarsDate {
	return MarsDate{Orbit: t.orbit, Month: t.month, Sol: t.sol}
}

func (t MarsTime) epochSol() int {
	return toEpochSol(t.orbit, t.month, t.sol)
}

// TotalMillisols returns the millisols passed since the calendar epoch.
func (t MarsTime) TotalMillisols() float64 {
	return float64(t.epochSol())*MillisolsPerSol + t.millisol
}

// maxSolsPerAdd bounds the sols one Add may cross. Float millisols lose all
// sub-sol precision long before it.
const maxSolsPerAdd = 1 << 53

// Add returns the instant that is a number of millisols later. A negative
// delta moves the time backward. Moving before the calendar epoch, or by
// more than 2^53 sols, panics.
func (t MarsTime) Add(millisols float64) MarsTime {
	if math.IsNaN(millisols) || math.IsInf(millisols, 0) {
		panic(fmt.Sprintf("marstime: cannot add %v millisols", millisols))
	}

	ms := t.millisol + millisols
	carry := math.Floor(ms / MillisolsPerSol)
	ms -= carry * MillisolsPerSol

	if ms >= MillisolsPerSol {
		ms -= MillisolsPerSol
		carry++
	}

	if ms < 0 {
		ms += MillisolsPerSol
		carry--
	}

	t.millisol = ms
	if carry == 0 {
		return t
	}

	if math.Abs(carry) > maxSolsPerAdd {
		panic(fmt.Sprintf("marstime: adding %v millisols overflows the calendar",
			millisols))
	}

	sols := int(carry)
	t.orbit, t.month, t.sol = fromEpochSol(t.epochSol() + sols)
	t.missionSol += sols

	return t
}

// Diff returns t minus other in millisols.
func (t MarsTime) Diff(other MarsTime) float64 {
	sols := t.epochSol() - other.epochSol()
	return float64(sols)*MillisolsPerSol + (t.millisol - other.millisol)
}

// Compare returns -1 if t is before other, 1 if t is after other, and 0 if
// both denote the same instant.
func (t MarsTime) Compare(other MarsTime) int {
	a, b := t.epochSol(), other.epochSol()

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case t.millisol < other.millisol:
		return -1
	case t.millisol > other.millisol:
		return 1
	default:
		return 0
	}
}

// Before tells if t is strictly earlier than other.
func (t MarsTime) Before(other MarsTime) bool { return t.Compare(other) < 0 }

// After tells if t is strictly later than other.
func (t MarsTime) After(other MarsTime) bool { return t.Compare(other) > 0 }

// Equal tells if t and other denote the same instant. The mission sol is not
// compared.
func (t MarsTime) Equal(other MarsTime) bool { return t.Compare(other) == 0 }

// String renders the time as orbit-month-sol:millisol, for example
// "03-Adir-05:056.349".
func (t MarsTime) String() string {
	return fmt.Sprintf("%s:%07.3f", t.Date(), t.millisol)
}

// Parse reads a time in the form produced by String. The mission sol of the
// result is 1.
func Parse(stamp string) (MarsTime, error) {
	datePart, msPart, ok := strings.Cut(strings.TrimSpace(stamp), ":")
	if !ok {
		return MarsTime{}, fmt.Errorf("marstime: missing millisol in %q", stamp)
	}

	fields := strings.Split(datePart, "-")
	if len(fields) != 3 {
		return MarsTime{}, fmt.Errorf("marstime: malformed date in %q", stamp)
	}

	orbit, err := strconv.Atoi(fields[0])
	if err != nil {
		return MarsTime{}, fmt.Errorf("marstime: bad orbit in %q: %w", stamp, err)
	}

	month := monthNumber(fields[1])
	if month == 0 {
		month, err = strconv.Atoi(fields[1])
		if err != nil {
			return MarsTime{}, fmt.Errorf(
				"marstime: unknown month %q", fields[1])
		}
	}

	sol, err := strconv.Atoi(fields[2])
	if err != nil {
		return MarsTime{}, fmt.Errorf("marstime: bad sol in %q: %w", stamp, err)
	}

	ms, err := strconv.ParseFloat(msPart, 64)
	if err != nil {
		return MarsTime{}, fmt.Errorf(
			"marstime: bad millisol in %q: %w", stamp, err)
	}

	return New(orbit, month, sol, ms, 1)
}

type marsTimeJSON struct {
	Orbit      int     `json:"orbit"`
	Month      int     `json:"month"`
	MonthName  string  `json:"month_name"`
	Sol        int     `json:"sol"`
	Millisol   float64 `json:"millisol"`
	MissionSol int     `json:"mission_sol"`
	Stamp      string  `json:"stamp"`
}

// MarshalJSON encodes the time for diagnostics.
func (t MarsTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(marsTimeJSON{
		Orbit:      t.orbit,
		Month:      t.month,
		MonthName:  t.MonthName(),
		Sol:        t.sol,
		Millisol:   t.millisol,
		MissionSol: t.missionSol,
		Stamp:      t.String(),
	})
}

// MarsDate is the date part of a MarsTime. It is comparable with ==.
type MarsDate struct {
	Orbit int
	Month int
	Sol   int
}

func (d MarsDate) String() string {
	return fmt.Sprintf("%02d-%s-%02d", d.Orbit, MonthName(d.Month), d.Sol)
}
