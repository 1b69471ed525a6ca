package marstime

import "time"

// Calendar constants.
const (
	MillisolsPerSol   = 1000.0
	MonthsPerOrbit    = 24
	SolsPerMonthLong  = 28
	SolsPerMonthShort = 27

	SolsPerOrbitNonLeap = 668
	SolsPerOrbitLeap    = 669

	// The leap pattern repeats every ten orbits, six of which are leap.
	OrbitsPerCycle = 10
	SolsPerCycle   = 6686

	// SecondsPerMillisol is the number of Earth seconds in one millisol.
	SecondsPerMillisol = 88.775244
	// HoursPerMillisol is the number of Earth hours in one millisol.
	HoursPerMillisol = SecondsPerMillisol / 3600
)

var monthNames = [MonthsPerOrbit]string{
	"Adir", "Bora", "Coan", "Detri", "Edal", "Flo",
	"Geor", "Heliba", "Idanon", "Jowani", "Kireal", "Larno",
	"Medior", "Neturima", "Ozulikan", "Pasurabi", "Rudiakel", "Safundo",
	"Tiunor", "Ulasja", "Vadeun", "Wakumi", "Xetual", "Zungo",
}

// MonthName returns the name of a month numbered from 1.
func MonthName(month int) string {
	if month < 1 || month > MonthsPerOrbit {
		return "Unknown"
	}

	return monthNames[month-1]
}

func monthNumber(name string) int {
	for i, n := range monthNames {
		if n == name {
			return i + 1
		}
	}

	return 0
}

// IsLeapOrbit tells if an orbit carries the extra sol at the end of its last
// month. Odd orbits and orbits divisible by 10 are leap orbits.
func IsLeapOrbit(orbit int) bool {
	return orbit%2 == 1 || orbit%10 == 0
}

// SolsInMonth returns the length of a month. Every sixth month is short,
// except the last month of a leap orbit.
func SolsInMonth(month, orbit int) int {
	if month%6 != 0 {
		return SolsPerMonthLong
	}

	if month == MonthsPerOrbit && IsLeapOrbit(orbit) {
		return SolsPerMonthLong
	}

	return SolsPerMonthShort
}

// SolsInOrbit returns the number of sols of an orbit.
func SolsInOrbit(orbit int) int {
	if IsLeapOrbit(orbit) {
		return SolsPerOrbitLeap
	}

	return SolsPerOrbitNonLeap
}

// solsBeforeOrbit counts the sols from the epoch to the first sol of orbit.
func solsBeforeOrbit(orbit int) int {
	odd := orbit / 2
	tenths := (orbit + 9) / 10

	return orbit*SolsPerOrbitNonLeap + odd + tenths
}

func solsBeforeMonth(month, orbit int) int {
	n := 0
	for m := 1; m < month; m++ {
		n += SolsInMonth(m, orbit)
	}

	return n
}

func toEpochSol(orbit, month, sol int) int {
	return solsBeforeOrbit(orbit) + solsBeforeMonth(month, orbit) + sol - 1
}

func fromEpochSol(n int) (orbit, month, sol int) {
	if n < 0 {
		panic("marstime: time before the calendar epoch")
	}

	orbit = n / SolsPerCycle * OrbitsPerCycle
	rem := n % SolsPerCycle
	for rem >= SolsInOrbit(orbit) {
		rem -= SolsInOrbit(orbit)
		orbit++
	}

	month = 1
	for rem >= SolsInMonth(month, orbit) {
		rem -= SolsInMonth(month, orbit)
		month++
	}

	return orbit, month, rem + 1
}

// FromEarthDuration converts an Earth duration to millisols.
func FromEarthDuration(d time.Duration) float64 {
	return d.Seconds() / SecondsPerMillisol
}

// ToEarthDuration converts millisols to an Earth duration.
func ToEarthDuration(millisols float64) time.Duration {
	return time.Duration(millisols * SecondsPerMillisol * float64(time.Second))
}
