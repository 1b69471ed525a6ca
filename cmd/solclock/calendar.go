package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/solclock/marstime"
)

type calendarParams struct {
	add       float64
	addEarth  time.Duration
	orbit     int
	showOrbit bool
}

func newCalendarCommand() *cobra.Command {
	params := calendarParams{}

	cmd := &cobra.Command{
		Use:   "calendar [stamp]",
		Short: "Inspect Mars calendar times",
		Long: `Print the details of a time stamp such as 03-Adir-05:056.349,
optionally moved by a number of millisols or an Earth duration, or print the
months of an orbit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if params.showOrbit {
				return printOrbit(out, params.orbit)
			}

			stamp := "01-Adir-01:000.000"
			if len(args) == 1 {
				stamp = args[0]
			}

			t, err := marstime.Parse(stamp)
			if err != nil {
				return err
			}

			printTime(out, "time", t)

			delta := params.add + marstime.FromEarthDuration(params.addEarth)
			if delta != 0 {
				printTime(out, "moved", t.Add(delta))
				fmt.Fprintf(out, "%-8s %.3f millisols (%s)\n", "delta",
					delta, marstime.ToEarthDuration(delta))
			}

			return nil
		},
	}

	cmd.Flags().Float64Var(&params.add, "add", 0, "millisols to add, may be negative")
	cmd.Flags().DurationVar(&params.addEarth, "add-earth", 0, "Earth duration to add, such as 36h")
	cmd.Flags().IntVar(&params.orbit, "orbit", 1, "orbit to list with --months")
	cmd.Flags().BoolVar(&params.showOrbit, "months", false, "list the months of an orbit")

	return cmd
}

func printTime(out io.Writer, label string, t marstime.MarsTime) {
	fmt.Fprintf(out, "%-8s %s\n", label, t)
	fmt.Fprintf(out, "%-8s orbit %d, month %d (%s), sol %d, millisol %.3f\n",
		"", t.Orbit(), t.Month(), t.MonthName(), t.SolOfMonth(), t.Millisol())
}

func printOrbit(out io.Writer, orbit int) error {
	if orbit < 0 {
		return fmt.Errorf("invalid orbit %d", orbit)
	}

	leap := ""
	if marstime.IsLeapOrbit(orbit) {
		leap = ", leap"
	}

	fmt.Fprintf(out, "orbit %d: %d sols%s\n",
		orbit, marstime.SolsInOrbit(orbit), leap)

	for m := 1; m <= marstime.MonthsPerOrbit; m++ {
		fmt.Fprintf(out, "%2d %-10s %d\n",
			m, marstime.MonthName(m), marstime.SolsInMonth(m, orbit))
	}

	return nil
}
