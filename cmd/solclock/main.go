// Command solclock runs a Mars simulation clock headless and offers calendar
// utilities.
package main

import (
	"github.com/tebeka/atexit"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
