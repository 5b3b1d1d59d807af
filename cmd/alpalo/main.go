// Command alpalo runs the Directo Al Palo news site.
package main

import (
	"os"

	_ "time/tzdata"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
