// Command opsmap serves and renders the operations map: a force-directed
// view of the network with the optimizer's link utilization overlaid.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
