// hotword compiles hot phrases into a context biasing graph and serves it
// to streaming decoders.
package main

import (
	"os"

	"github.com/corey/hotword/cmd/hotword/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
