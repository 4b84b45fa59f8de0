// Command climanim renders animated GIFs of gridded temperature datasets.
package main

import (
	"os"

	"github.com/rtm0/climanim/internal/cli"
)

func main() {
	if err := cli.Root.Execute(); err != nil {
		os.Exit(1)
	}
}
