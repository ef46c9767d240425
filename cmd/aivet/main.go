package main

import (
	"os"

	"github.com/aivet-io/aivet/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
