package main

import (
	"os"

	"github.com/BenjaminSRussell/shelfcrawl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
