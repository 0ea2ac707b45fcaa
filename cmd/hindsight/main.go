package main

import (
	"os"

	"github.com/quantfold/hindsight/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
