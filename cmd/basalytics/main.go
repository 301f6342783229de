package main

import (
	"os"

	"github.com/basalytics/basalytics/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
