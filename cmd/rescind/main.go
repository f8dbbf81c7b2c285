package main

import (
	"os"

	"github.com/rescindhq/rescind/cmd/rescind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
