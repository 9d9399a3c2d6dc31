package main

import (
	"os"

	"github.com/kerlexov/applog/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
