package main

import (
	"os"

	"github.com/zikalyze/core/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
