package main

import (
	"os"

	"github.com/abhisek/vitalq/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
