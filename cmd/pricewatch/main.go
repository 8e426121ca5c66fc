// Package main is the entry point for the pricewatch CLI.
package main

import (
	"os"

	"github.com/pricewatch/pricewatch/cmd/pricewatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
