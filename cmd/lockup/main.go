package main

import (
	"os"

	"github.com/code-payments/token-distributor/pkg/app"
)

func main() {
	if err := app.Run(newCommands(os.Stdout)); err != nil {
		os.Exit(1)
	}
}
