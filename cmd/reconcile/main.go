package main

import (
	"os"

	"panelcatalog/cmd/reconcile/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
