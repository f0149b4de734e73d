package main

import (
	"github.com/gridvoice/cli/cmd"
	"github.com/gridvoice/cli/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
