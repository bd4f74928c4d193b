package main

import (
	"github.com/sprintroom/sprintroom-cli/cmd"
	"github.com/sprintroom/sprintroom-cli/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
