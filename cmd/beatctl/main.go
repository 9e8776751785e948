package main

import (
	"os"

	"github.com/nzoschke/beatmarket/cmd/beatctl/cmd"
	"github.com/nzoschke/beatmarket/internal/config"
	"github.com/nzoschke/beatmarket/internal/logger"
)

func main() {
	logger.Init(true, "")

	driver, connection := config.LoadDatabase()

	if err := cmd.Root(driver, connection).Execute(); err != nil {
		os.Exit(1)
	}
}
