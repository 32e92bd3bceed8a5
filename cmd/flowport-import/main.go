// Package main provides the flowport workflow import command.
package main

import (
	"context"
	"os"

	"github.com/dukex/flowport/pkg/log"
)

func main() {
	logger := log.WithModule("import")

	err := NewImportCommand(logger).Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("flowport-import failed", "error", err)
		os.Exit(1)
	}
}
