package main

import (
	"os"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		wireerrors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
