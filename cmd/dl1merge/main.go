package main

import (
	"fmt"
	"os"

	"github.com/cta-lst/dl1merge/internal/cmd"
	"github.com/cta-lst/dl1merge/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errors.ExitCode(err))
	}
}
