package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"beatshop/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode separates caller mistakes (2) and missing beats (3) from
// operational failures (1) so scripts can branch on them.
func exitCode(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return 2
	case errors.Is(err, services.ErrNotFound):
		return 3
	default:
		return 1
	}
}
