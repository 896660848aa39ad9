// Package deps checks the external binaries beatshop shells out to.
package deps

import (
	"context"

	"beatshop/internal/config"
)

// Status reports the availability of an external binary.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Check probes every external binary the configured service shells out to.
// Today that is ffmpeg alone; previews are unavailable without it but
// uploads, listings and downloads keep working, so it is reported as
// optional.
func Check(ctx context.Context, cfg *config.Config) []Status {
	ffmpeg := CheckFFmpeg(ctx, cfg.FFmpegBinary())
	ffmpeg.Optional = true
	return []Status{ffmpeg}
}
