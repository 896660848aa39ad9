package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const encoderProbeTimeout = 5 * time.Second

// CheckFFmpeg resolves the ffmpeg binary and confirms it was built with the
// libmp3lame encoder previews depend on.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	result := Status{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Decodes beats and encodes preview clips",
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	if info, statErr := os.Stat(resolved); statErr != nil || !isExecutable(info) {
		result.Detail = fmt.Sprintf("%s is not executable", resolved)
		return result
	}
	result.Command = resolved

	ctx, cancel := context.WithTimeout(ctx, encoderProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, resolved, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		result.Detail = fmt.Sprintf("ffmpeg -encoders: %v", err)
		return result
	}
	if !strings.Contains(string(out), "libmp3lame") {
		result.Detail = "ffmpeg lacks the libmp3lame encoder"
		return result
	}
	result.Available = true
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
