package processor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Features records optional filters the installed ffmpeg provides.
type Features struct {
	Rubberband bool
}

// DetectFeatures asks ffmpeg which filters it was built with.
func DetectFeatures(ctx context.Context, binary string) (Features, error) {
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-filters").Output()
	if err != nil {
		return Features{}, fmt.Errorf("failed to list ffmpeg filters: %w", err)
	}
	return parseFilterList(out), nil
}

// parseFilterList scans `ffmpeg -filters` output. Each filter line has a
// flags column followed by the filter name.
func parseFilterList(out []byte) Features {
	var f Features
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[1] == "rubberband" {
			f.Rubberband = true
		}
	}
	return f
}
