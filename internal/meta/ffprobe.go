package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/franz/scma/internal/util"
)

// FFprobeInfo represents the parts of ffprobe output we read
type FFprobeInfo struct {
	Streams []FFprobeStream `json:"streams"`
	Format  *FFprobeFormat  `json:"format"`
}

// FFprobeStream represents an audio stream
type FFprobeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// FFprobeFormat represents container format metadata
type FFprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// DurationSeconds returns the container duration, falling back to the
// first audio stream when the container does not report one
func (i *FFprobeInfo) DurationSeconds() (float64, bool) {
	if i.Format != nil {
		if d, err := strconv.ParseFloat(i.Format.Duration, 64); err == nil {
			return d, true
		}
	}
	for _, s := range i.Streams {
		if s.CodecType != "audio" {
			continue
		}
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
			return d, true
		}
	}
	return 0, false
}

// RunFFprobe executes ffprobe and parses the JSON output
func RunFFprobe(path string) (*FFprobeInfo, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, util.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("ffprobe execution failed: %w", err)
	}

	return parseFFprobe(output)
}

func parseFFprobe(output []byte) (*FFprobeInfo, error) {
	var info FFprobeInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &info, nil
}

// CheckFFprobeAvailable checks if ffprobe is available in PATH
func CheckFFprobeAvailable() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}
