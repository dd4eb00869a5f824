// Package meta derives artifact content from referenced files: lyrics text
// from documents and format/duration from audio recordings.
package meta

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	"github.com/go-flac/go-flac"
	"github.com/ledongthuc/pdf"

	"github.com/franz/scma/internal/util"
)

// Audio is the metadata kept for a recording. Duration is seconds rounded
// to two decimals, or empty when it could not be determined.
type Audio struct {
	Format   string
	Duration string
}

// AudioExtensions lists the accepted recording formats
var AudioExtensions = []string{".mp3", ".wav", ".flac", ".m4a", ".mp4", ".aac"}

// LyricsExtensions lists the accepted lyrics documents
var LyricsExtensions = []string{".pdf", ".txt"}

// Extractor reads lyrics documents and audio files
type Extractor struct {
	useFFprobe bool
}

// Config holds extractor configuration
type Config struct {
	// DisableFFprobe skips ffprobe even when it is installed
	DisableFFprobe bool
}

// New creates an extractor, detecting ffprobe on PATH
func New(cfg *Config) *Extractor {
	if cfg == nil {
		cfg = &Config{}
	}
	e := &Extractor{useFFprobe: !cfg.DisableFFprobe && CheckFFprobeAvailable()}
	if !e.useFFprobe {
		util.DebugLog("ffprobe not in use; durations limited to FLAC and tagged MP3")
	}
	return e
}

// Lyrics returns the text of a lyrics document. A blank path yields "".
func (e *Extractor) Lyrics(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if err := checkFile(path); err != nil {
		return "", err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		text, err := pdfText(path)
		if err != nil {
			return "", fmt.Errorf("%s: %v: %w", path, err, util.ErrCorrupt)
		}
		return text, nil
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", fmt.Errorf("%s: lyrics must be one of %s: %w",
			path, strings.Join(LyricsExtensions, ", "), util.ErrUnsupported)
	}
}

func pdfText(path string) (text string, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unreadable pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// Audio returns the format and duration of a recording. A blank path
// yields an empty Audio.
func (e *Extractor) Audio(path string) (Audio, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Audio{}, nil
	}
	if err := checkFile(path); err != nil {
		return Audio{}, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !contains(AudioExtensions, ext) {
		return Audio{}, fmt.Errorf("%s: supported formats are MP3, WAV, FLAC, M4A, AAC: %w", path, util.ErrUnsupported)
	}
	if err := sniffContainer(path, ext); err != nil {
		return Audio{}, err
	}

	audio := Audio{Format: strings.ToUpper(strings.TrimPrefix(ext, "."))}

	seconds, ok, err := e.duration(path, ext)
	if err != nil {
		return Audio{}, fmt.Errorf("%s: %v: %w", path, err, util.ErrCorrupt)
	}
	if ok {
		audio.Duration = FormatSeconds(seconds)
	} else {
		util.WarnLog("Could not determine duration of %s", path)
	}
	return audio, nil
}

func (e *Extractor) duration(path, ext string) (float64, bool, error) {
	if e.useFFprobe {
		info, err := RunFFprobe(path)
		if err != nil {
			return 0, false, err
		}
		d, ok := info.DurationSeconds()
		return d, ok, nil
	}

	switch ext {
	case ".flac":
		return flacDuration(path)
	case ".mp3":
		return id3Duration(path)
	}
	return 0, false, nil
}

// flacDuration reads total samples and sample rate from STREAMINFO
func flacDuration(path string) (float64, bool, error) {
	fh, err := os.Open(path)
	if err != nil {
		return 0, false, err
	}
	defer fh.Close()

	f, err := flac.ParseMetadata(fh)
	if err != nil {
		return 0, false, err
	}
	info, err := f.GetStreamInfo()
	if err != nil {
		return 0, false, err
	}
	if info.SampleRate <= 0 || info.SampleCount <= 0 {
		return 0, false, nil
	}
	return float64(info.SampleCount) / float64(info.SampleRate), true, nil
}

// id3Duration reads the TLEN frame (milliseconds) when present
func id3Duration(path string) (float64, bool, error) {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Length"}})
	if err != nil {
		return 0, false, err
	}
	defer t.Close()

	ms, err := strconv.ParseFloat(strings.TrimSpace(t.GetTextFrame(t.CommonID("Length")).Text), 64)
	if err != nil || ms <= 0 {
		return 0, false, nil
	}
	return ms / 1000, true, nil
}

// sniffContainer rejects files whose content contradicts their extension.
// WAV and raw AAC carry no signature the tag reader knows, and untagged MP3
// is indistinguishable from noise, so those pass unchecked.
func sniffContainer(path, ext string) error {
	if ext == ".wav" || ext == ".aac" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	format, fileType, err := tag.Identify(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		if ext == ".mp3" {
			return nil
		}
		return fmt.Errorf("%s: not a valid %s file: %w", path, ext, util.ErrCorrupt)
	}
	if err != nil {
		return fmt.Errorf("%s: %v: %w", path, err, util.ErrCorrupt)
	}

	var ok bool
	switch ext {
	case ".flac":
		ok = fileType == tag.FLAC
	case ".m4a", ".mp4":
		ok = format == tag.MP4
	case ".mp3":
		ok = fileType == tag.MP3
	}
	if !ok {
		return fmt.Errorf("%s: content is %s, not %s: %w", path, fileType, ext, util.ErrCorrupt)
	}
	return nil
}

// FormatSeconds rounds to two decimals and drops trailing zeros
func FormatSeconds(seconds float64) string {
	rounded := math.Round(seconds*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, util.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", path, util.ErrNotFound)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
