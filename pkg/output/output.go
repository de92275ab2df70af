// Package output writes capture results to disk: a timestamped run
// directory, one PNG per device, and a self-contained HTML report.
package output

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/rscreener/pkg/devices"
	"github.com/root4loot/rscreener/pkg/screener"
)

// DefaultBaseDir is where run directories are created unless told otherwise.
const DefaultBaseDir = "./screenshots"

// timestampLayout is YYYY-MM-DD-HHmmss; it has no colons so it is a valid
// directory name everywhere and sorts lexicographically.
const timestampLayout = "2006-01-02-150405"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Timestamp formats t as a run directory name.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Slug lowercases name and collapses every run of other characters into a
// single hyphen, trimming hyphens at either end.
func Slug(name string) string {
	slug := nonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// Filename returns the screenshot file name for a device, e.g.
// "iphone-15-pro-393x852.png".
func Filename(deviceName string, width, height int) string {
	return Slug(deviceName) + "-" + strconv.Itoa(width) + "x" + strconv.Itoa(height) + ".png"
}

// NewRunDir creates <baseDir>/<timestamp> and returns its path.
func NewRunDir(baseDir string, now time.Time) (string, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}

	dir := filepath.Join(baseDir, Timestamp(now))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}

	return dir, nil
}

// PageDir returns the sub directory used for page when a run covers
// several pages. "/" maps to "root".
func PageDir(runDir, page string) string {
	slug := Slug(page)
	if slug == "" {
		slug = "root"
	}
	return filepath.Join(runDir, slug)
}

// SaveResult is the outcome of writing one screenshot.
type SaveResult struct {
	DeviceName string
	Path       string
	Error      string
}

// SaveAllResult summarises a SaveAll call.
type SaveAllResult struct {
	Results     []SaveResult
	OutputDir   string
	SavedCount  int
	FailedCount int
}

// SaveAll writes the image of every successful outcome into dir. Failed
// captures are skipped; a write error for one device does not stop the rest.
func SaveAll(outcomes []screener.ExecutionOutcome, devs []devices.Device, dir string) SaveAllResult {
	result := SaveAllResult{OutputDir: dir}

	byName := make(map[string]devices.Device, len(devs))
	for _, d := range devs {
		byName[d.Name] = d
	}

	for _, outcome := range outcomes {
		if !outcome.Success {
			continue
		}

		saved := SaveResult{DeviceName: outcome.DeviceName}

		device, ok := byName[outcome.DeviceName]
		if !ok {
			saved.Error = "unknown device " + outcome.DeviceName
		} else if path, err := SaveImage(outcome.Image, dir, Filename(device.Name, device.Width, device.Height)); err != nil {
			saved.Error = err.Error()
		} else {
			saved.Path = path
		}

		if saved.Error != "" {
			log.Warnf("Could not save %s: %s", outcome.DeviceName, saved.Error)
			result.FailedCount++
		} else {
			log.Debugf("Saved %s", saved.Path)
			result.SavedCount++
		}

		result.Results = append(result.Results, saved)
	}

	return result
}

// SaveImage writes image to dir/filename, creating dir if needed.
func SaveImage(image []byte, dir, filename string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}

	path := filepath.Join(dir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.Write(image); err != nil {
		return "", err
	}

	return path, nil
}
