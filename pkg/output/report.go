package output

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/root4loot/goutils/log"
	"github.com/root4loot/rscreener/pkg/devices"
	"github.com/root4loot/rscreener/pkg/fold"
	"github.com/root4loot/rscreener/pkg/screener"
)

// ReportFilename is the name of the report written into a run directory.
const ReportFilename = "report.html"

//go:embed report.html.tmpl
var reportTemplate string

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": func(f float64) string { return fmt.Sprintf("%.2f", f) },
}).Parse(reportTemplate))

// ReportData is the header of a report.
type ReportData struct {
	URL         string
	CapturedAt  time.Time
	Duration    time.Duration
	DeviceCount int
}

// ReportScreenshot is one successful capture prepared for the report.
type ReportScreenshot struct {
	DeviceName       string
	Category         devices.Category
	Width            int // viewport width
	Height           int // viewport height, i.e. where the fold is
	DataURI          template.URL
	ScreenshotWidth  int
	ScreenshotHeight int
	Fold             fold.Positions
}

// LightboxID is the anchor id of a screenshot's full size view.
func (s ReportScreenshot) LightboxID() string {
	return LightboxID(s.DeviceName, s.Width, s.Height)
}

type reportSection struct {
	Title       string
	Screenshots []ReportScreenshot
}

type reportView struct {
	ReportData
	Sections    []reportSection
	Screenshots []ReportScreenshot
}

// CapturedAtString is the capture time as shown in the header.
func (v reportView) CapturedAtString() string {
	return v.CapturedAt.Format("2006-01-02 15:04:05")
}

// DurationString is the run duration as shown in the header.
func (v reportView) DurationString() string {
	return FormatDuration(v.Duration)
}

// FormatDuration renders d rounded to whole seconds as "42s" or "3m 5s".
func FormatDuration(d time.Duration) string {
	seconds := int(d.Round(time.Second) / time.Second)
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// LightboxID returns an HTML-safe anchor id such as "lb-iphone-15-pro-393x852".
func LightboxID(deviceName string, width, height int) string {
	return fmt.Sprintf("lb-%s-%dx%d", Slug(deviceName), width, height)
}

// DataURI embeds a PNG buffer as a data URI.
func DataURI(image []byte) template.URL {
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(image))
}

// PrepareScreenshots converts the successful outcomes into report entries,
// computing fold positions from each image's real pixel size. Outcomes
// whose image cannot be read are left out of the report.
func PrepareScreenshots(outcomes []screener.ExecutionOutcome, devs []devices.Device) []ReportScreenshot {
	byName := make(map[string]devices.Device, len(devs))
	for _, d := range devs {
		byName[d.Name] = d
	}

	var shots []ReportScreenshot
	for _, outcome := range outcomes {
		if !outcome.Success {
			continue
		}

		device, ok := byName[outcome.DeviceName]
		if !ok {
			log.Warnf("No device profile for %s, leaving it out of the report", outcome.DeviceName)
			continue
		}

		width, height, err := fold.Dimensions(outcome.Image)
		if err != nil {
			log.Warnf("Leaving %s out of the report: %v", device.Name, err)
			continue
		}

		positions, err := fold.ForImage(device.Width, device.Height, outcome.Image)
		if err != nil {
			log.Warnf("Leaving %s out of the report: %v", device.Name, err)
			continue
		}

		shots = append(shots, ReportScreenshot{
			DeviceName:       device.Name,
			Category:         device.Category,
			Width:            device.Width,
			Height:           device.Height,
			DataURI:          DataURI(outcome.Image),
			ScreenshotWidth:  width,
			ScreenshotHeight: height,
			Fold:             positions,
		})
	}

	return shots
}

// groupByCategory returns one section per category that has screenshots,
// in phones, tablets, desktops order.
func groupByCategory(shots []ReportScreenshot) []reportSection {
	grouped := make(map[devices.Category][]ReportScreenshot)
	for _, s := range shots {
		grouped[s.Category] = append(grouped[s.Category], s)
	}

	var sections []reportSection
	for _, c := range devices.Categories {
		if len(grouped[c]) > 0 {
			sections = append(sections, reportSection{Title: c.DisplayName(), Screenshots: grouped[c]})
		}
	}
	return sections
}

// RenderReport writes the HTML report to w.
func RenderReport(w io.Writer, data ReportData, shots []ReportScreenshot) error {
	view := reportView{
		ReportData:  data,
		Sections:    groupByCategory(shots),
		Screenshots: shots,
	}
	return reportTmpl.Execute(w, view)
}

// WriteReport renders the report into dir/report.html and returns its path.
func WriteReport(data ReportData, shots []ReportScreenshot, dir string) (string, error) {
	var buf bytes.Buffer
	if err := RenderReport(&buf, data, shots); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", err
	}

	path := filepath.Join(dir, ReportFilename)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}

	return path, nil
}
