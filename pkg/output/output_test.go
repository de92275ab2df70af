package output

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/root4loot/rscreener/pkg/devices"
	"github.com/root4loot/rscreener/pkg/screener"
)

func solidPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 0x20, G: 0x40, B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode PNG: %v", err)
	}
	return buf.Bytes()
}

func noisePNG(t *testing.T, w, h int, seed int64) []byte {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	r.Read(img.Pix)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode PNG: %v", err)
	}
	return buf.Bytes()
}

func success(name string, image []byte) screener.ExecutionOutcome {
	return screener.ExecutionOutcome{
		CaptureOutcome: screener.CaptureOutcome{Success: true, DeviceName: name, Image: image},
		Attempts:       1,
	}
}

func failure(name, msg string) screener.ExecutionOutcome {
	return screener.ExecutionOutcome{
		CaptureOutcome: screener.CaptureOutcome{DeviceName: name, Error: msg},
		Attempts:       3,
	}
}

func TestTimestamp(t *testing.T) {
	ts := Timestamp(time.Date(2026, 1, 20, 14, 30, 25, 0, time.UTC))
	if ts != "2026-01-20-143025" {
		t.Errorf("Expected 2026-01-20-143025, got %s", ts)
	}

	now := Timestamp(time.Now())
	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-\d{6}$`).MatchString(now) {
		t.Errorf("Expected YYYY-MM-DD-HHmmss, got %s", now)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          string
	}{
		{"iPhone 14 Pro", 393, 852, "iphone-14-pro-393x852.png"},
		{`MacBook Pro 16"`, 1728, 1117, "macbook-pro-16-1728x1117.png"},
		{"Samsung  Galaxy   S23", 360, 780, "samsung-galaxy-s23-360x780.png"},
		{" Test Device ", 100, 100, "test-device-100x100.png"},
		{"3G Phone Classic", 320, 480, "3g-phone-classic-320x480.png"},
		{"***Special***", 100, 200, "special-100x200.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(tt.name, tt.width, tt.height); got != tt.want {
				t.Errorf("Filename(%q) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestNewRunDir(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	dir, err := NewRunDir(base, now)
	if err != nil {
		t.Fatalf("NewRunDir: %v", err)
	}

	if want := filepath.Join(base, "2026-03-04-050607"); dir != want {
		t.Errorf("Expected %s, got %s", want, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected %s to exist as a directory", dir)
	}
}

func TestPageDir(t *testing.T) {
	if got := PageDir("run", "/"); got != filepath.Join("run", "root") {
		t.Errorf("Expected run/root, got %s", got)
	}
	if got := PageDir("run", "/docs/Getting Started"); got != filepath.Join("run", "docs-getting-started") {
		t.Errorf("Expected run/docs-getting-started, got %s", got)
	}
}

func TestSaveAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	devs := []devices.Device{
		{Name: "iPhone 15 Pro", Width: 393, Height: 852, Category: devices.Phone},
		{Name: "iPad Air", Width: 820, Height: 1180, Category: devices.Tablet},
		{Name: "Desktop 1080p", Width: 1920, Height: 1080, Category: devices.Desktop},
	}

	outcomes := []screener.ExecutionOutcome{
		success("iPhone 15 Pro", []byte("phone")),
		failure("iPad Air", "HTTP 404 Not Found"),
		success("Desktop 1080p", []byte("desktop")),
		success("Unknown", []byte("x")),
	}

	result := SaveAll(outcomes, devs, dir)

	if result.SavedCount != 2 || result.FailedCount != 1 {
		t.Errorf("Expected 2 saved and 1 failed, got %d/%d", result.SavedCount, result.FailedCount)
	}
	if len(result.Results) != 3 {
		t.Errorf("Expected failed captures to be skipped, got %d results", len(result.Results))
	}
	if result.OutputDir != dir {
		t.Errorf("Expected OutputDir %s, got %s", dir, result.OutputDir)
	}

	data, err := os.ReadFile(filepath.Join(dir, "iphone-15-pro-393x852.png"))
	if err != nil {
		t.Fatalf("Expected phone screenshot on disk: %v", err)
	}
	if string(data) != "phone" {
		t.Errorf("Expected file contents to match the image, got %q", data)
	}

	if _, err := os.Stat(filepath.Join(dir, "ipad-air-820x1180.png")); !os.IsNotExist(err) {
		t.Errorf("Expected no file for the failed capture")
	}
}

func TestImprint(t *testing.T) {
	src := solidPNG(t, 400, 300)

	out, err := Imprint(src, "https://example.com | Test (400x300)", 150, 1)
	if err != nil {
		t.Fatalf("Imprint: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode imprinted image: %v", err)
	}
	if img.Bounds().Dx() != 400 {
		t.Errorf("Expected width to be kept, got %d", img.Bounds().Dx())
	}
	if img.Bounds().Dy() != 300+41 {
		t.Errorf("Expected a 41px label strip, got height %d", img.Bounds().Dy())
	}

	// the fold line is drawn in red across the image
	r, g, b, _ := img.At(2, 150).RGBA()
	if r>>8 < 0xc0 || g>>8 > 0x80 || b>>8 > 0x80 {
		t.Errorf("Expected fold line color at y=150, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestImprintRejectsGarbage(t *testing.T) {
	if _, err := Imprint([]byte("not a png"), "x", 0, 1); err == nil {
		t.Errorf("Expected error for a non PNG buffer")
	}
}

func TestLabel(t *testing.T) {
	device := devices.Device{Name: "Pixel 8", Width: 412, Height: 915}

	tests := map[string]string{
		"https://example.com:443/pricing": "https://example.com/pricing | Pixel 8 (412x915)",
		"http://example.com:8080/":        "http://example.com:8080/ | Pixel 8 (412x915)",
		"http://example.com:80":           "http://example.com | Pixel 8 (412x915)",
	}

	for in, want := range tests {
		if got := Label(in, device); got != want {
			t.Errorf("Label(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestImprintAll(t *testing.T) {
	devs := []devices.Device{{Name: "Desk", Width: 200, Height: 100, PixelRatio: 1, Category: devices.Desktop}}
	src := solidPNG(t, 200, 300)
	outcomes := []screener.ExecutionOutcome{success("Desk", src), failure("Other", "boom")}

	imprinted := ImprintAll(outcomes, devs, "https://example.com")

	if len(imprinted) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(imprinted))
	}
	if bytes.Equal(imprinted[0].Image, src) {
		t.Errorf("Expected the successful image to be imprinted")
	}
	if !bytes.Equal(outcomes[0].Image, src) {
		t.Errorf("Expected the original outcomes to be left untouched")
	}
	if imprinted[1].Image != nil || imprinted[1].Error != "boom" {
		t.Errorf("Expected the failed outcome to pass through")
	}
}

func TestImprintAllMatchesReportFold(t *testing.T) {
	// declared at 3x but rendered at 2x: the fold belongs at row 200
	devs := []devices.Device{{Name: "Phone", Width: 100, Height: 100, PixelRatio: 3, Category: devices.Phone}}
	src := solidPNG(t, 200, 600)

	imprinted := ImprintAll([]screener.ExecutionOutcome{success("Phone", src)}, devs, "https://example.com")

	img, err := png.Decode(bytes.NewReader(imprinted[0].Image))
	if err != nil {
		t.Fatalf("decode imprinted image: %v", err)
	}

	isRed := func(y int) bool {
		r, g, b, _ := img.At(2, y).RGBA()
		return r>>8 >= 0xc0 && g>>8 <= 0x80 && b>>8 <= 0x80
	}
	if !isRed(200) {
		t.Errorf("Expected fold line at y=200")
	}
	if isRed(300) {
		t.Errorf("Expected no fold line at device height times pixel ratio")
	}

	shots := PrepareScreenshots([]screener.ExecutionOutcome{success("Phone", src)}, devs)
	if len(shots) != 1 {
		t.Fatalf("Expected 1 screenshot, got %d", len(shots))
	}
	if y := shots[0].Fold.Lightbox / 100 * 600; y < 199 || y > 201 {
		t.Errorf("Expected report fold at row 200, got %v", y)
	}
}

func TestDeduper(t *testing.T) {
	if _, err := NewDeduper(0); err == nil {
		t.Errorf("Expected error for threshold 0")
	}
	if _, err := NewDeduper(101); err == nil {
		t.Errorf("Expected error for threshold 101")
	}

	d, err := NewDeduper(90)
	if err != nil {
		t.Fatalf("NewDeduper: %v", err)
	}

	first := noisePNG(t, 128, 128, 1)
	other := noisePNG(t, 128, 128, 2)

	if dup, _ := d.IsSimilarToAny("a", first); dup {
		t.Errorf("Expected first image not to be a duplicate")
	}
	if dup, match := d.IsSimilarToAny("b", first); !dup || match != "a" {
		t.Errorf("Expected identical image to match a, got %v %q", dup, match)
	}
	if dup, _ := d.IsSimilarToAny("c", other); dup {
		t.Errorf("Expected unrelated image not to be a duplicate")
	}
}

func TestDeduperFilter(t *testing.T) {
	d, err := NewDeduper(DefaultSimilarityThreshold)
	if err != nil {
		t.Fatalf("NewDeduper: %v", err)
	}

	img := noisePNG(t, 128, 128, 7)
	outcomes := []screener.ExecutionOutcome{
		success("a", img),
		failure("b", "timeout"),
		success("c", img),
	}

	kept := d.Filter(outcomes)

	var names []string
	for _, o := range kept {
		names = append(names, o.DeviceName)
	}
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("Expected a,b to be kept, got %v", names)
	}
}
