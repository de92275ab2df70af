package output

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"net/url"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/root4loot/goutils/log"
	"github.com/root4loot/rscreener/pkg/devices"
	"github.com/root4loot/rscreener/pkg/fold"
	"github.com/root4loot/rscreener/pkg/screener"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var foldColor = color.RGBA{R: 0xe5, G: 0x39, B: 0x35, A: 0xff}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

// Label is the text imprinted under a screenshot, e.g.
// "https://example.com/pricing | iPhone 15 Pro (393x852)". Default ports
// are dropped from the URL.
func Label(rawURL string, device devices.Device) string {
	printURL := rawURL

	if parsedURL, err := url.Parse(rawURL); err == nil && parsedURL.Host != "" {
		host := parsedURL.Host
		if hostWithoutPort, port, ok := strings.Cut(host, ":"); ok {
			if (parsedURL.Scheme == "http" && port == "80") || (parsedURL.Scheme == "https" && port == "443") {
				host = hostWithoutPort
			}
		}
		printURL = parsedURL.Scheme + "://" + host + parsedURL.EscapedPath()
	}

	return fmt.Sprintf("%s | %s (%dx%d)", printURL, device.Name, device.Width, device.Height)
}

// Imprint draws a dashed fold line foldY pixels from the top and appends a
// white strip with label under the image. scale is the device pixel ratio
// the screenshot was taken at and sizes the text and line accordingly.
// A foldY outside the image draws no line.
func Imprint(buf []byte, label string, foldY int, scale float64) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if scale <= 0 {
		scale = 1
	}

	face, err := loadFont(14 * scale)
	if err != nil {
		return nil, err
	}

	padding := int(20 * scale)
	lineWidth := 2 * scale

	w := img.Bounds().Dx()
	imgH := img.Bounds().Dy()
	h := imgH + padding*2 + 1
	dc := gg.NewContext(w, h)

	dc.DrawImage(img, 0, 0)

	if foldY > 0 && foldY < imgH {
		dc.SetColor(foldColor)
		dc.SetLineWidth(lineWidth)
		dc.SetDash(8*scale, 6*scale)
		dc.DrawLine(0, float64(foldY), float64(w), float64(foldY))
		dc.Stroke()
		dc.SetDash()
	}

	yLine := float64(imgH)
	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.DrawLine(0, yLine, float64(w), yLine)
	dc.Stroke()
	dc.SetColor(color.White)
	dc.DrawRectangle(0, yLine+1, float64(w), float64(padding*2))
	dc.Fill()
	dc.SetColor(color.Black)
	dc.SetFontFace(face)
	dc.DrawStringAnchored(label, float64(w)/2, yLine+1+float64(padding), 0.5, 0.35)

	var out bytes.Buffer
	if err := png.Encode(&out, dc.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return out.Bytes(), nil
}

// ImprintAll returns a copy of outcomes where every successful image has
// been imprinted with its URL and device. Images that cannot be imprinted
// are kept as captured.
func ImprintAll(outcomes []screener.ExecutionOutcome, devs []devices.Device, rawURL string) []screener.ExecutionOutcome {
	byName := make(map[string]devices.Device, len(devs))
	for _, d := range devs {
		byName[d.Name] = d
	}

	imprinted := make([]screener.ExecutionOutcome, len(outcomes))
	copy(imprinted, outcomes)

	for i, outcome := range imprinted {
		device, ok := byName[outcome.DeviceName]
		if !outcome.Success || !ok {
			continue
		}

		scale := device.PixelRatio
		if scale <= 0 {
			scale = 1
		}

		foldY, err := fold.Offset(device.Width, device.Height, outcome.Image)
		if err != nil {
			log.Warnf("Could not imprint %s: %v", device.Name, err)
			continue
		}

		buf, err := Imprint(outcome.Image, Label(rawURL, device), foldY, scale)
		if err != nil {
			log.Warnf("Could not imprint %s: %v", device.Name, err)
			continue
		}
		imprinted[i].Image = buf
	}

	return imprinted
}

func loadFont(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("failed to parse font: %w", fontErr)
	}

	return truetype.NewFace(fontTTF, &truetype.Options{Size: size}), nil
}
