// Package fold computes where the first viewport ends inside a full-page
// screenshot, both for the full-size view and for a 16:10 top-anchored
// thumbnail crop of it.
package fold

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ThumbnailAspect is the width/height ratio thumbnails are cropped to.
const ThumbnailAspect = 1.6

// Positions holds fold offsets as percentages of the displayed image height.
// Thumbnail is nil when the fold falls below the cropped thumbnail.
type Positions struct {
	Lightbox  float64
	Thumbnail *float64
}

// Compute returns the fold positions for a screenshot of the given pixel
// size taken with a viewport viewportHeight tall. Lightbox can exceed 100
// when the page was shorter than the viewport.
func Compute(viewportHeight, screenshotWidth, screenshotHeight int) Positions {
	if screenshotWidth <= 0 || screenshotHeight <= 0 {
		return Positions{}
	}

	pos := Positions{
		Lightbox: float64(viewportHeight) / float64(screenshotHeight) * 100,
	}

	visible := VisibleHeightPercent(screenshotWidth, screenshotHeight)
	if pos.Lightbox <= visible {
		thumb := pos.Lightbox / visible * 100
		pos.Thumbnail = &thumb
	}

	return pos
}

// VisibleHeightPercent is the share of the screenshot's height that stays
// visible once it is fitted to the thumbnail width and cropped from the bottom.
func VisibleHeightPercent(screenshotWidth, screenshotHeight int) float64 {
	aspect := float64(screenshotWidth) / float64(screenshotHeight)
	visible := ThumbnailAspect * 100 / aspect
	if visible > 100 {
		return 100
	}
	return visible
}

// PngFormatError is returned when a buffer is not a PNG we can read
// dimensions from.
type PngFormatError struct {
	Reason string
}

func (e *PngFormatError) Error() string {
	return "malformed PNG: " + e.Reason
}

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// Dimensions reads the pixel size from the IHDR chunk of a PNG buffer.
func Dimensions(buf []byte) (width, height int, err error) {
	// signature, chunk length, "IHDR", width, height
	const headerLen = 8 + 4 + 4 + 4 + 4

	if len(buf) < len(pngSignature) || !bytes.Equal(buf[:8], pngSignature) {
		return 0, 0, &PngFormatError{Reason: "invalid signature"}
	}
	if len(buf) < headerLen {
		return 0, 0, &PngFormatError{Reason: fmt.Sprintf("buffer too short (%d bytes)", len(buf))}
	}
	if string(buf[12:16]) != "IHDR" {
		return 0, 0, &PngFormatError{Reason: "first chunk is not IHDR"}
	}

	width = int(binary.BigEndian.Uint32(buf[16:20]))
	height = int(binary.BigEndian.Uint32(buf[20:24]))
	if width == 0 || height == 0 {
		return 0, 0, &PngFormatError{Reason: fmt.Sprintf("zero dimension %dx%d", width, height)}
	}

	return width, height, nil
}

// Offset returns the row of a PNG screenshot where the first viewport ends.
// Screenshots are taken at the device pixel ratio, so the viewport height is
// scaled into image pixels using the ratio of image width to viewportWidth.
func Offset(viewportWidth, viewportHeight int, png []byte) (int, error) {
	width, _, err := Dimensions(png)
	if err != nil {
		return 0, err
	}
	return scaledHeight(viewportWidth, viewportHeight, width), nil
}

// ForImage computes fold positions from the actual size of a PNG screenshot,
// placing the fold at Offset.
func ForImage(viewportWidth, viewportHeight int, png []byte) (Positions, error) {
	width, height, err := Dimensions(png)
	if err != nil {
		return Positions{}, err
	}

	return Compute(scaledHeight(viewportWidth, viewportHeight, width), width, height), nil
}

func scaledHeight(viewportWidth, viewportHeight, imageWidth int) int {
	if viewportWidth > 0 && imageWidth != viewportWidth {
		return int(float64(viewportHeight) * float64(imageWidth) / float64(viewportWidth))
	}
	return viewportHeight
}
