package ocr

import (
	"image"

	"golang.org/x/image/draw"
)

const maxEdgePixels = 1200

// resizeLongEdge scales img so its longer edge is at most maxEdgePixels,
// preserving aspect ratio with a minimum of 1 pixel per edge. Images
// already within bounds are returned unchanged.
func resizeLongEdge(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return img
	}

	longEdge := width
	if height > longEdge {
		longEdge = height
	}
	if longEdge <= maxEdgePixels {
		return img
	}

	scale := float64(maxEdgePixels) / float64(longEdge)
	dstWidth := maxInt(1, int(float64(width)*scale))
	dstHeight := maxInt(1, int(float64(height)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
