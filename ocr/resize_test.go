package ocr

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResizeLongEdge_ScalesDownPreservingAspect(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2400, 1200))
	dst := resizeLongEdge(src)

	require.Equal(t, 1200, dst.Bounds().Dx())
	require.Equal(t, 600, dst.Bounds().Dy())
}

func TestResizeLongEdge_LeavesSmallImagesUnchanged(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 300))
	dst := resizeLongEdge(src)

	require.Equal(t, src.Bounds(), dst.Bounds())
}

func TestResizeLongEdge_TallImageScalesByHeight(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 600, 3600))
	dst := resizeLongEdge(src)

	require.Equal(t, 1200, dst.Bounds().Dy())
	require.Equal(t, 200, dst.Bounds().Dx())
}

func TestResizeLongEdge_MinimumOnePixelPerEdge(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1, 100000))
	dst := resizeLongEdge(src)

	require.GreaterOrEqual(t, dst.Bounds().Dx(), 1)
	require.Equal(t, 1200, dst.Bounds().Dy())
}
