package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fmr-portal/model"
)

var manila = time.FixedZone("PHT", 8*60*60)

func newAnnotator(t *testing.T) *Annotator {
	t.Helper()
	a, err := NewAnnotator(manila)
	require.NoError(t, err)
	return a
}

func TestOverlayLines(t *testing.T) {
	at := time.Date(2026, 10, 16, 7, 4, 5, 0, time.UTC)

	t.Run("with fix", func(t *testing.T) {
		fix := &model.GeoFix{Latitude: 10.7202, Longitude: 122.5621, Accuracy: model.Float64(8.4)}
		lines := OverlayLines(at, fix, manila)
		assert.Equal(t, []string{
			"Oct 16, 2026, 03:04:05 PM",
			"GPS: 10.720200, 122.562100 (±8m)",
		}, lines)
	})

	t.Run("accuracy rounds to metres", func(t *testing.T) {
		fix := &model.GeoFix{Latitude: -1.5, Longitude: 2.25, Accuracy: model.Float64(12.5)}
		assert.Equal(t, "GPS: -1.500000, 2.250000 (±13m)", OverlayLines(at, fix, manila)[1])
	})

	t.Run("unknown accuracy", func(t *testing.T) {
		fix := &model.GeoFix{Latitude: 1, Longitude: 2}
		assert.Equal(t, "GPS: 1.000000, 2.000000 (±0m)", OverlayLines(at, fix, manila)[1])
	})

	t.Run("no fix", func(t *testing.T) {
		assert.Equal(t, []string{"Oct 16, 2026, 03:04:05 PM"}, OverlayLines(at, nil, manila))
	})
}

func TestFontSizeScalesWithWidth(t *testing.T) {
	assert.Equal(t, 14, FontSize(320))
	assert.Equal(t, 14, FontSize(700))
	assert.Equal(t, 25, FontSize(1280))
	assert.Equal(t, 38, FontSize(1920))
}

func whiteFrame(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.White)
}

func TestAnnotatePlacesStripBottomLeft(t *testing.T) {
	a := newAnnotator(t)
	src := whiteFrame(640, 480)
	lines := []string{"Oct 16, 2026, 03:04:05 PM", "GPS: 10.720200, 122.562100 (±8m)"}

	out, o, err := a.Annotate(src, lines)
	require.NoError(t, err)

	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, 14, o.FontSize)
	assert.Equal(t, 18, o.LineHeight)
	assert.Equal(t, 0, o.Strip.Min.X)
	assert.Equal(t, 480, o.Strip.Max.Y)
	assert.Equal(t, 2*18+2*Padding, o.Strip.Dy())
	assert.Greater(t, o.Strip.Dx(), 2*Padding)
	assert.Less(t, o.Strip.Dx(), 640)
	require.Len(t, o.Baselines, 2)
	for _, b := range o.Baselines {
		assert.Equal(t, Padding, b.X)
		assert.True(t, b.In(o.Strip))
	}
	assert.Less(t, o.Baselines[0].Y, o.Baselines[1].Y)

	// Padding corner inside the strip is darkened, outside stays white.
	inside := out.NRGBAAt(o.Strip.Max.X-2, o.Strip.Min.Y+2)
	assert.InDelta(t, 255*(1-StripOpacity), float64(inside.R), 3)
	outside := out.NRGBAAt(639, 0)
	assert.Equal(t, uint8(255), outside.R)
	above := out.NRGBAAt(2, o.Strip.Min.Y-1)
	assert.Equal(t, uint8(255), above.R)

	// Some white text was drawn inside the strip.
	bright := 0
	for y := o.Strip.Min.Y + Padding; y < o.Strip.Max.Y-Padding; y++ {
		for x := o.Strip.Min.X + Padding; x < o.Strip.Max.X-Padding; x++ {
			if out.NRGBAAt(x, y).R > 200 {
				bright++
			}
		}
	}
	assert.Greater(t, bright, 50)

	// Source frame is untouched.
	assert.Equal(t, uint8(255), src.NRGBAAt(o.Strip.Max.X-2, o.Strip.Min.Y+2).R)
}

func TestLayoutMatchesAnnotate(t *testing.T) {
	a := newAnnotator(t)
	lines := []string{"Oct 16, 2026, 03:04:05 PM"}
	bounds := image.Rect(0, 0, 1280, 720)

	o, err := a.Layout(bounds, lines)
	require.NoError(t, err)
	_, drawn, err := a.Annotate(whiteFrame(1280, 720), lines)
	require.NoError(t, err)

	assert.Equal(t, o, drawn)
	assert.Equal(t, 25, o.FontSize)
	assert.Equal(t, 29+2*Padding, o.Strip.Dy())
}

func TestAnnotateNarrowFrameClipsStrip(t *testing.T) {
	a := newAnnotator(t)
	out, o, err := a.Annotate(whiteFrame(60, 40), []string{"a very long line that cannot fit in sixty pixels"})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 60, 40), out.Bounds())
	assert.Equal(t, 60, o.Strip.Max.X)
}

func TestBurnUsesCaptureInstant(t *testing.T) {
	a := newAnnotator(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, manila)
	_, o, err := a.Burn(whiteFrame(320, 240), at, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan 02, 2026, 03:04:05 AM"}, o.Lines)
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(whiteFrame(64, 48), 85)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
}

func TestDecodeFrameWithoutExif(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, whiteFrame(40, 30)))

	assert.Equal(t, 1, FrameOrientation(buf.Bytes()))
	img, err := DecodeFrame(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, err := DecodeFrame([]byte("not an image"))
	assert.Error(t, err)
}

func TestOrient(t *testing.T) {
	src := whiteFrame(4, 2)
	for _, o := range []int{5, 6, 7, 8} {
		assert.Equal(t, image.Rect(0, 0, 2, 4), Orient(src, o).Bounds(), "orientation %d", o)
	}
	for _, o := range []int{1, 2, 3, 4, 0} {
		assert.Equal(t, image.Rect(0, 0, 4, 2), Orient(src, o).Bounds(), "orientation %d", o)
	}
}
