// Package annotate burns the capture time and GPS fix into a photo as tamper evidence.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"fmr-portal/model"
)

const (
	Padding      = 8
	LineGap      = 4
	MinFontSize  = 14
	StripOpacity = 0.55

	TimestampLayout = "Jan 02, 2006, 03:04:05 PM"
)

// OverlayLines returns the watermark text for a capture at the given instant.
// The GPS line is omitted when there is no fix.
func OverlayLines(at time.Time, fix *model.GeoFix, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	lines := []string{at.In(loc).Format(TimestampLayout)}
	if fix != nil {
		lines = append(lines, fmt.Sprintf("GPS: %.6f, %.6f (±%dm)",
			fix.Latitude, fix.Longitude, int(math.Round(fix.AccuracyOrZero()))))
	}
	return lines
}

// FontSize scales the overlay text with the frame width.
func FontSize(width int) int {
	return max(MinFontSize, width/50)
}

// Overlay describes where the watermark was drawn.
type Overlay struct {
	Lines      []string
	FontSize   int
	LineHeight int
	Strip      image.Rectangle
	Baselines  []image.Point
}

type Annotator struct {
	font     *opentype.Font
	location *time.Location
}

// NewAnnotator renders timestamps in loc (local time when nil).
func NewAnnotator(loc *time.Location) (*Annotator, error) {
	f, err := opentype.Parse(gomonobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse overlay font: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Annotator{font: f, location: loc}, nil
}

func (a *Annotator) Location() *time.Location {
	return a.location
}

func (a *Annotator) face(size int) (font.Face, error) {
	return opentype.NewFace(a.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Layout computes the strip and text positions for lines on a frame with the given bounds.
func (a *Annotator) Layout(bounds image.Rectangle, lines []string) (Overlay, error) {
	face, err := a.face(FontSize(bounds.Dx()))
	if err != nil {
		return Overlay{}, err
	}
	defer face.Close()
	return layout(bounds, lines, face), nil
}

func layout(bounds image.Rectangle, lines []string, face font.Face) Overlay {
	size := FontSize(bounds.Dx())
	o := Overlay{
		Lines:      lines,
		FontSize:   size,
		LineHeight: size + LineGap,
	}

	textWidth := 0
	for _, l := range lines {
		textWidth = max(textWidth, font.MeasureString(face, l).Ceil())
	}
	stripW := textWidth + 2*Padding
	stripH := len(lines)*o.LineHeight + 2*Padding
	o.Strip = image.Rect(bounds.Min.X, bounds.Max.Y-stripH, bounds.Min.X+stripW, bounds.Max.Y).Intersect(bounds)

	descent := face.Metrics().Descent.Ceil()
	top := bounds.Max.Y - stripH
	for i := range lines {
		o.Baselines = append(o.Baselines, image.Pt(bounds.Min.X+Padding, top+Padding+(i+1)*o.LineHeight-descent))
	}
	return o
}

// Annotate returns a copy of img with lines drawn bottom-left over a dark translucent strip.
func (a *Annotator) Annotate(img image.Image, lines []string) (*image.NRGBA, Overlay, error) {
	dst := imaging.Clone(img)
	if len(lines) == 0 {
		return dst, Overlay{}, nil
	}

	face, err := a.face(FontSize(dst.Bounds().Dx()))
	if err != nil {
		return nil, Overlay{}, err
	}
	defer face.Close()

	o := layout(dst.Bounds(), lines, face)
	if o.Strip.Empty() {
		return dst, o, nil
	}

	strip := imaging.New(o.Strip.Dx(), o.Strip.Dy(), color.Black)
	dst = imaging.Overlay(dst, strip, o.Strip.Min, StripOpacity)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(o.Baselines[i].X, o.Baselines[i].Y)
		d.DrawString(line)
	}
	return dst, o, nil
}

// Burn annotates img with the capture instant and fix.
func (a *Annotator) Burn(img image.Image, at time.Time, fix *model.GeoFix) (*image.NRGBA, Overlay, error) {
	return a.Annotate(img, OverlayLines(at, fix, a.location))
}

// EncodeJPEG encodes img at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
