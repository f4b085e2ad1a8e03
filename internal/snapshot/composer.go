package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// DefaultWidth and DefaultHeight size the canvas when a frame reports no bounds.
	DefaultWidth  = 640
	DefaultHeight = 480

	// DefaultQuality favours small files over fidelity.
	DefaultQuality = 80

	bandHeight    = 80
	fontSize      = 24
	textLeft      = 16
	farmerBottom  = 48
	vehicleBottom = 16
)

// bandColor is black at 60% opacity.
var bandColor = color.NRGBA{A: 153}

// Composer burns a caption band into frames and encodes them as JPEG.
type Composer struct {
	quality int
	font    *opentype.Font
}

// NewComposer creates a composer encoding at quality (DefaultQuality when
// outside 1..100).
func NewComposer(quality int) (*Composer, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing caption font: %w", err)
	}
	return &Composer{quality: quality, font: f}, nil
}

// Quality returns the JPEG quality in use.
func (c *Composer) Quality() int { return c.quality }

// Compose draws frame at its native size with the farmer and vehicle caption
// across the bottom band. A nil or empty frame yields a black default-size
// canvas. Identical inputs produce identical bytes.
func (c *Composer) Compose(frame image.Image, farmerName, vehiclePlate string) ([]byte, error) {
	w, h := DefaultWidth, DefaultHeight
	if frame != nil && !frame.Bounds().Empty() {
		w, h = frame.Bounds().Dx(), frame.Bounds().Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	if frame != nil && !frame.Bounds().Empty() {
		draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), frame, frame.Bounds(), draw.Src, nil)
	}

	band := bandHeight
	if band > h/3 {
		band = h / 3
	}
	scale := float64(band) / bandHeight
	draw.Draw(canvas, image.Rect(0, h-band, w, h), image.NewUniform(bandColor), image.Point{}, draw.Over)

	if band > 0 {
		face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
			Size:    fontSize * scale,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("creating caption face: %w", err)
		}
		defer face.Close()

		d := &font.Drawer{Dst: canvas, Src: image.White, Face: face}
		x := fixed.I(int(textLeft * scale))
		d.Dot = fixed.Point26_6{X: x, Y: fixed.I(h - int(farmerBottom*scale))}
		d.DrawString(caption("Farmer", farmerName))
		d.Dot = fixed.Point26_6{X: x, Y: fixed.I(h - int(vehicleBottom*scale))}
		d.DrawString(caption("Vehicle", vehiclePlate))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func caption(label, value string) string {
	return strings.TrimSpace(label + ": " + value)
}
