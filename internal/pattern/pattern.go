// Package pattern builds the repeating diagonal text watermark laid over previews.
//
// A Pattern is described twice: as SVG markup, which is what gets stored next
// to a preview for reference, and as a raster overlay produced by Render.
// Both are pure functions of the canvas size, the text and the options.
package pattern

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultText       = "lumastock"
	DefaultTileWidth  = 200
	DefaultTileHeight = 80
	DefaultAngle      = -45.0
	DefaultOpacity    = 0.28
)

var (
	ErrInvalidCanvas = errors.New("canvas dimensions must be positive")
	ErrInvalidTile   = errors.New("tile dimensions must be positive")
	ErrInvalidAlpha  = errors.New("opacity must be in (0, 1]")
)

// Pattern describes a tile of text repeated over a canvas at a fixed angle.
type Pattern struct {
	CanvasWidth, CanvasHeight int
	TileWidth, TileHeight     int
	// Angle is the rotation of the tile grid in degrees, positive clockwise
	// in image coordinates (y grows downwards), like SVG rotate().
	Angle   float64
	Text    string
	Opacity float64
}

type Option func(*Pattern)

// WithTile sets the size of the repeating unit in canvas pixels.
func WithTile(width, height int) Option {
	return func(p *Pattern) {
		p.TileWidth, p.TileHeight = width, height
	}
}

// WithAngle sets the rotation of the tile grid in degrees.
func WithAngle(deg float64) Option {
	return func(p *Pattern) {
		p.Angle = deg
	}
}

// WithOpacity sets the alpha applied to the whole overlay.
func WithOpacity(alpha float64) Option {
	return func(p *Pattern) {
		p.Opacity = alpha
	}
}

// New returns the pattern for a canvas of the given size.
// An empty text falls back to DefaultText.
func New(canvasWidth, canvasHeight int, text string, opts ...Option) (Pattern, error) {
	if canvasWidth < 1 || canvasHeight < 1 {
		return Pattern{}, fmt.Errorf("%w: %dx%d", ErrInvalidCanvas, canvasWidth, canvasHeight)
	}
	if strings.TrimSpace(text) == "" {
		text = DefaultText
	}
	p := Pattern{
		CanvasWidth:  canvasWidth,
		CanvasHeight: canvasHeight,
		TileWidth:    DefaultTileWidth,
		TileHeight:   DefaultTileHeight,
		Angle:        DefaultAngle,
		Text:         text,
		Opacity:      DefaultOpacity,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.TileWidth < 1 || p.TileHeight < 1 {
		return Pattern{}, fmt.Errorf("%w: %dx%d", ErrInvalidTile, p.TileWidth, p.TileHeight)
	}
	if !(p.Opacity > 0 && p.Opacity <= 1) {
		return Pattern{}, fmt.Errorf("%w: %v", ErrInvalidAlpha, p.Opacity)
	}
	return p, nil
}

// SVG returns the pattern as a standalone SVG document sized to the canvas.
func (p Pattern) SVG() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		p.CanvasWidth, p.CanvasHeight, p.CanvasWidth, p.CanvasHeight)
	fmt.Fprintf(&b, `<defs><pattern id="wm" width="%d" height="%d" patternUnits="userSpaceOnUse" patternTransform="rotate(%s)">`,
		p.TileWidth, p.TileHeight, ftoa(p.Angle))
	fmt.Fprintf(&b, `<text x="%s" y="%s" text-anchor="middle" dominant-baseline="middle" font-family="sans-serif" font-weight="bold" font-size="%d" fill="#ffffff" fill-opacity="%s">`,
		ftoa(float64(p.TileWidth)/2), ftoa(float64(p.TileHeight)/2), fontSize(p.TileHeight), ftoa(p.Opacity))
	_ = xml.EscapeText(&b, []byte(p.Text))
	b.WriteString(`</text></pattern></defs><rect width="100%" height="100%" fill="url(#wm)"/></svg>`)
	return b.String()
}

// fontSize is the nominal text size for a tile height.
func fontSize(tileHeight int) int {
	return max(tileHeight/4, 6)
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
