// Package preview turns uploaded images into watermarked, size-bounded JPEG
// previews that are safe to show in public.
//
// Every preview is produced in one synchronous call:
//  1. Reads the image header and rejects unreadable or zero-sized input.
//  2. Decodes under the pixel ceiling, downsampling JPEG at decode time.
//  3. Applies the EXIF orientation.
//  4. For GenerateSafe, shrinks large sources into 1000x1000 first.
//  5. Resizes to the preview width, composites the text pattern and encodes.
//
// A Generator holds no mutable state and may be shared by goroutines.
package preview

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/lumastock/preview/internal/metrics"
	"github.com/lumastock/preview/internal/pattern"
	"github.com/lumastock/preview/internal/plan"
	"github.com/lumastock/preview/internal/provenance"
	"github.com/lumastock/preview/internal/raster"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTimeout = 30 * time.Second

// Result is an encoded preview.
type Result struct {
	Data          []byte
	Width, Height int
	TwoPass       bool
	Format        string
}

type Generator struct {
	policy  Policy
	timeout time.Duration
	logger  zerolog.Logger
	tracer  trace.Tracer

	marker *provenance.Marker
	markID uuid.UUID
}

type mode string

const (
	modeSingle mode = "single"
	modeSafe   mode = "safe"
)

// New returns a Generator with the default policy changed by opts.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{
		policy:  DefaultPolicy(),
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
		tracer:  otel.Tracer("github.com/lumastock/preview"),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	if err := g.policy.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Policy returns the policy g applies.
func (g *Generator) Policy() Policy { return g.policy }

// Generate produces the preview of data in a single pass.
func (g *Generator) Generate(ctx context.Context, data []byte) (*Result, error) {
	return g.generate(ctx, data, modeSingle)
}

// GenerateSafe produces the preview of data, going through a coarse
// 1000x1000 pass first when either side of the source exceeds 2000 pixels.
func (g *Generator) GenerateSafe(ctx context.Context, data []byte) (*Result, error) {
	return g.generate(ctx, data, modeSafe)
}

// GeneratePreview is Generate with a one-off Generator. An empty text keeps
// the default watermark.
func GeneratePreview(ctx context.Context, data []byte, text string, opts ...Option) ([]byte, error) {
	g, err := New(append(opts, WithWatermarkText(text))...)
	if err != nil {
		return nil, err
	}
	res, err := g.Generate(ctx, data)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// GeneratePreviewSafe is GenerateSafe with a one-off Generator.
func GeneratePreviewSafe(ctx context.Context, data []byte, text string, opts ...Option) ([]byte, error) {
	g, err := New(append(opts, WithWatermarkText(text))...)
	if err != nil {
		return nil, err
	}
	res, err := g.GenerateSafe(ctx, data)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ExtractProvenance reads back the id embedded by WithProvenance.
func ExtractProvenance(ctx context.Context, img image.Image) (uuid.UUID, error) {
	b, err := provenance.New().Extract(ctx, img, len(uuid.UUID{}))
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(b)
}

func (g *Generator) generate(ctx context.Context, data []byte, m mode) (res *Result, err error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ctx, span := g.tracer.Start(ctx, "preview.generate", trace.WithAttributes(
		attribute.String("preview.mode", string(m)),
		attribute.Int("preview.input_bytes", len(data)),
	))
	stage := StageHeader
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, processingErr(stage, fmt.Errorf("%w: %v", raster.ErrDecoderPanic, r))
		}
		outcome := "ok"
		if err != nil {
			kind, stage := errorKind(err)
			outcome = kind
			metrics.RecordError(kind, string(stage))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			g.logger.Debug().Err(err).Str("mode", string(m)).Msg("preview failed")
		} else if res != nil {
			metrics.RecordPreview(len(res.Data), res.TwoPass)
			span.SetAttributes(
				attribute.Int("preview.width", res.Width),
				attribute.Int("preview.height", res.Height),
				attribute.Bool("preview.two_pass", res.TwoPass),
			)
		}
		metrics.RecordGenerate(string(m), outcome, time.Since(start))
		span.End()
	}()

	h, err := g.header(data)
	if err != nil {
		return nil, err
	}
	stage = StageDecode
	src, err := g.load(ctx, data, h)
	if err != nil {
		return nil, err
	}

	ow, oh := h.Oriented()
	twoPass := m == modeSafe && max(ow, oh) > plan.LargeImageThreshold
	stage = StageResize
	if twoPass {
		if src, err = g.coarse(ctx, src); err != nil {
			return nil, err
		}
	}
	return g.final(ctx, src, twoPass)
}

func (g *Generator) header(data []byte) (raster.Header, error) {
	h, err := raster.ReadHeader(data)
	if err != nil {
		return raster.Header{}, &InvalidInputError{Reason: "unreadable header", Err: err}
	}
	if h.Width < 1 || h.Height < 1 {
		return raster.Header{}, &InvalidInputError{Reason: "zero dimension", Err: plan.ErrZeroDimension}
	}
	g.logger.Debug().
		Str("step", string(StageHeader)).
		Str("format", h.Format).
		Int("width", h.Width).
		Int("height", h.Height).
		Int("orientation", int(h.Orientation)).
		Msg("header read")
	return h, nil
}

// load decodes data under the pixel ceiling and turns it upright.
func (g *Generator) load(ctx context.Context, data []byte, h raster.Header) (image.Image, error) {
	ctx, span := g.tracer.Start(ctx, "preview.decode")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, processingErr(StageDecode, err)
	}
	t := time.Now()
	img, err := raster.Decode(data, h, g.policy.MaxInputPixels)
	if err != nil {
		return nil, processingErr(StageDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, processingErr(StageOrient, err)
	}
	img = raster.Orient(img, h.Orientation)
	b := img.Bounds()
	g.logger.Debug().
		Str("step", string(StageDecode)).
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Dur("dur", time.Since(t)).
		Msg("decoded")
	return img, nil
}

// coarse shrinks src to fit inside the intermediate bound without a watermark.
func (g *Generator) coarse(ctx context.Context, src image.Image) (image.Image, error) {
	_, span := g.tracer.Start(ctx, "preview.coarse")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, processingErr(StageResize, err)
	}
	t := time.Now()
	b := src.Bounds()
	iw, ih := plan.Intermediate(b.Dx(), b.Dy())
	mid := raster.Resize(src, iw, ih)
	g.logger.Debug().
		Str("step", "coarse").
		Int("width", iw).
		Int("height", ih).
		Dur("dur", time.Since(t)).
		Msg("coarse pass")
	return mid, nil
}

// final plans from the actual dimensions of src, draws the pattern for that
// canvas and runs the raster pipeline once.
func (g *Generator) final(ctx context.Context, src image.Image, twoPass bool) (*Result, error) {
	ctx, span := g.tracer.Start(ctx, "preview.final")
	defer span.End()

	t := time.Now()
	b := src.Bounds()
	p, err := plan.Compute(b.Dx(), b.Dy(), g.policy.MaxPreviewWidth)
	if err != nil {
		return nil, processingErr(StageResize, err)
	}
	p.TwoPass = twoPass

	pat, err := pattern.New(p.Width, p.Height, g.policy.WatermarkText)
	if err != nil {
		return nil, processingErr(StageComposite, err)
	}
	overlay, err := pat.Render()
	if err != nil {
		return nil, processingErr(StageComposite, err)
	}

	pipe := raster.Pipeline{Quality: g.policy.Quality}
	if g.marker != nil {
		pipe.Mark = g.mark
	}
	out, err := pipe.Run(ctx, src, p.Width, p.Height, overlay)
	if err != nil {
		return nil, processingErr(StageEncode, err)
	}
	g.logger.Debug().
		Str("step", string(StageEncode)).
		Int("width", p.Width).
		Int("height", p.Height).
		Bool("two_pass", p.TwoPass).
		Int("bytes", len(out)).
		Dur("dur", time.Since(t)).
		Msg("preview encoded")
	return &Result{
		Data:    out,
		Width:   p.Width,
		Height:  p.Height,
		TwoPass: p.TwoPass,
		Format:  raster.Format,
	}, nil
}

func (g *Generator) mark(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error) {
	if !g.marker.Fits(img.Bounds(), len(g.markID)) {
		g.logger.Warn().
			Int("width", img.Bounds().Dx()).
			Int("height", img.Bounds().Dy()).
			Msg("preview too small for provenance mark, skipped")
		return img, nil
	}
	return g.marker.Embed(ctx, img, g.markID[:])
}
