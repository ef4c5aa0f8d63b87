package preview

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lumastock/preview/internal/provenance"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type Option func(*Generator) error

// WithPolicy replaces the whole policy. Later options still apply on top.
func WithPolicy(p Policy) Option {
	return func(g *Generator) error {
		g.policy = p
		return nil
	}
}

// WithMaxInputPixels sets the pixel ceiling enforced at decode time.
func WithMaxInputPixels(n int) Option {
	return func(g *Generator) error {
		g.policy.MaxInputPixels = n
		return nil
	}
}

// WithMaxPreviewWidth sets the maximum width of produced previews.
// Narrower sources are never enlarged.
func WithMaxPreviewWidth(n int) Option {
	return func(g *Generator) error {
		g.policy.MaxPreviewWidth = n
		return nil
	}
}

// WithWatermarkText sets the visible watermark text.
// An empty text keeps the default.
func WithWatermarkText(text string) Option {
	return func(g *Generator) error {
		if text != "" {
			g.policy.WatermarkText = text
		}
		return nil
	}
}

// WithQuality sets the JPEG quality, 1 through 100.
func WithQuality(q int) Option {
	return func(g *Generator) error {
		g.policy.Quality = q
		return nil
	}
}

// WithChroma sets the chroma subsampling of encoded previews.
func WithChroma(c ChromaSubsampling) Option {
	return func(g *Generator) error {
		g.policy.Chroma = c
		return nil
	}
}

// WithTimeout sets the wall-clock budget of one generation.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) error {
		if d <= 0 {
			return fmt.Errorf("%w: timeout %s", ErrInvalidPolicy, d)
		}
		g.timeout = d
		return nil
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) error {
		g.logger = l
		return nil
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(g *Generator) error {
		g.tracer = t
		return nil
	}
}

// WithProvenance embeds id invisibly into every preview, on top of the
// visible watermark. Previews too small to carry it are produced unmarked.
func WithProvenance(id uuid.UUID) Option {
	return func(g *Generator) error {
		if id == uuid.Nil {
			return fmt.Errorf("%w: nil provenance id", ErrInvalidPolicy)
		}
		g.marker = provenance.New()
		g.markID = id
		return nil
	}
}
