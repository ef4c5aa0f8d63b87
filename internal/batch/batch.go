// Package batch turns many uploads into previews with bounded parallelism.
//
// Each job is an independent generation: a failing upload is recorded and
// never written, and never stops the other jobs.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lumastock/preview"
	"github.com/lumastock/preview/internal/catalog"
	"github.com/lumastock/preview/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Generator produces one preview.
type Generator interface {
	GenerateSafe(ctx context.Context, data []byte) (*preview.Result, error)
}

// Store publishes encoded previews.
type Store interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Recorder keeps the outcome of every job.
type Recorder interface {
	Record(ctx context.Context, e catalog.Entry) error
}

// Job is one upload. Load is called once, by the worker that runs the job.
type Job struct {
	Source string
	Load   func(ctx context.Context) ([]byte, error)
}

// Outcome is the result of one job.
type Outcome struct {
	ID        uuid.UUID
	Source    string
	ObjectKey string
	Result    *preview.Result
	Err       error
}

type Runner struct {
	generator func(id uuid.UUID) (Generator, error)
	store     Store
	recorder  Recorder
	workers   int
	timeout   time.Duration
	logger    zerolog.Logger
	newID     func() uuid.UUID
}

type Option func(*Runner)

// WithWorkers bounds the number of jobs processed at once.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithJobTimeout bounds one job, loading and storing included.
func WithJobTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

func withIDs(f func() uuid.UUID) Option {
	return func(r *Runner) {
		r.newID = f
	}
}

// Shared uses g for every job.
func Shared(g Generator) func(uuid.UUID) (Generator, error) {
	return func(uuid.UUID) (Generator, error) { return g, nil }
}

// Marked builds a generator per job that embeds the job id as provenance.
func Marked(opts ...preview.Option) func(uuid.UUID) (Generator, error) {
	return func(id uuid.UUID) (Generator, error) {
		return preview.New(append(slices.Clone(opts), preview.WithProvenance(id))...)
	}
}

// NewRunner returns a Runner. recorder may be nil.
func NewRunner(generator func(uuid.UUID) (Generator, error), store Store, recorder Recorder, opts ...Option) *Runner {
	r := &Runner{
		generator: generator,
		store:     store,
		recorder:  recorder,
		workers:   4,
		timeout:   time.Minute,
		logger:    zerolog.Nop(),
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ObjectKey is where the preview of job id is stored.
func ObjectKey(id uuid.UUID) string {
	return "previews/" + id.String() + ".jpg"
}

// Run processes jobs and returns one outcome per job, in job order.
// Job failures are reported in outcomes. The returned error is set only when
// ctx ends or the recorder fails.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	out := make([]Outcome, len(jobs))
	sem := semaphore.NewWeighted(int64(r.workers))
	g, gctx := errgroup.WithContext(ctx)

	for i, job := range jobs {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		out[i].ID = r.newID()
		out[i].Source = job.Source
		g.Go(func() error {
			defer sem.Release(1)
			metrics.BatchInFlight.Inc()
			defer metrics.BatchInFlight.Dec()

			r.process(gctx, job, &out[i])
			return r.record(gctx, &out[i])
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}

func (r *Runner) process(ctx context.Context, job Job, o *Outcome) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	log := r.logger.With().Str("job", o.ID.String()).Str("source", job.Source).Logger()
	defer func() {
		if p := recover(); p != nil {
			o.Result, o.ObjectKey = nil, ""
			o.Err = fmt.Errorf("%w: %s: %v", ErrJobPanic, job.Source, p)
			log.Error().Err(o.Err).Msg("job panicked")
		}
	}()

	data, err := job.Load(ctx)
	if err != nil {
		o.Err = fmt.Errorf("load %s: %w", job.Source, err)
		log.Warn().Err(err).Msg("load failed")
		return
	}
	gen, err := r.generator(o.ID)
	if err != nil {
		o.Err = err
		log.Error().Err(err).Msg("generator setup failed")
		return
	}
	res, err := gen.GenerateSafe(ctx, data)
	if err != nil {
		o.Err = err
		log.Warn().Err(err).Dur("dur", time.Since(start)).Msg("preview failed")
		return
	}
	key, err := r.store.Write(ctx, ObjectKey(o.ID), res.Data)
	if err != nil {
		o.Err = fmt.Errorf("store %s: %w", job.Source, err)
		log.Error().Err(err).Msg("store failed")
		return
	}
	o.Result, o.ObjectKey = res, key
	log.Info().
		Str("key", key).
		Int("width", res.Width).
		Int("height", res.Height).
		Bool("two_pass", res.TwoPass).
		Dur("dur", time.Since(start)).
		Msg("preview stored")
}

func (r *Runner) record(ctx context.Context, o *Outcome) error {
	if r.recorder == nil {
		return nil
	}
	e := catalog.Entry{
		ID:     o.ID.String(),
		Source: o.Source,
		Status: catalog.StatusOK,
	}
	if o.Err != nil {
		e.Status, e.Error = catalog.StatusFailed, o.Err.Error()
	} else {
		e.ObjectKey = o.ObjectKey
		e.Width, e.Height = o.Result.Width, o.Result.Height
		e.TwoPass = o.Result.TwoPass
		e.Bytes = len(o.Result.Data)
	}
	if err := r.recorder.Record(ctx, e); err != nil {
		return fmt.Errorf("record %s: %w", o.Source, err)
	}
	return nil
}

// Extensions lists the file extensions FromDir picks up.
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// FromDir returns one job per image file directly inside dir, sorted by name.
func FromDir(dir string) ([]Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var jobs []Job
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(Extensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		jobs = append(jobs, Job{Source: path, Load: fileLoader(path)})
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, dir)
	}
	return jobs, nil
}

var (
	ErrNoImages = errors.New("no images found")
	ErrJobPanic = errors.New("job panicked")
)

func fileLoader(path string) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return os.ReadFile(path)
	}
}
