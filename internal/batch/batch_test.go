package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lumastock/preview"
	"github.com/lumastock/preview/internal/catalog"
	"github.com/lumastock/preview/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroken = errors.New("broken upload")

type fakeGenerator struct {
	inFlight, peak atomic.Int32
}

func (g *fakeGenerator) GenerateSafe(ctx context.Context, data []byte) (*preview.Result, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	if bytes.Equal(data, []byte("panic")) {
		panic("index out of range")
	}
	if bytes.Equal(data, []byte("bad")) {
		return nil, &preview.ImageProcessingError{Stage: preview.StageDecode, Err: errBroken}
	}
	return &preview.Result{Data: append([]byte("jpeg:"), data...), Width: 60, Height: 40, Format: "jpeg"}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *fakeStore) Write(_ context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return key, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []catalog.Entry
	fail    bool
}

func (r *fakeRecorder) Record(_ context.Context, e catalog.Entry) error {
	if r.fail {
		return errors.New("disk full")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func memJob(source string, data string) Job {
	return Job{Source: source, Load: func(context.Context) ([]byte, error) { return []byte(data), nil }}
}

func sequentialIDs() func() uuid.UUID {
	var n atomic.Uint32
	return func() uuid.UUID {
		var id uuid.UUID
		id[15] = byte(n.Add(1))
		return id
	}
}

func TestRun(t *testing.T) {
	gen := &fakeGenerator{}
	store := &fakeStore{}
	rec := &fakeRecorder{}
	r := NewRunner(Shared(gen), store, rec, WithWorkers(2), withIDs(sequentialIDs()))

	jobs := []Job{
		memJob("a.jpg", "a"),
		memJob("b.jpg", "bad"),
		memJob("c.jpg", "c"),
		{Source: "d.jpg", Load: func(context.Context) ([]byte, error) { return nil, os.ErrNotExist }},
		memJob("e.jpg", "e"),
	}
	out, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, out, len(jobs))

	for i, o := range out {
		assert.Equal(t, jobs[i].Source, o.Source)
	}
	assert.NoError(t, out[0].Err)
	assert.ErrorIs(t, out[1].Err, preview.ErrImageProcessing)
	assert.ErrorIs(t, out[3].Err, os.ErrNotExist)
	assert.Nil(t, out[1].Result)
	assert.Empty(t, out[1].ObjectKey)

	assert.Len(t, store.objects, 3, "failed jobs never write")
	assert.Equal(t, []byte("jpeg:a"), store.objects[ObjectKey(out[0].ID)])
	assert.LessOrEqual(t, gen.peak.Load(), int32(2))

	require.Len(t, rec.entries, 5)
	statuses := map[catalog.Status]int{}
	for _, e := range rec.entries {
		statuses[e.Status]++
		if e.Status == catalog.StatusFailed {
			assert.NotEmpty(t, e.Error)
			assert.Empty(t, e.ObjectKey)
		} else {
			assert.Equal(t, 60, e.Width)
		}
	}
	assert.Equal(t, map[catalog.Status]int{catalog.StatusOK: 3, catalog.StatusFailed: 2}, statuses)
}

func TestRunRecorderFailure(t *testing.T) {
	r := NewRunner(Shared(&fakeGenerator{}), &fakeStore{}, &fakeRecorder{fail: true})
	_, err := r.Run(context.Background(), []Job{memJob("a.jpg", "a")})
	assert.ErrorContains(t, err, "disk full")
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(Shared(&fakeGenerator{}), &fakeStore{}, nil)
	_, err := r.Run(ctx, []Job{memJob("a.jpg", "a"), memJob("b.jpg", "b")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("6f1c0a52-2b7e-4d3f-9a61-0c8e5b4d7f21")
	assert.Equal(t, "previews/6f1c0a52-2b7e-4d3f-9a61-0c8e5b4d7f21.jpg", ObjectKey(id))
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestFromDir(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 8, 8)
	writePNG(t, filepath.Join(dir, "a.PNG"), 8, 8)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	jobs, err := FromDir(dir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, filepath.Join(dir, "a.PNG"), jobs[0].Source)

	data, err := jobs[1].Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = FromDir(t.TempDir())
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "wide.png"), 240, 120)
	writePNG(t, filepath.Join(dir, "tall.png"), 90, 180)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("\x89PNG\r\n\x1a\n"), 0o644))

	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	db, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer db.Close()

	jobs, err := FromDir(dir)
	require.NoError(t, err)
	r := NewRunner(Marked(preview.WithMaxPreviewWidth(100)), store, db, WithWorkers(3))
	out, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, out, 3)

	var ok int
	for _, o := range out {
		if o.Err != nil {
			continue
		}
		ok++
		data, err := store.Read(context.Background(), o.ObjectKey)
		require.NoError(t, err)
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.LessOrEqual(t, cfg.Width, 100)
	}
	assert.Equal(t, 2, ok)

	counts, err := db.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[catalog.Status]int{catalog.StatusOK: 2, catalog.StatusFailed: 1}, counts)
}

func TestRunJobPanic(t *testing.T) {
	store := &fakeStore{}
	rec := &fakeRecorder{}
	r := NewRunner(Shared(&fakeGenerator{}), store, rec, WithWorkers(2))

	out, err := r.Run(context.Background(), []Job{memJob("a.jpg", "a"), memJob("b.jpg", "panic"), memJob("c.jpg", "c")})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.ErrorIs(t, out[1].Err, ErrJobPanic)
	assert.Nil(t, out[1].Result)
	assert.NoError(t, out[2].Err)
	assert.Len(t, store.objects, 2)
	assert.Len(t, rec.entries, 3)
}

func TestRunTruncatedJPEG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 320, 240))
	for y := range 240 {
		for x := range 320 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 96, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	data := buf.Bytes()

	jobs := []Job{
		memJob("ok-1.jpg", string(data)),
		memJob("half.jpg", string(data[:len(data)/2])),
		memJob("tenth.jpg", string(data[:len(data)/10])),
		memJob("ok-2.jpg", string(data)),
	}
	g, err := preview.New(preview.WithMaxPreviewWidth(100))
	require.NoError(t, err)
	store := &fakeStore{}
	r := NewRunner(Shared(g), store, &fakeRecorder{}, WithWorkers(2))

	var out []Outcome
	require.NotPanics(t, func() { out, err = r.Run(context.Background(), jobs) })
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.NoError(t, out[0].Err)
	assert.Error(t, out[1].Err)
	assert.Error(t, out[2].Err)
	assert.NoError(t, out[3].Err)
	assert.Len(t, store.objects, 2)
	assert.Equal(t, 100, out[0].Result.Width)
}
