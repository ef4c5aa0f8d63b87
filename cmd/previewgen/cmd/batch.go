package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lumastock/preview"
	"github.com/lumastock/preview/internal/batch"
	"github.com/lumastock/preview/internal/catalog"
	"github.com/lumastock/preview/internal/metrics"
	"github.com/lumastock/preview/internal/storage"
	"github.com/spf13/cobra"
)

var batchFlags struct {
	workers int
	out     string
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Generate previews for every image in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobs, err := batch.FromDir(args[0])
		if err != nil {
			return err
		}

		dir := cfg.Storage.Dir
		if batchFlags.out != "" {
			dir = batchFlags.out
		}
		store, err := storage.NewFileStore(dir)
		if err != nil {
			return err
		}

		var recorder batch.Recorder
		if cfg.Catalog.Path != "" {
			db, err := catalog.Open(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			recorder = db
		}

		if cfg.Metrics.Addr != "" {
			stop, err := serveMetrics(cfg.Metrics.Addr)
			if err != nil {
				return err
			}
			defer stop()
		}

		opts := generatorOptions(cfg)
		generator := batch.Marked(opts...)
		if !cfg.Provenance.Enabled {
			g, err := preview.New(opts...)
			if err != nil {
				return err
			}
			generator = batch.Shared(g)
		}

		workers := cfg.Batch.Workers
		if batchFlags.workers > 0 {
			workers = batchFlags.workers
		}
		runner := batch.NewRunner(generator, store, recorder,
			batch.WithWorkers(workers),
			batch.WithJobTimeout(cfg.Batch.JobTimeout),
			batch.WithLogger(logger),
		)

		start := time.Now()
		outcomes, err := runner.Run(ctx, jobs)
		var failed int
		w := cmd.OutOrStdout()
		for _, o := range outcomes {
			switch {
			case o.Err != nil:
				failed++
				fmt.Fprintf(w, "FAIL %s: %v\n", o.Source, o.Err)
			case o.Result != nil:
				fmt.Fprintf(w, "ok   %s -> %s (%dx%d)\n", o.Source, o.ObjectKey, o.Result.Width, o.Result.Height)
			}
		}
		fmt.Fprintf(w, "%d previews, %d failed in %s\n", len(jobs)-failed, failed, time.Since(start).Round(time.Millisecond))
		return err
	},
}

// serveMetrics exposes /metrics on addr until the returned stop is called.
func serveMetrics(addr string) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchFlags.workers, "workers", 0, "parallel jobs (default from config)")
	batchCmd.Flags().StringVar(&batchFlags.out, "out", "", "output directory (default from config)")
}
