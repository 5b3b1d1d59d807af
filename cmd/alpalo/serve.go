package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quilpalta/alpalo"
	"github.com/quilpalta/alpalo/metrics"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	site, err := c.cfg.siteConfig()
	if err != nil {
		return err
	}

	b, err := openStores(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer b.Close()

	reg := newRegistry()
	m := metrics.New(reg)
	if err := openServing(ctx, c.cfg, b, m, c.logger); err != nil {
		return err
	}

	var opts []alpalo.Option
	if b.uploadsDir != "" {
		if err := ensureLocalBucket(b.uploadsDir, site.Bucket); err != nil {
			return err
		}
		opts = append(opts, alpalo.WithUploadsDir(b.uploadsDir))
	} else if b.uploads != nil {
		opts = append(opts, alpalo.WithUploadsHandler(b.uploads))
	}

	app, err := alpalo.New(site, alpalo.Deps{
		Records:  b.records,
		Objects:  b.objects,
		Notifier: b.notifier,
		Logger:   c.logger,
		Registry: reg,
		Metrics:  m,
	}, opts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(app.Start)
	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down", zap.Duration("timeout", c.cfg.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
		defer cancel()
		return app.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
