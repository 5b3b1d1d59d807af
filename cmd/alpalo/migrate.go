package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the noticias table and the image bucket",
		Long: `migrate prepares the self-hosted backends: the noticias table for the
sqlite and postgres record stores and the image bucket for the s3 and local
object storages. The hosted backend is provisioned in its own console.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.migrate(cmd.Context())
		},
	}
}

func (c *cli) migrate(ctx context.Context) error {
	b, err := openStores(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer b.Close()

	switch c.cfg.Records.Driver {
	case "postgres":
		if err := b.postgres.Migrate(ctx); err != nil {
			return err
		}
	case "sqlite":
		// The schema is created when the store opens.
	default:
		c.logger.Info("records driver needs no migration", zap.String("driver", c.cfg.Records.Driver))
	}
	c.logger.Info("records ready", zap.String("driver", c.cfg.Records.Driver))

	bucket := c.cfg.Upload.Bucket
	switch {
	case b.s3 != nil:
		if err := b.s3.EnsureBucket(ctx, bucket); err != nil {
			return err
		}
	case b.local != nil:
		if err := ensureLocalBucket(b.local.Root(), bucket); err != nil {
			return fmt.Errorf("creating bucket directory: %w", err)
		}
	default:
		c.logger.Info("objects driver needs no migration", zap.String("driver", c.cfg.Objects.Driver))
		return nil
	}
	c.logger.Info("bucket ready", zap.String("driver", c.cfg.Objects.Driver), zap.String("bucket", bucket))
	return nil
}
