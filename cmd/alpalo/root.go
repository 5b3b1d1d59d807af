package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/logging"
)

// cli holds what every subcommand shares once PersistentPreRunE has run.
type cli struct {
	cfgFile string
	cfg     *Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "alpalo",
		Short: "Directo Al Palo sports news site",
		Long: `alpalo serves the Directo Al Palo news site: the public listing, one page
per news item and the collaborator form that publishes new items.

Example usage:
  alpalo serve                  # listen on :3000 with alpalo.yaml / env settings
  alpalo migrate                # create the noticias table and image bucket
  alpalo version`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default is ./alpalo.yaml)")

	root.AddCommand(newServeCmd(c), newMigrateCmd(c), newVersionCmd())
	return root
}

func (c *cli) init() error {
	cfg, err := loadConfig(c.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	c.cfg = cfg
	c.logger = logger
	logger.Debug("configuration loaded",
		zap.String("records", cfg.Records.Driver),
		zap.String("objects", cfg.Objects.Driver),
		zap.String("cache", cfg.Cache.Driver),
	)
	return nil
}
