package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitalvas/sigauth/config"
	"github.com/vitalvas/sigauth/logger"
	"github.com/vitalvas/sigauth/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.App.LogLevel,
				ServiceName: "sigauth",
				Version:     version,
			})
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()

			srv, err := server.New(ctx, cfg)
			if err != nil {
				return err
			}

			if err := srv.Run(ctx); err != nil {
				logger.L().Error("server stopped", zap.Error(err))
				return err
			}

			logger.L().Info("server stopped")

			return nil
		},
	}
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	return config.Load(config.Options{
		Path:     opts.configPath,
		EnvFiles: opts.envFiles,
	})
}
