package main

import (
	"context"
	"fmt"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/api/webserver"
	botapi "github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/bot"
	"github.com/stake-plus/cardano-gov-sentiment/src/config"
	"github.com/stake-plus/cardano-gov-sentiment/src/verify"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the backend REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAPI(config.Env())
		if err != nil {
			return configError(err)
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		db, err := data.ConnectMySQL(cfg.MySQLDSN, logger)
		if err != nil {
			return err
		}
		if err := data.Migrate(db); err != nil {
			return err
		}
		rdb, err := data.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		if rdb == nil {
			logger.Warn("REDIS_URL not set; wallet login and overview caching are disabled")
		} else {
			defer rdb.Close()
		}

		router := webserver.New(cfg, data.NewStore(db, clock.WallClock), rdb, clock.WallClock, logger)
		return webserver.Serve(ctx, ":"+cfg.Port, router, cfg.TLS, logger)
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Discord bot with scheduled proposal sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadBot(config.Env())
		if err != nil {
			return configError(err)
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		b, err := bot.New(cfg, clock.WallClock, logger)
		if err != nil {
			return err
		}
		if err := b.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		logger.Info("shutting down")
		b.Stop(context.Background())
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the delegator verification page",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadVerify(config.Env())
		if err != nil {
			return configError(err)
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		chain := verify.NewBlockfrost(cfg.BlockfrostURL, cfg.BlockfrostProjectID, clock.WallClock)
		checker := verify.NewChecker(chain, cfg.DRepID, cfg.Network)
		router := verify.New(checker, botapi.NewClient(cfg.Backend), cfg.Network, logger)
		return webserver.Serve(ctx, ":"+cfg.Port, router, cfg.TLS, logger)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Post new active proposals to the forum once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadBot(config.Env())
		if err != nil {
			return configError(err)
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		res, err := bot.SyncOnce(ctx, cfg, clock.WallClock, logger)
		if err != nil {
			return err
		}
		logger.Info("sync finished", zap.Int("posted", res.Posted), zap.Int("failed", res.Failed), zap.Int("skipped", res.Skipped))
		fmt.Fprintf(cmd.OutOrStdout(), "posted %d, failed %d, skipped %d\n", res.Posted, res.Failed, res.Skipped)
		if res.Failed > 0 {
			return errors.Errorf("%d proposals failed to post", res.Failed)
		}
		return nil
	},
}
