package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"trading-replay/internal/logger"
)

var serveEvery time.Duration

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Enter candidate pairs whose spread left the signal band",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := logger.WithRunID(cmd.Context(), logger.NewRunID())
		c, err := setup(ctx)
		if err != nil {
			return err
		}
		defer c.rt.Close()
		if err := requireCandidates(c.file); err != nil {
			return err
		}
		rep, err := c.opener.Run(ctx, c.file.Candidates)
		if err != nil {
			return err
		}
		return writeJSON(rep)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Unwind OPEN pairs that reverted or breached a stop band",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := logger.WithRunID(cmd.Context(), logger.NewRunID())
		c, err := setup(ctx)
		if err != nil {
			return err
		}
		defer c.rt.Close()
		rep, err := c.closer.Run(ctx)
		if err != nil {
			return err
		}
		return writeJSON(rep)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the closer and opener on a schedule",
	Long: `Run the closer then the opener every --every, serving metrics, health
and the websocket gateway on METRICS_ADDR until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(openCmd, closeCmd, serveCmd)
	serveCmd.Flags().DurationVar(&serveEvery, "every", time.Minute, "Cycle interval")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c, err := setup(ctx)
	if err != nil {
		return err
	}
	defer c.rt.Close()
	if err := requireCandidates(c.file); err != nil {
		return err
	}
	if serveEvery <= 0 {
		return errors.New("--every must be positive")
	}

	session, err := c.file.MarketSession()
	if err != nil {
		return err
	}
	c.rt.Serve(ctx)
	ticker := time.NewTicker(serveEvery)
	defer ticker.Stop()
	for {
		if now := time.Now(); !session.IsOpen(now) {
			c.rt.Log.Info("cycle skipped", "session", session.Status(now))
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			continue
		}
		runCtx := logger.WithRunID(ctx, logger.NewRunID())
		log := logger.FromContext(runCtx, c.rt.Log)

		start := time.Now()
		_, err := c.closer.Run(runCtx)
		c.rt.Metrics.ObserveCycle("pairs-close", time.Since(start), err)
		if err != nil {
			log.Error("close cycle failed", "error", err)
		}

		openStart := time.Now()
		_, openErr := c.opener.Run(runCtx, c.file.Candidates)
		c.rt.Metrics.ObserveCycle("pairs-open", time.Since(openStart), openErr)
		if openErr != nil {
			log.Error("open cycle failed", "error", openErr)
		}
		c.rt.Health.RecordCycle(start, errors.Join(err, openErr))
		c.refresh(runCtx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
