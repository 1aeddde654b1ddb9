package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stock-researcher/internal/config"
	"github.com/sells-group/stock-researcher/internal/tracing"
)

// version is set at build time with -ldflags.
var version = "dev"

// annotationOracles marks commands that call the generation and search
// services and so need both secrets up front.
const annotationOracles = "needs-oracles"

var oracleAnnotations = map[string]string{annotationOracles: "true"}

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:     "stock-researcher",
	Short:   "Automated stock research reports",
	Long:    "Parses a research question, gathers market evidence for up to two tickers, analyzes sentiment and risk, and writes a validated summary.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if cmd.Annotations[annotationOracles] == "true" {
			if err := cfg.ValidateSecrets(); err != nil {
				return err
			}
		}

		return tracing.Init(tracing.Options{
			Enabled: cfg.Tracing.Enabled,
			Pretty:  cfg.Tracing.Pretty,
			Version: version,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			zap.L().Warn("tracing shutdown failed", zap.Error(err))
		}
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
