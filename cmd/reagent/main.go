package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/casualjim/reagent/pkg/slogx"
	_ "github.com/joho/godotenv/autoload"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var level = new(slog.LevelVar)

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log := zerolog.New(output).With().Timestamp().Logger()
	level.Set(slog.LevelInfo)
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: level}),
	))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("reagent failed", slogx.Error(err))
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var flags appFlags
	cmd := &cobra.Command{
		Use:           "reagent",
		Short:         "Run agent graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if flags.verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}
	flags.register(cmd)
	cmd.AddCommand(runCmd(&flags), chatCmd(&flags), describeCmd(&flags), typesCmd(&flags))
	return cmd
}
