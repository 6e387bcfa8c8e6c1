package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/locu5t/civicomfy-go/internal/app"
	"github.com/locu5t/civicomfy-go/internal/domain"
	"github.com/locu5t/civicomfy-go/internal/engine"
	"github.com/locu5t/civicomfy-go/internal/infrastructure"
	"github.com/locu5t/civicomfy-go/pkg/logger"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Download a single file locally without a server",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringP("output", "o", "", "Output file path")
	fetchCmd.Flags().IntP("connections", "c", 0, "Parallel connections (0 uses the configured default)")
	fetchCmd.Flags().String("config", "", "Path to config file")
	fetchCmd.Flags().BoolP("verbose", "v", false, "Log engine events to stderr")
	_ = fetchCmd.MarkFlagRequired("output")
}

func runFetch(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	connections, _ := cmd.Flags().GetInt("connections")
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	config, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if connections <= 0 {
		connections = config.Download.Connections
	}
	if output, err = filepath.Abs(output); err != nil {
		return err
	}

	log := logger.OrNop(nil)
	if verbose {
		if log, err = logger.New(logger.Config{Level: "debug", Format: "console", OutputPath: "stderr"}); err != nil {
			return err
		}
		defer log.Sync()
	}

	factory := infrastructure.NewHTTPClientFactory(config.HTTP)
	eng := engine.New(
		factory.TransferClient(),
		factory.ProbeClient(log),
		engine.OptionsFromConfig(config.Download, config.HTTP),
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := eng.Prepare(ctx, "", args[0], output, connections)
	fmt.Println(infoStyle.Render(fmt.Sprintf("Fetching %s → %s (%d connections)", args[0], output, connections)))

	ok := run.Execute(func(u domain.ProgressUpdate) {
		fmt.Printf("\r%s %6.1f%%  %s / %s  %s   ",
			pendingStyle.Render("↓"),
			u.Progress,
			formatBytes(u.Downloaded),
			formatBytes(u.Total),
			formatSpeed(u.Speed))
	})
	fmt.Println()

	switch {
	case ok:
		fmt.Println(successStyle.Render("✓ Saved " + output))
		return nil
	case run.Cancelled():
		return errors.New(run.Err())
	default:
		msg := run.Err()
		if msg == "" {
			msg = "Download failed"
		}
		return errors.New(msg)
	}
}
