package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/locu5t/civicomfy-go/api/handlers"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "civicomfy",
		Short: "civicomfy CLI - segmented model download manager",
		Long: `A command-line interface for queueing and monitoring model downloads on a
civicomfy server, or fetching a single file locally with "fetch".`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8188", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(fetchCmd)

	addCmd.Flags().StringP("output", "o", "", "Output path, relative to the server's base directory unless absolute")
	addCmd.Flags().IntP("connections", "c", 0, "Parallel connections (0 uses the server default)")
	addCmd.Flags().StringP("name", "n", "", "Display name")
	addCmd.Flags().String("version-name", "", "Model version name")
	_ = addCmd.MarkFlagRequired("output")

	historyCmd.Flags().IntP("limit", "l", 20, "Maximum number of records")
	historyCmd.Flags().StringP("status", "s", "", "Filter by status (completed, failed, cancelled)")
}

// client returns an API client, starting the server first unless --no-auto-start
func client() *apiClient {
	c := newAPIClient(serverURL)
	if !noAutoStart {
		if err := ensureServerRunning(c); err != nil {
			fmt.Fprintln(os.Stderr, warningStyle.Render("Warning: "+err.Error()))
		}
	}
	return c
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add a download to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		connections, _ := cmd.Flags().GetInt("connections")
		name, _ := cmd.Flags().GetString("name")
		versionName, _ := cmd.Flags().GetString("version-name")

		id, err := client().Add(handlers.AddDownloadRequest{
			URL:         args[0],
			OutputPath:  output,
			Connections: connections,
			Name:        name,
			VersionName: versionName,
		})
		if err != nil {
			return err
		}

		fmt.Println(successStyle.Render("Download queued"))
		fmt.Printf("ID: %s\n", id)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a queued or active download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cancelled, err := client().Cancel(args[0])
		if err != nil {
			return err
		}
		if !cancelled {
			fmt.Println(warningStyle.Render("Nothing to cancel: " + args[0]))
			return nil
		}
		fmt.Println(successStyle.Render("Cancellation requested: " + args[0]))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queued, active and recent downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := client().Status()
		if err != nil {
			return err
		}
		fmt.Print(renderStatus(snap))
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show download details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := client().Get(args[0])
		if err != nil {
			return err
		}
		fmt.Print(renderDownload(d))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")

		records, err := client().History(limit, status)
		if err != nil {
			return err
		}
		fmt.Print(renderHistory(records))
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
