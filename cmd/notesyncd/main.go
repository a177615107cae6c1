package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkwell-labs/notesync/pkg/facade"
	"github.com/inkwell-labs/notesync/pkg/log"
	"github.com/inkwell-labs/notesync/pkg/metrics"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "notesyncd",
	Short:   "notesyncd - local-first CRDT sync daemon for notes",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("notesyncd version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "./data", "Local persistence directory")
	rootCmd.PersistentFlags().String("actor", "", "This device's replica identity (defaults to hostname)")
	rootCmd.PersistentFlags().String("server-http", "http://localhost:8080", "Base URL for the full-sync HTTP endpoint")
	rootCmd.PersistentFlags().String("server-ws", "ws://localhost:8080/api/ws", "URL for the streaming sync websocket")
	rootCmd.PersistentFlags().String("token", "", "Bearer token for authenticating with the sync server")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func openNotebook(cmd *cobra.Command) (*facade.Notebook, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	actor, _ := cmd.Flags().GetString("actor")
	serverHTTP, _ := cmd.Flags().GetString("server-http")
	serverWS, _ := cmd.Flags().GetString("server-ws")
	token, _ := cmd.Flags().GetString("token")

	if actor == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown-device"
		}
		actor = hostname
	}

	return facade.Open(facade.Config{
		DataDir:    dataDir,
		Actor:      actor,
		ServerHTTP: serverHTTP,
		ServerWS:   serverWS,
		AuthToken:  token,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon: connect, stream updates, and serve metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		nb, err := openNotebook(cmd)
		if err != nil {
			return fmt.Errorf("failed to open notebook: %w", err)
		}
		defer nb.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := nb.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		fmt.Println("✓ Streaming sync connected")

		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/health", metrics.HealthHandler())
			mux.HandleFunc("/ready", metrics.ReadyHandler())
			mux.HandleFunc("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				fmt.Printf("metrics server error: %v\n", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		fmt.Println("shutting down...")
		nb.Disconnect()
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Trigger one full sync cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		nb, err := openNotebook(cmd)
		if err != nil {
			return fmt.Errorf("failed to open notebook: %w", err)
		}
		defer nb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := nb.TriggerFullSync(ctx); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		fmt.Println("✓ Sync completed")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the sync status of every locally known note",
	RunE: func(cmd *cobra.Command, args []string) error {
		nb, err := openNotebook(cmd)
		if err != nil {
			return fmt.Errorf("failed to open notebook: %w", err)
		}
		defer nb.Close()

		statuses := nb.AllStatuses()
		if len(statuses) == 0 {
			fmt.Println("no notes tracked yet")
			return nil
		}
		for _, s := range statuses {
			fmt.Printf("%s  %-10s  pending=%d  last_synced=%s\n",
				s.NoteID, s.State, s.PendingUpdateCount, s.LastSyncedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("metrics-addr", ":9090", "Address to serve /metrics on")
}
