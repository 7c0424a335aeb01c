// haven-server hosts a single-user encrypted journal with a streaming
// assistant. Entries are encrypted at rest under a passphrase supplied on
// every request; the server itself holds no key material.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"haven/internal/chat"
	"haven/internal/config"
	"haven/internal/llm"
	"haven/internal/logging"
	"haven/internal/memory"
	httpserver "haven/internal/server/http"
	"haven/internal/vault"
)

const version = "0.1.0"

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "haven-server",
		Short: "Encrypted journal server with a streaming assistant",
		Long: `haven-server keeps journal entries encrypted at rest and streams
assistant conversations over SSE and websocket. The passphrase arrives with
every request in the X-Password header and is never stored or logged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(debug)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Debug mode")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(debug)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Version: %s\n", version)
		},
	})

	return rootCmd
}

func runServe(debug bool) error {
	logger := logging.NewComponentLogger("Main")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gate, err := vault.NewGate(cfg.DataDir)
	if err != nil {
		return err
	}
	entries, err := vault.NewEntryStore(cfg.DataDir)
	if err != nil {
		return err
	}
	memories, err := memory.NewStore(cfg.MemoryDir)
	if err != nil {
		return err
	}

	client := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.RequestTimeout,
	})
	session := chat.NewSession(entries, memories, client)
	session.SetContextTokenBudget(cfg.ContextTokenBudget)

	server, err := httpserver.NewServer(httpserver.Config{
		ListenAddr:   cfg.ListenAddr,
		CORSOrigins:  cfg.CORSOrigins,
		DefaultModel: cfg.LLM.Model,
		Debug:        debug,
	}, gate, entries, memories, session)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(server.Run)
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
