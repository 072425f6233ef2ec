package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docqa/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP question-answering service",
	Long: `Starts the HTTP API. POST /api/v1/query takes a document URL and a list
of questions and returns one answer per question. Set DOCQA_API_BEARER_TOKEN
(or api_bearer_token in the config file) to require bearer auth.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort != 0 {
			cfg.Port = servePort
		}

		pipe, idx, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer idx.Close()

		// Warm up the index so the first request does not pay for it.
		// A failure is not fatal: the pipeline retries on demand.
		if err := pipe.Initialize(cmd.Context()); err != nil {
			log.Printf("warning: index initialization failed, will retry on first request: %v", err)
		}

		srv := server.New(server.Config{
			Port:        cfg.Port,
			BearerToken: cfg.BearerToken,
			AllowAll:    cfg.BearerToken == "",
		}, pipe, idx)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			log.Printf("received %s, shutting down", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the configured port")
	rootCmd.AddCommand(serveCmd)
}
