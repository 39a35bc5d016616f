package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/spf13/cobra"

	"github.com/kareem-ic/paysim-sandbox/internal/config"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "payments-api",
	Short: "Card payment processor simulator",
	Long: `payments-api authorizes, captures and refunds simulated card payments.

Without a subcommand it runs as a Lambda behind API Gateway, or as a local
HTTP server when RUN_LOCAL=true.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.RunLocal {
			return runServer(cmd.Context(), cfg)
		}
		return runLambda(cmd.Context(), cfg)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}
		return runServer(cmd.Context(), cfg)
	},
}

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run the API Gateway Lambda handler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runLambda(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd, lambdaCmd)
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	if a.cloudWatch != nil {
		go a.cloudWatch.Run(ctx, cloudWatchFlushInterval)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: a.router}
	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("running local server on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run local server: %w", err)
		}
	case <-ctx.Done():
		a.log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warningf("shutdown: %v", err)
	}
	a.close(shutdownCtx)
	return nil
}

func runLambda(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	adapter := ginadapter.New(a.router)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		resp, err := adapter.ProxyWithContext(ctx, req)
		// the execution environment may freeze once we return
		a.drain(ctx)
		return resp, err
	})
	return nil
}
