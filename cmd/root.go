package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/app"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/config"
	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/logging"
)

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime is what every subcommand needs before it builds its services.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = app.Build

type rootOptions struct {
	configFile string
	envFile    string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "unirag",
		Short: "Crawl, index and answer questions about the NIT Jamshedpur website.",
		Long: `unirag crawls https://nitjsr.ac.in/, extracts page and PDF content into a
snapshot, indexes it into a vector store and answers questions with a
retrieval-augmented language model.`,
		SilenceUsage: true,

		// Runs before any subcommand's RunE: loads .env, config and the logger.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, &runtime{cfg: cfg, logger: logger}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	cmd.AddCommand(
		newCrawlCmd(),
		newIndexCmd(),
		newServeCmd(),
		newAskCmd(),
		newSnapshotsCmd(),
	)
	return cmd
}

// loadEnvFile loads path into the process environment. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not initialized")
	}
	return rt, nil
}

// withApp builds the services for one command, runs fn and closes them.
func withApp(cmd *cobra.Command, opts app.Options, mutate func(*config.Config), fn func(context.Context, *app.App) error) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if mutate != nil {
		mutate(&cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a, err := newApp(cmd.Context(), cfg, rt.logger, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		if cerr := a.Close(context.Background()); cerr != nil {
			rt.logger.Warn("failed to close services", zap.Error(cerr))
		}
	}()
	return fn(cmd.Context(), a)
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
