package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/averagehelper/site/internal/application/content"
	"github.com/averagehelper/site/internal/application/services"
	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/capsule"
	"github.com/averagehelper/site/internal/infrastructure/config"
	"github.com/averagehelper/site/internal/infrastructure/logger"
	"github.com/averagehelper/site/internal/infrastructure/server"
	"github.com/averagehelper/site/internal/infrastructure/storage"
	"github.com/averagehelper/site/internal/ports"
)

// Set at link time with -ldflags "-X ...".
var (
	Version   = "dev"
	GitCommit = "development"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site over HTTP and Gemini",
		Long:  "Serve the static site over HTTP and the capsule over Gemini. If either listener stops, the process exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Flags())
		},
	}

	flags := cmd.Flags()
	flags.String("host", "", "HTTP listen host")
	flags.Int("port", 0, "HTTP listen port")
	flags.Bool("gemini", true, "Serve the Gemini capsule")
	flags.Int("gemini-port", 0, "Gemini listen port")
	flags.String("gemini-hostname", "", "The only host name the capsule answers for")
	flags.String("gemini-certs-dir", "", "Directory holding cert.pem and key.pem")
	flags.String("assets-dir", "", "Serve the site tree from this directory instead of the embedded build")
	addLoggerFlags(flags)

	return cmd
}

// NewWaysCommand creates the ways command with subcommands
func NewWaysCommand() *cobra.Command {
	waysCmd := &cobra.Command{
		Use:   "ways",
		Short: "Ways content commands",
		Long:  "Convert the Ways Markdown posts into gemtext for the capsule",
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the Ways gemtext and route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			output, _ := cmd.Flags().GetString("output")
			table, _ := cmd.Flags().GetString("table")
			tablePackage, _ := cmd.Flags().GetString("table-package")
			tablePrefix, _ := cmd.Flags().GetString("table-prefix")

			return runWaysBuild(cmd, ports.BuildRequest{
				SourceDir:    source,
				OutputDir:    output,
				TablePath:    table,
				TablePackage: tablePackage,
				TablePrefix:  tablePrefix,
			})
		},
	}

	buildCmd.Flags().String("source", "content/ways", "Directory of Markdown posts")
	buildCmd.Flags().String("output", "web/gemtext", "Directory to write ways.gmi and ways/ into")
	buildCmd.Flags().String("table", "", "Write the Go route table to this file")
	buildCmd.Flags().String("table-package", "", "Package clause of the route table (default: its directory name)")
	buildCmd.Flags().String("table-prefix", "gemtext/ways/", "Embedded path prefix of each table entry")
	addLoggerFlags(buildCmd.Flags())

	waysCmd.AddCommand(buildCmd)
	return waysCmd
}

// NewDomainsCommand creates the domains command with subcommands
func NewDomainsCommand() *cobra.Command {
	domainsCmd := &cobra.Command{
		Use:   "domains",
		Short: "On-demand TLS allow-list commands",
	}

	domainsCmd.AddCommand(&cobra.Command{
		Use:   "check <domain>",
		Short: "Print the category of an allowed domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domainService := services.NewDomainService(logger.NewNop())
			category, err := domainService.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], category)
			return nil
		},
	})

	domainsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every allowed domain",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, record := range entities.DomainAllowList() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", record.Domain, record.Category)
			}
		},
	})

	return domainsCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the site server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "site %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Git Commit: %s\n", GitCommit)
		},
	}
}

func addLoggerFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (json, console)")
}

func runServer(flags *pflag.FlagSet) error {
	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	store, err := storage.New(cfg.Assets)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	appLogger.Infow("Content loaded", flatten(store.GetSourceInfo())...)

	srv, err := server.New(cfg, store.Assets, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)
	go func() {
		errs <- srv.Start(cfg.Server.GetHTTPAddr())
	}()
	if cfg.Gemini.Enabled {
		gemini := capsule.New(store.Capsule, cfg.Gemini, appLogger)
		go func() {
			errs <- gemini.ListenAndServe(ctx, cfg.Gemini.GetGeminiAddr())
		}()
	}

	appLogger.Infow("Site server started",
		"version", Version,
		"http", cfg.Server.GetHTTPAddr(),
		"gemini", cfg.Gemini.Enabled,
		"environment", cfg.App.Environment,
		"debug", cfg.App.Debug,
	)

	var runErr error
	select {
	case <-ctx.Done():
		appLogger.Infow("Shutdown signal received")
	case runErr = <-errs:
		if runErr == nil {
			runErr = errors.New("listener stopped unexpectedly")
		}
		appLogger.WithError(runErr).Errorw("Listener stopped, shutting down")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Errorw("HTTP server shutdown failed")
	}

	return runErr
}

func runWaysBuild(cmd *cobra.Command, req ports.BuildRequest) error {
	cfg, err := config.LoadWithFlags(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	var builder ports.ContentService = content.NewService(appLogger.WithComponent("ways"))
	result, err := builder.Build(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Built %d ways into %s\n", len(result.Documents), req.OutputDir)
	return nil
}

func flatten(fields map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
