package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vango-dev/eventwire/internal/config"
	"github.com/vango-dev/eventwire/internal/source"
)

// app is the state shared by every command once flags are parsed.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
	opener  *source.Opener
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "eventwire",
		Short: "Bind document events to handlers and routes",
		Long: `eventwire binds elements of an HTML document to handler methods by
naming convention, collects structured payloads from the element tree,
validates them and runs each handler locally or through a route table.

The document and an optional TOML manifest of routes, controllers and
request types may be local paths, http(s) URLs or s3://bucket/key objects.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./eventwire.yaml)")
	pf.String("document", "", "HTML document (path, URL or s3://bucket/key)")
	pf.String("manifest", "", "TOML manifest of routes, controllers and request types")
	pf.String("base-path", "", "base URL for route calls")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (text|json)")

	root.AddCommand(
		newServeCmd(a),
		newFireCmd(a),
		newCollectCmd(a),
		newRoutesCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Logger(cmd.ErrOrStderr())
	slog.SetDefault(a.logger)

	var opts []source.Option
	opts = append(opts, source.WithLogger(a.logger))
	if cfg.AWS.Region != "" {
		opts = append(opts, source.WithRegion(cfg.AWS.Region))
	}
	if cfg.AWS.Endpoint != "" {
		opts = append(opts, source.WithEndpoint(cfg.AWS.Endpoint))
	}
	a.opener = source.New(opts...)

	if cfg.File != "" {
		a.logger.Debug("config loaded", "file", cfg.File)
	}
	return nil
}
