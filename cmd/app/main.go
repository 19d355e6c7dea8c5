package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/starford/smarttags/internal"
	"github.com/starford/smarttags/internal/apperr"
	"github.com/starford/smarttags/internal/prompt"
	"github.com/starford/smarttags/internal/resolver"
	pkgconfig "github.com/starford/smarttags/pkg/config"
)

var version = "dev"

const defaultConfigFile = "smart-tags.yaml"

func usageError(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(msg)
}

// loadConfig applies the config file, then SMART_TAGS_DB / --db on top.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w: %w", apperr.ErrInvalidInput, err)
		}
	} else if _, err := pkgconfig.LoadIfExists(defaultConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w: %w", apperr.ErrInvalidInput, err)
	}
	if db := cmd.String("db"); db != "" {
		cfg.Store.Path = db
	}
	return cfg, nil
}

func cliLogger(cmd *cli.Command, cfg *internal.Config) *slog.Logger {
	level := cfg.App.LogLevel
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// chooser prompts on an interactive stdin unless --choice names a policy.
func chooser(cmd *cli.Command) (resolver.Chooser, error) {
	if !cmd.IsSet("choice") && term.IsTerminal(int(os.Stdin.Fd())) {
		return prompt.NewTerminal(os.Stdin, os.Stderr), nil
	}
	intent, err := prompt.ParseIntent(cmd.String("choice"))
	if err != nil {
		return nil, err
	}
	return prompt.Fixed{Intent: intent}, nil
}

func cliOptions(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithLogger(cliLogger(cmd, cfg)),
		internal.WithOutput(os.Stdout),
		internal.WithVersion(version),
	}, nil
}

func tagFile(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return usageError("usage: smart-tags [options] FILE TAG...")
	}
	if len(args) < 2 {
		return usageError("at least one tag is required")
	}

	opts, err := cliOptions(cmd)
	if err != nil {
		return err
	}
	ch, err := chooser(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithChooser(ch))

	_, err = internal.TagFile(ctx, args[0], args[1:], cmd.Bool("dry-run"), opts...)
	return err
}

func listTags(ctx context.Context, cmd *cli.Command) error {
	opts, err := cliOptions(cmd)
	if err != nil {
		return err
	}
	return internal.ListTags(ctx, opts...)
}

func suggest(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return usageError("usage: smart-tags suggest TAG")
	}
	opts, err := cliOptions(cmd)
	if err != nil {
		return err
	}
	return internal.Suggest(ctx, cmd.Args().First(), opts...)
}

func alias(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return usageError("usage: smart-tags alias ALIAS TARGET")
	}
	opts, err := cliOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RegisterAlias(ctx, cmd.Args().Get(0), cmd.Args().Get(1), opts...)
}

func audit(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 1 {
		return usageError("usage: smart-tags audit [VAULT_DIR]")
	}
	opts, err := cliOptions(cmd)
	if err != nil {
		return err
	}
	_, err = internal.Audit(ctx, cmd.Args().First(), cmd.Bool("check"), opts...)
	return err
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func main() {
	cmd := &cli.Command{
		Name:      "smart-tags",
		Usage:     "Add tags to Markdown front matter, resolving aliases and typos against a shared tag store",
		ArgsUsage: "FILE TAG...",
		Version:   version,
		Action:    tagFile,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the tag store (default: config store.path, then tags_db.json)",
				Sources: cli.EnvVars("SMART_TAGS_DB"),
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigFile,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "choice",
				Usage:   "Policy for unknown tags when not prompting: use, alias or new",
				Value:   "use",
				Sources: cli.EnvVars("SMART_TAGS_CHOICE"),
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print the merged document instead of writing anything",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "tags",
				Usage:  "List canonical tags, their aliases and usage counts",
				Action: listTags,
			},
			{
				Name:      "suggest",
				Usage:     "Show how a tag would resolve without changing anything",
				ArgsUsage: "TAG",
				Action:    suggest,
			},
			{
				Name:      "alias",
				Usage:     "Register an alias for a canonical tag",
				ArgsUsage: "ALIAS TARGET",
				Action:    alias,
			},
			{
				Name:      "audit",
				Usage:     "Report document tags that are aliases or unknown",
				ArgsUsage: "[VAULT_DIR]",
				Action:    audit,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Exit with a conflict status when anything is reported",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live updates and vault watching",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the tag tools over MCP on stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("smart-tags failed", slog.String("error", apperr.Message(apperr.Coded(err))))
		os.Exit(apperr.ExitCode(err))
	}
}
