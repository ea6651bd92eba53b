package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/modlib/internal"
	"github.com/starford/modlib/internal/index"
	"github.com/starford/modlib/internal/library"
	"github.com/starford/modlib/internal/melody"
	pkgconfig "github.com/starford/modlib/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// withLibrary opens the configured library for a one-shot command. Logs go
// to stderr so stdout carries only command output.
func withLibrary(ctx context.Context, cmd *cli.Command, fn func(context.Context, *library.Library) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := internal.Open(internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s.Library)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func add(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("add: at least one path is required")
	}
	return withLibrary(ctx, cmd, func(ctx context.Context, lib *library.Library) error {
		sum, err := lib.AddFiles(ctx, paths)
		printScan(os.Stdout, sum)
		return err
	})
}

func maintain(ctx context.Context, cmd *cli.Command) error {
	return withLibrary(ctx, cmd, func(ctx context.Context, lib *library.Library) error {
		sum, err := lib.MaintenanceSweep(ctx)
		printSweep(os.Stdout, sum)
		return err
	})
}

func dupes(ctx context.Context, cmd *cli.Command) error {
	return withLibrary(ctx, cmd, func(ctx context.Context, lib *library.Library) error {
		groups, err := lib.FindDuplicates(ctx)
		if err != nil {
			return err
		}
		sizes := make([]int64, len(groups))
		for i, g := range groups {
			if m, err := lib.Get(ctx, g.Filenames[0]); err == nil {
				sizes[i] = m.FileSize
			}
		}
		printDuplicates(os.Stdout, groups, sizes)
		return nil
	})
}

func search(ctx context.Context, cmd *cli.Command) error {
	q := library.SearchQuery{
		Text:        strings.Join(cmd.Args().Slice(), " "),
		Melody:      cmd.String("melody"),
		Fingerprint: cmd.String("fingerprint"),
		Sort:        cmd.String("sort"),
		Desc:        cmd.Bool("desc"),
		Limit:       int(cmd.Int("limit")),
		ShowAll:     cmd.Bool("all"),
	}
	if q.Text != "" {
		fields, err := index.ParseFields(strings.Split(cmd.String("fields"), ","))
		if err != nil {
			return err
		}
		q.Fields = fields
	}
	return withLibrary(ctx, cmd, func(ctx context.Context, lib *library.Library) error {
		hits, err := lib.Search(ctx, q)
		if err != nil {
			return err
		}
		printHits(os.Stdout, hits)
		return nil
	})
}

func compileMelody(_ context.Context, cmd *cli.Command) error {
	text := strings.Join(cmd.Args().Slice(), " ")
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("melody: read stdin: %w", err)
		}
		text = string(data)
	}
	q, err := melody.ParseInput(text)
	if err != nil {
		return err
	}
	if len(q) == 0 {
		return fmt.Errorf("melody: no intervals in input")
	}
	printMelody(os.Stdout, q)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "modlib",
		Usage: "Tracker module library with melody search, fingerprint ranking and duplicate detection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, watcher and event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "add",
				Usage:     "Add or refresh module files and directories",
				ArgsUsage: "<path>...",
				Action:    add,
			},
			{
				Name:   "maintain",
				Usage:  "Re-check every record and drop modules whose file is gone",
				Action: maintain,
			},
			{
				Name:   "dupes",
				Usage:  "List byte-identical modules",
				Action: dupes,
			},
			{
				Name:      "search",
				Usage:     "Search the library",
				ArgsUsage: "[text]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "fields", Value: "all", Usage: "Comma separated text fields"},
					&cli.StringFlag{Name: "melody", Aliases: []string{"m"}, Usage: "Interval phrases, e.g. \"2 2 1|-5\""},
					&cli.StringFlag{Name: "fingerprint", Usage: "Compressed fingerprint to rank by"},
					&cli.StringFlag{Name: "sort", Value: "filename", Usage: "Sort field"},
					&cli.BoolFlag{Name: "desc", Usage: "Sort descending"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 50, Usage: "Max results, 0 for all"},
					&cli.BoolFlag{Name: "all", Usage: "Ignore every filter"},
				},
				Action: search,
			},
			{
				Name:      "melody",
				Usage:     "Compile typed intervals or pasted pattern data (stdin when no argument)",
				ArgsUsage: "[intervals]",
				Action:    compileMelody,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
