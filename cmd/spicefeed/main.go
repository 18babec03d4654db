// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/spicefeed"
	"github.com/poiesic/spicefeed/config"
	"github.com/poiesic/spicefeed/core"
	"github.com/poiesic/spicefeed/retrieval"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "spicefeed",
		Usage: "Bounded news store with full-text search and semantic retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "fetch",
				Usage:  "Fetch all configured feeds and store the merged batch",
				Action: fetchCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "purge",
						Usage: "Remove items past retention after storing",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Full-text search over stored items",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Restrict to one section (tech, politics, business, culture, other)",
					},
					&cli.IntFlag{
						Name:  "min-controversy",
						Usage: "Only items scoring at or above this value",
					},
					&cli.DurationFlag{
						Name:  "since",
						Usage: "Only items published within this window (e.g. 72h)",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   20,
					},
				},
			},
			{
				Name:   "recent",
				Usage:  "Show the most recently published items",
				Action: recentCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Restrict to one section",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   20,
					},
				},
			},
			{
				Name:   "top",
				Usage:  "Show the most controversial items of the window",
				Action: topCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.IntFlag{
						Name:  "days",
						Usage: "Window size in days",
						Value: 7,
					},
				},
			},
			{
				Name:   "trending",
				Usage:  "Show the most frequent keywords across the store",
				Action: trendingCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of keywords",
						Value:   20,
					},
				},
			},
			{
				Name:      "context",
				Usage:     "Semantic retrieval over the embedded corpus",
				ArgsUsage: "<query>",
				Action:    contextCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of nearest documents to return",
						Value:   5,
					},
					&cli.BoolFlag{
						Name:  "rebuild",
						Usage: "Re-embed the corpus from the store instead of restoring the snapshot",
					},
					&cli.IntFlag{
						Name:  "corpus-size",
						Usage: "How many recent items to embed when rebuilding",
						Value: 1000,
					},
				},
			},
			{
				Name:   "load-corpus",
				Usage:  "Embed recent stored items into the retrieval index",
				Action: loadCorpusCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "How many recent items to embed",
						Value:   1000,
					},
				},
			},
			{
				Name:   "purge",
				Usage:  "Remove items past the configured retention",
				Action: purgeCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openService(c *cli.Context) (*spicefeed.Service, error) {
	var cfg config.Config
	if path := c.String("config"); path != "" {
		cfg = config.LoadPath(path)
	} else {
		cfg = config.Load()
	}
	return spicefeed.NewService(cfg)
}

func fetchCommand(c *cli.Context) error {
	ctx := context.Background()

	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	result, err := svc.FetchAndStore(ctx)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	for name, report := range result.Report.Sources {
		line := fmt.Sprintf("%-20s %s", name, report.Status)
		if report.Err != "" {
			line += ": " + report.Err
		} else {
			line += fmt.Sprintf(" (%d items, %d dropped)", report.Items, report.Dropped)
		}
		fmt.Fprintln(os.Stderr, line)
	}
	fmt.Fprintf(os.Stderr, "\nFetched %d, inserted %d, updated %d, evicted %d, rejected %d\n",
		result.Fetched, result.Inserted, result.Updated, result.Evicted, len(result.Rejected))

	if c.Bool("purge") {
		removed, err := svc.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Purged %d items past retention\n", removed)
	}

	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return fmt.Errorf("a search query is required")
	}

	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	opts := spicefeed.SearchOptions{
		MinControversy: c.Int("min-controversy"),
		Limit:          c.Int("limit"),
	}
	if name := c.String("category"); name != "" {
		category := core.ParseCategory(name)
		opts.Category = &category
	}
	if window := c.Duration("since"); window > 0 {
		opts.Since = time.Now().UTC().Add(-window)
	}

	items, err := svc.SearchNews(context.Background(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	printItems(items)
	return nil
}

func recentCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	var category *core.Category
	if name := c.String("category"); name != "" {
		parsed := core.ParseCategory(name)
		category = &parsed
	}

	items, err := svc.Recent(context.Background(), category, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("recent failed: %w", err)
	}

	printItems(items)
	return nil
}

func topCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	items, err := svc.TopControversial(context.Background(), c.Int("limit"), c.Int("days"))
	if err != nil {
		return fmt.Errorf("top failed: %w", err)
	}

	printItems(items)
	return nil
}

func trendingCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	keywords, err := svc.TrendingKeywords(context.Background(), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("trending failed: %w", err)
	}

	for _, kc := range keywords {
		fmt.Printf("%4d  %s\n", kc.Count, kc.Keyword)
	}
	return nil
}

func contextCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return fmt.Errorf("a retrieval query is required")
	}

	ctx := context.Background()

	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	if c.Bool("rebuild") {
		if err := svc.LoadCorpusFromStore(ctx, c.Int("corpus-size")); err != nil {
			return fmt.Errorf("corpus rebuild failed: %w", err)
		}
	} else if err := svc.RestoreIndex(ctx); err != nil {
		if !errors.Is(err, retrieval.ErrNoSnapshot) {
			return fmt.Errorf("snapshot restore failed: %w", err)
		}
		// No snapshot yet, so embed the store once.
		if err := svc.LoadCorpusFromStore(ctx, c.Int("corpus-size")); err != nil {
			return fmt.Errorf("corpus load failed: %w", err)
		}
	}

	matches, err := svc.GetContext(ctx, query, c.Int("k"))
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	fmt.Printf("Found %d matches\n", len(matches))
	for i, match := range matches {
		title := match.Document.Text
		if idx := strings.IndexByte(title, '\n'); idx > 0 {
			title = title[:idx]
		}
		fmt.Printf("%d: '%s' (%d)[%0.3f]\n", i, title, match.Document.Id, match.Score)
	}
	return nil
}

func loadCorpusCommand(c *cli.Context) error {
	ctx := context.Background()

	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	// Pick up whatever snapshot exists so loading appends instead of
	// re-embedding the whole store.
	if err := svc.RestoreIndex(ctx); err != nil && !errors.Is(err, retrieval.ErrNoSnapshot) {
		return fmt.Errorf("snapshot restore failed: %w", err)
	}

	if err := svc.LoadCorpusFromStore(ctx, c.Int("limit")); err != nil {
		return fmt.Errorf("corpus load failed: %w", err)
	}
	return nil
}

func purgeCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return fmt.Errorf("failed to open service: %w", err)
	}
	defer svc.Close()

	removed, err := svc.Purge(context.Background())
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Purged %d items past retention\n", removed)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func printItems(items []*core.Item) {
	fmt.Printf("Found %d items\n", len(items))
	for i, item := range items {
		fmt.Printf("%d: [%s/%d] %s\n   %s (%s)\n",
			i, item.Category, item.ControversyScore, item.Title,
			item.Link, item.PublishedAt.Format(time.RFC3339))
	}
}
