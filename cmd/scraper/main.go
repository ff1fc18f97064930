package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/studyboard/program-scraper/internal/browser"
	"github.com/studyboard/program-scraper/internal/config"
	"github.com/studyboard/program-scraper/internal/models"
	"github.com/studyboard/program-scraper/internal/scraper"
	"github.com/studyboard/program-scraper/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scraper",
		Short: "Crawl study-abroad program catalogs",
	}

	root.AddCommand(newDestinationsCmd())
	root.AddCommand(newCrawlCmd())
	return root
}

func newDestinationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destinations",
		Short: "List discoverable study destinations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := mustSetup()

			discoverer := scraper.NewDestinationDiscoverer(cfg.Crawl.BaseURL, logger)
			destinations, err := discoverer.Discover(cmd.Context())
			if err != nil {
				return err
			}

			printDestinations(destinations)
			return nil
		},
	}
}

func newCrawlCmd() *cobra.Command {
	var (
		destination string
		limit       int
		output      string
		headful     bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl programs for a destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := mustSetup()
			if limit <= 0 {
				limit = cfg.Crawl.ProgramLimit
			}
			if headful {
				cfg.Browser.Headless = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b, err := browser.New(&browser.Options{
				Headless:       cfg.Browser.Headless,
				Timeout:        cfg.Browser.Timeout,
				ViewportWidth:  cfg.Browser.ViewportWidth,
				ViewportHeight: cfg.Browser.ViewportHeight,
				AcceptLanguage: cfg.Browser.AcceptLanguage,
				TimezoneID:     cfg.Browser.TimezoneID,
				Locale:         cfg.Browser.Locale,
			})
			if err != nil {
				return fmt.Errorf("start browser: %w", err)
			}
			defer b.Close()

			factory := func(_ context.Context) (scraper.Session, error) {
				s, err := b.NewSession()
				if err != nil {
					return nil, err
				}
				return s, nil
			}
			crawler := scraper.NewCrawler(cfg.Crawl.BaseURL, factory, logger).
				WithWaits(cfg.Crawl.SettleWait, cfg.Crawl.TransitionWait).
				WithRateLimit(cfg.Crawl.RateLimitMin, cfg.Crawl.RateLimitMax).
				WithCredentials(cfg.Crawl.Username, cfg.Crawl.Password)

			if destination == "" {
				destination, err = pickDestination(ctx, crawler)
				if err != nil {
					return err
				}
			}

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Suffix = fmt.Sprintf(" crawling %s (limit %d)...", destination, limit)
			s.Start()

			result, err := crawler.Crawl(ctx, destination, limit)
			s.Stop()
			if err != nil {
				return err
			}

			writer, err := storage.NewWriter(cfg.Crawl.OutputDir)
			if err != nil {
				return err
			}

			var path string
			if output != "" {
				path = output
				err = writer.WriteTo(output, result.SourceURL, result.Programs)
			} else {
				path, err = writer.WriteResults(result.Destination.Name, result.SourceURL, result.Programs)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Scraped %d programs for %s", len(result.Programs), result.Destination.Name)
			if result.Recoveries > 0 {
				fmt.Printf(" (%d session recoveries)", result.Recoveries)
			}
			fmt.Printf("\nResults written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&destination, "destination", "d", "", "destination to crawl (prompts when omitted)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum number of programs to scrape")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write results to this file instead of the output directory")
	cmd.Flags().BoolVar(&headful, "headful", false, "run the browser with a visible window")
	return cmd
}

func mustSetup() (*config.Config, *slog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	return cfg, logger
}

// pickDestination shows a numbered menu and reads the choice from stdin.
func pickDestination(ctx context.Context, crawler *scraper.Crawler) (string, error) {
	destinations, err := crawler.Destinations(ctx)
	if err != nil {
		return "", err
	}

	names := sortedNames(destinations)
	printDestinations(destinations)

	fmt.Printf("Select a destination [1-%d]: ", len(names))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read selection: %w", err)
	}

	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(names) {
		return "", fmt.Errorf("invalid selection %q", strings.TrimSpace(line))
	}

	return names[choice-1], nil
}

func printDestinations(destinations map[string]models.Destination) {
	names := sortedNames(destinations)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Destination", "URL"})
	for i, name := range names {
		t.AppendRow(table.Row{i + 1, name, destinations[name].ListingURL})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func sortedNames(destinations map[string]models.Destination) []string {
	names := make([]string, 0, len(destinations))
	for name := range destinations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
