package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mediagrab/pkg/auth"
	"mediagrab/pkg/config"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/scraper"
)

var (
	crawlPlatform     string
	crawlCookie       string
	crawlCookieFile   string
	crawlOutput       string
	crawlTemplate     string
	crawlConcurrency  int
	crawlMediaTypes   []string
	crawlStartDate    string
	crawlEndDate      string
	crawlBlockedWords []string
	crawlStateDir     string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [handle]",
	Short: "Crawl a creator's timeline and download its media",
	Long: `Crawl a creator's media timeline page by page, persist the crawl state
after every page, and download all selected media into the output
directory.

Re-running the same crawl resumes from the persisted cursor and skips
files that already exist, so interrupted runs lose nothing.`,
	Example: `  # Crawl an X timeline with cookies from a file
  mediagrab crawl --platform x --cookie-file cookies.txt someuser

  # Only videos from 2024, four workers
  mediagrab crawl --media-types video --start-date 2024-01-01 --end-date 2024-12-31 --concurrency 4 someuser

  # Custom layout
  mediagrab crawl --template '{Username}/{TweetTime:2006/01}/{TweetId} {MediaIndex}{MediaExtension}' someuser`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&crawlPlatform, "platform", "", "platform to crawl (x, justforfans)")
	crawlCmd.Flags().StringVar(&crawlCookie, "cookie", "", "session cookie header")
	crawlCmd.Flags().StringVar(&crawlCookieFile, "cookie-file", "", "file containing the session cookie header")
	crawlCmd.Flags().StringVarP(&crawlOutput, "output", "o", "", "output directory for downloads")
	crawlCmd.Flags().StringVarP(&crawlTemplate, "template", "t", "", "path template for downloaded files")
	crawlCmd.Flags().IntVar(&crawlConcurrency, "concurrency", 0, "number of concurrent downloads")
	crawlCmd.Flags().StringSliceVar(&crawlMediaTypes, "media-types", nil, "media types to download (image, video, gif)")
	crawlCmd.Flags().StringVar(&crawlStartDate, "start-date", "", "only posts created on or after this date")
	crawlCmd.Flags().StringVar(&crawlEndDate, "end-date", "", "only posts created on or before this date")
	crawlCmd.Flags().StringSliceVar(&crawlBlockedWords, "blocked-words", nil, "skip posts whose text contains any of these terms")
	crawlCmd.Flags().StringVar(&crawlStateDir, "state-dir", "", "directory for resume-state files")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	handle := strings.TrimSpace(args[0])

	flags := map[string]interface{}{
		"platform":      crawlPlatform,
		"cookie":        crawlCookie,
		"cookie-file":   crawlCookieFile,
		"output":        crawlOutput,
		"template":      crawlTemplate,
		"concurrency":   crawlConcurrency,
		"media-types":   crawlMediaTypes,
		"start-date":    crawlStartDate,
		"end-date":      crawlEndDate,
		"blocked-words": crawlBlockedWords,
		"state-dir":     crawlStateDir,
		"log-level":     logLevel,
	}

	// No cookie from flags or environment: fall back to the credential
	// store before config validation rejects the run.
	if crawlCookie == "" && crawlCookieFile == "" &&
		os.Getenv("MEDIAGRAB_COOKIE") == "" && os.Getenv("MEDIAGRAB_COOKIE_FILE") == "" {
		if account := storedAccount(effectivePlatform()); account != nil {
			flags["cookie"] = account.CookieHeader
			if account.UserAgent != "" {
				os.Setenv("MEDIAGRAB_USER_AGENT", account.UserAgent)
			}
		}
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	logger.GetLogger().WithField("version", version).Info("mediagrab starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := scraper.New(cfg)
	if err != nil {
		return err
	}

	summary, err := s.Run(ctx, handle)

	fmt.Println()
	fmt.Printf("Downloaded:       %d\n", summary.Downloaded())
	fmt.Printf("Skipped existing: %d\n", summary.SkippedExisting())
	fmt.Printf("Skipped filtered: %d\n", summary.SkippedFiltered())
	fmt.Printf("Failed:           %d\n", summary.Failed())

	if errors.Is(err, context.Canceled) {
		fmt.Println("\nCancelled. Re-run to resume from the saved state.")
		return nil
	}
	return err
}

// effectivePlatform resolves the platform before full config loading, for
// the credential-store lookup.
func effectivePlatform() string {
	if crawlPlatform != "" {
		return crawlPlatform
	}
	if env := os.Getenv("MEDIAGRAB_PLATFORM"); env != "" {
		return env
	}
	return config.DefaultConfig().Platform.Name
}

func storedAccount(platform string) *auth.Account {
	manager, err := auth.NewManager()
	if err != nil {
		return nil
	}
	account, err := manager.Retrieve(platform)
	if err != nil {
		return nil
	}
	return account
}
