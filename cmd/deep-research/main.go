package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/deepresearch"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/spf13/cobra"
)

var (
	query     string
	breadth   int
	depth     int
	outputDir string
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based deep research agent",
		Long:  `deep-research is an autonomous agent that researches a topic by recursively planning search queries, reading the results and following up on open questions.`,
		Run: func(cmd *cobra.Command, args []string) {

			if !cmd.Flags().Changed("query") {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)

				fmt.Print("Enter research topic: ")
				input, _ := reader.ReadString('\n')
				query = strings.TrimSpace(input)
			}
			if query == "" {
				fmt.Fprintln(os.Stderr, "research topic cannot be empty")
				os.Exit(1)
			}

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "failed to create output dir: %v\n", err)
				os.Exit(1)
			}

			// Log to console and to the research log artifact
			logFile, err := os.Create(filepath.Join(outputDir, "research_log.txt"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to create log file: %v\n", err)
				os.Exit(1)
			}
			defer logFile.Close()

			logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), nil))
			slog.SetDefault(logger)

			ctx := context.Background()

			model, err := clients.GoogleAi(ctx, cfg.GoogleApiKey, cfg.ReasoningModel)
			if err != nil {
				logger.Error("Failed to init model", "error", err)
				os.Exit(1)
			}

			var fetcher search.Fetcher
			if cfg.SearchProvider == "arxiv" {
				fetcher = search.NewArxivClient()
			} else {
				fetcher = search.NewFirecrawlClient(cfg.FirecrawlURL, cfg.FirecrawlKey)
			}

			engine := deepresearch.New(
				deepresearch.NewLLMPlanner(model),
				fetcher,
				deepresearch.NewLLMExtractor(model),
				deepresearch.Settings{
					Concurrency:    cfg.ConcurrencyLimit,
					FetchTimeout:   cfg.FetchTimeout,
					ExtractTimeout: cfg.ExtractTimeout,
					ContextSize:    cfg.ContextSize,
				},
			)
			engine.Logger = logger
			engine.OnProgress = func(p deepresearch.Progress) {
				fmt.Printf("\rProgress: %d/%d queries (depth %d/%d)", p.CompletedQueries, p.TotalQueries, p.TotalDepth-p.CurrentDepth, p.TotalDepth)
			}

			logger.Info("Starting research", "query", query, "breadth", breadth, "depth", depth)

			result, err := engine.Run(ctx, query, breadth, depth, nil, nil)
			if err != nil {
				logger.Error("Research failed", "error", err)
				os.Exit(1)
			}
			fmt.Println()
			logger.Info("Research finished", "learnings", len(result.Learnings), "urls", len(result.VisitedURLs))

			report, err := deepresearch.WriteFinalReport(ctx, model, result)
			if err != nil {
				logger.Error("Report generation failed", "error", err)
				os.Exit(1)
			}
			reportPath := filepath.Join(outputDir, "report.md")
			if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
				logger.Error("Failed to write report", "error", err)
				os.Exit(1)
			}
			logger.Info("Report written", "path", reportPath)

			plan, err := deepresearch.WriteActionPlan(ctx, model, result)
			if err != nil {
				logger.Error("Action plan generation failed", "error", err)
				return
			}
			planJSON, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				logger.Error("Failed to marshal action plan", "error", err)
				return
			}
			planPath := filepath.Join(outputDir, "action_plan.json")
			if err := os.WriteFile(planPath, planJSON, 0o644); err != nil {
				logger.Error("Failed to write action plan", "error", err)
				return
			}
			logger.Info("Action plan written", "path", planPath)
		},
	}

	rootCmd.Flags().StringVarP(&query, "query", "q", "", "The research topic")
	rootCmd.Flags().IntVar(&breadth, "breadth", cfg.DefaultBreadth, "Number of search queries per level")
	rootCmd.Flags().IntVar(&depth, "depth", cfg.DefaultDepth, "Recursion depth")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for report and log artifacts")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command execution failed: %v\n", err)
		os.Exit(1)
	}
}
