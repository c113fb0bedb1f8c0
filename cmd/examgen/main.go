package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"examgen"
)

func main() {
	var (
		configPath  = flag.String("config", "examgen.toml", "Path to TOML config file")
		chapterID   = flag.Int("chapter", 0, "Chapter ID to generate questions for (required)")
		count       = flag.Int("count", 5, "Number of questions to generate")
		difficulty  = flag.String("difficulty", "intermediate", "Difficulty level (intermediate, advanced, complex)")
		withImages  = flag.Bool("images", false, "Include chapter figures in generation")
		concurrency = flag.Int("concurrency", 0, "Max concurrent pipeline instances (default: from config)")
		verbose     = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	examgen.SetVerbose(*verbose)

	if *chapterID <= 0 {
		log.Fatal("Chapter ID is required. Use -chapter flag (run chapterindex first to ingest a chapter).")
	}
	if *count < 1 {
		log.Fatal("Count must be at least 1.")
	}

	cfg, err := examgen.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	diff, err := examgen.ParseDifficulty(*difficulty)
	if err != nil {
		log.Fatal(err)
	}

	maxConcurrent := cfg.Generation.DefaultMaxConcurrent
	if *concurrency > 0 {
		maxConcurrent = *concurrency
	}

	store, err := examgen.OpenStore(filepath.Join(cfg.Paths.DataDir, "examgen.db"))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	chapter, err := store.ChapterByID(*chapterID)
	if err != nil {
		log.Fatalf("Failed to look up chapter: %v", err)
	}
	if chapter == nil {
		log.Fatalf("Chapter %d not found. Run chapterindex first to ingest it.", *chapterID)
	}

	index, err := examgen.LoadVectorIndex(filepath.Join(cfg.Paths.DataDir, "index.gob"))
	if err != nil {
		log.Fatalf("Failed to load vector index: %v", err)
	}

	runLogger, err := examgen.NewRunLogger(cfg.Paths.LogDir, *chapterID, diff, *count)
	if err != nil {
		log.Printf("Warning: run logging disabled: %v", err)
	}
	defer runLogger.Close()

	if *verbose {
		stats := index.Stats()
		log.Printf("Chapter: %s (id %d), index: %d vectors, dim %d", chapter.Name, chapter.ID, stats.TotalVectors, stats.Dimension)
		log.Printf("Generating %d %s questions, max %d concurrent", *count, diff, maxConcurrent)
	}

	pipeline := examgen.NewQuestionPipeline(cfg, store, index, runLogger)
	scheduler := examgen.NewBatchScheduler(pipeline)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	start := time.Now()
	result := scheduler.Run(ctx, examgen.BatchRequest{
		ChapterID:     *chapterID,
		Difficulty:    diff,
		Count:         *count,
		IncludeImages: *withImages,
		MaxConcurrent: maxConcurrent,
	})
	elapsed := time.Since(start)

	printSummary(result, *count, elapsed)

	if len(result.Questions) == 0 {
		os.Exit(1)
	}
}

func printSummary(result examgen.BatchResult, requested int, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Difficulty", "Confidence", "Question"})
	for _, q := range result.Questions {
		t.AppendRow(table.Row{q.ID, q.Difficulty, q.ConfidenceScore, shorten(q.Question, 70)})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d/%d generated, %d failed in %s",
		len(result.Questions), requested, result.Failed, elapsed.Round(time.Second))})
	t.Render()
}

func shorten(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
