package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"examgen"
)

func main() {
	var (
		configPath = flag.String("config", "examgen.toml", "Path to TOML config file")
		name       = flag.String("name", "", "Chapter name (required)")
		sourceFile = flag.String("file", "", "Extracted chapter text file, form feed between pages (required)")
		imagesDir  = flag.String("images", "", "Directory of chapter figures named page-<n>.png (optional)")
		verbose    = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	examgen.SetVerbose(*verbose)

	if *name == "" || *sourceFile == "" {
		log.Fatal("Both -name and -file are required.")
	}

	cfg, err := examgen.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	text, err := os.ReadFile(*sourceFile)
	if err != nil {
		log.Fatalf("Failed to read chapter text: %v", err)
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	store, err := examgen.OpenStore(filepath.Join(cfg.Paths.DataDir, "examgen.db"))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	indexPath := filepath.Join(cfg.Paths.DataDir, "index.gob")
	index, err := examgen.LoadVectorIndex(indexPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("Failed to load vector index: %v", err)
		}
		index = examgen.NewVectorIndex(cfg.OpenAI.EmbeddingDimension)
	}

	chapter, err := store.AppendChapter(examgen.ChapterRecord{
		Name:       *name,
		SourceFile: *sourceFile,
	})
	if err != nil {
		log.Fatalf("Failed to register chapter: %v", err)
	}

	pages := examgen.SplitPages(string(text))
	chunks := examgen.ChunkPages(pages, chapter.ID, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if len(chunks) == 0 {
		log.Fatalf("Chapter text produced no chunks: %s", *sourceFile)
	}

	if *verbose {
		log.Printf("Chapter %d (%s): %d pages, %d chunks", chapter.ID, chapter.Name, len(pages), len(chunks))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	client := openai.NewClient(cfg.OpenAI.APIKey)
	embedder := examgen.NewEmbeddingClient(client, cfg.OpenAI.EmbeddingModel, cfg.Ingest.EmbeddingBatchSize)

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		log.Fatalf("Failed to embed chunks: %v", err)
	}

	if err := index.Add(vectors, chunks); err != nil {
		log.Fatalf("Failed to index chunks: %v", err)
	}
	if err := index.Save(indexPath); err != nil {
		log.Fatalf("Failed to save vector index: %v", err)
	}
	if err := store.SetChapterChunkCount(chapter.ID, len(chunks)); err != nil {
		log.Fatalf("Failed to update chapter record: %v", err)
	}

	if *imagesDir != "" {
		n, err := registerImages(store, chapter.ID, *imagesDir)
		if err != nil {
			log.Fatalf("Failed to register images: %v", err)
		}
		log.Printf("Registered %d images from %s", n, *imagesDir)
	}

	stats := index.Stats()
	log.Printf("Indexed chapter %d: %d chunks (index now holds %d vectors)", chapter.ID, len(chunks), stats.TotalVectors)
}

// registerImages records every page-<n>.<ext> file in dir as a figure for
// the chapter. Files that don't follow the naming convention are skipped.
func registerImages(store *examgen.Store, chapterID int, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		page, ok := pageFromFilename(entry.Name())
		if !ok {
			examgen.VerboseLog("Skipping image with unrecognized name: %s", entry.Name())
			continue
		}
		_, err := store.AppendImage(examgen.ImageRecord{
			ChapterID:  chapterID,
			PageNumber: page,
			Path:       filepath.Join(dir, entry.Name()),
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func pageFromFilename(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(base, "page-") {
		return 0, false
	}
	page := 0
	for _, r := range base[len("page-"):] {
		if r < '0' || r > '9' {
			return 0, false
		}
		page = page*10 + int(r-'0')
	}
	if page == 0 {
		return 0, false
	}
	return page, true
}
