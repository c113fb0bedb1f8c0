package examgen

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// OpenAIConfig holds provider settings shared by the embedding, generation,
// validation, and image-analysis clients.
type OpenAIConfig struct {
	APIKey             string  `toml:"api_key"`
	LLMModel           string  `toml:"llm_model"`
	EmbeddingModel     string  `toml:"embedding_model"`
	EmbeddingDimension int     `toml:"embedding_dimension"`
	Temperature        float32 `toml:"temperature"`
	MaxTokens          int     `toml:"max_tokens"`
}

// GenerationConfig bounds the regeneration loop and the batch scheduler.
type GenerationConfig struct {
	MaxRegenerationAttempts       int `toml:"max_regeneration_attempts"`
	ValidationConfidenceThreshold int `toml:"validation_confidence_threshold"`
	QualityHistorySize            int `toml:"quality_history_size"`
	DefaultMaxConcurrent          int `toml:"default_max_concurrent"`
}

// RetrievalParams is one row of the per-difficulty retrieval table: how many
// neighbors to request and how many chunks end up in the prompt.
type RetrievalParams struct {
	K           int `toml:"k"`
	ChunksToUse int `toml:"chunks_to_use"`
}

// RetrievalConfig is the per-difficulty retrieval table. Harder tiers search
// wider and feed more chunks to the model.
type RetrievalConfig struct {
	Intermediate RetrievalParams `toml:"intermediate"`
	Advanced     RetrievalParams `toml:"advanced"`
	Complex      RetrievalParams `toml:"complex"`
}

// Params returns the table row for the given difficulty, falling back to the
// intermediate tier for unknown values.
func (rc RetrievalConfig) Params(d Difficulty) RetrievalParams {
	switch d {
	case DifficultyAdvanced:
		return rc.Advanced
	case DifficultyComplex:
		return rc.Complex
	default:
		return rc.Intermediate
	}
}

// UniquenessConfig carries the duplicate-detection thresholds and the cache
// window that bounds duplicate-detection I/O.
type UniquenessConfig struct {
	TextSimilarityThreshold float64 `toml:"text_similarity_threshold"`
	TermOverlapThreshold    float64 `toml:"term_overlap_threshold"`
	CacheTTLSeconds         int     `toml:"cache_ttl_seconds"`
}

// IngestConfig controls chapter chunking and embedding batches.
type IngestConfig struct {
	ChunkSize          int `toml:"chunk_size"`
	ChunkOverlap       int `toml:"chunk_overlap"`
	EmbeddingBatchSize int `toml:"embedding_batch_size"`
}

// PathsConfig locates the on-disk artifacts.
type PathsConfig struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Config is the full runtime configuration.
type Config struct {
	OpenAI     OpenAIConfig     `toml:"openai"`
	Generation GenerationConfig `toml:"generation"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
	Uniqueness UniquenessConfig `toml:"uniqueness"`
	Ingest     IngestConfig     `toml:"ingest"`
	Paths      PathsConfig      `toml:"paths"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		OpenAI: OpenAIConfig{
			LLMModel:           "gpt-4o",
			EmbeddingModel:     "text-embedding-3-large",
			EmbeddingDimension: 3072,
			Temperature:        0.7,
			MaxTokens:          4096,
		},
		Generation: GenerationConfig{
			MaxRegenerationAttempts:       2,
			ValidationConfidenceThreshold: 80,
			QualityHistorySize:            10,
			DefaultMaxConcurrent:          3,
		},
		Retrieval: RetrievalConfig{
			Intermediate: RetrievalParams{K: 8, ChunksToUse: 3},
			Advanced:     RetrievalParams{K: 10, ChunksToUse: 4},
			Complex:      RetrievalParams{K: 12, ChunksToUse: 5},
		},
		Uniqueness: UniquenessConfig{
			TextSimilarityThreshold: 0.55,
			TermOverlapThreshold:    0.70,
			CacheTTLSeconds:         30,
		},
		Ingest: IngestConfig{
			ChunkSize:          1000,
			ChunkOverlap:       200,
			EmbeddingBatchSize: 100,
		},
		Paths: PathsConfig{
			DataDir: "./data",
			LogDir:  "./log",
		},
	}
}

// LoadConfig reads a TOML config file over the defaults. An empty path or a
// missing file yields the defaults. OPENAI_API_KEY in the environment always
// overrides the file.
func LoadConfig(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}

	return cfg, nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return fmt.Errorf("openai.api_key is required (set OPENAI_API_KEY or edit the config file)")
	}
	if c.OpenAI.EmbeddingDimension <= 0 {
		return fmt.Errorf("openai.embedding_dimension must be positive, got %d", c.OpenAI.EmbeddingDimension)
	}
	if c.Generation.MaxRegenerationAttempts < 1 {
		return fmt.Errorf("generation.max_regeneration_attempts must be at least 1, got %d", c.Generation.MaxRegenerationAttempts)
	}
	if c.Generation.ValidationConfidenceThreshold < 0 || c.Generation.ValidationConfidenceThreshold > 100 {
		return fmt.Errorf("generation.validation_confidence_threshold must be 0-100, got %d", c.Generation.ValidationConfidenceThreshold)
	}
	if c.Generation.QualityHistorySize < 1 {
		return fmt.Errorf("generation.quality_history_size must be at least 1, got %d", c.Generation.QualityHistorySize)
	}
	if c.Generation.DefaultMaxConcurrent < 1 {
		return fmt.Errorf("generation.default_max_concurrent must be at least 1, got %d", c.Generation.DefaultMaxConcurrent)
	}
	if t := c.Uniqueness.TextSimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("uniqueness.text_similarity_threshold must be in (0,1], got %v", t)
	}
	if t := c.Uniqueness.TermOverlapThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("uniqueness.term_overlap_threshold must be in (0,1], got %v", t)
	}
	if c.Uniqueness.CacheTTLSeconds < 0 {
		return fmt.Errorf("uniqueness.cache_ttl_seconds must not be negative, got %d", c.Uniqueness.CacheTTLSeconds)
	}
	for _, row := range []struct {
		name   string
		params RetrievalParams
	}{
		{"intermediate", c.Retrieval.Intermediate},
		{"advanced", c.Retrieval.Advanced},
		{"complex", c.Retrieval.Complex},
	} {
		if row.params.K < 1 || row.params.ChunksToUse < 1 {
			return fmt.Errorf("retrieval.%s: k and chunks_to_use must be at least 1", row.name)
		}
		if row.params.ChunksToUse > row.params.K {
			return fmt.Errorf("retrieval.%s: chunks_to_use (%d) cannot exceed k (%d)", row.name, row.params.ChunksToUse, row.params.K)
		}
	}
	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("ingest.chunk_size must be at least 1, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.EmbeddingBatchSize < 1 {
		return fmt.Errorf("ingest.embedding_batch_size must be at least 1, got %d", c.Ingest.EmbeddingBatchSize)
	}
	return nil
}

// ParseDifficulty converts user input into a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "intermediate":
		return DifficultyIntermediate, nil
	case "advanced":
		return DifficultyAdvanced, nil
	case "complex":
		return DifficultyComplex, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q (expected intermediate, advanced, or complex)", s)
	}
}
