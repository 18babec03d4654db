package ai

import (
	"context"

	"github.com/poiesic/spicefeed/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Classifier analyzes a news story and assigns editorial metadata.
// Implementations must be thread-safe for concurrent use.
type Classifier interface {
	// Classify analyzes the given title and summary and returns the story's
	// section, a controversy score, and the keywords that characterize it.
	// Returns an error if classification fails; callers are expected to fall
	// back to heuristic enrichment in that case.
	Classify(ctx context.Context, title, summary string) (*Classification, error)
}

// Classification is the result of analyzing a single news story.
type Classification struct {
	// Category is the section the story belongs to.
	Category core.Category

	// ControversyScore rates how divisive the story is, 0-100.
	ControversyScore int

	// Keywords are normalized tokens characterizing the story,
	// lowercase, most salient first.
	Keywords []string
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Classifier instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Classifier returns the story classification service.
	// The returned Classifier is safe for concurrent use.
	Classifier() Classifier

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
