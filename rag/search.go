package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// SearchEngineConfig collects SearchEngine's collaborators.
type SearchEngineConfig struct {
	Settings SettingsProvider
	Index    *IndexStore
	Resolver EmbeddingResolver
}

func (c *SearchEngineConfig) validate() error {
	if c == nil {
		return fmt.Errorf("search engine config is required")
	}
	if c.Settings == nil {
		return fmt.Errorf("search engine config: settings provider is required")
	}
	if c.Index == nil {
		return fmt.Errorf("search engine config: index store is required")
	}
	if c.Resolver == nil {
		return fmt.Errorf("search engine config: embedding resolver is required")
	}
	return nil
}

// SearchEngine implements C10: embed a query, load named document indexes
// concurrently, score every chunk by cosine similarity, return the top-K.
type SearchEngine struct {
	config *SearchEngineConfig
}

func NewSearchEngine(config *SearchEngineConfig) (*SearchEngine, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &SearchEngine{config: config}, nil
}

type docChunks struct {
	docID  string
	chunks []RagChunk
}

// Search returns at most topK matches ordered by descending score, ties
// broken by (docID, ordinal) ascending. A blank query or empty docIDs
// yields an empty, non-error result, per spec §4.10 step 1.
func (s *SearchEngine) Search(ctx context.Context, query string, docIDs []string, topK int) ([]RagMatch, error) {
	if strings.TrimSpace(query) == "" || len(docIDs) == 0 || topK <= 0 {
		return nil, nil
	}

	policy := s.config.Settings.EmbeddingMode(ctx)
	remoteConfig := s.config.Settings.EmbeddingConfig(ctx)
	state, err := s.config.Resolver.Resolve(ctx, policy, remoteConfig)
	if err != nil {
		slog.Warn("search: embedding backend unresolved", "error", err)
		return nil, nil
	}

	queryVector, err := s.config.Resolver.EmbedQuery(ctx, &state, query)
	if err != nil {
		slog.Warn("search: query embedding failed", "error", err)
		return nil, nil
	}

	loaded := make([]docChunks, len(docIDs))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, docID := range docIDs {
		i, docID := i, docID
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			file, ok := s.config.Index.Load(docID)
			if !ok {
				return nil
			}
			loaded[i] = docChunks{docID: docID, chunks: file.Chunks}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	type scoredChunk struct {
		match   RagMatch
		docID   string
		ordinal int
	}
	var all []scoredChunk
	for _, dc := range loaded {
		for ordinal, chunk := range dc.chunks {
			all = append(all, scoredChunk{
				match:   RagMatch{Chunk: chunk, Score: cosineSimilarity(queryVector, chunk.Vector)},
				docID:   dc.docID,
				ordinal: ordinal,
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].match.Score != all[j].match.Score {
			return all[i].match.Score > all[j].match.Score
		}
		if all[i].docID != all[j].docID {
			return all[i].docID < all[j].docID
		}
		return all[i].ordinal < all[j].ordinal
	})

	if topK < len(all) {
		all = all[:topK]
	}
	matches := make([]RagMatch, len(all))
	for i, sc := range all {
		matches[i] = sc.match
	}
	return matches, nil
}

// cosineSimilarity treats missing positions (mismatched lengths) as zero.
// A zero-norm vector on either side scores 0.
func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, v := range a {
		normA += v * v
	}
	for _, v := range b {
		normB += v * v
	}
	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}
