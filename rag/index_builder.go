package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/RealBSMC/KaoYanAssistant/tokenest"
)

// BuilderConfig collects Builder's collaborators. Grounded on the
// teacher's ai/rag/pipeline.go Config/validate()/New shape.
type BuilderConfig struct {
	Settings SettingsProvider
	Store    DocumentStore
	Index    *IndexStore
	Resolver EmbeddingResolver
	OCR      OCRStep

	// Chunker is optional; NewBuilder constructs a default one
	// (maxChars=800, overlap=120) when nil.
	Chunker *Chunker
}

func (c *BuilderConfig) validate() error {
	if c == nil {
		return fmt.Errorf("builder config is required")
	}
	if c.Settings == nil {
		return fmt.Errorf("builder config: settings provider is required")
	}
	if c.Store == nil {
		return fmt.Errorf("builder config: document store is required")
	}
	if c.Index == nil {
		return fmt.Errorf("builder config: index store is required")
	}
	if c.Resolver == nil {
		return fmt.Errorf("builder config: embedding resolver is required")
	}
	if c.OCR == nil {
		return fmt.Errorf("builder config: OCR step is required")
	}
	if c.Chunker == nil {
		chunker, err := NewChunker(nil)
		if err != nil {
			return err
		}
		c.Chunker = chunker
	}
	return nil
}

// Builder runs the five-stage index build pipeline of spec §4.8: prepare,
// extract (OCR where applicable), chunk, vectorize, save.
type Builder struct {
	config    *BuilderConfig
	extractor *extractor
}

func NewBuilder(config *BuilderConfig) (*Builder, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Builder{config: config, extractor: newExtractor(config.OCR)}, nil
}

// BuildIndex orchestrates one document build. onProgress is invoked
// synchronously from this goroutine at every stage transition and
// per-unit advance; it must be cheap.
func (b *Builder) BuildIndex(ctx context.Context, docID string, onProgress ProgressFunc) (RagIndexResult, error) {
	emit := func(p RagIndexProgress) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	fail := func(stage Stage, cause error) (RagIndexResult, error) {
		be := newBuildError(stage, cause)
		emit(RagIndexProgress{Stage: StageError, Message: be.Error()})
		return RagIndexResult{}, be
	}

	// Stage 1: Preparing.
	emit(RagIndexProgress{Stage: StagePreparing, Message: "准备中"})

	if err := ctx.Err(); err != nil {
		return RagIndexResult{}, newBuildError(StagePreparing, fmt.Errorf("%w: %v", ErrCancelled, err))
	}

	doc, ok := b.config.Store.GetDocument(ctx, docID)
	if !ok {
		return fail(StagePreparing, fmt.Errorf("%w: %s", ErrDocumentNotFound, docID))
	}

	policy := b.config.Settings.EmbeddingMode(ctx)
	remoteConfig := b.config.Settings.EmbeddingConfig(ctx)
	state, err := b.config.Resolver.Resolve(ctx, policy, remoteConfig)
	if err != nil {
		return fail(StagePreparing, fmt.Errorf("%w: %v", ErrConfigurationMissing, err))
	}

	// Stage 2: Extraction (OCR for PDF/Image, plain read for text).
	vision := b.config.Settings.MultimodalVisionProvider(ctx)
	ocrTokens := 0
	pages, err := b.extractor.Extract(ctx, doc, vision, func(current, total, tokensSoFar int) {
		ocrTokens = tokensSoFar
		emit(RagIndexProgress{
			Stage:           StageOcr,
			Current:         current,
			Total:           total,
			Message:         fmt.Sprintf("OCR uploading page %d/%d", current, total),
			ProcessedTokens: tokensSoFar,
		})
	})
	if err != nil {
		return fail(StageOcr, err)
	}

	if allPagesBlank(pages) {
		return fail(StageOcr, ErrExtractionEmpty)
	}

	// Stage 3: Chunking.
	emit(RagIndexProgress{Stage: StageChunking, Message: "分段中"})
	if err := ctx.Err(); err != nil {
		return RagIndexResult{}, newBuildError(StageChunking, fmt.Errorf("%w: %v", ErrCancelled, err))
	}

	chunks := b.config.Chunker.ChunkAll(docID, pages)
	embeddingTokens := 0
	for _, chunk := range chunks {
		embeddingTokens += tokenest.Estimate(chunk.Text)
	}
	totalTokens := ocrTokens + embeddingTokens

	// Stage 4: Vectorizing, strictly in ascending ordinal order.
	emit(RagIndexProgress{Stage: StageVectorizing, Current: 0, Total: len(chunks), EstimatedTokens: totalTokens})
	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return RagIndexResult{}, newBuildError(StageVectorizing, fmt.Errorf("%w: %v", ErrCancelled, err))
		}

		label := "全文"
		if chunks[i].PageStart != nil {
			label = fmt.Sprintf("第%d页", *chunks[i].PageStart)
		}
		emit(RagIndexProgress{
			Stage:           StageVectorizing,
			Current:         i,
			Total:           len(chunks),
			Message:         label,
			EstimatedTokens: totalTokens,
		})

		vector, err := b.config.Resolver.EmbedChunk(ctx, &state, chunks[i].Text)
		if err != nil {
			return fail(StageVectorizing, fmt.Errorf("%w: %s: %v", ErrEmbeddingFailed, chunks[i].ID, err))
		}
		chunks[i].Vector = vector
	}
	emit(RagIndexProgress{Stage: StageVectorizing, Current: len(chunks), Total: len(chunks), EstimatedTokens: totalTokens})

	// Stage 5: Saving.
	emit(RagIndexProgress{Stage: StageSaving, Message: "保存中"})
	file := &RagIndexFile{
		Version:       IndexFileVersion,
		DocID:         docID,
		TokenEstimate: totalTokens,
		Chunks:        chunks,
	}
	if err := b.config.Index.Save(docID, file); err != nil {
		return fail(StageSaving, err)
	}

	emit(RagIndexProgress{Stage: StageCompleted, Message: "完成", Current: len(chunks), Total: len(chunks), EstimatedTokens: totalTokens})
	return RagIndexResult{DocumentID: docID, ChunkCount: len(chunks), EstimatedTokens: totalTokens}, nil
}

// IsIndexed reports whether docID already has a saved index file.
func (b *Builder) IsIndexed(docID string) bool {
	return b.config.Index.Exists(docID)
}

// RemoveIndex deletes docID's index file, if any.
func (b *Builder) RemoveIndex(docID string) error {
	return b.config.Index.Remove(docID)
}

func allPagesBlank(pages []PageText) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}
