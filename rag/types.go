// Package rag implements the retrieval-augmented-generation indexing and
// search subsystem: chunking OCR'd or plain-text pages into overlapping
// windows, embedding them through a pluggable backend, persisting the
// result as a per-document index file, and scoring chunks against a query
// by cosine similarity.
package rag

// DocumentType classifies a DocumentDescriptor for the purpose of picking an
// extraction strategy in the index builder.
type DocumentType string

const (
	DocumentPlainText DocumentType = "plain_text"
	DocumentMarkdown  DocumentType = "markdown"
	DocumentPDF       DocumentType = "pdf"
	DocumentImage     DocumentType = "image"
	DocumentOther     DocumentType = "other"
)

// DocumentDescriptor is the external, immutable-during-a-build description
// of a study document supplied by the host's document store.
type DocumentDescriptor struct {
	ID   string
	Path string
	Type DocumentType
	Name string
}

// PageText is produced by the extraction step of the index builder.
// PageNumber is present for PDF pages and absent (nil) for whole-file text.
type PageText struct {
	PageNumber      *int
	Text            string
	EstimatedTokens int
}

// SectionText is a sentinel-delimited region of a document, the unit the
// chunker consumes. PageStart <= PageEnd when both are present.
type SectionText struct {
	Text      string
	PageStart *int
	PageEnd   *int
}

// RagChunk is a bounded text segment, individually embedded, that a search
// query is scored against.
type RagChunk struct {
	ID        string    `json:"id"`
	DocID     string    `json:"docId"`
	Text      string    `json:"text"`
	PageStart *int      `json:"pageStart,omitempty"`
	PageEnd   *int      `json:"pageEnd,omitempty"`
	Vector    []float64 `json:"vector"`
}

// IndexFileVersion is the only schema version this package knows how to
// read. Loaders must reject any other value explicitly rather than
// silently misinterpret a newer or older file.
const IndexFileVersion = 1

// RagIndexFile is the persisted, per-document index.
type RagIndexFile struct {
	Version       int        `json:"version"`
	DocID         string     `json:"docId"`
	TokenEstimate int        `json:"tokenEstimate"`
	Chunks        []RagChunk `json:"chunks"`
}

// Stage names a point in the index build state machine.
type Stage string

const (
	StagePreparing   Stage = "preparing"
	StageOcr         Stage = "ocr"
	StageChunking    Stage = "chunking"
	StageVectorizing Stage = "vectorizing"
	StageSaving      Stage = "saving"
	StageCompleted   Stage = "completed"
	StageError       Stage = "error"
)

// RagIndexProgress is emitted synchronously from the builder's goroutine at
// every stage transition and per-unit advance within a stage.
type RagIndexProgress struct {
	Stage           Stage
	Current         int
	Total           int
	Message         string
	ProcessedTokens int
	EstimatedTokens int
}

// RagIndexResult summarizes a successful build.
type RagIndexResult struct {
	DocumentID      string
	ChunkCount      int
	EstimatedTokens int
}

// RagMatch is one scored chunk returned by Search.
type RagMatch struct {
	Chunk RagChunk
	Score float64
}

// ProgressFunc is invoked synchronously from the builder's own goroutine;
// implementations must be cheap, since it may be called hundreds of times
// per build.
type ProgressFunc func(RagIndexProgress)
