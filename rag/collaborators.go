package rag

import (
	"context"
	"image"

	"github.com/RealBSMC/KaoYanAssistant/embedding"
)

// ProviderKind tags a chat-completion wire dialect.
type ProviderKind string

const (
	ProviderOpenAIStyle ProviderKind = "openai_style"
	ProviderAnthropic   ProviderKind = "anthropic"
	ProviderDashScope   ProviderKind = "dashscope"
	ProviderCustom      ProviderKind = "custom"
)

// ProviderConfig is the configuration for one chat-completion provider,
// identified by Kind.
type ProviderConfig struct {
	Kind             ProviderKind
	APIURL           string
	APIKey           string
	Model            string
	MaxContextTokens int
	Enabled          bool
}

// SettingsProvider is consumed, never owned: it is the host's key/value
// settings store, reduced to exactly the fields the RAG core reads.
type SettingsProvider interface {
	EmbeddingMode(ctx context.Context) embedding.Policy
	EmbeddingConfig(ctx context.Context) embedding.Config
	MultimodalVisionProvider(ctx context.Context) ProviderConfig
}

// DocumentStore is consumed, never owned: it resolves a document id to the
// descriptor the builder needs to locate and classify the source file.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*DocumentDescriptor, bool)
}

// CapabilityProbe reports host device capability gates used to decide
// whether the local embedding engine may be used at all.
type CapabilityProbe interface {
	// NativeLoaded reports whether the local inference implementation
	// successfully loaded into the process.
	NativeLoaded() bool
	// Is64BitARM reports whether the device CPU is a 64-bit ARM class.
	Is64BitARM() bool
	// PhysicalMemoryBytes reports total physical memory.
	PhysicalMemoryBytes() (uint64, error)
}

// OCRStep performs C5 on one rendered page bitmap: recognize returns the
// trimmed recognized text on success and "" on failure, having already
// logged the failure — OCR failures are absorbed per page, never
// propagated to the builder as an error.
type OCRStep interface {
	Recognize(ctx context.Context, page image.Image, label string, vision ProviderConfig) string
}

// EmbeddingResolver is the cut of *embedding.Resolver the builder and the
// search engine need. *embedding.Resolver satisfies this directly.
type EmbeddingResolver interface {
	Resolve(ctx context.Context, policy embedding.Policy, remote embedding.Config) (embedding.BackendState, error)
	EmbedChunk(ctx context.Context, state *embedding.BackendState, text string) ([]float64, error)
	EmbedQuery(ctx context.Context, state *embedding.BackendState, query string) ([]float64, error)
}
