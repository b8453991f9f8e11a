// Package local implements C2: a safe wrapper over a GGUF-format
// transformer model reached through a non-cgo FFI boundary, producing
// L2-normalized sentence embeddings of fixed width.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/ebitengine/purego"
)

// AssetReader resolves the embedded model asset's bytes the first time the
// model must be materialized to a local file (spec §9, "native model
// binding" — "copying from an embedded asset to a local file on first
// use").
type AssetReader interface {
	ReadAsset(name string) ([]byte, error)
}

// EngineConfig collects Engine's dependencies and tunables.
type EngineConfig struct {
	Assets        AssetReader
	LocalDir      string
	ModelFileName string

	// ContextTokens bounds how many tokens of input the model will
	// consider; longer input is truncated on the right. Optional,
	// defaults to 2048.
	ContextTokens int32
}

func (c *EngineConfig) validate() error {
	if c == nil {
		return fmt.Errorf("local engine config is required")
	}
	if c.LocalDir == "" || c.ModelFileName == "" {
		return fmt.Errorf("local engine config: localDir and modelFileName are required")
	}
	if c.ContextTokens == 0 {
		c.ContextTokens = 2048
	}
	return nil
}

// Engine loads at most one GGUF model handle at a time; switching model
// paths atomically releases the current handle before loading the new one.
// Calls serialize on mu, matching spec §4.2's "calls serialize on an
// internal mutex; concurrent calls execute sequentially".
type Engine struct {
	config *EngineConfig

	mu          sync.Mutex
	loadedPath  string
	modelHandle uintptr
}

func NewEngine(config *EngineConfig) (*Engine, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Engine{config: config}, nil
}

// IsAvailable reports whether the native shared object loaded
// successfully. It does not evaluate the device-class or memory gates —
// those are the capability probe's job, composed by embedding.Resolver.
func (e *Engine) IsAvailable() bool {
	_, err := loadNativeLib()
	return err == nil
}

// EnsureModelMaterialized copies the embedded model asset to localDir on
// first use and returns the resulting path; subsequent calls are no-ops
// once the file exists.
func (e *Engine) EnsureModelMaterialized(ctx context.Context) (string, error) {
	path := filepath.Join(e.config.LocalDir, e.config.ModelFileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if e.config.Assets == nil {
		return "", fmt.Errorf("local engine: no embedded asset source configured")
	}

	data, err := e.config.Assets.ReadAsset(e.config.ModelFileName)
	if err != nil {
		return "", fmt.Errorf("local engine: read embedded model asset: %w", err)
	}
	if err := os.MkdirAll(e.config.LocalDir, 0o755); err != nil {
		return "", fmt.Errorf("local engine: create model dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("local engine: write model asset: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("local engine: finalize model file: %w", err)
	}
	return path, nil
}

// Embed runs one forward pass with last-token pooling and returns an
// L2-normalized vector, or (nil, false) on any failure mode in §4.2. It
// never panics across the FFI boundary and logs once per failure.
func (e *Engine) Embed(ctx context.Context, modelPath, text string) ([]float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lib, err := loadNativeLib()
	if err != nil {
		slog.Warn("local embedding: native library unavailable", "error", err)
		return nil, false
	}

	if e.loadedPath != modelPath {
		e.releaseLocked(lib)
		handle := lib.loadModel(modelPath, e.config.ContextTokens)
		if handle == 0 {
			slog.Warn("local embedding: model load failed", "path", modelPath)
			return nil, false
		}
		e.modelHandle = handle
		e.loadedPath = modelPath
	}

	tokenCount := lib.tokenize(e.modelHandle, text, e.config.ContextTokens)
	if tokenCount <= 0 {
		slog.Warn("local embedding: tokenizer produced no tokens")
		return nil, false
	}

	dim := lib.embeddingDim(e.modelHandle)
	if dim <= 0 {
		slog.Warn("local embedding: model reports non-positive embedding dimension")
		return nil, false
	}

	out := make([]float64, dim)
	if got := lib.embedRun(e.modelHandle, text, &out[0], dim); got <= 0 {
		slog.Warn("local embedding: decode failed")
		return nil, false
	}

	return l2Normalize(out), true
}

// Close releases the currently loaded model handle, if any. The engine
// remains usable afterward; the next Embed call reloads on demand.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lib, err := loadNativeLib(); err == nil {
		e.releaseLocked(lib)
	}
}

func (e *Engine) releaseLocked(lib *nativeLib) {
	if e.modelHandle != 0 {
		lib.freeModel(e.modelHandle)
		e.modelHandle = 0
		e.loadedPath = ""
	}
}

// l2Normalize returns v / ||v||2, or v unchanged when the norm is zero.
func l2Normalize(v []float64) []float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += x * x
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// nativeLib is the bound function table over the libllama-compatible
// shared object, resolved once per process via purego — no cgo involved.
type nativeLib struct {
	loadModel    func(path string, nCtx int32) uintptr
	freeModel    func(model uintptr)
	tokenize     func(model uintptr, text string, maxTokens int32) int32
	embeddingDim func(model uintptr) int32
	embedRun     func(model uintptr, text string, out *float64, dim int32) int32
}

var (
	globalLib     *nativeLib
	globalLibOnce sync.Once
	globalLibErr  error
)

// loadNativeLib dlopens the shared object exactly once per process
// (idempotent, per spec §9's "global backend initialization must be
// one-shot") and registers the embedding function table against it.
func loadNativeLib() (*nativeLib, error) {
	globalLibOnce.Do(func() {
		path := libraryFileName()
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			globalLibErr = fmt.Errorf("local engine: dlopen %s: %w", path, err)
			return
		}

		lib := &nativeLib{}
		purego.RegisterLibFunc(&lib.loadModel, handle, "kya_embed_load_model")
		purego.RegisterLibFunc(&lib.freeModel, handle, "kya_embed_free_model")
		purego.RegisterLibFunc(&lib.tokenize, handle, "kya_embed_tokenize")
		purego.RegisterLibFunc(&lib.embeddingDim, handle, "kya_embed_dimension")
		purego.RegisterLibFunc(&lib.embedRun, handle, "kya_embed_run")
		globalLib = lib
	})
	return globalLib, globalLibErr
}

func libraryFileName() string {
	if override := os.Getenv("KYA_EMBED_LIBRARY_PATH"); override != "" {
		return override
	}
	switch {
	case fileExists("/usr/local/lib/libkya_embed.dylib"):
		return "/usr/local/lib/libkya_embed.dylib"
	case fileExists("/usr/local/lib/libkya_embed.so"):
		return "/usr/local/lib/libkya_embed.so"
	default:
		return "libkya_embed.so"
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
