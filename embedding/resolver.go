package embedding

import "context"

// minPhysicalMemoryBytes is the §4.2 capability gate: 8 GiB.
const minPhysicalMemoryBytes = 8 * 1024 * 1024 * 1024

// queryInstructionPrefix is prepended to query text (never chunk text)
// before embedding, per §4.7.
const queryInstructionPrefix = "Instruct: Given a web search query, retrieve relevant passages that answer the query\nQuery:"

// CapabilityProbe reports the device-capability gates that decide whether
// the local embedding engine may be used at all. Structurally identical to
// rag.CapabilityProbe; declared independently here so this package never
// imports rag.
type CapabilityProbe interface {
	NativeLoaded() bool
	Is64BitARM() bool
	PhysicalMemoryBytes() (uint64, error)
}

// LocalEngine is the local embedding backend contract (§4.2).
type LocalEngine interface {
	IsAvailable() bool
	// EnsureModelMaterialized copies the embedded model asset to a local
	// file on first use and returns its path.
	EnsureModelMaterialized(ctx context.Context) (string, error)
	// Embed returns (vector, true) on success, (nil, false) on any of the
	// local failure modes in §4.2 — it never returns an error, since every
	// failure here is recoverable by falling back to remote.
	Embed(ctx context.Context, modelPath, text string) ([]float64, bool)
}

// RemoteClient is the remote embedding backend contract (§4.3). Like
// LocalEngine, failure is communicated by the boolean, not an error.
type RemoteClient interface {
	Embed(ctx context.Context, text string, config Config) ([]float64, bool)
}

// Resolver implements the backend decision rule and per-call fallback of
// §4.7. It holds no per-build mutable state of its own: BackendState is
// produced by Resolve and then owned and mutated by the caller across the
// lifetime of one build or one search.
type Resolver struct {
	local  LocalEngine
	remote RemoteClient
	probe  CapabilityProbe
}

func NewResolver(local LocalEngine, remote RemoteClient, probe CapabilityProbe) *Resolver {
	return &Resolver{local: local, remote: remote, probe: probe}
}

func (r *Resolver) localAvailable() bool {
	if r.local == nil || r.probe == nil || !r.local.IsAvailable() {
		return false
	}
	if !r.probe.NativeLoaded() || !r.probe.Is64BitARM() {
		return false
	}
	mem, err := r.probe.PhysicalMemoryBytes()
	return err == nil && mem >= minPhysicalMemoryBytes
}

// Resolve applies the §4.7 decision rule once, at the start of a build or a
// search. The returned BackendState belongs to the caller: EmbedChunk and
// EmbedQuery below mutate it in place on local failure.
func (r *Resolver) Resolve(ctx context.Context, policy Policy, remote Config) (BackendState, error) {
	var state BackendState
	if remote.Valid() {
		cfg := remote
		state.RemoteConfig = &cfg
	}

	if policy == LocalPreferred && r.localAvailable() {
		if path, err := r.local.EnsureModelMaterialized(ctx); err == nil {
			state.UseLocal = true
			state.ModelPath = path
		}
	}

	if !state.UseLocal && state.RemoteConfig == nil {
		return BackendState{}, ErrUnconfigured
	}
	return state, nil
}

// EmbedChunk embeds verbatim chunk text, trying local first when
// state.UseLocal is set and permanently falling back to remote (by
// mutating state) on a local failure within this call.
func (r *Resolver) EmbedChunk(ctx context.Context, state *BackendState, text string) ([]float64, error) {
	return r.embed(ctx, state, text)
}

// EmbedQuery embeds query text, applying the query-side instruction prefix
// before delegating to the same per-call fallback as EmbedChunk.
func (r *Resolver) EmbedQuery(ctx context.Context, state *BackendState, query string) ([]float64, error) {
	return r.embed(ctx, state, queryInstructionPrefix+query)
}

func (r *Resolver) embed(ctx context.Context, state *BackendState, text string) ([]float64, error) {
	if state.UseLocal {
		if v, ok := r.local.Embed(ctx, state.ModelPath, text); ok {
			return v, nil
		}
		// Permanent for the remainder of this build/search, per §4.7.
		state.UseLocal = false
	}
	if state.RemoteConfig == nil {
		return nil, ErrEmbeddingFailed
	}
	if v, ok := r.remote.Embed(ctx, text, *state.RemoteConfig); ok {
		return v, nil
	}
	return nil, ErrEmbeddingFailed
}
