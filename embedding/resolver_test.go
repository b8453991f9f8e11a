package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	native bool
	arm64  bool
	memory uint64
}

func (p fakeProbe) NativeLoaded() bool                 { return p.native }
func (p fakeProbe) Is64BitARM() bool                    { return p.arm64 }
func (p fakeProbe) PhysicalMemoryBytes() (uint64, error) { return p.memory, nil }

type fakeLocal struct {
	available bool
	modelPath string
	fail      map[string]bool // text -> force a miss
	calls     []string
}

func (l *fakeLocal) IsAvailable() bool { return l.available }

func (l *fakeLocal) EnsureModelMaterialized(ctx context.Context) (string, error) {
	return l.modelPath, nil
}

func (l *fakeLocal) Embed(ctx context.Context, modelPath, text string) ([]float64, bool) {
	l.calls = append(l.calls, text)
	if l.fail[text] {
		return nil, false
	}
	return []float64{1, 0}, true
}

type fakeRemote struct {
	fail  bool
	calls []string
}

func (r *fakeRemote) Embed(ctx context.Context, text string, config Config) ([]float64, bool) {
	r.calls = append(r.calls, text)
	if r.fail {
		return nil, false
	}
	return []float64{0, 1}, true
}

func validRemoteConfig() Config {
	return Config{APIURL: "https://example.test", APIKey: "key", Model: "model"}
}

func TestResolver_RemoteOnlyNeverUsesLocal(t *testing.T) {
	local := &fakeLocal{available: true, modelPath: "/models/m.gguf"}
	remote := &fakeRemote{}
	probe := fakeProbe{native: true, arm64: true, memory: 16 * 1024 * 1024 * 1024}

	r := NewResolver(local, remote, probe)
	state, err := r.Resolve(context.Background(), RemoteOnly, validRemoteConfig())
	require.NoError(t, err)
	require.False(t, state.UseLocal)

	_, err = r.EmbedChunk(context.Background(), &state, "hello")
	require.NoError(t, err)
	require.Empty(t, local.calls)
	require.Len(t, remote.calls, 1)
}

func TestResolver_LocalPreferredUsesLocalWhenAvailable(t *testing.T) {
	local := &fakeLocal{available: true, modelPath: "/models/m.gguf"}
	remote := &fakeRemote{}
	probe := fakeProbe{native: true, arm64: true, memory: 16 * 1024 * 1024 * 1024}

	r := NewResolver(local, remote, probe)
	state, err := r.Resolve(context.Background(), LocalPreferred, validRemoteConfig())
	require.NoError(t, err)
	require.True(t, state.UseLocal)

	_, err = r.EmbedChunk(context.Background(), &state, "hello")
	require.NoError(t, err)
	require.Len(t, local.calls, 1)
	require.Empty(t, remote.calls)
}

func TestResolver_PermanentFallbackAfterLocalMiss(t *testing.T) {
	local := &fakeLocal{available: true, modelPath: "/models/m.gguf", fail: map[string]bool{"c2": true}}
	remote := &fakeRemote{}
	probe := fakeProbe{native: true, arm64: true, memory: 16 * 1024 * 1024 * 1024}

	r := NewResolver(local, remote, probe)
	state, err := r.Resolve(context.Background(), LocalPreferred, validRemoteConfig())
	require.NoError(t, err)

	for _, text := range []string{"c0", "c1", "c2", "c3", "c4"} {
		_, err := r.EmbedChunk(context.Background(), &state, text)
		require.NoError(t, err)
	}

	// c0, c1 tried locally and succeeded; c2 tried locally, missed, fell
	// back to remote; c3, c4 never try local again.
	require.Equal(t, []string{"c0", "c1", "c2"}, local.calls)
	require.Equal(t, []string{"c2", "c3", "c4"}, remote.calls)
	require.False(t, state.UseLocal)
}

func TestResolver_CapabilityGateRejectsNonARM(t *testing.T) {
	local := &fakeLocal{available: true, modelPath: "/models/m.gguf"}
	remote := &fakeRemote{}
	probe := fakeProbe{native: true, arm64: false, memory: 16 * 1024 * 1024 * 1024}

	r := NewResolver(local, remote, probe)
	state, err := r.Resolve(context.Background(), LocalPreferred, validRemoteConfig())
	require.NoError(t, err)
	require.False(t, state.UseLocal)
}

func TestResolver_UnconfiguredWhenNeitherBackendUsable(t *testing.T) {
	local := &fakeLocal{available: false}
	remote := &fakeRemote{}
	probe := fakeProbe{}

	r := NewResolver(local, remote, probe)
	_, err := r.Resolve(context.Background(), LocalPreferred, Config{})
	require.ErrorIs(t, err, ErrUnconfigured)
}

func TestResolver_QueryPrefixAppliedOnlyToQueries(t *testing.T) {
	local := &fakeLocal{available: false}
	remote := &fakeRemote{}
	probe := fakeProbe{}

	r := NewResolver(local, remote, probe)
	state, err := r.Resolve(context.Background(), RemoteOnly, validRemoteConfig())
	require.NoError(t, err)

	_, err = r.EmbedQuery(context.Background(), &state, "what is a limit?")
	require.NoError(t, err)
	require.Contains(t, remote.calls[0], "Instruct: Given a web search query")
	require.Contains(t, remote.calls[0], "what is a limit?")

	_, err = r.EmbedChunk(context.Background(), &state, "chunk verbatim text")
	require.NoError(t, err)
	require.Equal(t, "chunk verbatim text", remote.calls[1])
}
