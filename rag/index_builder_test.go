package rag

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RealBSMC/KaoYanAssistant/embedding"
)

func writeOnePixelPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

type fakeDocumentStore struct {
	docs map[string]*DocumentDescriptor
}

func (s fakeDocumentStore) GetDocument(ctx context.Context, id string) (*DocumentDescriptor, bool) {
	d, ok := s.docs[id]
	return d, ok
}

type fakeOCR struct {
	text string
}

func (o fakeOCR) Recognize(ctx context.Context, page image.Image, label string, vision ProviderConfig) string {
	return o.text
}

type fakeBuilderResolver struct {
	failResolve   bool
	failEmbedding bool
	nextCoord     float64
}

func (r *fakeBuilderResolver) Resolve(ctx context.Context, policy embedding.Policy, remote embedding.Config) (embedding.BackendState, error) {
	if r.failResolve {
		return embedding.BackendState{}, embedding.ErrUnconfigured
	}
	cfg := remote
	return embedding.BackendState{RemoteConfig: &cfg}, nil
}

func (r *fakeBuilderResolver) EmbedChunk(ctx context.Context, state *embedding.BackendState, text string) ([]float64, error) {
	if r.failEmbedding {
		return nil, embedding.ErrEmbeddingFailed
	}
	r.nextCoord++
	return []float64{r.nextCoord, 0}, nil
}

func (r *fakeBuilderResolver) EmbedQuery(ctx context.Context, state *embedding.BackendState, query string) ([]float64, error) {
	return r.EmbedChunk(ctx, state, query)
}

func writeTempTextFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func newTestBuilder(t *testing.T, doc *DocumentDescriptor, ocrText string, resolver *fakeBuilderResolver, settings stubSettings) (*Builder, *IndexStore) {
	t.Helper()
	store, err := NewIndexStore(t.TempDir())
	require.NoError(t, err)

	builder, err := NewBuilder(&BuilderConfig{
		Settings: settings,
		Store:    fakeDocumentStore{docs: map[string]*DocumentDescriptor{doc.ID: doc}},
		Index:    store,
		Resolver: resolver,
		OCR:      fakeOCR{text: ocrText},
	})
	require.NoError(t, err)
	return builder, store
}

func TestBuilder_PlainTextRemoteBackend(t *testing.T) {
	text := "This is paragraph one.\n\nThis is paragraph two."
	path := writeTempTextFile(t, text)
	doc := &DocumentDescriptor{ID: "doc1", Path: path, Type: DocumentPlainText, Name: "doc1.txt"}

	resolver := &fakeBuilderResolver{}
	settings := stubSettings{policy: embedding.RemoteOnly, remote: validRemoteConfig()}
	builder, store := newTestBuilder(t, doc, "", resolver, settings)

	var stages []Stage
	result, err := builder.BuildIndex(context.Background(), "doc1", func(p RagIndexProgress) {
		stages = append(stages, p.Stage)
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.ChunkCount)
	require.Equal(t, "doc1", result.DocumentID)
	require.Contains(t, stages, StagePreparing)
	require.Contains(t, stages, StageChunking)
	require.Contains(t, stages, StageVectorizing)
	require.Contains(t, stages, StageSaving)
	require.Contains(t, stages, StageCompleted)
	require.NotContains(t, stages, StageError)

	loaded, ok := store.Load("doc1")
	require.True(t, ok)
	require.Len(t, loaded.Chunks, 1)
	require.Len(t, loaded.Chunks[0].Vector, 2)
}

func TestBuilder_ExtractionEmptyAborts(t *testing.T) {
	doc := &DocumentDescriptor{ID: "doc1", Path: "unused.png", Type: DocumentImage, Name: "doc1"}
	// Provide a real, decodable 1x1 image on disk since extractImage
	// decodes the file before invoking OCR.
	path := filepath.Join(t.TempDir(), "doc1.png")
	writeOnePixelPNG(t, path)
	doc.Path = path

	resolver := &fakeBuilderResolver{}
	settings := stubSettings{policy: embedding.RemoteOnly, remote: validRemoteConfig()}
	builder, store := newTestBuilder(t, doc, "", resolver, settings) // OCR returns ""

	var sawError bool
	_, err := builder.BuildIndex(context.Background(), "doc1", func(p RagIndexProgress) {
		if p.Stage == StageError {
			sawError = true
		}
	})
	require.Error(t, err)
	require.True(t, sawError)
	require.False(t, store.Exists("doc1"))
}

func TestBuilder_EmbeddingFailureAbortsBuild(t *testing.T) {
	path := writeTempTextFile(t, "some short text")
	doc := &DocumentDescriptor{ID: "doc1", Path: path, Type: DocumentPlainText, Name: "doc1.txt"}

	resolver := &fakeBuilderResolver{failEmbedding: true}
	settings := stubSettings{policy: embedding.RemoteOnly, remote: validRemoteConfig()}
	builder, store := newTestBuilder(t, doc, "", resolver, settings)

	_, err := builder.BuildIndex(context.Background(), "doc1", nil)
	require.Error(t, err)
	require.False(t, store.Exists("doc1"))
}

func TestBuilder_UnresolvedEmbeddingBackend(t *testing.T) {
	path := writeTempTextFile(t, "some short text")
	doc := &DocumentDescriptor{ID: "doc1", Path: path, Type: DocumentPlainText, Name: "doc1.txt"}

	resolver := &fakeBuilderResolver{failResolve: true}
	settings := stubSettings{}
	builder, store := newTestBuilder(t, doc, "", resolver, settings)

	_, err := builder.BuildIndex(context.Background(), "doc1", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConfigurationMissing)
	require.False(t, store.Exists("doc1"))
}

func TestBuilder_DocumentNotFound(t *testing.T) {
	resolver := &fakeBuilderResolver{}
	settings := stubSettings{policy: embedding.RemoteOnly, remote: validRemoteConfig()}
	store, err := NewIndexStore(t.TempDir())
	require.NoError(t, err)
	builder, err := NewBuilder(&BuilderConfig{
		Settings: settings,
		Store:    fakeDocumentStore{docs: map[string]*DocumentDescriptor{}},
		Index:    store,
		Resolver: resolver,
		OCR:      fakeOCR{},
	})
	require.NoError(t, err)

	_, err = builder.BuildIndex(context.Background(), "missing", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestBuilder_CancellationWritesNoFile(t *testing.T) {
	path := writeTempTextFile(t, "some short text")
	doc := &DocumentDescriptor{ID: "doc1", Path: path, Type: DocumentPlainText, Name: "doc1.txt"}

	resolver := &fakeBuilderResolver{}
	settings := stubSettings{policy: embedding.RemoteOnly, remote: validRemoteConfig()}
	builder, store := newTestBuilder(t, doc, "", resolver, settings)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := builder.BuildIndex(ctx, "doc1", nil)
	require.Error(t, err)
	require.False(t, store.Exists("doc1"))
}
