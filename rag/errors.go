package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy in SPEC_FULL.md §7. Callers compare with
// errors.Is; BuildError.Unwrap exposes one of these as the underlying cause.
var (
	// ErrConfigurationMissing means the embedding or vision provider is
	// unconfigured. Recoverable by editing settings.
	ErrConfigurationMissing = errors.New("embedding model unconfigured")

	// ErrExtractionEmpty means every extracted page was blank.
	ErrExtractionEmpty = errors.New("no recognizable text — check OCR or file clarity")

	// ErrEmbeddingFailed means a chunk could not be embedded by any
	// configured backend; this is fatal to the current build.
	ErrEmbeddingFailed = errors.New("embedding failed for chunk")

	// ErrUnsupportedDocumentType means DocumentOther was passed to the
	// builder; the builder has no extraction strategy for it.
	ErrUnsupportedDocumentType = errors.New("unsupported document type")

	// ErrCancelled means the caller cancelled the build; no index file is
	// written and no Completed progress event is emitted.
	ErrCancelled = errors.New("build cancelled")

	// ErrDocumentNotFound means the document store has no descriptor for
	// the requested id.
	ErrDocumentNotFound = errors.New("document not found")
)

// BuildError carries the Stage at which a build failed alongside the
// underlying cause, so callers can construct a RagIndexProgress{Stage:
// Error} without re-deriving which stage failed.
type BuildError struct {
	Stage Stage
	Cause error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("rag: build failed at stage %s: %v", e.Stage, e.Cause)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

func newBuildError(stage Stage, cause error) *BuildError {
	return &BuildError{Stage: stage, Cause: cause}
}
