package embedding

import "errors"

// ErrUnconfigured means neither the local engine nor a remote config is
// usable; callers surface this as "embedding model unconfigured".
var ErrUnconfigured = errors.New("embedding model unconfigured")

// ErrEmbeddingFailed means every available backend rejected the call for
// one piece of text (chunk or query).
var ErrEmbeddingFailed = errors.New("embedding failed")
