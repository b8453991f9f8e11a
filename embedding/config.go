// Package embedding resolves which of the local or remote embedding
// backends handles a given call, and carries the shared configuration and
// state types both backends and their callers need. It must not import
// package rag: rag depends on embedding, not the other way around.
package embedding

// Config is the remote embeddings endpoint configuration. It is valid only
// when every field is non-empty.
type Config struct {
	APIURL string
	APIKey string
	Model  string
}

// Valid reports whether every field required to make a remote embedding
// call is present.
func (c Config) Valid() bool {
	return c.APIURL != "" && c.APIKey != "" && c.Model != ""
}

// Policy selects how the resolver prefers local vs. remote embedding.
type Policy string

const (
	LocalPreferred Policy = "local_preferred"
	RemoteOnly     Policy = "remote_only"
)

// BackendState is the outcome of resolving a policy against device
// capability and configuration: which backend to try first, and with what
// local model path or remote config. It is owned by a single build or
// query, not shared globally, since per-call fallback mutates it in place.
type BackendState struct {
	UseLocal  bool
	ModelPath string

	RemoteConfig *Config
}
