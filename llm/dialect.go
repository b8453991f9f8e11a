package llm

import (
	"fmt"
	"net/http"
)

// dialect isolates the one part of a provider's wire format that differs
// from the others: how a request is addressed and authenticated, how its
// body is shaped, and how a decoded SSE frame's JSON payload yields a text
// delta. Mirrors the teacher's one-file-per-concern layout for provider
// wire adapters.
type dialect interface {
	endpoint(p Provider) string
	headers(p Provider) http.Header
	buildRequest(p Provider, systemPrompt string, history []Message, next Message) ([]byte, error)
	extractDelta(frame []byte) (delta string, ok bool)
}

func dialectFor(kind ProviderKind) (dialect, error) {
	switch kind {
	case ProviderOpenAIStyle, ProviderCustom:
		return openAIDialect{}, nil
	case ProviderAnthropic:
		return anthropicDialect{}, nil
	case ProviderDashScope:
		return dashScopeDialect{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
	}
}

// imageDataURL builds the "data:<mime>;base64,<b64>" URL shared by the
// OpenAIStyle and DashScope image encodings.
func imageDataURL(mimeType, base64Data string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64Data)
}
