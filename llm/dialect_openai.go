package llm

import (
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// openAIDialect covers both the OpenAIStyle and Custom provider kinds,
// which share an identical wire format.
type openAIDialect struct{}

func (openAIDialect) endpoint(p Provider) string {
	return p.APIURL + "/chat/completions"
}

func (openAIDialect) headers(p Provider) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+p.APIKey)
	h.Set("Content-Type", "application/json")
	return h
}

func (openAIDialect) buildRequest(p Provider, systemPrompt string, history []Message, next Message) ([]byte, error) {
	all := append(prependSystem(systemPrompt, history), next)

	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "model", p.Model); err != nil {
		return nil, err
	}

	messages := []byte(`[]`)
	for i, m := range all {
		obj, err := textImageMessageJSON(m, func(url string) ([]byte, error) {
			return sjson.SetBytes([]byte(`{"type":"image_url","image_url":{}}`), "image_url.url", url)
		})
		if err != nil {
			return nil, err
		}
		if messages, err = sjson.SetRawBytes(messages, strconv.Itoa(i), obj); err != nil {
			return nil, err
		}
	}

	if body, err = sjson.SetRawBytes(body, "messages", messages); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "stream", true); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "max_tokens", 4096); err != nil {
		return nil, err
	}
	return body, nil
}

func (openAIDialect) extractDelta(frame []byte) (string, bool) {
	result := gjson.GetBytes(frame, "choices.0.delta.content")
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}

// prependSystem returns history with a leading System message when
// systemPrompt is non-empty, for dialects that carry system as a regular
// message rather than a top-level field.
func prependSystem(systemPrompt string, history []Message) []Message {
	if systemPrompt == "" {
		return append([]Message{}, history...)
	}
	out := make([]Message, 0, len(history)+1)
	out = append(out, Message{Role: RoleSystem, Content: systemPrompt})
	return append(out, history...)
}

// textImageMessageJSON builds one {role, content} message object. content
// is a plain string for text-only messages, or a mixed array when an
// image is attached; buildImage constructs the provider's image element
// from a "data:<mime>;base64,<b64>" URL.
func textImageMessageJSON(m Message, buildImage func(url string) ([]byte, error)) ([]byte, error) {
	obj := []byte(`{}`)
	var err error
	if obj, err = sjson.SetBytes(obj, "role", string(m.Role)); err != nil {
		return nil, err
	}

	if m.ImageBase64 == "" {
		if obj, err = sjson.SetBytes(obj, "content", m.Content); err != nil {
			return nil, err
		}
		return obj, nil
	}

	content := []byte(`[]`)
	idx := 0
	if m.Content != "" {
		textObj, err := sjson.SetBytes([]byte(`{"type":"text"}`), "text", m.Content)
		if err != nil {
			return nil, err
		}
		if content, err = sjson.SetRawBytes(content, strconv.Itoa(idx), textObj); err != nil {
			return nil, err
		}
		idx++
	}

	imgObj, err := buildImage(imageDataURL(m.ImageMimeType, m.ImageBase64))
	if err != nil {
		return nil, err
	}
	if content, err = sjson.SetRawBytes(content, strconv.Itoa(idx), imgObj); err != nil {
		return nil, err
	}

	if obj, err = sjson.SetRawBytes(obj, "content", content); err != nil {
		return nil, err
	}
	return obj, nil
}
