package llm

import (
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type anthropicDialect struct{}

func (anthropicDialect) endpoint(p Provider) string {
	return p.APIURL + "/messages"
}

func (anthropicDialect) headers(p Provider) http.Header {
	h := http.Header{}
	h.Set("x-api-key", p.APIKey)
	h.Set("anthropic-version", "2023-06-01")
	h.Set("Content-Type", "application/json")
	return h
}

func (anthropicDialect) buildRequest(p Provider, systemPrompt string, history []Message, next Message) ([]byte, error) {
	all := append(append([]Message{}, history...), next)

	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "model", p.Model); err != nil {
		return nil, err
	}
	if systemPrompt != "" {
		if body, err = sjson.SetBytes(body, "system", systemPrompt); err != nil {
			return nil, err
		}
	}

	messages := []byte(`[]`)
	idx := 0
	for _, m := range all {
		if m.Role == RoleSystem {
			continue
		}
		obj, err := anthropicMessageJSON(m)
		if err != nil {
			return nil, err
		}
		if messages, err = sjson.SetRawBytes(messages, strconv.Itoa(idx), obj); err != nil {
			return nil, err
		}
		idx++
	}

	if body, err = sjson.SetRawBytes(body, "messages", messages); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "max_tokens", 4096); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "stream", true); err != nil {
		return nil, err
	}
	return body, nil
}

// anthropicMessageJSON places the image element before the text element,
// the reverse order of the OpenAIStyle and DashScope dialects.
func anthropicMessageJSON(m Message) ([]byte, error) {
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
	imgObj := []byte(`{"type":"image","source":{"type":"base64"}}`)
	if imgObj, err = sjson.SetBytes(imgObj, "source.media_type", m.ImageMimeType); err != nil {
		return nil, err
	}
	if imgObj, err = sjson.SetBytes(imgObj, "source.data", m.ImageBase64); err != nil {
		return nil, err
	}
	if content, err = sjson.SetRawBytes(content, "0", imgObj); err != nil {
		return nil, err
	}

	if m.Content != "" {
		textObj, err := sjson.SetBytes([]byte(`{"type":"text"}`), "text", m.Content)
		if err != nil {
			return nil, err
		}
		if content, err = sjson.SetRawBytes(content, "1", textObj); err != nil {
			return nil, err
		}
	}

	if obj, err = sjson.SetRawBytes(obj, "content", content); err != nil {
		return nil, err
	}
	return obj, nil
}

func (anthropicDialect) extractDelta(frame []byte) (string, bool) {
	if gjson.GetBytes(frame, "type").String() != "content_block_delta" {
		return "", false
	}
	delta := gjson.GetBytes(frame, "delta.text")
	if !delta.Exists() {
		return "", false
	}
	return delta.String(), true
}
