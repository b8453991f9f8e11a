package llm

import (
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

type dashScopeDialect struct{}

func (dashScopeDialect) endpoint(p Provider) string {
	return p.APIURL
}

func (dashScopeDialect) headers(p Provider) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+p.APIKey)
	h.Set("X-DashScope-SSE", "enable")
	h.Set("Content-Type", "application/json")
	return h
}

func (dashScopeDialect) buildRequest(p Provider, systemPrompt string, history []Message, next Message) ([]byte, error) {
	all := append(prependSystem(systemPrompt, history), next)

	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "model", p.Model); err != nil {
		return nil, err
	}

	messages := []byte(`[]`)
	for i, m := range all {
		obj, err := textImageMessageJSON(m, func(url string) ([]byte, error) {
			return sjson.SetBytes([]byte(`{"type":"image"}`), "image", url)
		})
		if err != nil {
			return nil, err
		}
		if messages, err = sjson.SetRawBytes(messages, strconv.Itoa(i), obj); err != nil {
			return nil, err
		}
	}

	if body, err = sjson.SetRawBytes(body, "input.messages", messages); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "parameters.result_format", "message"); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "parameters.incremental_output", true); err != nil {
		return nil, err
	}
	return body, nil
}

func (dashScopeDialect) extractDelta(frame []byte) (string, bool) {
	result := gjson.GetBytes(frame, "output.choices.0.message.content")
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}
