// Package ocr recognizes text from a rendered document page by prompting a
// vision-capable chat-completion provider and awaiting its full response.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"math"
	"strings"

	"github.com/RealBSMC/KaoYanAssistant/llm"
	"github.com/RealBSMC/KaoYanAssistant/rag"
)

const (
	jpegQuality = 85

	minOutputTokens = 512
	minRecommended  = 256
)

const systemPromptTemplate = "You transcribe the text visible in a document page image. " +
	"Preserve paragraph structure exactly as it appears. Do not summarize, translate, or " +
	"add commentary. When you reach the end of a logical section, emit the literal marker " +
	rag.SectionEndSentinel + " alone on its own line, and nowhere else in your output."

// Step is the concrete implementation of rag.OCRStep: it satisfies
// Recognize(ctx, image.Image, label string, vision rag.ProviderConfig) string.
type Step struct{}

func NewStep() Step { return Step{} }

// Recognize implements rag.OCRStep. Failures are absorbed and logged; the
// caller receives "" rather than an error, matching the builder's
// per-page-tolerant extraction policy.
func (Step) Recognize(ctx context.Context, page image.Image, label string, vision rag.ProviderConfig) string {
	jpegBytes, err := encodeJPEG(page)
	if err != nil {
		slog.Warn("ocr: failed to encode page image", "label", label, "error", err)
		return ""
	}
	imageBase64 := base64.StdEncoding.EncodeToString(jpegBytes)

	maxOutputTokens := vision.MaxContextTokens
	if maxOutputTokens < minOutputTokens {
		maxOutputTokens = minOutputTokens
	}
	recommendedTokens := int(math.Floor(float64(maxOutputTokens) * 0.7))
	if recommendedTokens < minRecommended {
		recommendedTokens = minRecommended
	}

	client := llm.NewClient()
	client.SetSystemPrompt(systemPromptTemplate)

	prompt := fmt.Sprintf(
		"Transcribe the text in this image (%s). Aim for no more than roughly %d tokens of output; "+
			"the hard output budget is %d tokens.",
		label, recommendedTokens, maxOutputTokens,
	)

	provider := llm.Provider{
		Kind:             llm.ProviderKind(vision.Kind),
		APIURL:           vision.APIURL,
		APIKey:           vision.APIKey,
		Model:            vision.Model,
		MaxContextTokens: vision.MaxContextTokens,
		Enabled:          vision.Enabled,
	}

	message := llm.Message{
		Role:          llm.RoleUser,
		Content:       prompt,
		ImageBase64:   imageBase64,
		ImageMimeType: "image/jpeg",
	}

	if err := client.SendMessage(ctx, message, nil, provider); err != nil {
		slog.Warn("ocr: failed to start recognition request", "label", label, "error", err)
		return ""
	}

	return awaitTerminal(ctx, client, label)
}

func awaitTerminal(ctx context.Context, client *llm.Client, label string) string {
	for {
		select {
		case <-ctx.Done():
			client.CancelRequest()
			slog.Warn("ocr: cancelled awaiting recognition", "label", label)
			return ""
		case state := <-client.Updates():
			switch state.Kind {
			case llm.StateSuccess:
				return strings.TrimSpace(state.Full)
			case llm.StateError:
				slog.Warn("ocr: recognition failed", "label", label, "error", state.Message)
				return ""
			}
		}
	}
}

func encodeJPEG(img image.Image) ([]byte, error) {
	resized := resizeLongEdge(img)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
