package rag

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"

	"github.com/RealBSMC/KaoYanAssistant/tokenest"
)

// MaxTextChars bounds a plain-text or Markdown read; excess is truncated
// with a warning, per spec §4.8 step 2.
const MaxTextChars = 1_000_000

// pageProgress reports one completed page during PDF/image extraction:
// current and total page ordinals (1-based, total=1 for a single image)
// and the cumulative OCR token estimate so far.
type pageProgress func(current, total, tokensSoFar int)

// extractor implements step 2 of the index builder: turn a document
// descriptor into an ordered list of PageText, dispatching by
// DocumentDescriptor.Type. It only exists to feed Builder, hence it lives
// in package rag rather than its own package.
type extractor struct {
	ocr OCRStep
}

func newExtractor(ocr OCRStep) *extractor {
	return &extractor{ocr: ocr}
}

func (e *extractor) Extract(ctx context.Context, doc *DocumentDescriptor, vision ProviderConfig, report pageProgress) ([]PageText, error) {
	switch doc.Type {
	case DocumentPDF:
		return e.extractPDF(ctx, doc, vision, report)
	case DocumentImage:
		return e.extractImage(ctx, doc, vision, report)
	case DocumentPlainText, DocumentMarkdown:
		return e.extractText(doc)
	default:
		return nil, ErrUnsupportedDocumentType
	}
}

func (e *extractor) extractPDF(ctx context.Context, doc *DocumentDescriptor, vision ProviderConfig, report pageProgress) ([]PageText, error) {
	document, err := fitz.New(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", doc.Path, err)
	}
	defer document.Close()

	total := document.NumPage()
	pages := make([]PageText, 0, total)
	tokensSoFar := 0

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageNumber := i + 1
		bitmap, err := document.Image(i)
		if err != nil {
			slog.Warn("pdf page render failed, treating as blank", "doc", doc.ID, "page", pageNumber, "error", err)
			pages = append(pages, PageText{PageNumber: &pageNumber})
			if report != nil {
				report(pageNumber, total, tokensSoFar)
			}
			continue
		}

		label := fmt.Sprintf("第 %d 页", pageNumber)
		text := e.ocr.Recognize(ctx, bitmap, label, vision)
		tokens := tokenest.Estimate(text)
		tokensSoFar += tokens

		pages = append(pages, PageText{PageNumber: &pageNumber, Text: text, EstimatedTokens: tokens})
		if report != nil {
			report(pageNumber, total, tokensSoFar)
		}
	}
	return pages, nil
}

func (e *extractor) extractImage(ctx context.Context, doc *DocumentDescriptor, vision ProviderConfig, report pageProgress) ([]PageText, error) {
	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", doc.Path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", doc.Path, err)
	}

	text := e.ocr.Recognize(ctx, img, doc.Name, vision)
	tokens := tokenest.Estimate(text)
	if report != nil {
		report(1, 1, tokens)
	}
	return []PageText{{Text: text, EstimatedTokens: tokens}}, nil
}

func (e *extractor) extractText(doc *DocumentDescriptor) ([]PageText, error) {
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("read text file %s: %w", doc.Path, err)
	}

	if len(data) > MaxTextChars {
		cut := MaxTextChars
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
		data = data[:cut]
		slog.Warn("text extraction truncated", "doc", doc.ID, "maxChars", MaxTextChars)
	}

	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
		slog.Warn("text extraction replaced invalid UTF-8", "doc", doc.ID)
	}

	return []PageText{{Text: text, EstimatedTokens: tokenest.Estimate(text)}}, nil
}
