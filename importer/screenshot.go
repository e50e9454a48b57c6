package importer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"caixa_scrooper/extract"
	"caixa_scrooper/identity"
	"caixa_scrooper/models"
	"caixa_scrooper/scraper"
)

const DefaultMaxImageBytes = 5 * 1024 * 1024

const visionSystemPrompt = "Você extrai dados de anúncios de imóveis no Brasil a partir de screenshots. " +
	"Responda somente com um objeto JSON válido, usando exatamente as chaves pedidas. " +
	"Campos ausentes no screenshot: use \"\" para textos e números, false para booleanos e [] para listas. " +
	"price e original_price são números em string, sem símbolo e sem separadores (ex: 68585). " +
	"type é um de: casa, apartamento, terreno, comercial. " +
	"address_state é a sigla da UF (ex: CE, PB, RN). " +
	"auction_date usa o formato AAAA-MM-DD."

// ScreenshotAdapter extracts a draft from a listing screenshot through the
// vision backend.
type ScreenshotAdapter struct {
	vision   *VisionClient
	links    *scraper.LinkExtractor
	maxBytes int64
}

// NewScreenshotAdapter builds an adapter. links reads listing ids from source
// URLs the same way the crawl does and may be nil.
func NewScreenshotAdapter(vision *VisionClient, links *scraper.LinkExtractor, maxBytes int64) *ScreenshotAdapter {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ScreenshotAdapter{vision: vision, links: links, maxBytes: maxBytes}
}

// Import validates the image and asks the vision backend for the listing
// fields. An empty contentType is sniffed from the bytes.
func (a *ScreenshotAdapter) Import(ctx context.Context, image []byte, contentType, sourceURL string) (*Result, error) {
	if contentType == "" {
		contentType = http.DetectContentType(image)
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedMedia, contentType)
	}
	if int64(len(image)) > a.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", models.ErrMediaTooLarge, len(image))
	}

	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
	return a.importDataURL(ctx, dataURL, sourceURL, a.externalID(image, sourceURL))
}

// externalID prefers the listing id in the source URL, so a screenshot and a
// later crawl of the same listing share one key. Without a recognisable id
// the URL is hashed as URLAdapter does, and without a URL the image is.
func (a *ScreenshotAdapter) externalID(image []byte, sourceURL string) string {
	if sourceURL == "" {
		return identity.ExternalIDFromContent(image)
	}
	if a.links != nil {
		if id, ok := a.links.ExternalID(sourceURL); ok {
			return id
		}
	}
	if u, err := NormalizeInputURL(sourceURL); err == nil {
		sourceURL = u
	}
	return identity.ExternalIDFromURL(sourceURL)
}

// ImportDataURL accepts a screenshot already encoded as a base64 data URL.
func (a *ScreenshotAdapter) ImportDataURL(ctx context.Context, dataURL, sourceURL string) (*Result, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: not a base64 data URL", models.ErrUnsupportedMedia)
	}
	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnsupportedMedia, err)
	}
	contentType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	return a.Import(ctx, image, contentType, sourceURL)
}

func (a *ScreenshotAdapter) importDataURL(ctx context.Context, dataURL, sourceURL, externalID string) (*Result, error) {
	schema := make(map[string]any, len(extract.VisionSchema))
	for k, v := range extract.VisionSchema {
		schema[k] = v
	}
	schema["source_url"] = sourceURL
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	content, err := a.vision.CompleteJSON(ctx, visionSystemPrompt, []ContentPart{
		TextPart("Extraia os dados do anúncio neste screenshot e devolva somente JSON neste formato, com as mesmas chaves:\n" + string(schemaJSON)),
		ImagePart(dataURL),
	})
	if err != nil {
		return nil, err
	}

	draft, err := extract.NormalizeVisionReply(content, sourceURL)
	if draft == nil {
		return nil, err
	}
	draft.ExternalID = externalID

	result := &Result{Draft: draft, Screenshot: dataURL}
	if json.Valid([]byte(content)) {
		result.Raw = json.RawMessage(content)
	}
	if err != nil && !errors.Is(err, models.ErrExtractionFailed) {
		return nil, err
	}
	return result, err
}
