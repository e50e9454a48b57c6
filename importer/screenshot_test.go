package importer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"caixa_scrooper/config"
	"caixa_scrooper/identity"
	"caixa_scrooper/models"
	"caixa_scrooper/scraper"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// seenRequest records what the gateway received. Message content is kept as
// raw JSON so both string and multi-part bodies can be inspected.
type seenRequest struct {
	Model          string
	Temperature    float64
	ResponseFormat map[string]string
	Messages       []seenMessage
}

type seenMessage struct {
	Role    string
	Content string
}

func visionServer(t *testing.T, status int, content string, seen *seenRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer vk" {
			t.Errorf("missing bearer key")
		}
		if seen != nil {
			var raw map[string]json.RawMessage
			json.NewDecoder(r.Body).Decode(&raw)
			json.Unmarshal(raw["model"], &seen.Model)
			json.Unmarshal(raw["temperature"], &seen.Temperature)
			json.Unmarshal(raw["response_format"], &seen.ResponseFormat)
			var msgs []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			}
			json.Unmarshal(raw["messages"], &msgs)
			for _, m := range msgs {
				seen.Messages = append(seen.Messages, seenMessage{Role: m.Role, Content: string(m.Content)})
			}
		}
		w.WriteHeader(status)
		reply, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
		w.Write(reply)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestScreenshotAdapter(t *testing.T, server *httptest.Server) *ScreenshotAdapter {
	t.Helper()
	vision := NewVisionClient(config.VisionConfig{
		APIKey:  "vk",
		BaseURL: server.URL + "/v1",
	}, server.Client())
	links, err := scraper.NewLinkExtractor(config.DefaultSource())
	if err != nil {
		t.Fatalf("failed to build link extractor: %v", err)
	}
	return NewScreenshotAdapter(vision, links, 0)
}

func TestScreenshotAdapter_Import(t *testing.T) {
	var seen seenRequest
	content := `{"title":"Casa em Olinda","type":"casa","price":"185000","original_price":"260000",` +
		`"address_city":"Olinda","address_state":"pe","bedrooms":"2","area":"70","images":[],` +
		`"accepts_fgts":true,"accepts_financing":false}`
	server := visionServer(t, http.StatusOK, content, &seen)
	a := newTestScreenshotAdapter(t, server)

	res, err := a.Import(context.Background(), pngHeader, "", "https://example.com/olinda")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}

	d := res.Draft
	if d.Price != 185000 || d.Address.State != "PE" || d.Discount == nil || *d.Discount != 29 {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if !strings.HasPrefix(d.ExternalID, "url-") {
		t.Fatalf("expected id from the source url, got %s", d.ExternalID)
	}
	if !strings.HasPrefix(res.Screenshot, "data:image/png;base64,") {
		t.Fatalf("expected png data url, got %.40s", res.Screenshot)
	}
	if len(res.Raw) == 0 {
		t.Fatalf("expected raw reply to be kept")
	}

	if seen.Model != defaultVisionModel || seen.Temperature != 0.2 || seen.ResponseFormat["type"] != "json_object" {
		t.Fatalf("unexpected request settings: %+v", seen)
	}
	if len(seen.Messages) != 2 || seen.Messages[0].Role != "system" || seen.Messages[1].Role != "user" {
		t.Fatalf("expected system and user messages, got %+v", seen.Messages)
	}
	user := seen.Messages[1].Content
	if !strings.Contains(user, `"image_url"`) || !strings.Contains(user, "address_neighborhood") {
		t.Fatalf("expected schema text and image parts, got %s", user)
	}
}

func TestScreenshotAdapter_ImportDataURL(t *testing.T) {
	server := visionServer(t, http.StatusOK, `{"title":"Terreno","type":"terreno","price":"90.000,00"}`, nil)
	a := newTestScreenshotAdapter(t, server)

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	res, err := a.ImportDataURL(context.Background(), dataURL, "")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if res.Draft.Type != models.TypeLand || res.Draft.Price != 90000 {
		t.Fatalf("unexpected draft: %+v", res.Draft)
	}
	if !strings.HasPrefix(res.Draft.ExternalID, "img-") {
		t.Fatalf("expected content-derived id, got %s", res.Draft.ExternalID)
	}
}

func TestScreenshotAdapter_RejectsBadImages(t *testing.T) {
	server := visionServer(t, http.StatusOK, `{}`, nil)
	a := newTestScreenshotAdapter(t, server)
	ctx := context.Background()

	if _, err := a.Import(ctx, []byte("%PDF-1.4"), "application/pdf", ""); !errors.Is(err, models.ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}

	big := bytes.Repeat([]byte{0}, DefaultMaxImageBytes+1)
	if _, err := a.Import(ctx, big, "image/png", ""); !errors.Is(err, models.ErrMediaTooLarge) {
		t.Fatalf("expected ErrMediaTooLarge, got %v", err)
	}

	if _, err := a.ImportDataURL(ctx, "https://example.com/shot.png", ""); !errors.Is(err, models.ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia for a non data URL, got %v", err)
	}
}

func TestScreenshotAdapter_ServiceFailures(t *testing.T) {
	ctx := context.Background()

	unconfigured := NewScreenshotAdapter(NewVisionClient(config.VisionConfig{}, nil), nil, 0)
	if _, err := unconfigured.Import(ctx, pngHeader, "image/png", ""); !errors.Is(err, models.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable when unconfigured, got %v", err)
	}

	down := newTestScreenshotAdapter(t, visionServer(t, http.StatusTooManyRequests, "", nil))
	if _, err := down.Import(ctx, pngHeader, "image/png", ""); !errors.Is(err, models.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable on 429, got %v", err)
	}

	empty := newTestScreenshotAdapter(t, visionServer(t, http.StatusOK, "", nil))
	if _, err := empty.Import(ctx, pngHeader, "image/png", ""); !errors.Is(err, models.ErrUnparsableResponse) {
		t.Fatalf("expected ErrUnparsableResponse on empty content, got %v", err)
	}

	prose := newTestScreenshotAdapter(t, visionServer(t, http.StatusOK, "Não consegui ler a imagem.", nil))
	if _, err := prose.Import(ctx, pngHeader, "image/png", ""); !errors.Is(err, models.ErrUnparsableResponse) {
		t.Fatalf("expected ErrUnparsableResponse on prose, got %v", err)
	}
}

func TestScreenshotAdapter_NoPriceKeepsDraft(t *testing.T) {
	server := visionServer(t, http.StatusOK, `{"title":"Apartamento em Natal","type":"apartamento","price":""}`, nil)
	a := newTestScreenshotAdapter(t, server)

	res, err := a.Import(context.Background(), pngHeader, "image/png", "")
	if !errors.Is(err, models.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if res == nil || res.Draft.Title != "Apartamento em Natal" {
		t.Fatalf("expected partial draft, got %+v", res)
	}
}

func TestScreenshotAdapter_ListingURLSharesCrawlID(t *testing.T) {
	content := `{"title":"Casa em Fortaleza","type":"casa","price":"120000","address_city":"Fortaleza",` +
		`"address_state":"ce","area":"60","images":[]}`
	server := visionServer(t, http.StatusOK, content, nil)
	a := newTestScreenshotAdapter(t, server)
	ctx := context.Background()

	listing := "https://www.leilaoimovel.com.br/imovel/ce/fortaleza/casa-em-fortaleza-ce-1444412345-98765-venda-direta-online/"
	res, err := a.Import(ctx, pngHeader, "image/png", listing)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if res.Draft.ExternalID != "1444412345-98765" {
		t.Fatalf("expected the listing id 1444412345-98765, got %s", res.Draft.ExternalID)
	}

	res, err = a.Import(ctx, pngHeader, "image/png", "example.com/olinda")
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if want := identity.ExternalIDFromURL("https://example.com/olinda"); res.Draft.ExternalID != want {
		t.Fatalf("expected %s to match the URL importer, got %s", want, res.Draft.ExternalID)
	}
}
