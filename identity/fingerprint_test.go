package identity

import (
	"strings"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://WWW.Example.com/imovel/123/", "https://example.com/imovel/123"},
		{"https://example.com/a?b=2&a=1#photos", "https://example.com/a?a=1&b=2"},
		{"https://example.com/a?utm_source=x&id=9", "https://example.com/a?id=9"},
		{"not a url/", "not a url"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExternalIDFromURL_Stable(t *testing.T) {
	a := ExternalIDFromURL("https://www.example.com/listing/42/?utm_campaign=ads")
	b := ExternalIDFromURL("https://example.com/listing/42")
	if a != b {
		t.Fatalf("expected equivalent URLs to share an id, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "url-") || len(a) != len("url-")+16 {
		t.Fatalf("unexpected id shape %s", a)
	}
	if a == ExternalIDFromURL("https://example.com/listing/43") {
		t.Fatal("expected different URLs to produce different ids")
	}
}

func TestExternalIDFromContent(t *testing.T) {
	a := ExternalIDFromContent([]byte("screenshot-a"))
	if !strings.HasPrefix(a, "img-") || len(a) != len("img-")+16 {
		t.Fatalf("unexpected content id %s", a)
	}
	if a == ExternalIDFromContent([]byte("screenshot-b")) {
		t.Fatalf("expected different content to give different ids")
	}
}
