package extract

import (
	"fmt"
	"testing"
)

func TestImageFilter_Apply(t *testing.T) {
	refs := []string{
		"https://cdn.example.com/logo.png",
		"https://cdn.example.com/fotos/1-m.webp",
		"https://cdn.example.com/fotos/1-p.webp",
		"https://cdn.example.com/fotos/2-p.jpeg",
		"https://cdn.example.com/placeholder-casa.jpg",
		"https://cdn.example.com/fotos/thumb-150x150.jpg",
		"https://cdn.example.com/fotos/wide-800x150.jpg",
		"data:image/gif;base64,R0lGOD",
		"",
	}

	got := ImageFilter{}.Apply(refs)
	want := []string{
		"https://cdn.example.com/fotos/1-g.webp",
		"https://cdn.example.com/fotos/2-g.jpeg",
		"https://cdn.example.com/fotos/wide-800x150.jpg",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("image %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestImageFilter_PrefixAndCap(t *testing.T) {
	var refs []string
	for i := 0; i < 15; i++ {
		refs = append(refs, fmt.Sprintf("https://image.leilaoimovel.com.br/images/%d-g.webp", i))
	}
	refs = append([]string{"https://other.example.com/a.jpg"}, refs...)

	got := ImageFilter{Prefix: "https://image.leilaoimovel.com.br"}.Apply(refs)
	if len(got) != MaxImages {
		t.Fatalf("expected %d images, got %d", MaxImages, len(got))
	}
	if got[0] != "https://image.leilaoimovel.com.br/images/0-g.webp" {
		t.Fatalf("unexpected first image %s", got[0])
	}
}

func TestDenied(t *testing.T) {
	tests := map[string]bool{
		"https://cdn.example.com/img/Logo-Caixa.png":    true,
		"https://cdn.example.com/img/banner_topo.jpg":   true,
		"https://cdn.example.com/img/foto-100x100.jpg":  true,
		"https://cdn.example.com/img/foto-1024x768.jpg": false,
		"https://cdn.example.com/img/foto.jpg":          false,
	}
	for u, want := range tests {
		if got := Denied(u); got != want {
			t.Fatalf("Denied(%s): expected %v, got %v", u, want, got)
		}
	}
}
