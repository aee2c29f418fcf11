package domain

import (
	"errors"
	"image"
	"testing"
)

func TestParseHexColor(t *testing.T) {
	cases := []struct {
		in   string
		want Color
	}{
		{"#fff", White},
		{"#222", Color{R: 0x22, G: 0x22, B: 0x22, A: 0xff}},
		{"ef476f", Color{R: 0xef, G: 0x47, B: 0x6f, A: 0xff}},
		{"#00000080", Color{A: 0x80}},
	}
	for _, c := range cases {
		got, err := ParseHexColor(c.in)
		if err != nil {
			t.Fatalf("ParseHexColor(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseHexColor(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
	for _, bad := range []string{"", "#12", "#gggggg", "#12345"} {
		if _, err := ParseHexColor(bad); !errors.Is(err, ErrInvalidColor) {
			t.Fatalf("ParseHexColor(%q) err = %v, want ErrInvalidColor", bad, err)
		}
	}
}

func TestColorHexRoundTrip(t *testing.T) {
	for _, c := range Palette {
		got, err := ParseHexColor(c.Hex())
		if err != nil || got != c {
			t.Fatalf("hex round trip of %+v: got %+v err %v", c, got, err)
		}
	}
	if s := (Color{R: 1, G: 2, B: 3, A: 4}).Hex(); s != "#01020304" {
		t.Fatalf("unexpected hex with alpha: %s", s)
	}
}

func TestParseFontFamily(t *testing.T) {
	f, err := ParseFontFamily("  inter ")
	if err != nil || f != FamilyInter {
		t.Fatalf("ParseFontFamily(inter) = %q, %v", f, err)
	}
	if _, err := ParseFontFamily("Comic Sans MS"); !errors.Is(err, ErrUnsupportedFamily) {
		t.Fatalf("expected ErrUnsupportedFamily, got %v", err)
	}
}

func TestTemplateReady(t *testing.T) {
	var nilTpl *Template
	if nilTpl.Ready() {
		t.Fatalf("nil template must not be ready")
	}
	tpl := NewTemplate("t1", "One", NewBitmap(image.NewRGBA(image.Rect(0, 0, 10, 20))))
	if !tpl.Ready() || tpl.NativeWidth != 10 || tpl.NativeHeight != 20 {
		t.Fatalf("unexpected template: %+v", tpl)
	}
	empty := NewTemplate("t2", "Two", Bitmap{})
	if empty.Ready() {
		t.Fatalf("template without bitmap must not be ready")
	}
}
