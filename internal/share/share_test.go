package share

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
)

func TestPNG(t *testing.T) {
	enc, err := NewEncoder()
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()

	data, err := enc.PNG("http://192.168.1.20:8000/sites/home.html", 128)
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 128 {
		t.Errorf("bounds = %v, want 128x128", b)
	}

	again, err := enc.PNG("http://192.168.1.20:8000/sites/home.html", 128)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("second encode differs")
	}

	if _, err := enc.PNG("", 128); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestTerminal(t *testing.T) {
	out, err := Terminal("http://10.0.0.5:8000/sites/a.html")
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(out, "\n"); lines < 10 {
		t.Errorf("terminal QR too short: %d lines", lines)
	}
}
