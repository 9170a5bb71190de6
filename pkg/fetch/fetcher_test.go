package fetch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testPNG returns a decodable PNG comfortably above MinImageSize.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	if buf.Len() < MinImageSize {
		t.Fatalf("Test image too small: %d bytes", buf.Len())
	}
	return buf.Bytes()
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", want)
	}
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *fetch.Error, got %T: %v", err, err)
	}
	if fe.Kind != want {
		t.Errorf("Expected kind %s, got %s (%v)", want, fe.Kind, err)
	}
}

func TestFetchSuccess(t *testing.T) {
	payload := testPNG(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	f := NewFetcher()
	body, err := f.Fetch(context.Background(), server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Errorf("Payload mismatch: got %d bytes, want %d", len(body), len(payload))
	}
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), server.URL, 5*time.Second)
	assertKind(t, err, Permanent)
	if IsTransient(err) {
		t.Error("404 must not be classified transient")
	}
}

func TestFetchServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), server.URL, 5*time.Second)
	assertKind(t, err, Transient)
	if !IsTransient(err) {
		t.Error("500 must be classified transient")
	}
}

func TestFetchTooManyRequestsIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), server.URL, 5*time.Second)
	assertKind(t, err, Transient)
}

func TestFetchTimeoutIsTransient(t *testing.T) {
	payload := testPNG(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write(payload)
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), server.URL, 20*time.Millisecond)
	assertKind(t, err, Transient)
}

func TestFetchHTMLBodyIsInvalidContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><h1>We are under maintenance, come back soon!</h1></body></html>"))
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), server.URL, 5*time.Second)
	assertKind(t, err, InvalidContent)
}

func TestFetchTinyPayloadIsInvalidContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), server.URL, 5*time.Second)
	assertKind(t, err, InvalidContent)
}

func TestFetchMalformedURLIsPermanent(t *testing.T) {
	f := NewFetcher()
	_, err := f.Fetch(context.Background(), "not a url", 5*time.Second)
	assertKind(t, err, Permanent)
}

func TestFetchSendsHeaders(t *testing.T) {
	payload := testPNG(t)
	var gotUA, gotRef string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotRef = r.Header.Get("Referer")
		w.Write(payload)
	}))
	defer server.Close()

	f := NewFetcher(WithUserAgent("test-agent"), WithReferer("https://example.com/"))
	if _, err := f.Fetch(context.Background(), server.URL, 5*time.Second); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotUA != "test-agent" {
		t.Errorf("Expected User-Agent test-agent, got %q", gotUA)
	}
	if gotRef != "https://example.com/" {
		t.Errorf("Expected Referer header, got %q", gotRef)
	}
}

func TestExt(t *testing.T) {
	if got := Ext(testPNG(t)); got != ".png" {
		t.Errorf("Expected .png, got %q", got)
	}
	if got := Ext([]byte("garbage")); got != ".jpg" {
		t.Errorf("Expected .jpg fallback, got %q", got)
	}
}
