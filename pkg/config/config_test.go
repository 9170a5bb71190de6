package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kerbaras/mangago/pkg/data"
)

func TestLoadDefaults(t *testing.T) {
	app, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if app.SourceURL != "https://api.mangadex.org" {
		t.Errorf("Unexpected source URL %q", app.SourceURL)
	}
	if app.Download.Concurrency != 5 {
		t.Errorf("Expected default concurrency 5, got %d", app.Download.Concurrency)
	}
	if app.Download.RetriesPerPage != 3 {
		t.Errorf("Expected default retries 3, got %d", app.Download.RetriesPerPage)
	}
	if app.Download.RequestTimeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %s", app.Download.RequestTimeout)
	}
	if app.Download.OutputFormat != data.FormatImages {
		t.Errorf("Expected default format images, got %s", app.Download.OutputFormat)
	}
	if app.Download.OverwriteExisting || app.Download.DeleteImagesAfterConvert || app.Download.AllowPartial {
		t.Error("Destructive options must default to off")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	yaml := `
source_url: https://mangadex.test
output_dir: /tmp/manga
concurrency: 8
retries_per_page: 5
request_timeout: 10s
output_format: cbz
delete_images_after_convert: true
`
	if err := os.WriteFile(cfgFile, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if app.SourceURL != "https://mangadex.test" {
		t.Errorf("Unexpected source URL %q", app.SourceURL)
	}
	if app.Download.OutputDir != "/tmp/manga" {
		t.Errorf("Unexpected output dir %q", app.Download.OutputDir)
	}
	if app.Download.Concurrency != 8 || app.Download.RetriesPerPage != 5 {
		t.Errorf("Overrides not applied: %+v", app.Download)
	}
	if app.Download.RequestTimeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %s", app.Download.RequestTimeout)
	}
	if app.Download.OutputFormat != data.FormatCBZ {
		t.Errorf("Expected format cbz, got %s", app.Download.OutputFormat)
	}
	if !app.Download.DeleteImagesAfterConvert {
		t.Error("Expected delete_images_after_convert to be set")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	cfgFile := filepath.Join(dir, "bad_format.yaml")
	if err := os.WriteFile(cfgFile, []byte("output_format: docx\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgFile); err == nil {
		t.Error("Expected error for unknown output format")
	}

	cfgFile = filepath.Join(dir, "bad_concurrency.yaml")
	if err := os.WriteFile(cfgFile, []byte("concurrency: 99\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgFile); err == nil {
		t.Error("Expected error for out-of-range concurrency")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for explicitly named missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MANGAGO_CONCURRENCY", "2")
	t.Setenv("MANGAGO_OUTPUT_FORMAT", "pdf")

	app, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if app.Download.Concurrency != 2 {
		t.Errorf("Env override not applied, got concurrency %d", app.Download.Concurrency)
	}
	if app.Download.OutputFormat != data.FormatPDF {
		t.Errorf("Env override not applied, got format %s", app.Download.OutputFormat)
	}
}
