package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/kerbaras/mangago/pkg/data"
)

// App bundles the runtime settings: where metadata comes from, where the
// library database lives, and the download defaults a job starts from.
type App struct {
	SourceURL   string
	LibraryPath string
	Download    data.Config
}

// Load reads configuration from the given file (or ~/.mangago/config.yaml
// when empty), environment variables prefixed MANGAGO_, and built-in
// defaults, in that order of precedence.
func Load(cfgFile string) (*App, error) {
	v := viper.New()

	home, _ := os.UserHomeDir()
	v.SetDefault("source_url", mangadexURL())
	v.SetDefault("library_path", filepath.Join(home, ".mangago", "library.db"))
	v.SetDefault("output_dir", filepath.Join(home, "Downloads", "mangago"))
	v.SetDefault("concurrency", 5)
	v.SetDefault("retries_per_page", 3)
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("output_format", "images")
	v.SetDefault("overwrite_existing", false)
	v.SetDefault("delete_images_after_convert", false)
	v.SetDefault("allow_partial", false)

	v.SetEnvPrefix("MANGAGO")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(home, ".mangago"))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	format, err := data.ParseFormat(v.GetString("output_format"))
	if err != nil {
		return nil, err
	}

	app := &App{
		SourceURL:   v.GetString("source_url"),
		LibraryPath: v.GetString("library_path"),
		Download: data.Config{
			OutputDir:                v.GetString("output_dir"),
			Concurrency:              v.GetInt("concurrency"),
			RetriesPerPage:           v.GetInt("retries_per_page"),
			RequestTimeout:           v.GetDuration("request_timeout"),
			OutputFormat:             format,
			OverwriteExisting:        v.GetBool("overwrite_existing"),
			DeleteImagesAfterConvert: v.GetBool("delete_images_after_convert"),
			AllowPartial:             v.GetBool("allow_partial"),
		},
	}
	if err := app.Download.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return app, nil
}

func mangadexURL() string { return "https://api.mangadex.org" }
