/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type EditorConfig struct {
	PreviewMaxW int `yaml:"preview_max_w"`
	PreviewMaxH int `yaml:"preview_max_h"`
}

type AssetsConfig struct {
	TemplatesDir string `yaml:"templates_dir"`
	Catalog      string `yaml:"catalog"` // empty means the built-in catalog
	BaseURL      string `yaml:"base_url"`
	TimeoutMs    int    `yaml:"timeout_ms"`
}

// FontsConfig maps font families to TTF files. Empty paths keep the bundled fallback.
type FontsConfig struct {
	PlayfairDisplay string `yaml:"playfair_display"`
	Inter           string `yaml:"inter"`
}

type ExportConfig struct {
	OutDir string `yaml:"out_dir"`
	Format string `yaml:"format"` // "png" | "jpeg"
}

type CacheConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Assets        AssetsConfig  `yaml:"assets"`
	Fonts         FontsConfig   `yaml:"fonts"`
	Export        ExportConfig  `yaml:"export"`
	Cache         CacheConfig   `yaml:"cache"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{PreviewMaxW: 400, PreviewMaxH: 570},
		Assets:        AssetsConfig{TemplatesDir: "public", TimeoutMs: 10000},
		Export:        ExportConfig{OutDir: ".", Format: "png"},
		Cache:         CacheConfig{Dir: defaultCacheDir(), MaxBytes: 32 << 20},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

func defaultCacheDir() string {
	if d, err := os.UserCacheDir(); err == nil && d != "" {
		return filepath.Join(d, "cardcomposer")
	}
	return filepath.Join(os.TempDir(), "cardcomposer-cache")
}

// Env var names used as overrides.
const (
	EnvConfigFile     = "CARD_CONFIG"
	EnvTemplatesDir   = "CARD_TEMPLATES_DIR"
	EnvCatalog        = "CARD_CATALOG"
	EnvAssetsBaseURL  = "CARD_ASSETS_BASE_URL"
	EnvAssetsTimeout  = "CARD_ASSETS_TIMEOUT_MS"
	EnvFontPlayfair   = "CARD_FONT_PLAYFAIR"
	EnvFontInter      = "CARD_FONT_INTER"
	EnvExportDir      = "CARD_EXPORT_DIR"
	EnvExportFormat   = "CARD_EXPORT_FORMAT"
	EnvCacheDir       = "CARD_CACHE_DIR"
	EnvCacheMaxBytes  = "CARD_CACHE_MAX_BYTES"
	EnvPreviewMaxSize = "CARD_PREVIEW_MAX" // WxH, e.g. 400x570
	// EnvLogLevel Logging envs
	EnvLogLevel  = "CARD_LOG_LEVEL"
	EnvLogFormat = "CARD_LOG_FORMAT"
	EnvLogSource = "CARD_LOG_SOURCE"
	EnvLogFile   = "CARD_LOG_FILE"
)

// ConfigPath returns the per-user config file path. CARD_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "CardComposer")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "CardComposer")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "cardcomposer")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file. A missing file yields defaults;
// a malformed one is an error.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg as YAML to path.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Editor.PreviewMaxW > 0 {
		dst.Editor.PreviewMaxW = src.Editor.PreviewMaxW
	}
	if src.Editor.PreviewMaxH > 0 {
		dst.Editor.PreviewMaxH = src.Editor.PreviewMaxH
	}
	// assets
	if s := strings.TrimSpace(src.Assets.TemplatesDir); s != "" {
		dst.Assets.TemplatesDir = s
	}
	if s := strings.TrimSpace(src.Assets.Catalog); s != "" {
		dst.Assets.Catalog = s
	}
	if s := strings.TrimSpace(src.Assets.BaseURL); s != "" {
		dst.Assets.BaseURL = s
	}
	if src.Assets.TimeoutMs > 0 {
		dst.Assets.TimeoutMs = src.Assets.TimeoutMs
	}
	// fonts
	if s := strings.TrimSpace(src.Fonts.PlayfairDisplay); s != "" {
		dst.Fonts.PlayfairDisplay = s
	}
	if s := strings.TrimSpace(src.Fonts.Inter); s != "" {
		dst.Fonts.Inter = s
	}
	// export
	if s := strings.TrimSpace(src.Export.OutDir); s != "" {
		dst.Export.OutDir = s
	}
	if s := strings.TrimSpace(src.Export.Format); s != "" {
		dst.Export.Format = strings.ToLower(s)
	}
	// cache
	if s := strings.TrimSpace(src.Cache.Dir); s != "" {
		dst.Cache.Dir = s
	}
	if src.Cache.MaxBytes > 0 {
		dst.Cache.MaxBytes = src.Cache.MaxBytes
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	str := func(env string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
	str(EnvTemplatesDir, &cfg.Assets.TemplatesDir)
	str(EnvCatalog, &cfg.Assets.Catalog)
	str(EnvAssetsBaseURL, &cfg.Assets.BaseURL)
	if v := strings.TrimSpace(os.Getenv(EnvAssetsTimeout)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Assets.TimeoutMs = n
		}
	}
	str(EnvFontPlayfair, &cfg.Fonts.PlayfairDisplay)
	str(EnvFontInter, &cfg.Fonts.Inter)
	str(EnvExportDir, &cfg.Export.OutDir)
	if v := strings.TrimSpace(os.Getenv(EnvExportFormat)); v != "" {
		cfg.Export.Format = strings.ToLower(v)
	}
	str(EnvCacheDir, &cfg.Cache.Dir)
	if v := strings.TrimSpace(os.Getenv(EnvCacheMaxBytes)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Cache.MaxBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvPreviewMaxSize)); v != "" {
		if w, h, ok := parseWxH(v); ok {
			cfg.Editor.PreviewMaxW, cfg.Editor.PreviewMaxH = w, h
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	str(EnvLogFile, &cfg.Logging.File)
}

func parseWxH(s string) (int, int, bool) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(strings.TrimSpace(ws))
	h, err2 := strconv.Atoi(strings.TrimSpace(hs))
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

var envKeys = map[string]string{
	"assets.templates_dir":   EnvTemplatesDir,
	"assets.catalog":         EnvCatalog,
	"assets.base_url":        EnvAssetsBaseURL,
	"assets.timeout_ms":      EnvAssetsTimeout,
	"fonts.playfair_display": EnvFontPlayfair,
	"fonts.inter":            EnvFontInter,
	"export.out_dir":         EnvExportDir,
	"export.format":          EnvExportFormat,
	"cache.dir":              EnvCacheDir,
	"cache.max_bytes":        EnvCacheMaxBytes,
	"editor.preview_max_w":   EnvPreviewMaxSize,
	"editor.preview_max_h":   EnvPreviewMaxSize,
	"logging.level":          EnvLogLevel,
	"logging.format":         EnvLogFormat,
	"logging.source":         EnvLogSource,
	"logging.file":           EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the asset fetch timeout.
func (a AssetsConfig) Timeout() time.Duration {
	if a.TimeoutMs <= 0 {
		return time.Duration(Defaults().Assets.TimeoutMs) * time.Millisecond
	}
	return time.Duration(a.TimeoutMs) * time.Millisecond
}
