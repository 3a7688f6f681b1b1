package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"strconv"

	"github.com/Carmen-Shannon/chromascope/common"
	"github.com/pelletier/go-toml/v2"
)

// Keys of the settings file.
const (
	keyEnableFilter     = "enable-filter"
	keyFilterMode       = "filter-mode"
	keyEnableHistogram  = "enable-histogram"
	keyHistogramMode    = "histogram-mode"
	keyHistogramScale   = "histogram-scale"
	keyEnableColorCloud = "enable-color-cloud"
	keyColorCloudMode   = "color-cloud-mode"
	keyShowGrid         = "show-grid"
	keyBgOpacity        = "bg-opacity"
	keyWindowX          = "window-x"
	keyWindowY          = "window-y"
	keyWindowWidth      = "window-width"
	keyWindowHeight     = "window-height"
)

// fileConfig is the on-disk shape of the settings. Flags are written as 1 or 0.
type fileConfig struct {
	EnableFilter     uint32  `toml:"enable-filter"`
	FilterMode       uint32  `toml:"filter-mode"`
	EnableHistogram  uint32  `toml:"enable-histogram"`
	HistogramMode    uint32  `toml:"histogram-mode"`
	HistogramScale   float32 `toml:"histogram-scale"`
	EnableColorCloud uint32  `toml:"enable-color-cloud"`
	ColorCloudMode   uint32  `toml:"color-cloud-mode"`
	ShowGrid         uint32  `toml:"show-grid"`
	BgOpacity        float32 `toml:"bg-opacity"`
	WindowX          int32   `toml:"window-x"`
	WindowY          int32   `toml:"window-y"`
	WindowWidth      int32   `toml:"window-width"`
	WindowHeight     int32   `toml:"window-height"`
}

// table is a decoded settings file with lenient typed getters: a value that is missing or fails
// to parse yields the caller's default.
type table map[string]any

// Load reads the settings file at path. A missing file yields Default() and no error. A file that
// is not valid TOML also yields Default(), together with the decode error. Inside a valid file
// every key is optional and falls back to its own default.
//
// Parameters:
//   - path: the settings file path
//
// Returns:
//   - Config: the loaded configuration
//   - error: a read or decode error, the returned Config is usable regardless
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("failed to read config %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Default(), fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes settings from TOML bytes.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the decoded configuration
//   - error: a decode error
func Parse(data []byte) (Config, error) {
	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, err
	}
	t := table(raw)

	cfg := Default()
	cfg.EnableFilter = t.getBool(keyEnableFilter)
	cfg.FilterMode = FilterMode(t.getUint32(keyFilterMode, 0))
	cfg.EnableHistogram = t.getBool(keyEnableHistogram)
	cfg.HistogramMode = HistogramMode(t.getUint32(keyHistogramMode, 0))
	cfg.HistogramScale = t.getFloat32(keyHistogramScale, 0.5)
	cfg.EnableColorCloud = t.getBool(keyEnableColorCloud)
	cfg.ColorCloudMode = ColorCloudMode(t.getUint32(keyColorCloudMode, 0))
	cfg.ShowGrid = t.getBool(keyShowGrid)
	cfg.BgOpacity = t.getFloat32(keyBgOpacity, 1.0)
	cfg.WindowRect = common.NewRect(
		max(t.getInt32(keyWindowX, 100), 0),
		max(t.getInt32(keyWindowY, 100), 0),
		max(t.getInt32(keyWindowWidth, 640), 0),
		max(t.getInt32(keyWindowHeight, 480), 0),
	)

	if !cfg.FilterMode.Valid() {
		log.Printf("[Config] unknown %s %d, using %s", keyFilterMode, cfg.FilterMode, FilterModeRGB)
		cfg.FilterMode = FilterModeRGB
	}
	if !cfg.HistogramMode.Valid() {
		log.Printf("[Config] unknown %s %d, using %s", keyHistogramMode, cfg.HistogramMode, HistogramModeRGB)
		cfg.HistogramMode = HistogramModeRGB
	}
	if !cfg.ColorCloudMode.Valid() {
		log.Printf("[Config] unknown %s %d, using %s", keyColorCloudMode, cfg.ColorCloudMode, ColorCloudModeRGB)
		cfg.ColorCloudMode = ColorCloudModeRGB
	}
	return cfg, nil
}

// Save writes the persistent part of cfg to path. Filter channels and the cloud rotation are
// session state and are not written.
//
// Parameters:
//   - path: the settings file path
//   - cfg: the configuration to persist
//
// Returns:
//   - error: an encode or write error
func Save(path string, cfg Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %q: %w", path, err)
	}
	return nil
}

// Marshal encodes the persistent part of cfg as TOML.
func Marshal(cfg Config) ([]byte, error) {
	out := fileConfig{
		EnableFilter:     flag(cfg.EnableFilter),
		FilterMode:       uint32(cfg.FilterMode),
		EnableHistogram:  flag(cfg.EnableHistogram),
		HistogramMode:    uint32(cfg.HistogramMode),
		HistogramScale:   cfg.HistogramScale,
		EnableColorCloud: flag(cfg.EnableColorCloud),
		ColorCloudMode:   uint32(cfg.ColorCloudMode),
		ShowGrid:         flag(cfg.ShowGrid),
		BgOpacity:        cfg.BgOpacity,
		WindowX:          cfg.WindowRect.X,
		WindowY:          cfg.WindowRect.Y,
		WindowWidth:      cfg.WindowRect.Width,
		WindowHeight:     cfg.WindowRect.Height,
	}
	data, err := toml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

func flag(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// getBool is true only for a literal 1, "1" or true.
func (t table) getBool(key string) bool {
	switch v := t[key].(type) {
	case bool:
		return v
	case int64:
		return v == 1
	case string:
		return v == "1"
	default:
		return false
	}
}

func (t table) getInt64(key string) (int64, bool) {
	switch v := t[key].(type) {
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func (t table) getInt32(key string, def int32) int32 {
	v, ok := t.getInt64(key)
	if !ok || v < math.MinInt32 || v > math.MaxInt32 {
		return def
	}
	return int32(v)
}

func (t table) getUint32(key string, def uint32) uint32 {
	v, ok := t.getInt64(key)
	if !ok || v < 0 || v > math.MaxUint32 {
		return def
	}
	return uint32(v)
}

func (t table) getFloat32(key string, def float32) float32 {
	switch v := t[key].(type) {
	case float64:
		return float32(v)
	case int64:
		return float32(v)
	case string:
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return def
}
