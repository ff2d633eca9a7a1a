// Package config holds the run configuration for the command-line tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all configurable paths and render settings.
type Config struct {
	// Paths
	GlobeDir    string `json:"globe_dir"`
	LensDir     string `json:"lens_dir"`
	PalettePath string `json:"palette_path"`
	OutputDir   string `json:"output_dir"`

	// Active view
	Globe string  `json:"globe"`
	Lens  string  `json:"lens"`
	HFov  float64 `json:"hfov"`
	VFov  float64 `json:"vfov"`
	Fit   string  `json:"fit"` // "", "h", "v", "both"

	// Output settings
	Width  int `json:"width"`
	Height int `json:"height"`
	Frames int `json:"frames"`
	Scale  int `json:"scale"`

	// Rubix overlay
	Rubix         bool    `json:"rubix"`
	RubixCells    int     `json:"rubix_cells"`
	RubixCellSize float64 `json:"rubix_cell_size"`
	RubixPadSize  float64 `json:"rubix_pad_size"`
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Globe     string
	Lens      string
	HFov      float64
	VFov      float64
	Fit       string
	Width     int
	Height    int
	Frames    int
	Scale     int
	OutputDir string
	Rubix     bool
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve fills in any empty fields with defaults. CLI flags take
// priority when non-zero/non-empty; an explicit vfov or fit request
// supersedes the default hfov.
func (c *Config) Resolve(flags Flags) {
	if flags.Globe != "" {
		c.Globe = flags.Globe
	}
	if flags.Lens != "" {
		c.Lens = flags.Lens
	}
	if flags.HFov > 0 {
		c.HFov = flags.HFov
		c.VFov = 0
		c.Fit = ""
	}
	if flags.VFov > 0 {
		c.VFov = flags.VFov
		c.HFov = 0
		c.Fit = ""
	}
	if flags.Fit != "" {
		c.Fit = flags.Fit
		c.HFov = 0
		c.VFov = 0
	}
	if flags.Width > 0 {
		c.Width = flags.Width
	}
	if flags.Height > 0 {
		c.Height = flags.Height
	}
	if flags.Frames > 0 {
		c.Frames = flags.Frames
	}
	if flags.Scale > 0 {
		c.Scale = flags.Scale
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Rubix {
		c.Rubix = true
	}

	// Defaults matching the historical startup commands:
	// globe cube, lens panini, hfov 180, rubixgrid 10 4 1.
	if c.GlobeDir == "" {
		c.GlobeDir = filepath.Join("scripts", "globes")
	}
	if c.LensDir == "" {
		c.LensDir = filepath.Join("scripts", "lenses")
	}
	if c.OutputDir == "" {
		c.OutputDir = "out"
	}
	if c.Globe == "" {
		c.Globe = "cube"
	}
	if c.Lens == "" {
		c.Lens = "panini"
	}
	if c.HFov == 0 && c.VFov == 0 && c.Fit == "" {
		c.HFov = 180
	}
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 400
	}
	if c.Frames <= 0 {
		c.Frames = 1
	}
	if c.Scale <= 0 {
		c.Scale = 1
	}
	if c.RubixCells <= 0 {
		c.RubixCells = 10
	}
	if c.RubixCellSize <= 0 {
		c.RubixCellSize = 4
	}
	if c.RubixPadSize <= 0 {
		c.RubixPadSize = 1
	}
}
