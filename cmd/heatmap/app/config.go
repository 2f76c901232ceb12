package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/storage"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	// waterfall width when the native resolution is wider
	maxAutoWidth = 4096
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// Config holds the heatmap options
type Config struct {
	Storage       storage.Config
	RunID         string // latest run when empty
	OutputFile    string
	Format        ImageFormat
	Theme         ColorTheme
	Width         int // columns, native resolution capped at 4096 when 0
	RowHeight     int // pixels per sweep
	MaxPower      *float64
	MinPower      *float64
	TimeZone      *time.Location
	NoAnnotations bool
	NoMarkers     bool
}

func NewConfig() *Config {
	return &Config{
		Storage:   storage.Config{Driver: storage.DriverSqlite},
		Format:    ImagePNG,
		Theme:     EnhancedTheme,
		RowHeight: defaultRowHeight,
		TimeZone:  time.Local,
	}
}

// Validate normalizes the format, theme and output file name
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}

	c.Format = ImageFormat(strings.ToLower(string(c.Format)))
	if _, ok := validImageFormats[c.Format]; !ok {
		return fmt.Errorf("invalid image format: %s", c.Format)
	}

	theme, err := ParseColorTheme(string(c.Theme))
	if err != nil {
		return err
	}
	c.Theme = theme

	if c.OutputFile == "" {
		return errors.New("output file is required")
	}
	if filepath.Ext(c.OutputFile) == "" {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	}

	if c.Width < 0 {
		return fmt.Errorf("width must not be negative: %d", c.Width)
	}
	if c.RowHeight <= 0 {
		return fmt.Errorf("row height must be positive: %d", c.RowHeight)
	}
	if c.MinPower != nil && c.MaxPower != nil && *c.MinPower >= *c.MaxPower {
		return fmt.Errorf("min power must be below max power: %.1f >= %.1f", *c.MinPower, *c.MaxPower)
	}
	return nil
}
