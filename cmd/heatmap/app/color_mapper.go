package app

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorTheme is a predefined power-to-color scheme
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white
	EnhancedTheme  ColorTheme = "enhanced"  // Black, blue, cyan, yellow, red

	DefaultColorMapSize = 256
)

var noDataColor = color.Black

// ColorThemes returns the names of every theme
func ColorThemes() []ColorTheme {
	return []ColorTheme{ClassicTheme, GrayscaleTheme, JungleTheme, ThermalTheme, MarineTheme, EnhancedTheme}
}

// ParseColorTheme validates a theme name
func ParseColorTheme(name string) (ColorTheme, error) {
	theme := ColorTheme(strings.ToLower(strings.TrimSpace(name)))
	for _, t := range ColorThemes() {
		if t == theme {
			return theme, nil
		}
	}
	return "", fmt.Errorf("unknown color theme: %s", name)
}

// gradient interpolates between key colors in the HCL space
type gradient []struct {
	color colorful.Color
	pos   float64
}

func (g gradient) at(t float64) colorful.Color {
	for i := 0; i < len(g)-1; i++ {
		c1, c2 := g[i], g[i+1]
		if c1.pos <= t && t <= c2.pos {
			t = (t - c1.pos) / (c2.pos - c1.pos)
			return c1.color.BlendHcl(c2.color, t).Clamped()
		}
	}
	return g[len(g)-1].color
}

func mustParseGradient(stops ...string) gradient {
	g := make(gradient, len(stops))
	for i, hex := range stops {
		g[i].color = mustParseHex(hex)
		g[i].pos = float64(i) / float64(len(stops)-1)
	}
	return g
}

func mustParseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("MustParseHex: " + err.Error())
	}
	return c
}

var (
	thermalGradient  = mustParseGradient("#000000", "#ff0000", "#ffff00", "#ffffff")
	enhancedGradient = mustParseGradient("#000000", "#0000ff", "#00ffff", "#ffff00", "#ff0000")
)

// ColorMapper maps power values onto a pre-computed color table
type ColorMapper struct {
	colorMap      []color.Color
	themeName     ColorTheme
	powerPerIndex float64
	boundsMin     float64
}

// NewColorMapper creates a color mapper with DefaultColorMapSize colors
func NewColorMapper(theme ColorTheme, bounds PowerBounds) *ColorMapper {
	return NewColorMapperWithSize(theme, bounds, DefaultColorMapSize)
}

// NewColorMapperWithSize creates a color mapper with size pre-computed colors
func NewColorMapperWithSize(theme ColorTheme, bounds PowerBounds, size int) *ColorMapper {
	if size < 2 {
		size = DefaultColorMapSize
	}

	fn := themeFunc(theme)
	cm := &ColorMapper{
		colorMap:  make([]color.Color, size),
		themeName: theme,
	}
	for i := range cm.colorMap {
		cm.colorMap[i] = fn(float64(i) / float64(size-1))
	}
	cm.UpdateBounds(bounds)
	return cm
}

// UpdateBounds changes the power range covered by the color table
func (cm *ColorMapper) UpdateBounds(bounds PowerBounds) {
	cm.boundsMin = bounds.Min
	cm.powerPerIndex = (bounds.Max - bounds.Min) / float64(len(cm.colorMap)-1)
}

// GetColor returns the color of power; nil is drawn as no data
func (cm *ColorMapper) GetColor(power *float64) color.Color {
	if power == nil {
		return noDataColor
	}
	if cm.powerPerIndex <= 0 {
		return cm.colorMap[len(cm.colorMap)-1]
	}

	index := int((*power - cm.boundsMin) / cm.powerPerIndex)
	return cm.colorMap[min(max(index, 0), len(cm.colorMap)-1)]
}

func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

func themeFunc(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case ClassicTheme:
		return func(p float64) color.Color {
			return colorful.Hsv(240-p*240, 0.9+p*0.1, math.Pow(p, 0.7))
		}

	case GrayscaleTheme:
		return func(p float64) color.Color {
			v := math.Pow(p, 0.7)
			return colorful.Color{R: v, G: v, B: v}
		}

	case JungleTheme:
		return func(p float64) color.Color {
			return colorful.Hsv(120-p*60, 1, 0.3+math.Pow(p, 0.6)*0.7)
		}

	case ThermalTheme:
		return func(p float64) color.Color {
			return thermalGradient.at(p)
		}

	case MarineTheme:
		return func(p float64) color.Color {
			return colorful.Hsv(240-p*60, 1-p*0.8, 0.3+math.Pow(p, 0.6)*0.7)
		}

	default:
		return func(p float64) color.Color {
			return enhancedGradient.at(math.Pow(p, 0.7))
		}
	}
}
