package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 96.0
	fontSize       = 10.0
	tickMarkHeight = 5
	pixelsPerLabel = 150.0
	labelSpacing   = 4 // minimum pixels between time labels

	defaultRowHeight = 4

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 90
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	defaultTimeFormat     = time.TimeOnly
	defaultDatetimeFormat = time.DateTime
)

var markerColor = color.White

// BorderConfig defines the sizes of white space around the waterfall
type BorderConfig struct {
	Top    int // Space for frequency scale
	Left   int // Space for time scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for waterfall rendering
type RenderConfig struct {
	TimeFormat     string         // Format string for row labels
	DatetimeFormat string         // Format string for the information bar
	Location       *time.Location // Timezone for time display

	FontSize     float64
	ColorTheme   ColorTheme
	ColorMapSize int // Number of colors in gradient (0 for default)
	RowHeight    int // Pixels per sweep

	NoAnnotations bool // Skip scales and the information bar
	NoMarkers     bool // Skip detected signal markers

	BorderConfig BorderConfig
}

// WaterfallRenderer draws a Waterfall: frequency grows to the right,
// sweeps follow each other top to bottom
type WaterfallRenderer struct {
	config RenderConfig
}

// NewWaterfallRenderer creates a renderer, filling zero values with defaults
func NewWaterfallRenderer(config RenderConfig) *WaterfallRenderer {
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.RowHeight <= 0 {
		config.RowHeight = defaultRowHeight
	}

	if config.NoAnnotations {
		config.BorderConfig = BorderConfig{}
	} else {
		if config.BorderConfig.Top == 0 {
			config.BorderConfig.Top = defaultTopBorder
		}
		if config.BorderConfig.Left == 0 {
			config.BorderConfig.Left = defaultLeftBorder
		}
		if config.BorderConfig.Bottom == 0 {
			config.BorderConfig.Bottom = defaultBottomBorder
		}
		if config.BorderConfig.Right == 0 {
			config.BorderConfig.Right = defaultRightBorder
		}
	}

	return &WaterfallRenderer{config: config}
}

// Render creates the image of w with colors scaled to bounds
func (r *WaterfallRenderer) Render(w *Waterfall, bounds PowerBounds) (*image.RGBA, error) {
	if w.Height() == 0 {
		return nil, errors.New("waterfall has no rows")
	}

	borders := r.config.BorderConfig
	height := w.Height() * r.config.RowHeight

	img := image.NewRGBA(image.Rect(0, 0,
		w.Width+borders.Left+borders.Right,
		height+borders.Top+borders.Bottom))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(borders.Left, borders.Top, borders.Left+w.Width, borders.Top+height)

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(r.config)
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, w); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	r.renderRows(img, area, w, NewColorMapperWithSize(r.config.ColorTheme, bounds, r.config.ColorMapSize))
	if !r.config.NoMarkers {
		r.renderMarkers(img, area, w)
	}

	return img, nil
}

func (r *WaterfallRenderer) renderRows(img *image.RGBA, area image.Rectangle, w *Waterfall, cm *ColorMapper) {
	for i, row := range w.Rows {
		top := area.Min.Y + i*r.config.RowHeight
		for x, power := range row.Powers {
			c := cm.GetColor(power)
			for y := top; y < top+r.config.RowHeight; y++ {
				img.Set(area.Min.X+x, y, c)
			}
		}
	}
}

// renderMarkers outlines every detected region and ticks its peak
func (r *WaterfallRenderer) renderMarkers(img *image.RGBA, area image.Rectangle, w *Waterfall) {
	for i, row := range w.Rows {
		top := area.Min.Y + i*r.config.RowHeight
		bottom := top + r.config.RowHeight - 1

		for _, m := range row.Markers {
			left, right := area.Min.X+m.Start, area.Min.X+m.End
			for x := left; x <= right; x++ {
				img.Set(x, top, markerColor)
				img.Set(x, bottom, markerColor)
			}
			for y := top; y <= bottom; y++ {
				img.Set(left, y, markerColor)
				img.Set(right, y, markerColor)
				img.Set(area.Min.X+m.Peak, y, markerColor)
			}
		}
	}
}

type annotator struct {
	context  *freetype.Context
	config   RenderConfig
	fontFace font.Face
}

func newAnnotator(config RenderConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	return a.fontFace.Close()
}

func (a *annotator) annotate(img *image.RGBA, w *Waterfall) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawFrequencyScale(img, w); err != nil {
		return fmt.Errorf("drawing frequency scale: %w", err)
	}
	if err := a.drawTimeScale(img, w); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawInfoBar(img, w); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}
	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, w *Waterfall) error {
	span := w.FrequencyMax - w.FrequencyMin
	freqStep := niceFrequencyStep(span, w.Width)
	textY := a.config.BorderConfig.Top - a.fontHeight()/2

	for freq := math.Ceil(w.FrequencyMin/freqStep) * freqStep; freq <= w.FrequencyMax; freq += freqStep {
		x := a.config.BorderConfig.Left + int((freq-w.FrequencyMin)/span*float64(w.Width))

		for y := a.config.BorderConfig.Top - tickMarkHeight; y < a.config.BorderConfig.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatFrequency(freq)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-width.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

// drawTimeScale labels sweeps with their start time, skipping rows that
// would overlap the previous label
func (a *annotator) drawTimeScale(img *image.RGBA, w *Waterfall) error {
	fontHeight := a.fontHeight()
	descent := a.fontFace.Metrics().Descent.Round()
	rowHeight := a.config.RowHeight

	lastY := -fontHeight - labelSpacing
	for i, row := range w.Rows {
		imgY := a.config.BorderConfig.Top + i*rowHeight + rowHeight/2
		if imgY-lastY < fontHeight+labelSpacing {
			continue
		}
		lastY = imgY

		for x := a.config.BorderConfig.Left - tickMarkHeight; x < a.config.BorderConfig.Left; x++ {
			img.Set(x, imgY, color.Black)
		}

		label := row.StartedAt.In(a.config.Location).Format(a.config.TimeFormat)
		pt := freetype.Pt(10, imgY+fontHeight/2-descent)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, w *Waterfall) error {
	first, last := w.TimeRange()

	var sb strings.Builder
	if w.RunID != "" {
		fmt.Fprintf(&sb, "Run: %s; ", w.RunID)
	}
	fmt.Fprintf(&sb, "Freq: %s - %s; ", formatFrequency(w.FrequencyMin), formatFrequency(w.FrequencyMax))
	fmt.Fprintf(&sb, "Sweeps: %d (%s - %s); ",
		w.Height(),
		first.In(a.config.Location).Format(a.config.DatetimeFormat),
		last.In(a.config.Location).Format(a.config.DatetimeFormat))
	fmt.Fprintf(&sb, "1px = %s", formatFrequency(w.ColumnWidth()))

	descent := a.fontFace.Metrics().Descent.Round()
	textY := img.Bounds().Max.Y - (a.config.BorderConfig.Bottom-a.fontHeight())/2 - descent

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(a.config.BorderConfig.Left, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// niceFrequencyStep picks a 1-2-5 step giving roughly one label per
// pixelsPerLabel pixels and at least two labels
func niceFrequencyStep(span float64, width int) float64 {
	if span <= 0 {
		return 1
	}

	target := span / max(float64(width)/pixelsPerLabel, 1)
	for decade := 1.0; decade <= 1e10; decade *= 10 {
		for _, m := range []float64{1, 2, 5} {
			step := m * decade
			if step >= target && span/step >= 2 {
				return step
			}
			if step >= target {
				return span / 2
			}
		}
	}
	return span / 2
}

func formatFrequency(freq float64) string {
	return humanize.SIWithDigits(freq, 2, "Hz")
}
