// Package chart renders BAC curves as PNG images and terminal sparklines
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/promille/internal/models"
)

// ErrNoSeries is returned when there is nothing to draw
var ErrNoSeries = errors.New("no series to render")

const (
	marginLeft   = 64
	marginRight  = 24
	marginTop    = 40
	marginBottom = 48
)

var (
	fontOnce sync.Once
	fontData *truetype.Font
	fontErr  error
)

// Renderer draws result maps using the chart settings
type Renderer struct {
	settings *models.Settings
}

// NewRenderer creates a new Renderer
func NewRenderer(settings *models.Settings) *Renderer {
	if settings == nil {
		settings = models.DefaultSettings()
	}
	return &Renderer{settings: settings.Clone()}
}

// plot maps time and BAC onto the drawing area
type plot struct {
	x0, y0, x1, y1 float64 // drawing area
	start, end     time.Time
	maxBAC         float64
}

func (p plot) x(t time.Time) float64 {
	span := p.end.Sub(p.start).Seconds()
	if span <= 0 {
		return p.x0
	}
	return p.x0 + (p.x1-p.x0)*t.Sub(p.start).Seconds()/span
}

func (p plot) y(bac float64) float64 {
	return p.y1 - (p.y1-p.y0)*bac/p.maxBAC
}

// RenderPNG draws every model curve with limit lines and drink markers
func (r *Renderer) RenderPNG(w io.Writer, results models.ResultMap, drinks []models.DrinkEvent, now time.Time) error {
	ids := results.Models()
	if len(ids) == 0 {
		return ErrNoSeries
	}

	s := r.settings
	p := plot{
		x0:     marginLeft,
		y0:     marginTop,
		x1:     float64(s.ChartWidth - marginRight),
		y1:     float64(s.ChartHeight - marginBottom),
		maxBAC: s.ChartMaxBAC,
	}

	for _, id := range ids {
		series := results[id].Series
		if len(series) == 0 {
			continue
		}
		if p.start.IsZero() || series[0].Time.Before(p.start) {
			p.start = series[0].Time
		}
		if last := series[len(series)-1].Time; last.After(p.end) {
			p.end = last
		}
		p.maxBAC = math.Max(p.maxBAC, results[id].PeakBAC*1.1)
	}
	if p.start.IsZero() {
		return ErrNoSeries
	}
	p.maxBAC = math.Max(p.maxBAC, s.AbsoluteLimit*1.1)

	dc := gg.NewContext(s.ChartWidth, s.ChartHeight)
	dc.SetColor(color.White)
	dc.Clear()

	r.drawAxes(dc, p)
	r.drawLimit(dc, p, s.LegalLimit, "#f97316")
	r.drawLimit(dc, p, s.AbsoluteLimit, "#ef4444")

	if s.ChartShowNow && !now.Before(p.start) && !now.After(p.end) {
		dc.SetRGB255(107, 114, 128)
		dc.SetLineWidth(1)
		dc.SetDash(2, 3)
		dc.DrawLine(p.x(now), p.y0, p.x(now), p.y1)
		dc.Stroke()
		dc.SetDash()
	}

	for _, id := range ids {
		r.drawSeries(dc, p, results[id].Series, s.ModelColor(id))
	}

	if s.ChartShowDrinks {
		for _, d := range drinks {
			if d.Time.Before(p.start) || d.Time.After(p.end) {
				continue
			}
			drawMarker(dc, p.x(d.Time), p.y1)
		}
	}

	r.drawLegend(dc, p, ids)

	return dc.EncodePNG(w)
}

// RenderPNGBytes is RenderPNG into a byte slice
func (r *Renderer) RenderPNGBytes(results models.ResultMap, drinks []models.DrinkEvent, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.RenderPNG(&buf, results, drinks, now); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawAxes(dc *gg.Context, p plot) {
	dc.SetRGB255(229, 231, 235)
	dc.SetLineWidth(1)

	fontLoaded := loadFont(dc, 12) == nil

	// horizontal grid every 0.2 ‰
	for v := 0.0; v <= p.maxBAC+1e-9; v += 0.2 {
		y := p.y(v)
		dc.SetRGB255(229, 231, 235)
		dc.DrawLine(p.x0, y, p.x1, y)
		dc.Stroke()
		if fontLoaded {
			dc.SetRGB255(55, 65, 81)
			dc.DrawStringAnchored(fmt.Sprintf("%.1f ‰", v), p.x0-8, y, 1, 0.5)
		}
	}

	// vertical grid every full hour
	for t := p.start.Truncate(time.Hour); !t.After(p.end); t = t.Add(time.Hour) {
		if t.Before(p.start) {
			continue
		}
		x := p.x(t)
		dc.SetRGB255(229, 231, 235)
		dc.DrawLine(x, p.y0, x, p.y1)
		dc.Stroke()
		if fontLoaded {
			dc.SetRGB255(55, 65, 81)
			dc.DrawStringAnchored(t.Local().Format("15:04"), x, p.y1+16, 0.5, 0.5)
		}
	}

	dc.SetRGB255(55, 65, 81)
	dc.DrawRectangle(p.x0, p.y0, p.x1-p.x0, p.y1-p.y0)
	dc.Stroke()
}

func (r *Renderer) drawLimit(dc *gg.Context, p plot, bac float64, hex string) {
	if bac <= 0 || bac > p.maxBAC {
		return
	}
	cr, cg, cb := parseHexColor(hex)
	dc.SetRGB255(int(cr), int(cg), int(cb))
	dc.SetLineWidth(1.5)
	dc.SetDash(6, 4)
	dc.DrawLine(p.x0, p.y(bac), p.x1, p.y(bac))
	dc.Stroke()
	dc.SetDash()
}

func (r *Renderer) drawSeries(dc *gg.Context, p plot, series []models.BACPoint, hex string) {
	if len(series) < 2 {
		return
	}
	cr, cg, cb := parseHexColor(hex)
	dc.SetRGB255(int(cr), int(cg), int(cb))
	dc.SetLineWidth(2)

	dc.MoveTo(p.x(series[0].Time), p.y(series[0].BAC))
	for _, pt := range series[1:] {
		dc.LineTo(p.x(pt.Time), p.y(pt.BAC))
	}
	dc.Stroke()
}

func (r *Renderer) drawLegend(dc *gg.Context, p plot, ids []models.ModelID) {
	if err := loadFont(dc, 13); err != nil {
		return
	}
	x := p.x1 - 110
	y := p.y0 + 16
	for _, id := range ids {
		cr, cg, cb := parseHexColor(r.settings.ModelColor(id))
		dc.SetRGB255(int(cr), int(cg), int(cb))
		dc.DrawRectangle(x, y-5, 14, 10)
		dc.Fill()
		dc.SetRGB255(17, 24, 39)
		dc.DrawStringAnchored(string(id), x+20, y, 0, 0.5)
		y += 18
	}
}

// drawMarker draws an upward triangle at a drink time
func drawMarker(dc *gg.Context, x, y float64) {
	const size = 8
	dc.SetRGB255(17, 24, 39)
	dc.NewSubPath()
	dc.MoveTo(x, y-size)
	dc.LineTo(x+size/2, y)
	dc.LineTo(x-size/2, y)
	dc.ClosePath()
	dc.Fill()
}

// loadFont helper to load font safely
func loadFont(dc *gg.Context, size float64) error {
	fontOnce.Do(func() {
		fontData, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return fontErr
	}
	dc.SetFontFace(truetype.NewFace(fontData, &truetype.Options{Size: size}))
	return nil
}

// parseHexColor parses a hex color string to RGB values
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}
