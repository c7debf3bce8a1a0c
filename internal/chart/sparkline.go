package chart

import (
	"bytes"
	"fmt"
	"math"

	"github.com/mrcode/promille/internal/models"
)

// Braille blocks, 4 sub-blocks high: empty, 1/4, 1/2, 3/4, full
var blocks = []rune{'⠀', '⣀', '⣤', '⣶', '⣿'}

const subBlocksPerLine = 4.0

// Sparkline renders a series as a multi-line Braille chart at most width columns wide
func Sparkline(series []models.BACPoint, width, height int) string {
	values := downsample(series, width)
	if len(values) < 2 || height <= 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = math.Max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1 // flat zero curve
	}

	rows := make([][]rune, height)
	for i := range rows {
		rows[i] = make([]rune, len(values))
		for j := range rows[i] {
			rows[i][j] = blocks[0]
		}
	}

	for x, val := range values {
		// Total "height" in sub-blocks
		total := val / maxVal * float64(height) * subBlocksPerLine

		// Fill lines from bottom up
		for y := 0; y < height; y++ {
			lineIdx := height - 1 - y
			lineStart := float64(y) * subBlocksPerLine
			lineEnd := float64(y+1) * subBlocksPerLine

			if total >= lineEnd {
				rows[lineIdx][x] = blocks[len(blocks)-1]
			} else if total > lineStart {
				remainder := int(math.Round(total - lineStart))
				if remainder < 0 {
					remainder = 0
				}
				if remainder >= len(blocks) {
					remainder = len(blocks) - 1
				}
				rows[lineIdx][x] = blocks[remainder]
			}
		}
	}

	var result bytes.Buffer
	result.WriteString(fmt.Sprintf("Max: %.2f ‰\n", maxVal))
	for i := 0; i < height; i++ {
		result.WriteString(string(rows[i]))
		result.WriteString("\n")
	}
	result.WriteString("Min: 0.00 ‰")

	return result.String()
}

// downsample keeps the maximum of each bucket so peaks stay visible
func downsample(series []models.BACPoint, width int) []float64 {
	if width <= 0 || len(series) == 0 {
		return nil
	}
	if len(series) <= width {
		values := make([]float64, len(series))
		for i, p := range series {
			values[i] = p.BAC
		}
		return values
	}

	values := make([]float64, width)
	for i := range values {
		from := i * len(series) / width
		to := (i + 1) * len(series) / width
		for _, p := range series[from:to] {
			values[i] = math.Max(values[i], p.BAC)
		}
	}
	return values
}
