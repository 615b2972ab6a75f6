package viz

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// AverageHeads collapses per-head attention weights (each Tq x Tk) into a
// single mean matrix.
func AverageHeads(heads []*mat.Dense) (*mat.Dense, error) {
	if len(heads) == 0 {
		return nil, fmt.Errorf("no attention weights recorded; run a forward pass first")
	}
	for _, h := range heads {
		if h == nil {
			return nil, fmt.Errorf("no attention weights recorded; run a forward pass first")
		}
	}
	r, c := heads[0].Dims()
	avg := mat.NewDense(r, c, nil)
	for _, h := range heads {
		if hr, hc := h.Dims(); hr != r || hc != c {
			return nil, fmt.Errorf("attention head shape mismatch: (%d,%d) vs (%d,%d)", hr, hc, r, c)
		}
		avg.Add(avg, h)
	}
	avg.Scale(1/float64(len(heads)), avg)
	return avg, nil
}

// attnGrid adapts an attention matrix (rows = target positions, cols =
// source positions) to the plotter grid interface. Target position 0 is
// drawn at the top.
type attnGrid struct {
	w *mat.Dense
}

func (g attnGrid) Dims() (int, int) {
	r, c := g.w.Dims()
	return c, r
}

func (g attnGrid) Z(col, row int) float64 {
	rows, _ := g.w.Dims()
	return g.w.At(rows-1-row, col)
}

func (g attnGrid) X(col int) float64 { return float64(col) }
func (g attnGrid) Y(row int) float64 { return float64(row) }

// tokenTicks labels grid cells with their tokens, reversed when the axis is
// drawn top-down.
type tokenTicks struct {
	tokens  []string
	reverse bool
}

func (t tokenTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, tok := range t.tokens {
		pos := float64(i)
		if t.reverse {
			pos = float64(len(t.tokens) - 1 - i)
		}
		if pos < min || pos > max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: pos, Label: tok})
	}
	return ticks
}

// SaveHeatmap renders attention weights (Tq x Tk) as a PNG with source
// tokens along X and target tokens along Y.
func SaveHeatmap(weights *mat.Dense, srcTokens, tgtTokens []string, path string) error {
	tq, tk := weights.Dims()
	if len(srcTokens) != tk || len(tgtTokens) != tq {
		return fmt.Errorf("token labels do not match attention shape (%d x %d): %d target, %d source",
			tq, tk, len(tgtTokens), len(srcTokens))
	}

	p := plot.New()
	p.Title.Text = "cross-attention (mean over heads)"
	p.X.Label.Text = "source"
	p.Y.Label.Text = "target"
	p.X.Tick.Marker = tokenTicks{tokens: srcTokens}
	p.Y.Tick.Marker = tokenTicks{tokens: tgtTokens, reverse: true}
	p.X.Tick.Label.Rotation = 1.2
	p.X.Tick.Label.XAlign = -0.9

	hm := plotter.NewHeatMap(attnGrid{w: weights}, palette.Heat(16, 1))
	p.Add(hm)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	w := 2*vg.Inch + vg.Length(tk)*0.4*vg.Inch
	h := 2*vg.Inch + vg.Length(tq)*0.4*vg.Inch
	return p.Save(w, h, path)
}
