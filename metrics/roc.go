package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
)

// ROC holds the points of a receiver operating characteristic curve. Point i
// is the false and true positive rate when every score >= Thresholds[i] is
// called positive. The first point is (0, 0) with threshold +Inf.
type ROC struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
}

// ROCCurve computes the ROC curve of scores yPred against binary labels yTrue.
func ROCCurve(yTrue, yPred *mat.VecDense) (*ROC, error) {
	if err := checkPair("ROCCurve", yTrue, yPred); err != nil {
		return nil, err
	}
	if err := checkBinary(yTrue); err != nil {
		return nil, err
	}
	n := yTrue.Len()

	type pair struct {
		score, label float64
	}
	pairs := make([]pair, n)
	var pos, neg float64
	for i := 0; i < n; i++ {
		pairs[i] = pair{score: yPred.AtVec(i), label: yTrue.AtVec(i)}
		if pairs[i].label == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, sealedErrors.NewValueError("ROCCurve", "only one class present in yTrue")
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	roc := &ROC{
		FPR:        []float64{0},
		TPR:        []float64{0},
		Thresholds: []float64{math.Inf(1)},
	}
	var tp, fp float64
	for i, p := range pairs {
		if p.label == 1 {
			tp++
		} else {
			fp++
		}
		// one point per distinct score
		if i+1 < n && pairs[i+1].score == p.score {
			continue
		}
		roc.FPR = append(roc.FPR, fp/neg)
		roc.TPR = append(roc.TPR, tp/pos)
		roc.Thresholds = append(roc.Thresholds, p.score)
	}
	return roc, nil
}

// Area integrates the curve with the trapezoid rule.
func (r *ROC) Area() float64 {
	area := 0.0
	for i := 1; i < len(r.FPR); i++ {
		area += (r.FPR[i] - r.FPR[i-1]) * (r.TPR[i] + r.TPR[i-1]) / 2
	}
	return area
}

// SaveROCPlot draws the curve against the chance diagonal and writes it to
// path. The image format follows the file extension (png, svg, pdf, ...).
func SaveROCPlot(r *ROC, title, path string) error {
	if r == nil || len(r.FPR) < 2 {
		return sealedErrors.NewValueError("SaveROCPlot", "empty ROC curve")
	}
	pts := make(plotter.XYs, len(r.FPR))
	for i := range r.FPR {
		pts[i].X = r.FPR[i]
		pts[i].Y = r.TPR[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return sealedErrors.Wrap(err, "ROC line")
	}
	line.Width = vg.Points(2)
	line.Color = plotter.DefaultLineStyle.Color

	chance := plotter.NewFunction(func(x float64) float64 { return x })
	chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid(), line, chance)
	p.Legend.Add(fmt.Sprintf("ROC (AUC = %.4f)", r.Area()), line)
	p.Legend.Add("chance", chance)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return sealedErrors.Wrapf(err, "save ROC plot to %s", path)
	}
	return nil
}
