package replay

import (
	"errors"
	"math"
	"sort"

	"github.com/claude/anchor/internal/motion"
	"gonum.org/v1/gonum/stat"
)

// CalibrationHeadroom scales the resting drift quantile into a suggested threshold.
const CalibrationHeadroom = 1.5

// Calibration summarizes a trace recorded with the device at rest.
type Calibration struct {
	Samples int
	Mean    motion.Sample
	StdDev  motion.Sample

	// Drift is the per-sample largest axis distance between the smoothed
	// signal and the first sample, the quantity the classifier compares
	// against its threshold.
	DriftP50 float64
	DriftP99 float64
	DriftMax float64

	SuggestedThreshold float64
}

// Calibrate measures resting noise in the motion samples of events as the
// classifier with smoothing factor alpha would see it. The suggestion never
// goes below floor.
func Calibrate(events []Event, alpha, floor float64) (*Calibration, error) {
	var xs, ys, zs []float64
	for _, ev := range events {
		if ev.Kind != KindMotion {
			continue
		}
		xs = append(xs, ev.Sample.X)
		ys = append(ys, ev.Sample.Y)
		zs = append(zs, ev.Sample.Z)
	}
	if len(xs) < 2 {
		return nil, errors.New("calibration needs at least two motion samples")
	}
	if alpha <= 0 || alpha > 1 {
		alpha = motion.DefaultAlpha
	}

	cal := &Calibration{Samples: len(xs)}
	cal.Mean.X, cal.StdDev.X = stat.MeanStdDev(xs, nil)
	cal.Mean.Y, cal.StdDev.Y = stat.MeanStdDev(ys, nil)
	cal.Mean.Z, cal.StdDev.Z = stat.MeanStdDev(zs, nil)

	base := motion.Sample{X: xs[0], Y: ys[0], Z: zs[0]}
	smoothed := base
	drift := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		smoothed.X = smoothed.X*(1-alpha) + xs[i]*alpha
		smoothed.Y = smoothed.Y*(1-alpha) + ys[i]*alpha
		smoothed.Z = smoothed.Z*(1-alpha) + zs[i]*alpha
		drift = append(drift, max(
			math.Abs(smoothed.X-base.X),
			math.Abs(smoothed.Y-base.Y),
			math.Abs(smoothed.Z-base.Z),
		))
	}
	sort.Float64s(drift)
	cal.DriftP50 = stat.Quantile(0.5, stat.Empirical, drift, nil)
	cal.DriftP99 = stat.Quantile(0.99, stat.Empirical, drift, nil)
	cal.DriftMax = drift[len(drift)-1]
	cal.SuggestedThreshold = max(cal.DriftP99*CalibrationHeadroom, floor)
	return cal, nil
}
