package dataset

import (
	"math"
	"math/rand"
	"time"

	"github.com/slopesense/rockfall-risk/internal/domain"
	"github.com/slopesense/rockfall-risk/internal/feature"
	"github.com/slopesense/rockfall-risk/internal/risk"
)

// syntheticColumns is the raw column set of a generated table, matching
// what a fully populated alignment would produce.
var syntheticColumns = []string{
	"rainfall_mm",
	"temperature_c",
	"ambient_vibration",
	"displacement",
	"strain",
	"pore_pressure",
	"vibrations",
	"humidity",
	"wind_speed",
	"pressure",
}

// Synthesize generates a labeled hourly dataset for testing and for
// bootstrapping a model when no field data exists yet. Generation is
// fully determined by the seed; temperature follows a weekly sine cycle
// with noise, the rest draw from skewed distributions typical of each
// quantity.
func Synthesize(n int, start time.Time, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	t := domain.NewTable(syntheticColumns)

	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		temp := 20 + 10*math.Sin(float64(i)*2*math.Pi/(24*7)) + rng.NormFloat64()*3
		t.AppendRow(ts, []float64{
			rng.ExpFloat64() * 5,
			clampRange(temp, -10, 45),
			math.Max(gammaSample(rng, 2, 0.2), 0),
			math.Max(gammaSample(rng, 1.5, 2), 0),
			math.Max(rng.NormFloat64()*0.3+0.5, 0),
			math.Max(rng.NormFloat64()*0.4+1.2, 0),
			math.Max(gammaSample(rng, 1.8, 0.3), 0),
			clampRange(rng.NormFloat64()*15+60, 0, 100),
			math.Max(weibullSample(rng, 1.5)*10, 0),
			rng.NormFloat64()*15 + 1013.25,
		})
	}

	engineered := feature.Engineer(t)
	return &Dataset{
		Table:  engineered,
		Labels: risk.LabelTable(engineered),
	}
}

// gammaSample draws from Gamma(shape, scale) using Marsaglia and Tsang's
// method. Shapes used here are all >= 1.
func gammaSample(rng *rand.Rand, shape, scale float64) float64 {
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// weibullSample draws from Weibull(k) with unit scale by inverse transform.
func weibullSample(rng *rand.Rand, k float64) float64 {
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	return math.Pow(-math.Log(u), 1/k)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
