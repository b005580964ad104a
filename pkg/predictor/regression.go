package predictor

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

const bytesPerMB = 1 << 20

// predictions at or past this many microseconds saturate
const maxMicros = float64(math.MaxInt64 / int64(time.Microsecond))

// Sample is one observed transfer
type Sample struct {
	FileSize uint64        `yaml:"size"`
	N        uint32        `yaml:"n"`
	K        uint32        `yaml:"k"`
	Duration time.Duration `yaml:"duration"`
}

// features: intercept, n, k, fragment size in MB
const numFeatures = 4

func features(fileSize uint64, n, k uint32) []float64 {
	fragment := float64(fileSize) / float64(k) / bytesPerMB
	return []float64{1, float64(n), float64(k), fragment}
}

type bucketModel struct {
	coef    []float64
	samples int
}

// Regression is a linear model per file-size bucket:
//
//	micros = b0 + b1*n + b2*k + b3*fragmentMB
//
// Bucket i covers sizes in (bounds[i-1], bounds[i]]. With no bounds a
// single bucket covers every size.
type Regression struct {
	bounds []uint64
	models []*bucketModel
}

// Fit trains one least-squares model per bucket. Buckets with fewer
// samples than coefficients, or with a singular design, stay untrained and
// answer ErrNoModel. Fit fails only if no bucket could be trained.
func Fit(bounds []uint64, samples []Sample) (*Regression, error) {
	sorted := make([]uint64, len(bounds))
	copy(sorted, bounds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	r := &Regression{bounds: sorted}
	buckets := len(sorted)
	if buckets == 0 {
		buckets = 1
	}
	r.models = make([]*bucketModel, buckets)

	grouped := make([][]Sample, buckets)
	for _, s := range samples {
		if s.K == 0 || s.K > s.N {
			return nil, fmt.Errorf("sample with invalid scheme n=%d k=%d", s.N, s.K)
		}
		idx, ok := r.bucket(s.FileSize)
		if !ok {
			continue
		}
		grouped[idx] = append(grouped[idx], s)
	}

	trained := 0
	for i, group := range grouped {
		m, err := fitBucket(group)
		if err != nil {
			continue
		}
		r.models[i] = m
		trained++
	}
	if trained == 0 {
		return nil, fmt.Errorf("%w: %d samples across %d buckets", ErrNoModel, len(samples), buckets)
	}
	return r, nil
}

func fitBucket(samples []Sample) (*bucketModel, error) {
	if len(samples) < numFeatures {
		return nil, fmt.Errorf("need %d samples, have %d", numFeatures, len(samples))
	}

	x := mat.NewDense(len(samples), numFeatures, nil)
	y := mat.NewVecDense(len(samples), nil)
	for i, s := range samples {
		x.SetRow(i, features(s.FileSize, s.N, s.K))
		y.SetVec(i, float64(s.Duration.Microseconds()))
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return nil, fmt.Errorf("least squares: %w", err)
	}

	coef := make([]float64, numFeatures)
	for i := range coef {
		coef[i] = beta.AtVec(i)
	}
	return &bucketModel{coef: coef, samples: len(samples)}, nil
}

func (r *Regression) bucket(fileSize uint64) (int, bool) {
	if len(r.bounds) == 0 {
		return 0, true
	}
	idx := sort.Search(len(r.bounds), func(i int) bool { return r.bounds[i] >= fileSize })
	if idx == len(r.bounds) {
		return 0, false
	}
	return idx, true
}

// Predict implements Predictor. Negative estimates are clamped to zero and
// estimates past the largest time.Duration saturate.
func (r *Regression) Predict(fileSize uint64, n, k uint32) (time.Duration, error) {
	if k == 0 || k > n {
		return 0, fmt.Errorf("invalid scheme n=%d k=%d", n, k)
	}
	idx, ok := r.bucket(fileSize)
	if !ok {
		return 0, fmt.Errorf("%w: size %d above largest bucket", ErrNoModel, fileSize)
	}
	m := r.models[idx]
	if m == nil {
		return 0, fmt.Errorf("%w: bucket %d untrained", ErrNoModel, idx)
	}

	var micros float64
	for i, f := range features(fileSize, n, k) {
		micros += m.coef[i] * f
	}
	if micros < 0 || math.IsNaN(micros) {
		micros = 0
	}
	if micros >= maxMicros {
		return time.Duration(math.MaxInt64), nil
	}
	return time.Duration(micros) * time.Microsecond, nil
}

// Trained reports how many buckets have a model
func (r *Regression) Trained() int {
	count := 0
	for _, m := range r.models {
		if m != nil {
			count++
		}
	}
	return count
}
