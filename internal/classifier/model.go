package classifier

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Model is a k-nearest-neighbor classifier over a fixed sample set. It is never mutated
// after Build, so concurrent Predict calls need no locking.
type Model struct {
	samples []Sample
	k       int
	dim     int
}

// Prediction is the outcome of a single query.
type Prediction struct {
	Category Category
	Votes    int
	K        int
	// Distance to the closest neighbor voting for Category.
	Distance float64
}

// Confidence is the share of the k neighbors that voted for the predicted category.
func (p Prediction) Confidence() float64 {
	if p.K == 0 {
		return 0
	}
	return float64(p.Votes) / float64(p.K)
}

type neighbor struct {
	index    int
	distance float64
}

// Build copies samples into a new model that votes among the k nearest of them.
func Build(samples []Sample, k int) (*Model, error) {
	if len(samples) == 0 {
		return nil, &InvalidParameterError{Param: "samples", Reason: "training set is empty"}
	}
	if k <= 0 {
		return nil, &InvalidParameterError{Param: "k", Reason: fmt.Sprintf("must be positive, got %d", k)}
	}
	if k > len(samples) {
		return nil, &InvalidParameterError{Param: "k", Reason: fmt.Sprintf("%d exceeds sample count %d", k, len(samples))}
	}

	dim := len(samples[0].Features)
	if dim == 0 {
		return nil, &InvalidParameterError{Param: "samples", Reason: "sample 0 has no features"}
	}

	owned := make([]Sample, len(samples))
	for i, s := range samples {
		if len(s.Features) != dim {
			return nil, &InvalidParameterError{
				Param:  "samples",
				Reason: fmt.Sprintf("sample %d has %d features, expected %d", i, len(s.Features), dim),
			}
		}
		if !s.Label.Valid() {
			return nil, &InvalidParameterError{Param: "samples", Reason: fmt.Sprintf("sample %d has invalid label %d", i, int(s.Label))}
		}
		owned[i] = Sample{Features: slices.Clone(s.Features), Label: s.Label}
	}

	return &Model{samples: owned, k: k, dim: dim}, nil
}

// K returns the neighbor count.
func (m *Model) K() int { return m.k }

// Len returns the number of stored samples.
func (m *Model) Len() int { return len(m.samples) }

// Dim returns the feature dimensionality the model accepts.
func (m *Model) Dim() int { return m.dim }

// Counts returns how many stored samples carry each category.
func (m *Model) Counts() map[Category]int {
	counts := make(map[Category]int, numCategories)
	for _, s := range m.samples {
		counts[s.Label]++
	}
	return counts
}

// Predict returns the majority category among the k nearest samples.
func (m *Model) Predict(v FeatureVector) (Category, error) {
	p, err := m.Classify(v)
	if err != nil {
		return 0, err
	}
	return p.Category, nil
}

// Classify is Predict with the vote breakdown. Equal distances are ordered by sample
// position and tied votes go to the lowest category index, so results never depend on
// iteration order.
func (m *Model) Classify(v FeatureVector) (Prediction, error) {
	if len(v) != m.dim {
		return Prediction{}, &DimensionMismatchError{Want: m.dim, Got: len(v)}
	}

	neighbors := make([]neighbor, len(m.samples))
	for i, s := range m.samples {
		neighbors[i] = neighbor{index: i, distance: euclidean(v, s.Features)}
	}
	slices.SortFunc(neighbors, func(a, b neighbor) int {
		if c := cmp.Compare(a.distance, b.distance); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})

	var votes [numCategories]int
	nearest := [numCategories]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	for _, n := range neighbors[:m.k] {
		label := m.samples[n.index].Label
		votes[label]++
		if n.distance < nearest[label] {
			nearest[label] = n.distance
		}
	}

	best := Category(0)
	for c := Category(1); c < numCategories; c++ {
		if votes[c] > votes[best] {
			best = c
		}
	}

	return Prediction{Category: best, Votes: votes[best], K: m.k, Distance: nearest[best]}, nil
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
