package classifier

import (
	"errors"
	"sync"
	"testing"
)

func mustTrain(t *testing.T, n int, seed int64, k int) *Model {
	t.Helper()
	m, err := Train(n, seed, k)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	return m
}

func TestTrainAndPredictReferenceImages(t *testing.T) {
	m := mustTrain(t, 450, 123, 3)

	counts := m.Counts()
	for _, c := range Categories() {
		if counts[c] < 100 {
			t.Errorf("category %s has only %d of 450 samples", c, counts[c])
		}
	}

	for _, c := range Categories() {
		v, err := Extract(SyntheticImage(c))
		if err != nil {
			t.Fatal(err)
		}
		got, err := m.Predict(v)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		if got != c {
			t.Errorf("Predict(%s image) = %s", c, got)
		}
	}
}

func TestGenerateSamplesIsReproducible(t *testing.T) {
	a, err := GenerateSamples(200, 42)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateSamples(200, 42)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i].Label != b[i].Label {
			t.Fatalf("sample %d label %s vs %s", i, a[i].Label, b[i].Label)
		}
		for j := range a[i].Features {
			if a[i].Features[j] != b[i].Features[j] {
				t.Fatalf("sample %d feature %d differs", i, j)
			}
		}
	}

	query := FeatureVector{0.4, 0.3, 0.3, 0.6}
	m1 := mustTrain(t, 200, 42, 5)
	m2 := mustTrain(t, 200, 42, 5)
	p1, _ := m1.Classify(query)
	p2, _ := m2.Classify(query)
	if p1 != p2 {
		t.Errorf("rebuilt model disagrees: %+v vs %+v", p1, p2)
	}
}

func TestGenerateSamplesRejectsNonPositiveCount(t *testing.T) {
	var ipe *InvalidParameterError
	if _, err := GenerateSamples(0, 1); !errors.As(err, &ipe) {
		t.Fatalf("err = %v, want InvalidParameterError", err)
	}
}

func TestBuildValidation(t *testing.T) {
	samples := []Sample{
		{Features: FeatureVector{1, 0, 0, 0.3}, Label: Red},
		{Features: FeatureVector{0, 0, 1, 0.3}, Label: Blue},
	}

	tests := []struct {
		name    string
		samples []Sample
		k       int
		param   string
	}{
		{"empty", nil, 1, "samples"},
		{"k zero", samples, 0, "k"},
		{"k negative", samples, -2, "k"},
		{"k exceeds count", samples, 3, "k"},
		{"ragged features", append([]Sample{{Features: FeatureVector{1, 2}, Label: Red}}, samples...), 1, "samples"},
		{"invalid label", []Sample{{Features: FeatureVector{1, 0, 0, 0}, Label: Category(9)}}, 1, "samples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.samples, tt.k)
			var ipe *InvalidParameterError
			if !errors.As(err, &ipe) {
				t.Fatalf("err = %v, want InvalidParameterError", err)
			}
			if ipe.Param != tt.param {
				t.Errorf("param = %q, want %q", ipe.Param, tt.param)
			}
		})
	}

	if _, err := Build(samples, 2); err != nil {
		t.Errorf("k equal to sample count should build: %v", err)
	}
}

func TestBuildCopiesSamples(t *testing.T) {
	samples := []Sample{{Features: FeatureVector{1, 0, 0, 0.5}, Label: Red}}
	m, err := Build(samples, 1)
	if err != nil {
		t.Fatal(err)
	}
	samples[0].Features[0] = 0
	samples[0].Label = Green

	got, err := m.Predict(FeatureVector{1, 0, 0, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if got != Red {
		t.Errorf("model changed with caller's slice: got %s", got)
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	m := mustTrain(t, 30, 1, 3)
	_, err := m.Predict(FeatureVector{0.5, 0.5})
	var dme *DimensionMismatchError
	if !errors.As(err, &dme) {
		t.Fatalf("err = %v, want DimensionMismatchError", err)
	}
	if dme.Want != FeatureDim || dme.Got != 2 {
		t.Errorf("got %+v", dme)
	}
}

func TestPredictTieGoesToLowestLabel(t *testing.T) {
	// Blue and Green are equidistant from the query and each get one vote.
	samples := []Sample{
		{Features: FeatureVector{0, 1, 0, 0}, Label: Green},
		{Features: FeatureVector{0, 0, 1, 0}, Label: Blue},
	}
	m, err := Build(samples, 2)
	if err != nil {
		t.Fatal(err)
	}
	p, err := m.Classify(FeatureVector{0, 0.5, 0.5, 0})
	if err != nil {
		t.Fatal(err)
	}
	if p.Category != Blue {
		t.Errorf("tie resolved to %s, want BLUE", p.Category)
	}
	if p.Votes != 1 || p.K != 2 || p.Confidence() != 0.5 {
		t.Errorf("prediction = %+v", p)
	}
}

func TestPredictMajority(t *testing.T) {
	samples := []Sample{
		{Features: FeatureVector{1, 0, 0, 0}, Label: Red},
		{Features: FeatureVector{0.9, 0.1, 0, 0}, Label: Green},
		{Features: FeatureVector{0.95, 0.05, 0, 0}, Label: Green},
		{Features: FeatureVector{0, 0, 1, 0}, Label: Blue},
	}
	m, err := Build(samples, 3)
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Predict(FeatureVector{1, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if got != Green {
		t.Errorf("got %s, want GREEN (2 of 3 votes)", got)
	}
}

func TestPredictConcurrentReads(t *testing.T) {
	m := mustTrain(t, 90, 7, 3)
	want := make(map[Category]Category)
	for _, c := range Categories() {
		v, _ := Extract(SyntheticImage(c))
		want[c], _ = m.Predict(v)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range Categories() {
				v, _ := Extract(SyntheticImage(c))
				got, err := m.Predict(v)
				if err != nil || got != want[c] {
					errs <- c.String()
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for c := range errs {
		t.Errorf("concurrent prediction for %s diverged", c)
	}
}
