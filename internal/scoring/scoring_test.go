package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    int
	}{
		{
			name:    "equal weights",
			entries: []Entry{{Weight: 50, Score: ptr(80)}, {Weight: 50, Score: ptr(60)}},
			want:    70,
		},
		{
			name:    "unequal weights favour heavier criterion",
			entries: []Entry{{Weight: 80, Score: ptr(90)}, {Weight: 20, Score: ptr(40)}},
			want:    80,
		},
		{
			name:    "unscored entries contribute no weight",
			entries: []Entry{{Weight: 50, Score: ptr(80)}, {Weight: 50, Score: nil}},
			want:    80,
		},
		{
			name:    "empty list",
			entries: nil,
			want:    0,
		},
		{
			name:    "all unscored",
			entries: []Entry{{Weight: 30}, {Weight: 70}},
			want:    0,
		},
		{
			name:    "zero weights with scores present",
			entries: []Entry{{Weight: 0, Score: ptr(100)}, {Weight: 0, Score: ptr(50)}},
			want:    0,
		},
		{
			name:    "rounds to nearest",
			entries: []Entry{{Weight: 10, Score: ptr(71)}, {Weight: 10, Score: ptr(72)}},
			want:    72,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WeightedAverage(tc.entries))
		})
	}
}

func TestCompositeWeighting(t *testing.T) {
	assert.Equal(t, 15, Composite(ptr(100), nil, nil))
	assert.Equal(t, 15, Composite(nil, []float64{100}, nil))
	assert.Equal(t, 70, Composite(nil, nil, []float64{100}))
	assert.Equal(t, 100, Composite(ptr(100), []float64{100}, []float64{100}))
	assert.Equal(t, 0, Composite(nil, nil, nil))
}

func TestCompositeAveragesWithinType(t *testing.T) {
	// Two peers at 80 and 60 average to 70 before weighting.
	assert.Equal(t, 11, Composite(nil, []float64{80, 60}, nil))
	// Supervisor average 50 contributes 35.
	assert.Equal(t, 35, Composite(nil, nil, []float64{40, 60}))
}

func TestCompositeMonotonic(t *testing.T) {
	base := Composite(ptr(40), []float64{40}, []float64{40})
	for delta := 10.0; delta <= 60; delta += 10 {
		assert.GreaterOrEqual(t, Composite(ptr(40+delta), []float64{40}, []float64{40}), base)
		assert.GreaterOrEqual(t, Composite(ptr(40), []float64{40 + delta}, []float64{40}), base)
		assert.GreaterOrEqual(t, Composite(ptr(40), []float64{40}, []float64{40 + delta}), base)
	}
}

func TestCompositeBounded(t *testing.T) {
	for self := 0.0; self <= 100; self += 25 {
		for peer := 0.0; peer <= 100; peer += 25 {
			for sup := 0.0; sup <= 100; sup += 25 {
				got := Composite(ptr(self), []float64{peer}, []float64{sup})
				assert.GreaterOrEqual(t, got, 0)
				assert.LessOrEqual(t, got, 100)
			}
		}
	}
}

func TestRankScoreFlows(t *testing.T) {
	// rank 4 against weight 100 saturates the base formula.
	assert.InDelta(t, 100, RankScore(4, 100, FlowSelf), 1e-9)
	assert.InDelta(t, 15, RankScore(4, 100, FlowPeer), 1e-9)
	assert.InDelta(t, 10, RankScore(4, 100, FlowPeerBehavioral), 1e-9)

	assert.InDelta(t, 5, RankScore(2, 10, FlowSelf), 1e-9)
	assert.InDelta(t, 0.75, RankScore(2, 10, FlowPeer), 1e-9)
}
