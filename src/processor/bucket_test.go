package processor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func TestTimePeriod(t *testing.T) {
	cases := map[int]string{
		5: Morning, 11: Morning,
		12: Afternoon, 17: Afternoon,
		18: Evening, 22: Evening,
		23: Night, 0: Night, 1: Night, 4: Night,
	}
	for hour, want := range cases {
		assert.Equal(t, want, TimePeriod(hour, PeriodTotal), "hour %d", hour)
	}
}

func TestTimePeriodTotalOverDay(t *testing.T) {
	for h := 0; h < 24; h++ {
		assert.NotEmpty(t, TimePeriod(h, PeriodTotal), "hour %d", h)
	}
}

func TestTimePeriodLegacyLeavesNightEmpty(t *testing.T) {
	for _, h := range []int{23, 0, 1, 2, 3, 4} {
		assert.Empty(t, TimePeriod(h, PeriodLegacy), "hour %d", h)
	}
	assert.Equal(t, Morning, TimePeriod(5, PeriodLegacy))
	assert.Equal(t, Evening, TimePeriod(22, PeriodLegacy))
}

func TestParsePeriodPolicy(t *testing.T) {
	p, err := ParsePeriodPolicy("legacy")
	require.NoError(t, err)
	assert.Equal(t, PeriodLegacy, p)

	p, err = ParsePeriodPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PeriodTotal, p)

	_, err = ParsePeriodPolicy("night-owl")
	assert.Error(t, err)
}

func TestRatingGroup(t *testing.T) {
	cases := []struct {
		rating *float64
		want   string
	}{
		{fp(0), "0-1"},
		{fp(0.5), "0-1"},
		{fp(1), "1-2"},
		{fp(3.99), "3-4"},
		{fp(4), "4-5"},
		{fp(4.9), "4-5"},
		{fp(5.0), "4-5"},
		{fp(5.01), Unbucketed},
		{fp(-0.1), Unbucketed},
		{fp(math.NaN()), Unbucketed},
		{nil, Unbucketed},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RatingGroup(c.rating, DefaultRatingEdges))
	}
}

func TestRatingGroupCustomEdges(t *testing.T) {
	edges := []float64{0, 2.5, 5}
	assert.Equal(t, []string{"0-2.5", "2.5-5"}, RatingLabels(edges))
	assert.Equal(t, "0-2.5", RatingGroup(fp(2.4), edges))
	assert.Equal(t, "2.5-5", RatingGroup(fp(2.5), edges))
	assert.Equal(t, Unbucketed, RatingGroup(fp(1), []float64{1}))
}
