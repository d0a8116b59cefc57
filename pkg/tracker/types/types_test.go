package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPeriodKeyCompare verifies lexicographic ordering of (season, section)
// pairs, which drives every transition classification.
func TestPeriodKeyCompare(t *testing.T) {
	tests := []struct {
		name     string
		a        PeriodKey
		b        PeriodKey
		expected int
	}{
		{
			name:     "equal",
			a:        PeriodKey{SeasonID: 75, SectionIndex: 2},
			b:        PeriodKey{SeasonID: 75, SectionIndex: 2},
			expected: 0,
		},
		{
			name:     "same season, later section",
			a:        PeriodKey{SeasonID: 75, SectionIndex: 3},
			b:        PeriodKey{SeasonID: 75, SectionIndex: 2},
			expected: 1,
		},
		{
			name:     "same season, earlier section",
			a:        PeriodKey{SeasonID: 75, SectionIndex: 1},
			b:        PeriodKey{SeasonID: 75, SectionIndex: 2},
			expected: -1,
		},
		{
			name:     "later season beats higher section",
			a:        PeriodKey{SeasonID: 76, SectionIndex: 0},
			b:        PeriodKey{SeasonID: 75, SectionIndex: 4},
			expected: 1,
		},
		{
			name:     "earlier season loses despite higher section",
			a:        PeriodKey{SeasonID: 74, SectionIndex: 4},
			b:        PeriodKey{SeasonID: 75, SectionIndex: 0},
			expected: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.expected, tt.b.Compare(tt.a))
			assert.Equal(t, tt.expected > 0, tt.a.After(tt.b))
			assert.Equal(t, tt.expected < 0, tt.a.Before(tt.b))
		})
	}
}

// TestNormalizePeriodType verifies unknown period tags collapse to "other".
func TestNormalizePeriodType(t *testing.T) {
	assert.Equal(t, PeriodTraining, NormalizePeriodType("training"))
	assert.Equal(t, PeriodWarDay, NormalizePeriodType("warDay"))
	assert.Equal(t, PeriodColosseum, NormalizePeriodType("colosseum"))
	assert.Equal(t, PeriodOther, NormalizePeriodType("nextPeriodNotYetStarted"))
	assert.Equal(t, PeriodOther, NormalizePeriodType(""))
}

// TestFetchErrorRetryable verifies only transient kinds are retryable in-client.
func TestFetchErrorRetryable(t *testing.T) {
	assert.True(t, (&FetchError{Kind: FetchRateLimited}).Retryable())
	assert.True(t, (&FetchError{Kind: FetchNetwork}).Retryable())
	assert.False(t, (&FetchError{Kind: FetchNotFound}).Retryable())
	assert.False(t, (&FetchError{Kind: FetchUnauthorized}).Retryable())
}

// TestGetChannel verifies channel name construction.
func TestGetChannel(t *testing.T) {
	assert.Equal(t, "riverrace:#ABC123:cycle.completed", GetCycleCompletedChannel("#ABC123"))
	assert.Equal(t, "riverrace:#ABC123:boundary", GetBoundaryChannel("#ABC123"))
	assert.Equal(t, "riverrace:#ABC123:events", EventsStream("#ABC123"))
}
