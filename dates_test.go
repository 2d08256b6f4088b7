package tasksync_test

import (
	"testing"
	"time"

	"github.com/hyperengineering/tasksync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339 utc", "2024-01-20T10:00:00Z", time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)},
		{"rfc3339 offset", "2024-01-20T10:00:00+02:00", time.Date(2024, 1, 20, 8, 0, 0, 0, time.UTC)},
		{"zoneless fraction", "2024-01-02T15:00:00.0000000", time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)},
		{"zoneless", "2024-01-02T15:00:00", time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)},
		{"date only", "2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tasksync.ParseTimestamp(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "invalid-date-format", "2024-13-45", "yesterday"} {
		_, err := tasksync.ParseTimestamp(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestLiteralDate(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"2024-01-02T15:00:00.0000000", "2024-01-02", true},
		{"2024-01-02T00:00:00.0000000", "2024-01-02", true},
		{"2024-01-02", "2024-01-02", true},
		{"2024-1-2", "", false},
		{"", "", false},
		{"not-a-date-at-all", "", false},
	}

	for _, tt := range tests {
		got, ok := tasksync.LiteralDate(tt.input)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestLocalDate(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	newYork := time.FixedZone("EST", -5*60*60)

	got, err := tasksync.LocalDate("2024-01-05T20:00:00Z", tokyo)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-06", got)

	got, err = tasksync.LocalDate("2024-01-05T02:00:00Z", newYork)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-04", got)

	got, err = tasksync.LocalDate("2024-01-05T10:30:00Z", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", got)

	_, err = tasksync.LocalDate("garbage", time.UTC)
	assert.Error(t, err)
}

func TestValidDate(t *testing.T) {
	assert.True(t, tasksync.ValidDate("2024-02-29"))
	assert.False(t, tasksync.ValidDate("2023-02-29"))
	assert.False(t, tasksync.ValidDate("20240229"))
	assert.False(t, tasksync.ValidDate(""))
}
