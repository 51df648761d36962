package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCheckStatus(t *testing.T) {
	for _, status := range AllCheckStatuses {
		got, ok := ParseCheckStatus(string(status))
		assert.True(t, ok)
		assert.Equal(t, status, got)
	}

	got, ok := ParseCheckStatus("  Passed ")
	assert.True(t, ok)
	assert.Equal(t, CheckPassed, got)

	_, ok = ParseCheckStatus("bogus")
	assert.False(t, ok)
}

func TestCheckStats(t *testing.T) {
	stats := CheckStats{Pending: 2, Passed: 3, Failed: 1, Checked: 1, Skipped: 1, Total: 8}

	assert.Equal(t, 6, stats.Done())
	for _, status := range AllCheckStatuses {
		assert.Positive(t, stats.ByStatus(status), "status %s", status)
	}
	assert.Zero(t, stats.ByStatus(CheckStatus("bogus")))
}
