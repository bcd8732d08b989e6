package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, HistoryLimit(0))
	assert.Equal(t, DefaultHistoryLimit, HistoryLimit(-1))
	assert.Equal(t, 3, HistoryLimit(3))
}

func TestSampleLimit(t *testing.T) {
	assert.Equal(t, DefaultSampleLimit, SampleLimit(0))
	assert.Equal(t, DefaultSampleLimit, SampleLimit(-10))
	assert.Equal(t, 7, SampleLimit(7))
	assert.Equal(t, MaxSampleLimit, SampleLimit(MaxSampleLimit))
	assert.Equal(t, MaxSampleLimit, SampleLimit(MaxSampleLimit+1))
}
