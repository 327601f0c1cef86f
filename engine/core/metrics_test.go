package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsAverageAndFPS(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
	assert.Zero(t, m.FPS())

	// 30 frames so far account for 300ms, 71 more crosses one second
	for i := 0; i < 71; i++ {
		m.Update(0.010)
	}
	fps, frameTime := m.Frame()
	assert.Equal(t, float64(100), fps)
	assert.InDelta(t, 10.0, frameTime, 1e-9)
}
