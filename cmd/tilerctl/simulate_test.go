package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallSimulation(t *testing.T) {
	t.Helper()
	prev := simOpts
	t.Cleanup(func() { simOpts = prev })
	simOpts.iterations = 2
	simOpts.ops = 500
	simOpts.workers = 4
	simOpts.groups = 4
}

func TestRunSimulation(t *testing.T) {
	smallSimulation(t)

	res, err := runSimulation(1, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iteration)
	assert.Positive(t, res.Requested)
	assert.Positive(t, res.Reserved)
	assert.LessOrEqual(t, res.Reserved, res.Requested)
	assert.Equal(t, res.Allocations+res.Failures, res.Pool.TotalAllocations)
	assert.Equal(t, res.Pool.TotalAllocations, res.Pool.PoolHits+res.Pool.PoolMisses)
	assert.GreaterOrEqual(t, res.PeakUsage, res.FinalUsage)
}

func TestRunSimulate_Report(t *testing.T) {
	smallSimulation(t)

	var out bytes.Buffer
	require.NoError(t, runSimulate(&out, 7))
	assert.Contains(t, out.String(), "Starting tiler simulation with 2 iterations")
	assert.Contains(t, out.String(), "Iteration 2 results:")
	assert.Contains(t, out.String(), "Average pool hits:")
}

func TestPercent(t *testing.T) {
	assert.Zero(t, percent(3, 0))
	assert.InDelta(t, 25.0, percent(1, 4), 1e-9)
}
