package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pcstream/pkg/cloud"
	"pcstream/pkg/pcd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	points := []cloud.Point{{X: 0}, {X: 1}, {X: 5, Y: 5, Z: 5}}
	colors := make([]cloud.Color, len(points))
	var buf bytes.Buffer
	require.NoError(t, pcd.Encode(&buf, points, colors))
	fn := filepath.Join(t.TempDir(), "a.pcd")
	require.NoError(t, os.WriteFile(fn, buf.Bytes(), 0o644))
	return fn
}

func cal(t *testing.T, reqs ...PCD) []Result {
	t.Helper()
	var in, out bytes.Buffer
	enc := json.NewEncoder(&in)
	for _, r := range reqs {
		require.NoError(t, enc.Encode(r))
	}
	Cal(context.Background(), &in, &out)
	var results []Result
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r Result
		require.NoError(t, dec.Decode(&r))
		results = append(results, r)
	}
	return results
}

func TestCal(t *testing.T) {
	fn := writeFixture(t)
	results := cal(t,
		PCD{PCDFile: fn, Labels: [][]float32{{0, 0, 0, 1, 4, 1, 0}}},
		PCD{PCDFile: fn, Labels: [][]float32{{0, 0}}},
		PCD{PCDFile: filepath.Join(t.TempDir(), "missing.pcd")},
		PCD{PCDFile: fn},
	)
	require.Len(t, results, 4)

	assert.Empty(t, results[0].Error)
	assert.InDelta(t, 1/(AreaPrecision*AreaPrecision), results[0].Area, 0.01)
	assert.Equal(t, []int{2}, results[0].LabelCount)

	assert.Equal(t, errInvalidLabels.Error(), results[1].Error)
	assert.NotEmpty(t, results[2].Error)

	assert.Empty(t, results[3].Error)
	assert.Equal(t, []int{}, results[3].LabelCount)
}

func TestCalBrokenInput(t *testing.T) {
	var out bytes.Buffer
	Cal(context.Background(), strings.NewReader("{not json"), &out)
	var r Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &r))
	assert.NotEmpty(t, r.Error)
}
