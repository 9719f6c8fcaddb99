package nca

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWeightsFile(t *testing.T, wj weightsJSON) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.json")
	data, err := json.Marshal(wj)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func validWeightsJSON() weightsJSON {
	wj := weightsJSON{
		B1: make([]float32, HiddenDim),
		B2: make([]float32, Channels),
	}
	for i := 0; i < HiddenDim; i++ {
		wj.W1 = append(wj.W1, make([]float32, Features))
	}
	for i := 0; i < Channels; i++ {
		wj.W2 = append(wj.W2, make([]float32, HiddenDim))
	}
	return wj
}

func TestLoadWeightsValid(t *testing.T) {
	path := writeWeightsFile(t, validWeightsJSON())
	w, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Len(t, w.W1, HiddenDim*Features)
	assert.Len(t, w.B1, HiddenDim)
	assert.Len(t, w.W2, Channels*HiddenDim)
	assert.Len(t, w.B2, Channels)
}

func TestLoadWeightsMissingFile(t *testing.T) {
	_, err := LoadWeights(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}

func TestLoadWeightsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadWeights(path)
	assert.Error(t, err)
}

func TestLoadWeightsWrongShape(t *testing.T) {
	wj := validWeightsJSON()
	wj.W1 = wj.W1[:HiddenDim-1]
	path := writeWeightsFile(t, wj)
	_, err := LoadWeights(path)
	assert.Error(t, err)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, float32(0), clamp01(-5))
	assert.Equal(t, float32(1), clamp01(5))
	assert.Equal(t, float32(0.3), clamp01(0.3))
}

func TestDetHashInUnitRange(t *testing.T) {
	for i := uint32(0); i < 1000; i++ {
		v := detHash(i)
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}
