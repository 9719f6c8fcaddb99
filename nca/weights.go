package nca

import (
	"encoding/json"
	"fmt"
	"os"
)

// Dimensions fixed by spec.md §4.3.1: 16-channel state, 64-wide hidden
// layer, 56 perceive+goal features (3*16 perceive + 8 goal).
const (
	Channels  = 16
	HiddenDim = 64
	Features  = 56
)

// Weights holds the four flattened, row-major MLP parameter arrays.
type Weights struct {
	W1 []float32 // HiddenDim x Features
	B1 []float32 // HiddenDim
	W2 []float32 // Channels x HiddenDim
	B2 []float32 // Channels
}

type weightsJSON struct {
	W1 [][]float32 `json:"w1"`
	B1 []float32   `json:"b1"`
	W2 [][]float32 `json:"w2"`
	B2 []float32   `json:"b2"`
}

// LoadWeights reads and validates the NCA weight file. Per spec.md §4.3.3
// and §7, any failure here (missing file, bad JSON, wrong shape) is not
// itself an error to the caller's process — the orchestrator wiring
// catches it and falls back to the RDS backend with a single warning log
// line; LoadWeights itself just reports what went wrong.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("nca: read weights: %w", err)
	}
	var wj weightsJSON
	if err := json.Unmarshal(data, &wj); err != nil {
		return Weights{}, fmt.Errorf("nca: parse weights: %w", err)
	}
	if len(wj.W1) != HiddenDim {
		return Weights{}, fmt.Errorf("nca: w1 has %d rows, want %d", len(wj.W1), HiddenDim)
	}
	if len(wj.B1) != HiddenDim {
		return Weights{}, fmt.Errorf("nca: b1 has %d entries, want %d", len(wj.B1), HiddenDim)
	}
	if len(wj.W2) != Channels {
		return Weights{}, fmt.Errorf("nca: w2 has %d rows, want %d", len(wj.W2), Channels)
	}
	if len(wj.B2) != Channels {
		return Weights{}, fmt.Errorf("nca: b2 has %d entries, want %d", len(wj.B2), Channels)
	}

	w := Weights{B1: wj.B1, B2: wj.B2}
	w.W1 = make([]float32, 0, HiddenDim*Features)
	for i, row := range wj.W1 {
		if len(row) != Features {
			return Weights{}, fmt.Errorf("nca: w1 row %d has %d entries, want %d", i, len(row), Features)
		}
		w.W1 = append(w.W1, row...)
	}
	w.W2 = make([]float32, 0, Channels*HiddenDim)
	for i, row := range wj.W2 {
		if len(row) != HiddenDim {
			return Weights{}, fmt.Errorf("nca: w2 row %d has %d entries, want %d", i, len(row), HiddenDim)
		}
		w.W2 = append(w.W2, row...)
	}
	return w, nil
}
