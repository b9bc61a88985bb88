package embedding

import (
	"fmt"

	"github.com/hyperjump/lexembed/pkg/utils"
)

// Pooling selects how per-token outputs are reduced to one vector per text.
type Pooling string

const (
	// PoolingCLS takes the output at the first ([CLS]) position. Canonical.
	PoolingCLS Pooling = "cls"
	// PoolingMean averages outputs weighted by the attention mask.
	//
	// Deprecated: kept only for the legacy endpoint.
	PoolingMean Pooling = "mean"
)

// maskEpsilon bounds the mask sum from below so an all-padding row cannot divide by zero.
const maskEpsilon = 1e-9

// ParsePooling returns the pooling strategy named s.
func ParsePooling(s string) (Pooling, error) {
	switch Pooling(s) {
	case PoolingCLS, PoolingMean:
		return Pooling(s), nil
	default:
		return "", fmt.Errorf("unknown pooling strategy %q", s)
	}
}

// Pool reduces hidden states to one L2-normalized vector per example of batch.
func Pool(h *HiddenStates, batch *Batch, strategy Pooling) ([][]float32, error) {
	if err := h.validate(batch); err != nil {
		return nil, err
	}
	out := make([][]float32, h.BatchSize)
	for b := 0; b < h.BatchSize; b++ {
		var vec []float32
		switch strategy {
		case PoolingCLS:
			vec = append([]float32(nil), h.Token(b, 0)...)
		case PoolingMean:
			vec = meanPool(h, b, batch.Mask(b))
		default:
			return nil, fmt.Errorf("unknown pooling strategy %q", strategy)
		}
		utils.NormalizeL2(vec)
		out[b] = vec
	}
	return out, nil
}

func meanPool(h *HiddenStates, b int, mask []int64) []float32 {
	sum := make([]float64, h.HiddenSize)
	var count float64
	for t := 0; t < h.SeqLen; t++ {
		if mask[t] == 0 {
			continue
		}
		w := float64(mask[t])
		for i, v := range h.Token(b, t) {
			sum[i] += float64(v) * w
		}
		count += w
	}
	if count < maskEpsilon {
		count = maskEpsilon
	}
	vec := make([]float32, h.HiddenSize)
	for i := range sum {
		vec[i] = float32(sum[i] / count)
	}
	return vec
}
