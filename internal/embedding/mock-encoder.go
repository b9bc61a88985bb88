package embedding

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
)

// MockEncoder is a deterministic encoder for tests. Each real token gets a vector derived
// from its id and position; position 0 additionally sums every real token so that the
// [CLS] output summarizes the whole sequence. Padding never influences real positions.
type MockEncoder struct {
	hiddenSize int
	device     Device
	// Err, when set, is returned by every Forward call.
	Err   error
	calls atomic.Int64
}

// NewMockEncoder returns a mock encoder producing vectors of the given size.
func NewMockEncoder(hiddenSize int) *MockEncoder {
	if hiddenSize <= 0 {
		hiddenSize = 768
	}
	return &MockEncoder{hiddenSize: hiddenSize, device: DeviceCPU}
}

// Forward fills hidden states for every position of batch.
func (e *MockEncoder) Forward(_ context.Context, batch *Batch) (*HiddenStates, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	h := &HiddenStates{
		Data:       make([]float32, batch.Size*batch.SeqLen*e.hiddenSize),
		BatchSize:  batch.Size,
		SeqLen:     batch.SeqLen,
		HiddenSize: e.hiddenSize,
	}
	for b := 0; b < batch.Size; b++ {
		mask := batch.Mask(b)
		cls := h.Token(b, 0)
		for t := 0; t < batch.SeqLen; t++ {
			id := batch.InputIDs[b*batch.SeqLen+t]
			out := h.Token(b, t)
			for i := range out {
				v := float32(math.Sin(float64(id+1)*float64(i+1)+0.1*float64(t))*0.1 + 0.01)
				if mask[t] == 0 {
					v = -v
				}
				out[i] = v
				if mask[t] == 1 && t > 0 {
					cls[i] += v
				}
			}
		}
	}
	return h, nil
}

// Calls returns how many times Forward has been invoked.
func (e *MockEncoder) Calls() int64 {
	return e.calls.Load()
}

// HiddenSize returns the configured output dimension.
func (e *MockEncoder) HiddenSize() int {
	return e.hiddenSize
}

// Device always reports the CPU.
func (e *MockEncoder) Device() Device {
	return e.device
}

// Close is a no-op for MockEncoder.
func (e *MockEncoder) Close() error {
	return nil
}

// SimpleTokenizer is a whitespace tokenizer with hash-based token ids, for tests or
// when no vocabulary is available.
type SimpleTokenizer struct{}

// TokenizeBatch splits each text into words and pads the batch to its longest sequence.
func (t *SimpleTokenizer) TokenizeBatch(texts []string, maxTokens int) (*Batch, error) {
	rows := make([][]int64, len(texts))
	seqLen := 0
	for i, text := range texts {
		ids := []int64{101} // [CLS]
		for _, word := range strings.Fields(text) {
			if len(ids) >= maxTokens-1 {
				break
			}
			ids = append(ids, int64(HashString(word)%30000)+1000)
		}
		ids = append(ids, 102) // [SEP]
		rows[i] = ids
		if len(ids) > seqLen {
			seqLen = len(ids)
		}
	}
	batch := &Batch{
		InputIDs:      make([]int64, len(texts)*seqLen),
		AttentionMask: make([]int64, len(texts)*seqLen),
		TokenTypeIDs:  make([]int64, len(texts)*seqLen),
		Size:          len(texts),
		SeqLen:        seqLen,
	}
	for i, ids := range rows {
		copy(batch.InputIDs[i*seqLen:], ids)
		for j := range ids {
			batch.AttentionMask[i*seqLen+j] = 1
		}
	}
	return batch, nil
}

// HashString returns a deterministic non-negative hash for use as a simple token ID.
func HashString(s string) int {
	var h uint32
	for _, c := range s {
		h = 31*h + uint32(c)
	}
	return int(h)
}
