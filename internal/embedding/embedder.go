// Package embedding turns text into normalized sentence vectors with a BERT-style
// encoder: WordPiece tokenization, an ONNX forward pass, pooling, and L2 normalization.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is returned while the model handle has not finished loading
// (or failed to load).
var ErrUnavailable = errors.New("model not loaded")

// ProcessingError wraps a failure raised while tokenizing or running the encoder.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Tokenizer converts a batch of texts into padded model inputs.
type Tokenizer interface {
	TokenizeBatch(texts []string, maxTokens int) (*Batch, error)
}

// Encoder runs a forward pass and returns per-token hidden states.
type Encoder interface {
	Forward(ctx context.Context, batch *Batch) (*HiddenStates, error)
	HiddenSize() int
	Device() Device
	Close() error
}

// Batch holds row-major [Size, SeqLen] encoder inputs.
type Batch struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	Size          int
	SeqLen        int
}

// Mask returns the attention mask row of example i.
func (b *Batch) Mask(i int) []int64 {
	return b.AttentionMask[i*b.SeqLen : (i+1)*b.SeqLen]
}

// HiddenStates holds a row-major [BatchSize, SeqLen, HiddenSize] encoder output.
type HiddenStates struct {
	Data       []float32
	BatchSize  int
	SeqLen     int
	HiddenSize int
}

// Token returns the output vector of example b at sequence position t.
func (h *HiddenStates) Token(b, t int) []float32 {
	off := (b*h.SeqLen + t) * h.HiddenSize
	return h.Data[off : off+h.HiddenSize]
}

func (h *HiddenStates) validate(batch *Batch) error {
	if h.BatchSize != batch.Size || h.SeqLen != batch.SeqLen {
		return fmt.Errorf("encoder output shape [%d,%d,%d] does not match batch [%d,%d]",
			h.BatchSize, h.SeqLen, h.HiddenSize, batch.Size, batch.SeqLen)
	}
	if len(h.Data) != h.BatchSize*h.SeqLen*h.HiddenSize {
		return fmt.Errorf("encoder output has %d values, want %d",
			len(h.Data), h.BatchSize*h.SeqLen*h.HiddenSize)
	}
	return nil
}
