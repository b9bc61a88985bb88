//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var errNoCGO = errors.New("ONNX encoder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEncoder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEncoder struct{}

// NewONNXEncoder returns an error when built without CGO (ONNX not available).
func NewONNXEncoder(_ ONNXOptions, _ *zap.Logger) (*ONNXEncoder, error) {
	return nil, errNoCGO
}

func (e *ONNXEncoder) Forward(context.Context, *Batch) (*HiddenStates, error) { return nil, errNoCGO }
func (e *ONNXEncoder) HiddenSize() int                                        { return 0 }
func (e *ONNXEncoder) Device() Device                                         { return "" }
func (e *ONNXEncoder) Close() error                                           { return nil }
