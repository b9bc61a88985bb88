//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// ONNXEncoder runs a BERT encoder exported to ONNX. It requires CGO and the
// onnxruntime shared library. Sessions are safe for concurrent Run calls and
// tensors are allocated per call, so no locking is needed.
type ONNXEncoder struct {
	session    *ort.DynamicAdvancedSession
	device     Device
	hiddenSize int
	inputNames []string
}

// NewONNXEncoder initializes the ONNX Runtime environment if needed and opens the model
// on the first device in opts.Devices that accepts it.
func NewONNXEncoder(opts ONNXOptions, logger *zap.Logger) (*ONNXEncoder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	enc := &ONNXEncoder{
		hiddenSize: opts.HiddenSize,
		inputNames: opts.InputNames,
	}
	device, err := SelectDevice(opts.Devices, func(d Device) error {
		session, err := newSession(opts, d)
		if err != nil {
			logger.Info("device unavailable, trying next", zap.String("device", string(d)), zap.Error(err))
			return err
		}
		enc.session = session
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	enc.device = device
	return enc, nil
}

func newSession(opts ONNXOptions, d Device) (*ort.DynamicAdvancedSession, error) {
	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer so.Destroy()

	switch d {
	case DeviceCoreML:
		if err := so.AppendExecutionProviderCoreML(0); err != nil {
			return nil, fmt.Errorf("append CoreML provider: %w", err)
		}
	case DeviceCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("CUDA provider options: %w", err)
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": "0"}); err != nil {
			return nil, fmt.Errorf("update CUDA provider options: %w", err)
		}
		if err := so.AppendExecutionProviderCUDA(cuda); err != nil {
			return nil, fmt.Errorf("append CUDA provider: %w", err)
		}
	}

	return ort.NewDynamicAdvancedSession(opts.ModelPath, opts.InputNames, []string{opts.OutputName}, so)
}

// Forward runs the encoder on batch and returns the last hidden state.
func (e *ONNXEncoder) Forward(_ context.Context, batch *Batch) (*HiddenStates, error) {
	shape := ort.NewShape(int64(batch.Size), int64(batch.SeqLen))
	inputs := make([]ort.ArbitraryTensor, 0, len(e.inputNames))
	defer func() {
		for _, t := range inputs {
			_ = t.Destroy()
		}
	}()
	for _, name := range e.inputNames {
		t, err := ort.NewTensor(shape, batch.inputData(name))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s tensor: %w", name, err)
		}
		inputs = append(inputs, t)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(batch.Size), int64(batch.SeqLen), int64(e.hiddenSize)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := e.session.Run(inputs, []ort.ArbitraryTensor{output}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return &HiddenStates{
		Data:       append([]float32(nil), output.GetData()...),
		BatchSize:  batch.Size,
		SeqLen:     batch.SeqLen,
		HiddenSize: e.hiddenSize,
	}, nil
}

// HiddenSize returns the encoder output dimension.
func (e *ONNXEncoder) HiddenSize() int {
	return e.hiddenSize
}

// Device returns the device the session was created on.
func (e *ONNXEncoder) Device() Device {
	return e.device
}

// Close destroys the session.
func (e *ONNXEncoder) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
