package embedding

import "fmt"

// Encoder input tensor names understood by ONNXEncoder.
const (
	InputIDs      = "input_ids"
	AttentionMask = "attention_mask"
	TokenTypeIDs  = "token_type_ids"
)

// ONNXOptions configures an ONNX Runtime encoder session.
type ONNXOptions struct {
	ModelPath         string
	SharedLibraryPath string
	HiddenSize        int
	InputNames        []string
	OutputName        string
	Devices           []Device
}

func (o *ONNXOptions) validate() error {
	if o.ModelPath == "" {
		return fmt.Errorf("model path not provided")
	}
	if o.HiddenSize <= 0 {
		return fmt.Errorf("hidden size must be positive, got %d", o.HiddenSize)
	}
	if o.OutputName == "" {
		return fmt.Errorf("output name not provided")
	}
	if len(o.InputNames) == 0 {
		return fmt.Errorf("no input names configured")
	}
	for _, name := range o.InputNames {
		switch name {
		case InputIDs, AttentionMask, TokenTypeIDs:
		default:
			return fmt.Errorf("unsupported encoder input %q", name)
		}
	}
	return nil
}

// inputData returns the batch column feeding the named encoder input.
func (b *Batch) inputData(name string) []int64 {
	switch name {
	case AttentionMask:
		return b.AttentionMask
	case TokenTypeIDs:
		return b.TokenTypeIDs
	default:
		return b.InputIDs
	}
}
