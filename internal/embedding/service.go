package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Service.
type State int32

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// CanonicalPooling is the strategy served by the primary embed endpoint.
const CanonicalPooling = PoolingCLS

// Model is the immutable handle shared by all requests once loading completes.
type Model struct {
	Tokenizer Tokenizer
	Encoder   Encoder
}

// Loader builds the model handle. It runs once, from Service.Start.
type Loader func(ctx context.Context) (*Model, error)

// Options configures a Service.
type Options struct {
	ModelName string
	MaxTokens int
	BatchSize int
	CacheSize int
}

// Status describes the service for health reporting.
type Status struct {
	State      State
	Model      string
	Device     Device
	Pooling    Pooling
	Dimensions int
}

// Service embeds texts with a model loaded once at startup. It moves from loading to
// ready (or failed) exactly once; Embed fails with ErrUnavailable until it is ready.
type Service struct {
	opts    Options
	model   atomic.Pointer[Model]
	state   atomic.Int32
	started atomic.Bool
	cache   *EmbeddingCache
	logger  *zap.Logger
}

// NewService creates a service in the loading state.
func NewService(opts Options, logger *zap.Logger) *Service {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		opts:   opts,
		cache:  NewEmbeddingCache(opts.CacheSize),
		logger: logger,
	}
}

// Start loads the model. On failure the service is left in the failed state for good.
func (s *Service) Start(ctx context.Context, load Loader) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("service already started")
	}
	s.logger.Info("loading model", zap.String("model", s.opts.ModelName))
	started := time.Now()

	m, err := load(ctx)
	if err == nil && (m == nil || m.Tokenizer == nil || m.Encoder == nil) {
		err = errors.New("loader returned an incomplete model")
	}
	if err != nil {
		s.state.Store(int32(StateFailed))
		s.logger.Error("failed to load model", zap.String("model", s.opts.ModelName), zap.Error(err))
		return fmt.Errorf("load model %s: %w", s.opts.ModelName, err)
	}

	s.model.Store(m)
	s.state.Store(int32(StateReady))
	s.logger.Info("model loaded",
		zap.String("model", s.opts.ModelName),
		zap.String("device", string(m.Encoder.Device())),
		zap.Int("dimensions", m.Encoder.HiddenSize()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Ready reports whether tokenizer and encoder are loaded.
func (s *Service) Ready() bool {
	return s.State() == StateReady && s.model.Load() != nil
}

// Status returns the current health report.
func (s *Service) Status() Status {
	st := Status{
		State:   s.State(),
		Model:   s.opts.ModelName,
		Pooling: CanonicalPooling,
	}
	if m := s.model.Load(); m != nil {
		st.Device = m.Encoder.Device()
		st.Dimensions = m.Encoder.HiddenSize()
	}
	return st
}

// Embed returns one unit-length vector per text, in input order. Texts are encoded in
// batches of Options.BatchSize, each padded to its own longest sequence.
func (s *Service) Embed(ctx context.Context, texts []string, pooling Pooling) ([][]float32, error) {
	m := s.model.Load()
	if m == nil || s.State() != StateReady {
		return nil, ErrUnavailable
	}
	if _, err := ParsePooling(string(pooling)); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	missing := make([]int, 0, len(texts))
	for i, text := range texts {
		if v, ok := s.cache.Get(pooling, text); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(missing) {
			end = len(missing)
		}
		idx := missing[start:end]
		batchTexts := make([]string, len(idx))
		for j, i := range idx {
			batchTexts[j] = texts[i]
		}
		vecs, err := s.embedBatch(ctx, m, batchTexts, pooling)
		if err != nil {
			s.logger.Error("embedding batch failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(idx)),
				zap.Error(err),
			)
			return nil, err
		}
		for j, i := range idx {
			out[i] = vecs[j]
			s.cache.Set(pooling, texts[i], vecs[j])
		}
	}

	s.logger.Debug("generated embeddings",
		zap.Int("texts", len(texts)),
		zap.Int("computed", len(missing)),
		zap.String("pooling", string(pooling)),
	)
	return out, nil
}

func (s *Service) embedBatch(ctx context.Context, m *Model, texts []string, pooling Pooling) ([][]float32, error) {
	batch, err := m.Tokenizer.TokenizeBatch(texts, s.opts.MaxTokens)
	if err != nil {
		return nil, &ProcessingError{Stage: "tokenize", Err: err}
	}
	hidden, err := m.Encoder.Forward(ctx, batch)
	if err != nil {
		return nil, &ProcessingError{Stage: "inference", Err: err}
	}
	vecs, err := Pool(hidden, batch, pooling)
	if err != nil {
		return nil, &ProcessingError{Stage: "pooling", Err: err}
	}
	return vecs, nil
}

// Close releases the encoder, if loaded.
func (s *Service) Close() error {
	if m := s.model.Load(); m != nil {
		return m.Encoder.Close()
	}
	return nil
}

// ONNXLoader returns a Loader that loads the tokenizer (tokenizer.json, or vocab.txt
// when tokenizerPath is empty) and opens the ONNX model described by opts.
func ONNXLoader(tokenizerPath, vocabPath string, lowercase bool, opts ONNXOptions, logger *zap.Logger) Loader {
	return func(_ context.Context) (*Model, error) {
		tok, err := LoadTokenizer(tokenizerPath, vocabPath, lowercase)
		if err != nil {
			return nil, err
		}
		enc, err := NewONNXEncoder(opts, logger)
		if err != nil {
			return nil, err
		}
		return &Model{Tokenizer: tok, Encoder: enc}, nil
	}
}
