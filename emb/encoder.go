// Package emb runs a sentence-embedding ONNX model over tokenized text.
package emb

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Pooling selects how token states are reduced to a single vector.
type Pooling string

const (
	// PoolingCLS takes the hidden state of the first token.
	PoolingCLS Pooling = "cls"
	// PoolingMean averages hidden states over the attention mask.
	PoolingMean Pooling = "mean"
)

const (
	defaultMaxSeqLen = 256
	defaultDimension = 384
	defaultOutput    = "last_hidden_state"
)

// Config describes where the runtime, model and tokenizer live.
type Config struct {
	OrtDLL        string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
	Dimension     int
	Pooling       Pooling
	Normalize     bool
	OutputName    string
}

func (c *Config) applyDefaults() {
	if c.MaxSeqLen <= 0 {
		c.MaxSeqLen = defaultMaxSeqLen
	}
	if c.Dimension <= 0 {
		c.Dimension = defaultDimension
	}
	if c.Pooling == "" {
		c.Pooling = PoolingCLS
	}
	if c.OutputName == "" {
		c.OutputName = defaultOutput
	}
}

// Encoder turns text into a fixed-length vector. Encode is safe for
// concurrent use; inference calls are serialized on the session.
type Encoder struct {
	cfg     Config
	tk      *tokenizer.Tokenizer
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
}

var (
	envMu   sync.Mutex
	envRefs int
)

// Init loads the tokenizer and creates the inference session.
func (e *Encoder) Init(cfg Config) error {
	cfg.applyDefaults()
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return errors.New("emb: model path is required")
	}
	if strings.TrimSpace(cfg.TokenizerPath) == "" {
		return errors.New("emb: tokenizer path is required")
	}
	if cfg.Pooling != PoolingCLS && cfg.Pooling != PoolingMean {
		return fmt.Errorf("emb: unknown pooling %q", cfg.Pooling)
	}
	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("emb: load tokenizer: %w", err)
	}
	if err := acquireEnvironment(cfg.OrtDLL); err != nil {
		return err
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.OutputName}, nil)
	if err != nil {
		releaseEnvironment()
		return fmt.Errorf("emb: create session: %w", err)
	}
	e.cfg = cfg
	e.tk = tk
	e.session = session
	return nil
}

// Dimension reports the configured output width.
func (e *Encoder) Dimension() int {
	return e.cfg.Dimension
}

// Encode embeds a single text.
func (e *Encoder) Encode(text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.tk == nil {
		return nil, errors.New("emb: encoder is not initialized")
	}
	en, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("emb: tokenize: %w", err)
	}
	ids, mask, types := truncate(en.Ids, en.AttentionMask, en.TypeIds, e.cfg.MaxSeqLen)
	if len(ids) == 0 {
		return nil, errors.New("emb: tokenizer produced no tokens")
	}
	seqLen := int64(len(ids))
	shape := ort.NewShape(1, seqLen)

	idsT, err := ort.NewTensor(shape, toInt64(ids))
	if err != nil {
		return nil, fmt.Errorf("emb: input_ids tensor: %w", err)
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, toInt64(mask))
	if err != nil {
		return nil, fmt.Errorf("emb: attention_mask tensor: %w", err)
	}
	defer maskT.Destroy()
	typesT, err := ort.NewTensor(shape, toInt64(types))
	if err != nil {
		return nil, fmt.Errorf("emb: token_type_ids tensor: %w", err)
	}
	defer typesT.Destroy()
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, seqLen, int64(e.cfg.Dimension)))
	if err != nil {
		return nil, fmt.Errorf("emb: output tensor: %w", err)
	}
	defer out.Destroy()

	if err := e.session.Run([]ort.Value{idsT, maskT, typesT}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("emb: run: %w", err)
	}
	vec := Pool(out.GetData(), mask, e.cfg.Dimension, e.cfg.Pooling)
	if e.cfg.Normalize {
		L2Normalize(vec)
	}
	return vec, nil
}

// Close releases the session and the shared runtime environment.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		_ = e.session.Destroy()
		e.session = nil
		releaseEnvironment()
	}
	e.tk = nil
}

// Pool reduces a row-major [seqLen x dim] hidden state to one vector.
func Pool(hidden []float32, mask []int, dim int, pooling Pooling) []float32 {
	out := make([]float32, dim)
	if dim <= 0 || len(hidden) < dim {
		return out
	}
	if pooling != PoolingMean {
		copy(out, hidden[:dim])
		return out
	}
	seqLen := len(hidden) / dim
	var count float64
	sums := make([]float64, dim)
	for t := 0; t < seqLen; t++ {
		if t < len(mask) && mask[t] == 0 {
			continue
		}
		row := hidden[t*dim : (t+1)*dim]
		for i, v := range row {
			sums[i] += float64(v)
		}
		count++
	}
	if count == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(sums[i] / count)
	}
	return out
}

// L2Normalize scales vec to unit length in place. Zero vectors are left untouched.
func L2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// truncate keeps the first maxLen-1 tokens plus the trailing separator.
func truncate(ids, mask, types []int, maxLen int) ([]int, []int, []int) {
	mask = fill(mask, len(ids), 1)
	types = fill(types, len(ids), 0)
	if maxLen <= 1 || len(ids) <= maxLen {
		return ids, mask, types
	}
	last := len(ids) - 1
	cut := func(in []int) []int {
		out := make([]int, 0, maxLen)
		out = append(out, in[:maxLen-1]...)
		return append(out, in[last])
	}
	return cut(ids), cut(mask), cut(types)
}

func fill(in []int, n, v int) []int {
	if len(in) == n {
		return in
	}
	out := make([]int, n)
	copy(out, in)
	for i := len(in); i < n; i++ {
		out[i] = v
	}
	return out
}

func toInt64(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func acquireEnvironment(lib string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs > 0 {
		envRefs++
		return nil
	}
	if lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("emb: initialize onnxruntime: %w", err)
		}
	}
	envRefs = 1
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		return
	}
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}
