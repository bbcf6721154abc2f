package fundmatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// FundRecord is the canonical identity pair of a mutual fund scheme.
type FundRecord struct {
	Name string `json:"name"`
	Code int64  `json:"code"`
}

// UnmarshalJSON accepts both the [name, code] pair layout of the persisted
// artifact and the {"name":..,"code":..} object layout.
func (r *FundRecord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("fund record: expected [name, code], got %d fields", len(pair))
		}
		if err := json.Unmarshal(pair[0], &r.Name); err != nil {
			return fmt.Errorf("fund record name: %w", err)
		}
		code, err := decodeCode(pair[1])
		if err != nil {
			return err
		}
		r.Code = code
		return nil
	}
	var obj struct {
		Name string          `json:"name"`
		Code json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	code, err := decodeCode(obj.Code)
	if err != nil {
		return err
	}
	r.Name = obj.Name
	r.Code = code
	return nil
}

// MarshalJSON writes the record as a [name, code] pair.
func (r FundRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Name, r.Code})
}

// decodeCode reads a scheme code given either as a JSON number or a numeric string.
func decodeCode(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, errors.New("fund record: missing code")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return parseCode(s)
	}
	return parseCode(string(raw))
}

func parseCode(s string) (int64, error) {
	code, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("fund record: invalid code %q", s)
	}
	return code, nil
}

// MatchResult is one resolved fund together with its similarity score.
// Exact is set when the result came from the name index.
type MatchResult struct {
	FundName string  `json:"fund_name"`
	FundCode int64   `json:"fund_code"`
	Score    float32 `json:"cosine_similarity_score"`
	Exact    bool    `json:"exact,omitempty"`
}

// Suggestion is a lexically similar fund name. Score is a string similarity,
// not a cosine score.
type Suggestion struct {
	FundName string  `json:"fund_name"`
	FundCode int64   `json:"fund_code"`
	Score    float64 `json:"score"`
}

// EmbedderConfig wraps the configuration for the ORT embedder and cache.
type EmbedderConfig struct {
	OrtDLL        string `json:"ortDll" yaml:"ortDll"`
	ModelPath     string `json:"modelPath" yaml:"modelPath"`
	TokenizerPath string `json:"tokenizerPath" yaml:"tokenizerPath"`
	MaxSeqLen     int    `json:"maxSeqLen" yaml:"maxSeqLen"`
	Dimension     int    `json:"dimension" yaml:"dimension"`
	Pooling       string `json:"pooling" yaml:"pooling"`
	Normalize     bool   `json:"normalize" yaml:"normalize"`
	CachePath     string `json:"cachePath" yaml:"cachePath"`
	ModelID       string `json:"modelId" yaml:"modelId"`
}

// Config aggregates runtime settings.
type Config struct {
	StorePath string         `json:"storePath" yaml:"storePath"`
	TopN      int            `json:"topN" yaml:"topN"`
	Embedder  EmbedderConfig `json:"embedder" yaml:"embedder"`
}

// DefaultModelID names the sentence-transformers model the shipped artifacts were built with.
const DefaultModelID = "sentence-transformers/all-MiniLM-L6-v2"

// Defaults matching DefaultModelID.
const (
	DefaultTopN      = 3
	DefaultMaxSeqLen = 256
	DefaultDimension = 384
)

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.Embedder.MaxSeqLen == 0 {
		c.Embedder.MaxSeqLen = DefaultMaxSeqLen
	}
	if c.Embedder.Dimension == 0 {
		c.Embedder.Dimension = DefaultDimension
	}
	if c.Embedder.Pooling == "" {
		c.Embedder.Pooling = "cls"
	}
	if c.Embedder.ModelID == "" {
		c.Embedder.ModelID = DefaultModelID
	}
}
