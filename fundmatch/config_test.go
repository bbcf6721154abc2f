package fundmatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.TopN)
	assert.Equal(t, 384, cfg.Embedder.Dimension)
	assert.Equal(t, 256, cfg.Embedder.MaxSeqLen)
	assert.Equal(t, "cls", cfg.Embedder.Pooling)
	assert.Equal(t, DefaultModelID, cfg.Embedder.ModelID)
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"storePath": "/data/fund_embeddings.json",
		"topN": 5,
		"embedder": {"modelPath": "/models/minilm.onnx", "pooling": "mean", "normalize": true}
	}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/fund_embeddings.json", cfg.StorePath)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, "/models/minilm.onnx", cfg.Embedder.ModelPath)
	assert.Equal(t, "mean", cfg.Embedder.Pooling)
	assert.True(t, cfg.Embedder.Normalize)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
storePath: /data/funds.db
topN: 4
embedder:
  tokenizerPath: /models/tokenizer.json
  dimension: 768
  cachePath: /var/cache/fundmatch.db
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/funds.db", cfg.StorePath)
	assert.Equal(t, 4, cfg.TopN)
	assert.Equal(t, "/models/tokenizer.json", cfg.Embedder.TokenizerPath)
	assert.Equal(t, 768, cfg.Embedder.Dimension)
	assert.Equal(t, "/var/cache/fundmatch.db", cfg.Embedder.CachePath)
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := LoadConfig(writeFile(t, "config.json", `{"topN": "three"}`))
	assert.Error(t, err)
	_, err = LoadConfig(writeFile(t, "config.yml", "topN: [1"))
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	in := Config{StorePath: "/data/funds.json", TopN: 7}
	require.NoError(t, SaveConfig(path, in))

	out, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/funds.json", out.StorePath)
	assert.Equal(t, 7, out.TopN)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(StoreEnvLegacy, "/legacy/fund_embeddings.json")
	t.Setenv(ModelEnv, "/models/model.onnx")
	t.Setenv(TokenizerEnv, "/models/tokenizer.json")
	t.Setenv(OrtLibEnv, "/usr/lib/libonnxruntime.so")
	t.Setenv(CachePathEnv, "/tmp/cache.db")
	t.Setenv(TopNEnv, "6")

	var cfg Config
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "/legacy/fund_embeddings.json", cfg.StorePath)
	assert.Equal(t, "/models/model.onnx", cfg.Embedder.ModelPath)
	assert.Equal(t, "/models/tokenizer.json", cfg.Embedder.TokenizerPath)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", cfg.Embedder.OrtDLL)
	assert.Equal(t, "/tmp/cache.db", cfg.Embedder.CachePath)
	assert.Equal(t, 6, cfg.TopN)

	t.Setenv(StoreEnv, "/new/funds.db")
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "/new/funds.db", cfg.StorePath)
}

func TestApplyEnvRejectsBadTopN(t *testing.T) {
	t.Setenv(TopNEnv, "0")
	var cfg Config
	assert.ErrorIs(t, cfg.ApplyEnv(), ErrInvalidArgument)
}

func TestLoadDotenv(t *testing.T) {
	path := writeFile(t, "test.env", "FUNDMATCH_DOTENV_PROBE=/from/dotenv.json\n")
	t.Setenv("FUNDMATCH_DOTENV_PROBE", "")
	os.Unsetenv("FUNDMATCH_DOTENV_PROBE")

	require.NoError(t, LoadDotenv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "/from/dotenv.json", os.Getenv("FUNDMATCH_DOTENV_PROBE"))
}
