package rag

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"docqa/internal/config"
)

// ScoreFunc scores each content string against the query in one batched
// call. It must return exactly one score per content, higher = more
// relevant. Scores are only comparable within a single invocation.
type ScoreFunc func(query string, contents []string) ([]float64, error)

// Reranker reorders passages by relevance to a query using a cross-encoder
// scoring model. Reranking is a best-effort enhancement: any scoring failure
// leaves the input order untouched rather than failing the request.
//
// The model is loaded lazily on first use and reused afterwards. Scoring
// calls are serialised internally; create one Reranker per worker if that
// becomes a bottleneck.
type Reranker struct {
	enabled bool
	topK    int

	mu    sync.Mutex
	score ScoreFunc
}

// NewReranker builds a reranker backed by the configured cross-encoder.
func NewReranker(cfg *config.Config) *Reranker {
	return &Reranker{
		enabled: cfg.RerankerEnabled,
		topK:    cfg.RerankerTopK,
		score:   newCrossEncoderScorer(cfg),
	}
}

// NewRerankerWithScorer builds a reranker with a custom scoring function.
func NewRerankerWithScorer(enabled bool, topK int, score ScoreFunc) *Reranker {
	return &Reranker{enabled: enabled, topK: topK, score: score}
}

// Rerank scores passages against the query, writes each score into the
// passage's RerankScore field, and returns the passages sorted by score
// descending (ties keep input order), truncated to the configured top-k.
//
// An empty input returns empty without invoking the model. When reranking
// is disabled the input is returned unchanged and uncapped.
func (r *Reranker) Rerank(query string, passages []Passage) []Passage {
	if len(passages) == 0 {
		return []Passage{}
	}
	if !r.enabled {
		return passages
	}

	contents := make([]string, len(passages))
	for i, p := range passages {
		contents[i] = p.Content
	}

	r.mu.Lock()
	scores, err := r.score(query, contents)
	r.mu.Unlock()
	if err != nil {
		slog.Warn("reranking failed, keeping retrieval order", "error", err)
		return passages
	}
	if len(scores) != len(passages) {
		slog.Warn("reranker returned wrong score count, keeping retrieval order",
			"want", len(passages), "got", len(scores))
		return passages
	}

	for i := range passages {
		passages[i].RerankScore = scores[i]
	}

	ranked := make([]Passage, len(passages))
	copy(ranked, passages)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})

	if r.topK > 0 && len(ranked) > r.topK {
		ranked = ranked[:r.topK]
	}
	return ranked
}

// newCrossEncoderScorer returns a ScoreFunc backed by a hugot text
// classification pipeline over the configured cross-encoder model. The
// session and pipeline are created once, on the first scoring call.
func newCrossEncoderScorer(cfg *config.Config) ScoreFunc {
	var (
		once    sync.Once
		pipe    crossEncoderPipeline
		initErr error
	)

	return func(query string, contents []string) ([]float64, error) {
		once.Do(func() {
			pipe, initErr = newCrossEncoderPipeline(cfg)
		})
		if initErr != nil {
			return nil, initErr
		}

		pairs := make([]string, len(contents))
		for i, c := range contents {
			pairs[i] = query + " [SEP] " + c
		}

		out, err := pipe.RunPipeline(pairs)
		if err != nil {
			return nil, fmt.Errorf("cross-encoder inference: %w", err)
		}
		if len(out.ClassificationOutputs) != len(pairs) {
			return nil, fmt.Errorf("cross-encoder returned %d outputs for %d pairs",
				len(out.ClassificationOutputs), len(pairs))
		}

		scores := make([]float64, len(pairs))
		for i, labels := range out.ClassificationOutputs {
			if len(labels) == 0 {
				return nil, fmt.Errorf("cross-encoder returned no score for pair %d", i)
			}
			scores[i] = float64(labels[0].Score)
		}
		return scores, nil
	}
}

// crossEncoderPipeline narrows the hugot pipeline to the single call the
// scorer needs.
type crossEncoderPipeline interface {
	RunPipeline(inputs []string) (*pipelines.TextClassificationOutput, error)
}

// newCrossEncoderPipeline prepares the model files and builds the inference
// pipeline. The pure-Go backend runs on CPU; an accelerated-compute request
// is honoured only by logging the fallback.
func newCrossEncoderPipeline(cfg *config.Config) (crossEncoderPipeline, error) {
	if cfg.UseGPU {
		slog.Warn("USE_GPU is set but the Go inference backend is CPU-only, continuing on CPU")
	}

	modelPath, err := prepareModel(cfg.RerankerModel)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("create hugot session: %w", err)
	}

	pipeCfg := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "reranker",
	}
	pipe, err := hugot.NewPipeline(session, pipeCfg)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("create reranker pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("create reranker pipeline: %w", err)
	}

	slog.Info("cross-encoder loaded", "model", cfg.RerankerModel)
	return pipe, nil
}

// prepareModel downloads the model if it is not cached locally and returns
// its path.
func prepareModel(modelName string) (string, error) {
	modelDir := "./models"
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		if err := os.MkdirAll(modelDir, 0755); err != nil {
			return "", fmt.Errorf("create model directory: %w", err)
		}
		downloadOptions := hugot.NewDownloadOptions()
		downloadOptions.OnnxFilePath = "onnx/model.onnx"
		downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
		if err != nil {
			return "", fmt.Errorf("download model %s: %w", modelName, err)
		}
		modelPath = downloadedPath
	}

	return modelPath, nil
}
