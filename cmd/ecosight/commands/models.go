package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-yaml"

	"github.com/ecosight/ecosight/cmd/ecosight/internal/config"
	"github.com/ecosight/ecosight/pkg/audio/fbank"
	"github.com/ecosight/ecosight/pkg/audio/normalize"
	"github.com/ecosight/ecosight/pkg/classifier"
	"github.com/ecosight/ecosight/pkg/embedding"
	"github.com/ecosight/ecosight/pkg/metrics"
	"github.com/ecosight/ecosight/pkg/pipeline"
	"github.com/ecosight/ecosight/pkg/storage"
	"github.com/ecosight/ecosight/pkg/threat"
)

// loadLabels reads the configured label table, or returns the built-in one.
// A table that parses but is inconsistent is a configuration error.
func loadLabels(ctx context.Context, cfg *config.Config) (threat.LabelTable, error) {
	uri := cfg.Models.Labels
	if uri == "" {
		return threat.DefaultLabelTable(), nil
	}
	store, name, err := storage.Resolve(uri, cfg.S3)
	if err != nil {
		return threat.LabelTable{}, threat.ConfigError("labels", err)
	}
	slog.Debug("reading label table", "uri", storage.URI(store, name))
	data, err := storage.ReadFile(ctx, store, name)
	if err != nil {
		return threat.LabelTable{}, fmt.Errorf("labels: %w", err)
	}
	// JSON is valid YAML.
	var table threat.LabelTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return threat.LabelTable{}, threat.ConfigError("labels", fmt.Errorf("parse %s: %w", uri, err))
	}
	if err := table.Validate(); err != nil {
		return threat.LabelTable{}, threat.ConfigError("labels", err)
	}
	return table, nil
}

// loadClassifier builds the classifier head: a local dense network when
// weights are configured, otherwise a remote predict endpoint.
func loadClassifier(ctx context.Context, cfg *config.Config, labels threat.LabelTable) (classifier.Classifier, error) {
	m := cfg.Models
	if m.ClassifierWeights == "" {
		return loadRemoteClassifier(ctx, m, labels)
	}

	store, name, err := storage.Resolve(m.ClassifierWeights, cfg.S3)
	if err != nil {
		return nil, threat.ConfigError("classifier", err)
	}
	d, err := classifier.LoadDense(ctx, store, name)
	if errors.Is(err, classifier.ErrInvalidWeights) {
		return nil, threat.ConfigError("classifier", err)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// loadRemoteClassifier builds the remote head. Its width comes from
// models.classifier_output_dim, or from the endpoint itself when that is
// unset, so that a label table of the wrong size fails at load time.
func loadRemoteClassifier(ctx context.Context, m config.ModelsConfig, labels threat.LabelTable) (classifier.Classifier, error) {
	opts := []classifier.Option{
		classifier.WithInputDim(m.EmbeddingDim),
		classifier.WithLabels(labels.Names()...),
		classifier.WithTimeout(m.Timeout),
	}
	width := m.ClassifierOutputDim
	if width == 0 {
		n, err := classifier.NewRemote(m.ClassifierURL, opts...).QueryOutputDim(ctx)
		if errors.Is(err, classifier.ErrOutputDim) {
			return nil, threat.ConfigError("classifier", err)
		}
		if err != nil {
			return nil, fmt.Errorf("classifier: query output width: %w", err)
		}
		slog.Debug("remote classifier width", "url", m.ClassifierURL, "classes", n)
		width = n
	}
	return classifier.NewRemote(m.ClassifierURL, append(opts, classifier.WithOutputDim(width))...), nil
}

func newExtractor(cfg *config.Config) (embedding.Extractor, error) {
	m := cfg.Models
	if m.Extractor == config.ExtractorLogMel {
		fc := fbank.DefaultConfig()
		fc.SampleRate = cfg.Audio.SampleRate
		fc.NumMels = m.EmbeddingDim
		x, err := embedding.NewLogMel(fc)
		if err != nil {
			return nil, threat.ConfigError("extractor", err)
		}
		return x, nil
	}
	return embedding.NewRemote(m.ExtractorURL,
		embedding.WithDimension(m.EmbeddingDim),
		embedding.WithOutputKey(m.ExtractorOutputKey),
		embedding.WithTimeout(m.Timeout),
	), nil
}

// modelLoader returns the LoadFunc that assembles the model handle from cfg.
func modelLoader(cfg *config.Config) pipeline.LoadFunc {
	return func(ctx context.Context) (*pipeline.Models, error) {
		if err := cfg.Models.Validate(); err != nil {
			return nil, err
		}
		labels, err := loadLabels(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c, err := loadClassifier(ctx, cfg, labels)
		if err != nil {
			return nil, err
		}
		x, err := newExtractor(cfg)
		if err != nil {
			return nil, err
		}
		return pipeline.NewModels(x, c, labels)
	}
}

// newPipeline wires the normalizer, the loader and the pipeline.
func newPipeline(cfg *config.Config, m *metrics.Metrics) (*pipeline.Pipeline, *pipeline.Loader, error) {
	norm, err := normalize.New(cfg.Normalize())
	if err != nil {
		return nil, nil, err
	}
	loader := pipeline.NewLoader(modelLoader(cfg),
		pipeline.WithLoaderLogger(slog.Default()),
		pipeline.WithLoaderMetrics(m),
	)
	p := pipeline.New(norm, loader,
		pipeline.WithLogger(slog.Default()),
		pipeline.WithMetrics(m),
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithDefaultLocation(cfg.Location),
	)
	return p, loader, nil
}
