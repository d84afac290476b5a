// Package pipeline runs audio clips through normalization, embedding
// extraction, classification and decision assembly.
//
// A Pipeline is built once and shared by all requests. Models are obtained
// from a ModelSource on every run, so a pipeline can be constructed before
// its models finish loading; runs in the meantime fail with a
// model-unavailable error.
//
//	p := pipeline.New(norm, loader)
//	det, err := p.Predict(ctx, pipeline.Item{Filename: "clip.wav", Audio: data})
//	results := p.RunBatch(ctx, items)
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecosight/ecosight/pkg/audio/normalize"
	"github.com/ecosight/ecosight/pkg/embedding"
	"github.com/ecosight/ecosight/pkg/metrics"
	"github.com/ecosight/ecosight/pkg/threat"
)

// Stage names used in errors, logs and metrics.
const (
	StageModels    = "models"
	StageNormalize = "normalize"
	StageExtract   = "extract"
	StageClassify  = "classify"
	StageAssemble  = "assemble"
)

// DefaultConcurrency bounds parallel batch items.
const DefaultConcurrency = 4

// Location is a sensor position.
type Location struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Valid reports whether l is a finite position within [-90, 90] latitude and
// [-180, 180] longitude.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

// DefaultLocation is used when an item carries no position.
var DefaultLocation = Location{Latitude: threat.DefaultLatitude, Longitude: threat.DefaultLongitude}

// Item is one clip to classify.
type Item struct {
	// Filename identifies the clip in logs and batch results.
	Filename string
	Audio    []byte
	// Location overrides the pipeline's default location when set.
	Location *Location
}

// Result is the outcome of one batch item. Exactly one of Detection and Err
// is set.
type Result struct {
	Filename  string
	Detection *threat.Detection
	Err       error
}

// Pipeline runs the inference stages. It is safe for concurrent use.
type Pipeline struct {
	normalizer  *normalize.Normalizer
	models      ModelSource
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
	location    Location
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics records stage timings and outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithConcurrency bounds the number of batch items run at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithDefaultLocation sets the location reported for items without one.
func WithDefaultLocation(loc Location) Option {
	return func(p *Pipeline) { p.location = loc }
}

// New creates a Pipeline.
func New(n *normalize.Normalizer, models ModelSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		normalizer:  n,
		models:      models,
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
		location:    DefaultLocation,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Normalizer returns the audio normalizer.
func (p *Pipeline) Normalizer() *normalize.Normalizer {
	return p.normalizer
}

// Models returns the current model handle.
func (p *Pipeline) Models() (*Models, error) {
	return p.models.Models()
}

// DefaultLocation returns the location used for items without one.
func (p *Pipeline) DefaultLocation() Location {
	return p.location
}

// Predict runs one clip through every stage.
func (p *Pipeline) Predict(ctx context.Context, it Item) (*threat.Detection, error) {
	det, err := p.run(ctx, it)
	if err != nil {
		p.fail(it, err)
		return nil, err
	}
	p.metrics.ObserveDetection(det.PredictedClass, string(det.Priority))
	p.logger.Debug("detection",
		"item", it.Filename,
		"class", det.PredictedClass,
		"confidence", det.Confidence,
		"priority", det.Priority)
	return det, nil
}

// RunBatch runs every item independently and returns one result per item,
// in input order. A failing item never affects the others.
func (p *Pipeline) RunBatch(ctx context.Context, items []Item) []Result {
	p.metrics.ObserveBatch(len(items))
	results := make([]Result, len(items))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, it := range items {
		g.Go(func() error {
			det, err := p.Predict(ctx, it)
			results[i] = Result{Filename: it.Filename, Detection: det, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

func (p *Pipeline) run(ctx context.Context, it Item) (*threat.Detection, error) {
	m, err := p.models.Models()
	if err != nil {
		return nil, err
	}

	loc := p.location
	if it.Location != nil {
		loc = *it.Location
	}
	if !loc.Valid() {
		return nil, threat.ValidationError("location", fmt.Errorf("latitude %v, longitude %v out of range", loc.Latitude, loc.Longitude))
	}

	start := time.Now()
	sig, err := p.normalizer.Normalize(it.Audio)
	p.metrics.ObserveStage(StageNormalize, time.Since(start))
	if err != nil {
		return nil, threat.ValidationError(StageNormalize, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, threat.InferenceError(StageExtract, err)
	}
	start = time.Now()
	frames, err := m.Extractor.Extract(ctx, sig)
	if err != nil {
		return nil, threat.InferenceError(StageExtract, err)
	}
	vec, err := embedding.Mean(frames, m.Extractor.Dimension())
	p.metrics.ObserveStage(StageExtract, time.Since(start))
	if err != nil {
		return nil, threat.InferenceError(StageExtract, err)
	}

	start = time.Now()
	scores, err := m.Classifier.Classify(ctx, vec)
	p.metrics.ObserveStage(StageClassify, time.Since(start))
	if err != nil {
		return nil, threat.InferenceError(StageClassify, err)
	}

	return m.Assembler.Assemble(threat.FromFloat32(scores), loc.Latitude, loc.Longitude)
}

// fail logs and counts a failed run. Validation failures are the client's
// problem and log at warn; everything else logs at error.
func (p *Pipeline) fail(it Item, err error) {
	kind := threat.KindOf(err)
	stage := threat.StageOf(err)
	p.metrics.ObserveFailure(stage, kind.String())

	level := slog.LevelError
	if kind == threat.KindValidation || kind == threat.KindModelUnavailable {
		level = slog.LevelWarn
	}
	p.logger.Log(context.Background(), level, "pipeline run failed",
		"item", it.Filename,
		"bytes", len(it.Audio),
		"stage", stage,
		"kind", kind.String(),
		"error", err)
}
