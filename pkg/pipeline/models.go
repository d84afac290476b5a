package pipeline

import (
	"fmt"

	"github.com/ecosight/ecosight/pkg/classifier"
	"github.com/ecosight/ecosight/pkg/embedding"
	"github.com/ecosight/ecosight/pkg/threat"
)

// Models is the immutable handle to everything inference needs. It is
// shared read-only by all requests.
type Models struct {
	Extractor  embedding.Extractor
	Classifier classifier.Classifier
	Labels     threat.LabelTable
	Assembler  *threat.Assembler

	// Extraction describes how embeddings are produced, for model info.
	Extraction string
}

// NewModels pairs an extractor and a classifier with a label table. The
// table must have one class per classifier output, in the classifier's
// order, and the extractor's width must match the classifier's input;
// violations are configuration errors.
func NewModels(x embedding.Extractor, c classifier.Classifier, labels threat.LabelTable, opts ...threat.AssemblerOption) (*Models, error) {
	if x == nil || c == nil {
		return nil, threat.ConfigError("models", fmt.Errorf("extractor and classifier are required"))
	}
	asm, err := threat.NewAssembler(labels, opts...)
	if err != nil {
		return nil, err
	}
	if err := labels.CheckWidth(c.OutputDim()); err != nil {
		return nil, err
	}
	if err := labels.CheckNames(c.Describe().Labels); err != nil {
		return nil, err
	}
	if x.Dimension() != c.InputDim() {
		return nil, threat.ConfigError("models", fmt.Errorf("extractor emits %d values, classifier takes %d", x.Dimension(), c.InputDim()))
	}
	return &Models{
		Extractor:  x,
		Classifier: c,
		Labels:     labels,
		Assembler:  asm,
		Extraction: fmt.Sprintf("embedding extractor (%d-dim, frame mean)", x.Dimension()),
	}, nil
}
