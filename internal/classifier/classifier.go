// Package classifier labels still images as AI-generated or real with a
// pretrained image-classification model.
package classifier

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"github.com/truthvision/truthvision/internal/verdict"
)

const (
	msgInvalidImage = "Failed to process image. Make sure this is a valid image file."
	msgInference    = "Failed to classify image."

	// maxImagePixels bounds width*height before a full decode.
	maxImagePixels = 178_956_970
)

// Backend runs the forward pass. Infer takes a 3xHxW tensor laid out by the
// Preprocessor and returns one logit per label.
type Backend interface {
	Labels() []string
	Infer(pixels []float32) ([]float32, error)
}

// Classifier turns images into verdicts. It is safe for concurrent use when
// the backend is.
type Classifier struct {
	backend Backend
	pre     *Preprocessor
	labels  []string
	aiIdx   int
}

// New builds a classifier over backend. A nil pre uses DefaultPreprocessor.
func New(backend Backend, pre *Preprocessor) *Classifier {
	if pre == nil {
		pre = DefaultPreprocessor()
	}
	labels := backend.Labels()
	c := &Classifier{
		backend: backend,
		pre:     pre,
		labels:  labels,
		aiIdx:   artificialIndex(labels),
	}
	if c.aiIdx < 0 {
		logrus.WithField("labels", labels).Warn("classifier: no artificial label; ai_probability will be derived from the top class only")
	}
	return c
}

// Labels returns the model's class names.
func (c *Classifier) Labels() []string {
	return c.labels
}

// ClassifyBytes decodes an encoded JPEG, PNG, WebP or GIF image and classifies it.
func (c *Classifier) ClassifyBytes(data []byte) (verdict.ClassificationResult, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return verdict.ClassificationResult{}, verdict.E(verdict.InvalidInput, msgInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return verdict.ClassificationResult{}, verdict.InvalidInputf(msgInvalidImage)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return verdict.ClassificationResult{}, verdict.E(verdict.InvalidInput, msgInvalidImage, err)
	}
	return c.Classify(img)
}

// Classify runs the model on img.
func (c *Classifier) Classify(img image.Image) (verdict.ClassificationResult, error) {
	if img == nil || img.Bounds().Empty() {
		return verdict.ClassificationResult{}, verdict.InvalidInputf(msgInvalidImage)
	}

	logits, err := c.backend.Infer(c.pre.Pixels(img))
	if err != nil {
		return verdict.ClassificationResult{}, verdict.E(verdict.InvalidInput, msgInference, err)
	}
	if len(logits) == 0 {
		return verdict.ClassificationResult{}, verdict.E(verdict.InvalidInput, msgInference, errors.New("model returned no logits"))
	}
	return c.resolve(softmax(logits)), nil
}

func (c *Classifier) resolve(probs []float64) verdict.ClassificationResult {
	pred := argmax(probs)
	confidence := probs[pred]
	predLabel := labelAt(c.labels, pred)

	var ai float64
	if c.aiIdx >= 0 && c.aiIdx < len(probs) {
		ai = probs[c.aiIdx]
	} else if predLabel == artificialLabel {
		ai = confidence
	} else {
		ai = 1 - confidence
	}

	isAI := predLabel == artificialLabel
	return verdict.ClassificationResult{
		IsAI:            isAI,
		Confidence:      confidence,
		Label:           verdict.ImageLabel(isAI),
		AIProbability:   ai,
		RealProbability: 1 - ai,
	}
}

// softmax subtracts the max logit and accumulates in float64.
func softmax(logits []float32) []float64 {
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// argmax returns the first index holding the largest value.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
