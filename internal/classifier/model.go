package classifier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// ModelOptions configures LoadModel.
type ModelOptions struct {
	Runtime           RuntimeSettings
	SharedLibraryPath string
}

// Model runs an exported image-classification network through onnxruntime.
// Each pooled session owns its tensors, so concurrent Infer calls never share buffers.
type Model struct {
	modelPath  string
	labels     []string
	numLabels  int
	inputName  string
	outputName string
	width      int
	height     int
	sessions   chan *modelSession
	poolSize   int
}

type modelSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// LoadModel creates the session pool for the model bundle in dir. width and
// height are the spatial input size produced by the preprocessor.
func LoadModel(dir string, width, height int, opts ModelOptions) (*Model, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("model dir is empty")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid input size %dx%d", width, height)
	}

	modelPath := resolveModelPath(dir)
	if modelPath == "" {
		return nil, fmt.Errorf("model file missing in %s (expected model.onnx)", dir)
	}

	meta, err := loadModelMeta(dir)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	if err := initRuntime(dir, opts.SharedLibraryPath); err != nil {
		return nil, err
	}

	inputName, outputName, outputDims, err := selectIOInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model io: %w", err)
	}

	rt := opts.Runtime.Resolved()
	sessions := make(chan *modelSession, rt.MaxSessions)
	for i := 0; i < rt.MaxSessions; i++ {
		ss, err := newModelSession(modelPath, inputName, outputName, width, height, meta.NumLabels, outputDims, rt)
		if err != nil {
			close(sessions)
			for s := range sessions {
				s.destroy()
			}
			return nil, fmt.Errorf("create onnx session %d/%d: %w", i+1, rt.MaxSessions, err)
		}
		sessions <- ss
	}

	logrus.WithFields(logrus.Fields{
		"model":         filepath.Base(modelPath),
		"labels":        meta.Labels,
		"input":         inputName,
		"output":        outputName,
		"input_size":    fmt.Sprintf("%dx%d", width, height),
		"sessions":      rt.MaxSessions,
		"intra_threads": rt.IntraThreads,
		"inter_threads": rt.InterThreads,
	}).Info("classifier model loaded")

	return &Model{
		modelPath:  modelPath,
		labels:     meta.Labels,
		numLabels:  meta.NumLabels,
		inputName:  inputName,
		outputName: outputName,
		width:      width,
		height:     height,
		sessions:   sessions,
		poolSize:   rt.MaxSessions,
	}, nil
}

// Labels returns the class names indexed like the logits.
func (m *Model) Labels() []string {
	return m.labels
}

// ModelFile returns the base name of the loaded onnx file.
func (m *Model) ModelFile() string {
	if m == nil {
		return ""
	}
	return filepath.Base(m.modelPath)
}

// Infer runs one forward pass over a 3xHxW pixel tensor and returns the logits.
func (m *Model) Infer(pixels []float32) ([]float32, error) {
	if m == nil || m.sessions == nil {
		return nil, errors.New("classifier model not initialized")
	}
	if want := 3 * m.width * m.height; len(pixels) != want {
		return nil, fmt.Errorf("pixel tensor has %d values, want %d", len(pixels), want)
	}

	ss := <-m.sessions
	defer func() { m.sessions <- ss }()

	copy(ss.input.GetData(), pixels)
	if err := ss.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	raw := ss.output.GetData()
	if len(raw) == 0 {
		return nil, errors.New("onnx run produced no logits")
	}
	n := m.numLabels
	if n <= 0 || n > len(raw) {
		n = len(raw)
	}
	logits := make([]float32, n)
	copy(logits, raw[:n])
	return logits, nil
}

// Close releases every pooled session. Infer must not be called afterwards.
func (m *Model) Close() error {
	if m == nil || m.sessions == nil {
		return nil
	}
	for i := 0; i < m.poolSize; i++ {
		ss := <-m.sessions
		ss.destroy()
	}
	m.sessions = nil
	return nil
}

func (ss *modelSession) destroy() {
	if ss == nil {
		return
	}
	if ss.session != nil {
		_ = ss.session.Destroy()
	}
	if ss.input != nil {
		_ = ss.input.Destroy()
	}
	if ss.output != nil {
		_ = ss.output.Destroy()
	}
}

func newModelSession(modelPath, inputName, outputName string, width, height, numLabels int, outputDims []int64, rt RuntimeSettings) (*modelSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(rt.IntraThreads); err != nil {
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(rt.InterThreads); err != nil {
		return nil, fmt.Errorf("set inter threads: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(height), int64(width)))
	if err != nil {
		return nil, fmt.Errorf("allocate %s tensor: %w", inputName, err)
	}
	output, err := ort.NewEmptyTensor[float32](buildOutputShape(outputDims, numLabels))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{input},
		[]ort.Value{output},
		opts,
	)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &modelSession{
		session: session,
		input:   input,
		output:  output,
	}, nil
}

func resolveModelPath(dir string) string {
	candidates := []string{
		filepath.Join(dir, "model.onnx"),
		filepath.Join(dir, "onnx", "model.onnx"),
		filepath.Join(dir, "model_quantized.onnx"),
		filepath.Join(dir, "onnx", "model_quantized.onnx"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// selectIOInfo picks the pixel input (pixel_values when present) and the
// logits output.
func selectIOInfo(modelPath string) (string, string, []int64, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithOptions(modelPath, nil)
	if err != nil {
		return "", "", nil, err
	}
	if len(inputs) == 0 {
		return "", "", nil, errors.New("no inputs found")
	}
	if len(outputs) == 0 {
		return "", "", nil, errors.New("no outputs found")
	}

	inputName := inputs[0].Name
	for _, in := range inputs {
		if strings.EqualFold(in.Name, "pixel_values") {
			inputName = in.Name
			break
		}
	}

	for _, out := range outputs {
		if strings.EqualFold(out.Name, "logits") {
			return inputName, out.Name, out.Dimensions, nil
		}
	}
	if len(outputs) == 1 {
		return inputName, outputs[0].Name, outputs[0].Dimensions, nil
	}
	names := make([]string, 0, len(outputs))
	for _, out := range outputs {
		names = append(names, out.Name)
	}
	return "", "", nil, fmt.Errorf("multiple outputs found without logits: %v", names)
}

// buildOutputShape replaces dynamic dimensions with 1, except the class
// dimension which takes numLabels.
func buildOutputShape(dims []int64, numLabels int) ort.Shape {
	if len(dims) == 0 {
		return ort.NewShape(1, int64(numLabels))
	}
	shape := make([]int64, len(dims))
	for i, v := range dims {
		switch {
		case v > 0:
			shape[i] = v
		case i == len(dims)-1 && numLabels > 0:
			shape[i] = int64(numLabels)
		default:
			shape[i] = 1
		}
	}
	return ort.Shape(shape)
}

// Open loads the preprocessor settings and the model bundle in dir.
func Open(dir string, opts ModelOptions) (*Classifier, *Model, error) {
	pre, err := LoadPreprocessor(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("load preprocessor: %w", err)
	}
	w, h := pre.OutputSize()
	model, err := LoadModel(dir, w, h, opts)
	if err != nil {
		return nil, nil, err
	}
	return New(model, pre), model, nil
}
