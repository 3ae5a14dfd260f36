package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/truthvision/truthvision/internal/classifier"
	"github.com/truthvision/truthvision/internal/config"
)

func main() {
	cfgPath := flag.String("config", "truthvision.yaml", "path to config yaml")
	n := flag.Int("n", 200, "number of iterations")
	imagePath := flag.String("image", "", "image to classify (required)")
	flag.Parse()

	if *imagePath == "" {
		logrus.Fatalf("image flag is required")
	}
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	data, err := os.ReadFile(*imagePath)
	if err != nil {
		logrus.Fatalf("read image: %v", err)
	}

	// Force single session to avoid queueing noise in the benchmark.
	cls, model, err := classifier.Open(cfg.Model.Dir, classifier.ModelOptions{
		SharedLibraryPath: cfg.Model.OnnxRuntimeLibrary,
		Runtime: classifier.RuntimeSettings{
			MaxSessions:  1,
			IntraThreads: cfg.Model.IntraThreads,
			InterThreads: cfg.Model.InterThreads,
		},
	})
	if err != nil {
		logrus.Fatalf("load model: %v", err)
	}
	defer model.Close()

	// Warmup
	for i := 0; i < 5; i++ {
		if _, err := cls.ClassifyBytes(data); err != nil {
			logrus.Fatalf("warmup classify failed: %v", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}

	durations := make([]time.Duration, 0, *n)
	var last string
	for i := 0; i < *n; i++ {
		start := time.Now()
		res, err := cls.ClassifyBytes(data)
		if err != nil {
			logrus.Fatalf("classify failed: %v", err)
		}
		durations = append(durations, time.Since(start))
		last = res.Label
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bench: n=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f label=%q model_dir=%s model=%s\n",
		len(durations),
		avg,
		p50,
		p95,
		last,
		cfg.Model.Dir,
		model.ModelFile(),
	)
}
