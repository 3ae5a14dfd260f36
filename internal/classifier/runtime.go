package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	defaultMaxSessions  = 1
	defaultInterThreads = 1
)

// RuntimeSettings controls the onnxruntime session pool.
type RuntimeSettings struct {
	MaxSessions  int
	IntraThreads int
	InterThreads int
}

// Resolved fills zero values with defaults.
func (rt RuntimeSettings) Resolved() RuntimeSettings {
	if rt.MaxSessions <= 0 {
		rt.MaxSessions = defaultMaxSessions
	}
	if rt.IntraThreads <= 0 {
		rt.IntraThreads = defaultIntraThreads(rt.MaxSessions)
	}
	if rt.InterThreads <= 0 {
		rt.InterThreads = defaultInterThreads
	}
	return rt
}

// defaultIntraThreads splits the CPUs across the pooled sessions.
func defaultIntraThreads(sessions int) int {
	n := runtime.NumCPU() / sessions
	if n < 1 {
		n = 1
	}
	return n
}

func initRuntime(modelDir, libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	libPath = resolveSharedLibraryPath(modelDir, libPath)
	if libPath == "" {
		return fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or model.onnxruntime_library")
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// resolveSharedLibraryPath locates a platform-specific onnxruntime shared library.
// An explicit path wins, then ONNXRUNTIME_SHARED_LIBRARY_PATH, then common names/locations.
func resolveSharedLibraryPath(modelDir, configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.so",
		"onnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
