package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/krau/digitvision/config"
	ort "github.com/yalue/onnxruntime_go"
)

var pathOnce sync.Once
var libPath string

var ErrLibraryNotFound = errors.New("onnx runtime library not found")

func LibPath() string {
	pathOnce.Do(func() {
		libPath = Resolve(config.C().Libonnx, candidates(runtime.GOOS))
		if libPath == "" {
			slog.Error("ONNX Runtime library path could not be determined for this OS")
		} else {
			slog.Info("Using ONNX Runtime library", slog.String("path", libPath))
		}
	})
	return libPath
}

// Resolve returns override when set, otherwise the first candidate present on disk.
func Resolve(override string, candidates []string) string {
	if override != "" {
		return override
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func candidates(goos string) []string {
	switch goos {
	case "linux":
		return []string{
			"onnxlibs/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		}
	case "darwin":
		return []string{
			"onnxlibs/libonnxruntime.dylib",
			"/usr/local/lib/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
		}
	case "windows":
		return []string{"onnxlibs/onnxruntime.dll", "onnxruntime.dll"}
	default:
		return nil
	}
}

// Init loads the shared library and initializes the global ONNX Runtime environment.
func Init() error {
	path := LibPath()
	if path == "" {
		return ErrLibraryNotFound
	}
	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
	}
	return nil
}

func Destroy() {
	if !ort.IsInitialized() {
		return
	}
	if err := ort.DestroyEnvironment(); err != nil {
		slog.Error("Failed to destroy ONNX Runtime environment", slog.String("error", err.Error()))
	}
}
