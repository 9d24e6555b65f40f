// Package inference - ONNX Runtime environment and session management.
package inference

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// SharedLibraryEnv names the environment variable that points at the
// onnxruntime shared library. When unset, a handful of common install
// locations are tried before falling back to the dynamic loader search path.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var envMu sync.Mutex

// EnsureRuntime initializes the onnxruntime environment. It is required once
// per process and is safe to call repeatedly.
func EnsureRuntime() error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	path := sharedLibraryPath()
	ort.SetEnvironmentLogLevel(ort.LoggingLevelWarning)
	ort.SetSharedLibraryPath(path)
	log.WithField("library", path).Debug("Initializing onnxruntime")

	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrapf(err, "initializing onnxruntime from %s", path)
	}
	return nil
}

// Shutdown destroys the onnxruntime environment. Safe to call when the
// environment was never initialized.
func Shutdown() {
	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		return
	}
	if err := ort.DestroyEnvironment(); err != nil {
		log.WithError(err).Warn("Could not destroy onnxruntime environment")
	}
}

// sharedLibraryPath resolves the library to hand to onnxruntime. The
// environment variable wins, then well known install locations, then the
// bare library name which defers to the loader search path.
func sharedLibraryPath() string {
	if path := os.Getenv(SharedLibraryEnv); path != "" {
		return path
	}

	name := libraryName(runtime.GOOS)
	for _, dir := range []string{"/usr/local/lib", "/usr/lib", "/opt/onnxruntime/lib"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}

func libraryName(goos string) string {
	switch goos {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}
