package config

import (
	"fmt"
	"strings"
)

const (
	BackendORT  = "ort"
	BackendMock = "mock"
)

// NormalizeBackend maps the configured backend selector to its canonical
// name. Only one native backend is compiled into a deployment; the
// selector picks its constructor.
func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = BackendORT
	}

	switch backend {
	case BackendORT, BackendMock:
		return backend, nil
	case "onnx", "onnxruntime":
		return BackendORT, nil
	default:
		return "", fmt.Errorf("invalid backend %q (expected %s|%s)", raw, BackendORT, BackendMock)
	}
}
