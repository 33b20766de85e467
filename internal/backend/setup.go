// Package backend selects and constructs the configured inference engine.
package backend

import (
	"fmt"

	"github.com/example/go-neuriplo/internal/backend/mock"
	"github.com/example/go-neuriplo/internal/backend/ort"
	"github.com/example/go-neuriplo/internal/config"
	"github.com/example/go-neuriplo/internal/inference"
)

// New builds the engine named by cfg.Runtime.Backend and loads the model
// described by cfg.Model into it.
func New(cfg config.Config) (inference.Engine, error) {
	backend, err := config.NormalizeBackend(cfg.Runtime.Backend)
	if err != nil {
		return nil, err
	}

	overrides, err := config.ParseInputSizes(cfg.Model.InputSizes)
	if err != nil {
		return nil, err
	}

	opts := inference.LoadOptions{
		ModelPath:      cfg.Model.Path,
		UseGPU:         cfg.Model.UseGPU,
		BatchSize:      cfg.Model.BatchSize,
		InputOverrides: overrides,
	}

	switch backend {
	case config.BackendORT:
		return ort.New(opts, ort.Config{
			LibraryPath: cfg.Runtime.ORTLibraryPath,
			APIVersion:  cfg.Runtime.ORTAPIVersion,
		})
	case config.BackendMock:
		return mock.New(opts)
	default:
		return nil, fmt.Errorf("backend %q has no constructor", backend)
	}
}
