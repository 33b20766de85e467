package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	Model    ModelConfig   `mapstructure:"model"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Server   ServerConfig  `mapstructure:"server"`
}

type ModelConfig struct {
	Path      string `mapstructure:"path"`
	UseGPU    bool   `mapstructure:"use_gpu"`
	BatchSize int64  `mapstructure:"batch_size"`
	// InputSizes are per-input shape overrides in "3x224x224" form,
	// aligned positionally with the model's declared inputs.
	InputSizes []string `mapstructure:"input_sizes"`
}

type RuntimeConfig struct {
	Backend        string `mapstructure:"backend"`
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTAPIVersion  uint32 `mapstructure:"ort_api_version"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
}

// ListenAddr joins host and port into the net/http listen address.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Model: ModelConfig{
			Path:      "",
			UseGPU:    false,
			BatchSize: 1,
		},
		Runtime: RuntimeConfig{
			Backend:        BackendORT,
			ORTLibraryPath: "",
			ORTAPIVersion:  0,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			RequestTimeout:  60,
			ShutdownTimeout: 30,
			MaxBodyBytes:    64 << 20,
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("model", defaults.Model.Path, "Path to the model file")
	fs.Bool("gpu", defaults.Model.UseGPU, "Enable GPU acceleration")
	fs.Int64("batch-size", defaults.Model.BatchSize, "Batch size for inference")
	fs.StringSlice("input-size", defaults.Model.InputSizes, "Per-input shape override, e.g. 3x224x224 (repeatable)")
	fs.String("backend", defaults.Runtime.Backend, "Inference backend (ort|mock)")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.Uint32("ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version (0 = binding default)")
	fs.String("host", defaults.Server.Host, "Server host address")
	fs.Int("port", defaults.Server.Port, "Server port")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	v.SetEnvPrefix("NEURIPLO")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "NEURIPLO_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("neuriplo")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("model.path", c.Model.Path)
	v.SetDefault("model.use_gpu", c.Model.UseGPU)
	v.SetDefault("model.batch_size", c.Model.BatchSize)
	v.SetDefault("model.input_sizes", c.Model.InputSizes)
	v.SetDefault("runtime.backend", c.Runtime.Backend)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("server.host", c.Server.Host)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", c.Server.MaxBodyBytes)
}

// bindFlags maps config keys onto their flags explicitly. Only the flags
// this package registers are bound; command-local flags stay out of the
// config tree.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"log_level":                "log-level",
		"model.path":               "model",
		"model.use_gpu":            "gpu",
		"model.batch_size":         "batch-size",
		"model.input_sizes":        "input-size",
		"runtime.backend":          "backend",
		"runtime.ort_library_path": "ort-lib",
		"runtime.ort_api_version":  "ort-api-version",
		"server.host":              "host",
		"server.port":              "port",
		"server.request_timeout":   "request-timeout",
		"server.shutdown_timeout":  "shutdown-timeout",
	}

	for key, name := range bindings {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}

		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	return nil
}

// ParseInputSizes converts "3x224x224" (or comma-separated) override
// strings into the positional override shapes a backend constructor takes.
func ParseInputSizes(specs []string) ([][]int64, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	out := make([][]int64, 0, len(specs))
	for _, spec := range specs {
		sep := "x"
		if strings.Contains(spec, ",") {
			sep = ","
		}

		parts := strings.Split(strings.TrimSpace(spec), sep)
		dims := make([]int64, 0, len(parts))
		for _, part := range parts {
			d, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid input size %q: %w", spec, err)
			}

			dims = append(dims, d)
		}

		out = append(out, dims)
	}

	return out, nil
}
