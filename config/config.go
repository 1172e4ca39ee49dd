package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Host    string `toml:"host" mapstructure:"host"`
	Port    string `toml:"port" mapstructure:"port"`
	Libonnx string `toml:"libonnx" mapstructure:"libonnx"`

	ModelDir       string `toml:"model_dir" mapstructure:"model_dir"`
	ModelFileName  string `toml:"model_file_name" mapstructure:"model_file_name"`
	PoolSize       int    `toml:"pool_size" mapstructure:"pool_size"`
	IntraOpThreads int    `toml:"intra_op_threads" mapstructure:"intra_op_threads"`

	// MaxUploadSize is the largest accepted request body, in bytes.
	MaxUploadSize int64 `toml:"max_upload_size" mapstructure:"max_upload_size"`
	// ReadTimeout and WriteTimeout are in seconds.
	ReadTimeout  int      `toml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout int      `toml:"write_timeout" mapstructure:"write_timeout"`
	AllowOrigins []string `toml:"allow_origins" mapstructure:"allow_origins"`
	Metrics      bool     `toml:"metrics" mapstructure:"metrics"`
}

const (
	DefaultPath = "config.toml"
	PathEnv     = "DIGITVISION_CONFIG"
	ModelEnv    = "DIGITVISION_MODEL"
	LibEnv      = "ONNXRUNTIME_LIB"
	PortEnv     = "PORT"
)

func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           "8000",
		ModelDir:       "models",
		ModelFileName:  "mnist_model.onnx",
		PoolSize:       runtime.NumCPU(),
		IntraOpThreads: 1,
		MaxUploadSize:  10 << 20,
		ReadTimeout:    30,
		WriteTimeout:   30,
		AllowOrigins:   []string{"*"},
		Metrics:        true,
	}
}

var (
	cfg      Config
	loadOnce sync.Once
)

// C returns the process configuration, loading it on first use.
func C() Config {
	loadOnce.Do(func() {
		path := os.Getenv(PathEnv)
		if path == "" {
			path = DefaultPath
		}
		c, err := Load(path)
		if err != nil {
			panic(err)
		}
		cfg = c
	})
	return cfg
}

// Load reads path on top of the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return c, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyEnv(&c)
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv(PortEnv); v != "" {
		c.Port = v
	}
	if v := os.Getenv(ModelEnv); v != "" {
		c.ModelDir = ""
		c.ModelFileName = v
	}
	if v := os.Getenv(LibEnv); v != "" {
		c.Libonnx = v
	}
}

func (c Config) Validate() error {
	if c.ModelFileName == "" {
		return errors.New("model_file_name must be set")
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("pool_size must be positive, got %d", c.PoolSize)
	}
	if c.MaxUploadSize < 1 {
		return fmt.Errorf("max_upload_size must be positive, got %d", c.MaxUploadSize)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q: %w", c.Port, err)
	}
	return nil
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func (c Config) ModelPath() string {
	return filepath.Join(c.ModelDir, c.ModelFileName)
}

func (c Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

func (c Config) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}
