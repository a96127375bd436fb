package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Limits are the fixed ceilings enforced while grading a submission.
// They are read once at startup and never mutated afterwards.
type Limits struct {
	CompileTimeout time.Duration `toml:"-"`
	TestTimeout    time.Duration `toml:"-"`
	MemoryBytes    uint64        `toml:"memory_bytes"`
	MaxSourceBytes int64         `toml:"max_source_bytes"`

	CompileTimeoutMs int64 `toml:"compile_timeout_ms"`
	TestTimeoutMs    int64 `toml:"test_timeout_ms"`
}

// Config is the process-wide grader configuration.
type Config struct {
	TestcaseDir string `toml:"testcase_dir"`
	ScratchDir  string `toml:"scratch_dir"`
	Workers     int    `toml:"workers"`
	QueueCap    int    `toml:"queue_cap"`

	NatsURL     string `toml:"nats_url"`
	SqsQueueURL string `toml:"sqs_queue_url"`

	Limits Limits `toml:"limits"`
}

func Default() Config {
	return Config{
		TestcaseDir: "testcases",
		ScratchDir:  os.TempDir(),
		Workers:     2,
		QueueCap:    256,
		Limits: Limits{
			CompileTimeout: 30 * time.Second,
			TestTimeout:    5 * time.Second,
			MemoryBytes:    256 * 1024 * 1024,
			MaxSourceBytes: 1024 * 1024,
		},
	}
}

// Load builds the configuration from defaults, then an optional TOML file,
// then environment variables (a .env file is honoured when present).
func Load(tomlPath string) (Config, error) {
	cfg := Default()

	if tomlPath != "" {
		data, err := os.ReadFile(tomlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file %s: %w", tomlPath, err)
			}
		} else {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", tomlPath, err)
			}
			if cfg.Limits.CompileTimeoutMs > 0 {
				cfg.Limits.CompileTimeout = time.Duration(cfg.Limits.CompileTimeoutMs) * time.Millisecond
			}
			if cfg.Limits.TestTimeoutMs > 0 {
				cfg.Limits.TestTimeout = time.Duration(cfg.Limits.TestTimeoutMs) * time.Millisecond
			}
		}
	}

	_ = godotenv.Load() // .env is optional

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GRADER_TESTCASE_DIR"); v != "" {
		cfg.TestcaseDir = v
	}
	if v := os.Getenv("GRADER_SCRATCH_DIR"); v != "" {
		cfg.ScratchDir = v
	}
	if v := os.Getenv("GRADER_NATS_URL"); v != "" {
		cfg.NatsURL = v
	}
	if v := os.Getenv("GRADER_SQS_QUEUE_URL"); v != "" {
		cfg.SqsQueueURL = v
	}
	if n, ok := envInt("GRADER_WORKERS"); ok {
		cfg.Workers = int(n)
	}
	if n, ok := envInt("GRADER_QUEUE_CAP"); ok {
		cfg.QueueCap = int(n)
	}
	if n, ok := envInt("GRADER_COMPILE_TIMEOUT_MS"); ok {
		cfg.Limits.CompileTimeout = time.Duration(n) * time.Millisecond
	}
	if n, ok := envInt("GRADER_TEST_TIMEOUT_MS"); ok {
		cfg.Limits.TestTimeout = time.Duration(n) * time.Millisecond
	}
	if n, ok := envInt("GRADER_MEMORY_BYTES"); ok {
		cfg.Limits.MemoryBytes = uint64(n)
	}
	if n, ok := envInt("GRADER_MAX_SOURCE_BYTES"); ok {
		cfg.Limits.MaxSourceBytes = n
	}
}

func envInt(key string) (int64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
