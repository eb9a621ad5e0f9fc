// Package config holds the reconstruction settings: walk and enumeration
// budgets, the flow graph self-loop policy, batch orchestration and logging.
package config

import (
	"encoding"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	Tree     TreeConfig     `yaml:"tree"`
	Flow     FlowConfig     `yaml:"flow"`
	Circuits CircuitsConfig `yaml:"circuits"`
	Batch    BatchConfig    `yaml:"batch"`
	Log      LogConfig      `yaml:"log"`
}

type TreeConfig struct {
	// MaxWalkSteps bounds the number of handler invocations of a single walk.
	// Zero means no bound.
	MaxWalkSteps int `yaml:"max_walk_steps"`
}

type FlowConfig struct {
	SelfLoops SelfLoopPolicy `yaml:"self_loops"`
}

type CircuitsConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxCircuits int  `yaml:"max_circuits"`
	MaxSteps    int  `yaml:"max_steps"`
}

type BatchConfig struct {
	// Workers limits parallel reconstructions, zero means GOMAXPROCS.
	Workers   int        `yaml:"workers"`
	CacheSize int        `yaml:"cache_size"`
	StopOn    StopPolicy `yaml:"stop_on"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Tree: TreeConfig{
			MaxWalkSteps: 1 << 22,
		},
		Flow: FlowConfig{
			SelfLoops: SelfLoopsAllow,
		},
		Circuits: CircuitsConfig{
			Enabled:     true,
			MaxCircuits: 4096,
			MaxSteps:    1 << 20,
		},
		Batch: BatchConfig{
			CacheSize: 256,
			StopOn:    StopOnInvariant,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Parse reads YAML on top of the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}

	return cfg, nil
}

// Validate checks the value ranges.
func (c *Config) Validate() error {
	if c.Tree.MaxWalkSteps < 0 {
		return errors.Errorf("tree.max_walk_steps must not be negative, got %d", c.Tree.MaxWalkSteps)
	}
	if c.Circuits.MaxCircuits < 0 {
		return errors.Errorf("circuits.max_circuits must not be negative, got %d", c.Circuits.MaxCircuits)
	}
	if c.Circuits.MaxSteps < 0 {
		return errors.Errorf("circuits.max_steps must not be negative, got %d", c.Circuits.MaxSteps)
	}
	if c.Batch.Workers < 0 {
		return errors.Errorf("batch.workers must not be negative, got %d", c.Batch.Workers)
	}
	if c.Batch.CacheSize < 0 {
		return errors.Errorf("batch.cache_size must not be negative, got %d", c.Batch.CacheSize)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}

	return nil
}

// Build creates the process logger.
func (c LogConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrap(err, "parse log level")
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}

	return logger, nil
}

// SelfLoopPolicy decides whether a flow block may be its own successor.
type SelfLoopPolicy int

const (
	selfLoopInvalid SelfLoopPolicy = iota
	SelfLoopsAllow
	SelfLoopsReject
)

var selfLoopValueMap = map[SelfLoopPolicy]string{
	SelfLoopsAllow:  "allow",
	SelfLoopsReject: "reject",
}

func (p SelfLoopPolicy) String() string {
	v, ok := selfLoopValueMap[p]
	if !ok {
		return fmt.Sprintf("invalid(%d)", p)
	}

	return v
}

var _ encoding.TextUnmarshaler = (*SelfLoopPolicy)(nil)

func (p *SelfLoopPolicy) UnmarshalText(rawtext []byte) error {
	text := string(rawtext)
	for k, v := range selfLoopValueMap {
		if v == text {
			*p = k
			return nil
		}
	}

	return fmt.Errorf("unknown self-loop policy %q", text)
}

// StopPolicy decides which failures abort a batch instead of skipping the method.
type StopPolicy int

const (
	stopInvalid StopPolicy = iota

	// StopOnInvariant aborts on invariant violations only.
	StopOnInvariant

	// StopOnAny aborts on the first failure of any kind.
	StopOnAny

	// StopNever skips every failing method.
	StopNever
)

var stopValueMap = map[StopPolicy]string{
	StopOnInvariant: "invariant",
	StopOnAny:       "any",
	StopNever:       "never",
}

func (p StopPolicy) String() string {
	v, ok := stopValueMap[p]
	if !ok {
		return fmt.Sprintf("invalid(%d)", p)
	}

	return v
}

var _ encoding.TextUnmarshaler = (*StopPolicy)(nil)

func (p *StopPolicy) UnmarshalText(rawtext []byte) error {
	text := string(rawtext)
	for k, v := range stopValueMap {
		if v == text {
			*p = k
			return nil
		}
	}

	return fmt.Errorf("unknown stop policy %q", text)
}
