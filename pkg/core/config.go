package core

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Config is the configuration of one stdpcore simulation run.
//
// The configuration is resolved through a four-level hierarchy where each
// layer overrides values set by the layer beneath it:
//
//	Priority (highest → lowest):
//	  1. Programmatic overrides (e.g. CLI flags applied after loading)
//	  2. YAML configuration file
//	  3. Environment variables (STDPCORE_* prefix)
//	  4. Built-in defaults
//
// The memory budget accepts size strings such as "64KB" or "1MB".
// ---------------------------------------------------------------------------

// RuleConfig selects the timing rule and holds the values its region blob is
// generated from.
type RuleConfig struct {
	// Name is the timing rule, e.g. "recurrent-fixed" or "vogels-2011".
	Name string `yaml:"name"`

	// AccumulatorDepression is the floor of the accumulator. Stepping below
	// it applies one unit of depression and resets the accumulator.
	AccumulatorDepression int32 `yaml:"accumulatorDepression"`

	// AccumulatorPotentiation is the ceiling of the accumulator.
	AccumulatorPotentiation int32 `yaml:"accumulatorPotentiation"`

	// PreWindowLength and PostWindowLength are the fixed window lengths in
	// timesteps, used by recurrent-fixed.
	PreWindowLength  uint32 `yaml:"preWindowLength"`
	PostWindowLength uint32 `yaml:"postWindowLength"`

	// PreMean and PostMean are the mean window lengths the stochastic
	// tables are generated from.
	PreMean  float32 `yaml:"preMean"`
	PostMean float32 `yaml:"postMean"`

	// Tau is the decay time constant of the vogels-2011 traces.
	Tau float32 `yaml:"tau"`

	// Alpha is the depression offset of vogels-2011, in fixed point.
	Alpha int32 `yaml:"alpha"`

	// Seed is the KISS64 seed for rules that draw from the seeded
	// generator. Empty means the default seed.
	Seed []uint32 `yaml:"seed"`
}

// WeightConfig holds one additive dependence block per synapse type.
type WeightConfig struct {
	Types []WeightTypeConfig `yaml:"types"`
}

// WeightTypeConfig mirrors weight.AdditiveParams. It lives here so the
// configuration layer does not import the plasticity packages.
type WeightTypeConfig struct {
	MinWeight int32 `yaml:"minWeight"`
	MaxWeight int32 `yaml:"maxWeight"`
	A2Plus    int32 `yaml:"a2Plus"`
	A2Minus   int32 `yaml:"a2Minus"`
}

// SimulationConfig groups run-level settings.
type SimulationConfig struct {
	// Cores is the number of simulated cores driven in parallel.
	Cores int `yaml:"cores"`

	// QueueSize is the operation buffer of each core worker.
	QueueSize int `yaml:"queueSize"`

	// MemoryBudget is the per-core limit for synaptic rows and history.
	MemoryBudget datasize.ByteSize `yaml:"memoryBudget"`

	// RuntimeLog enables per-spike tracing inside the timing rules.
	RuntimeLog bool `yaml:"runtimeLog"`
}

// StorageConfig groups snapshot persistence settings.
type StorageConfig struct {
	// Backend is one of file | memory | sqlite.
	Backend string `yaml:"backend"`

	// DataPath is the directory (file backend) or database file (sqlite).
	DataPath string `yaml:"dataPath"`

	// Compress gzips snapshot payloads.
	Compress bool `yaml:"compress"`
}

// Config is the root configuration object.
type Config struct {
	Rule       RuleConfig       `yaml:"rule"`
	Weight     WeightConfig     `yaml:"weight"`
	Simulation SimulationConfig `yaml:"simulation"`
	Storage    StorageConfig    `yaml:"storage"`
}

// DefaultConfig returns a Config that runs recurrent-fixed with a single
// excitatory synapse type.
func DefaultConfig() *Config {
	return &Config{
		Rule: RuleConfig{
			Name:                    "recurrent-fixed",
			AccumulatorDepression:   -6,
			AccumulatorPotentiation: 6,
			PreWindowLength:         20,
			PostWindowLength:        20,
			PreMean:                 20,
			PostMean:                20,
			Tau:                     20,
			Alpha:                   409,
		},
		Weight: WeightConfig{
			Types: []WeightTypeConfig{
				{MinWeight: 0, MaxWeight: 4096, A2Plus: 256, A2Minus: 256},
			},
		},
		Simulation: SimulationConfig{
			Cores:        4,
			QueueSize:    256,
			MemoryBudget: 64 * datasize.KB,
		},
		Storage: StorageConfig{
			Backend:  "file",
			DataPath: "./data",
			Compress: true,
		},
	}
}

// ConfigFromFile reads a YAML configuration file and merges it on top of
// the built-in defaults. Fields absent from the file retain their defaults.
func ConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return cfg, nil
}

// ConfigFromEnv applies environment variable overrides to the given Config.
// If cfg is nil a new default Config is created first.
//
// Environment variable mapping (all optional, prefix STDPCORE_):
//
//	STDPCORE_RULE               → Rule.Name
//	STDPCORE_ACC_DEPRESSION     → Rule.AccumulatorDepression
//	STDPCORE_ACC_POTENTIATION   → Rule.AccumulatorPotentiation
//	STDPCORE_PRE_WINDOW         → Rule.PreWindowLength
//	STDPCORE_POST_WINDOW        → Rule.PostWindowLength
//	STDPCORE_ALPHA              → Rule.Alpha
//	STDPCORE_SEED               → Rule.Seed               (comma-separated)
//	STDPCORE_CORES              → Simulation.Cores
//	STDPCORE_QUEUE_SIZE         → Simulation.QueueSize
//	STDPCORE_MEMORY_BUDGET      → Simulation.MemoryBudget (size string)
//	STDPCORE_RUNTIME_LOG        → Simulation.RuntimeLog   ("true"/"false")
//	STDPCORE_STORAGE_BACKEND    → Storage.Backend
//	STDPCORE_DATA_PATH          → Storage.DataPath
//	STDPCORE_COMPRESS           → Storage.Compress        ("true"/"false")
func ConfigFromEnv(cfg *Config) *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// -- Rule --
	setEnvStr("STDPCORE_RULE", &cfg.Rule.Name)
	setEnvInt32("STDPCORE_ACC_DEPRESSION", &cfg.Rule.AccumulatorDepression)
	setEnvInt32("STDPCORE_ACC_POTENTIATION", &cfg.Rule.AccumulatorPotentiation)
	setEnvUint32("STDPCORE_PRE_WINDOW", &cfg.Rule.PreWindowLength)
	setEnvUint32("STDPCORE_POST_WINDOW", &cfg.Rule.PostWindowLength)
	setEnvInt32("STDPCORE_ALPHA", &cfg.Rule.Alpha)
	setEnvUint32CSV("STDPCORE_SEED", &cfg.Rule.Seed)

	// -- Simulation --
	setEnvInt("STDPCORE_CORES", &cfg.Simulation.Cores)
	setEnvInt("STDPCORE_QUEUE_SIZE", &cfg.Simulation.QueueSize)
	setEnvByteSize("STDPCORE_MEMORY_BUDGET", &cfg.Simulation.MemoryBudget)
	setEnvBool("STDPCORE_RUNTIME_LOG", &cfg.Simulation.RuntimeLog)

	// -- Storage --
	setEnvStr("STDPCORE_STORAGE_BACKEND", &cfg.Storage.Backend)
	setEnvStr("STDPCORE_DATA_PATH", &cfg.Storage.DataPath)
	setEnvBool("STDPCORE_COMPRESS", &cfg.Storage.Compress)

	return cfg
}

// LoadConfig implements the configuration hierarchy up to the environment
// layer. The caller may then apply CLI overrides.
func LoadConfig(configPath string) (*Config, error) {
	var cfg *Config
	if configPath != "" {
		var err error
		cfg, err = ConfigFromFile(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = DefaultConfig()
	}

	cfg = ConfigFromEnv(cfg)
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate performs structural validation of the entire configuration.
// Rule-specific checks (accumulator field width, table sizes) happen when the
// rule is built. Returns a descriptive error for the first invalid field.
func (c *Config) Validate() error {
	// Rule
	c.Rule.Name = strings.ToLower(strings.TrimSpace(c.Rule.Name))
	if c.Rule.Name == "" {
		return fmt.Errorf("rule.name must not be empty")
	}
	if c.Rule.AccumulatorDepression >= 0 {
		return fmt.Errorf("rule.accumulatorDepression must be < 0, got %d", c.Rule.AccumulatorDepression)
	}
	if c.Rule.AccumulatorPotentiation <= 0 {
		return fmt.Errorf("rule.accumulatorPotentiation must be > 0, got %d", c.Rule.AccumulatorPotentiation)
	}
	if c.Rule.PreMean <= 0 || c.Rule.PostMean <= 0 {
		return fmt.Errorf("rule.preMean and rule.postMean must be > 0")
	}
	if c.Rule.Tau <= 0 {
		return fmt.Errorf("rule.tau must be > 0, got %g", c.Rule.Tau)
	}
	if len(c.Rule.Seed) != 0 && len(c.Rule.Seed) != 4 {
		return fmt.Errorf("rule.seed must have exactly 4 words, got %d", len(c.Rule.Seed))
	}

	// Weight
	if len(c.Weight.Types) == 0 {
		return fmt.Errorf("weight.types must list at least one synapse type")
	}
	for i, t := range c.Weight.Types {
		if t.MinWeight < 0 || t.MaxWeight > 65535 {
			return fmt.Errorf("weight.types[%d]: bounds must lie within 0..65535", i)
		}
		if t.MinWeight > t.MaxWeight {
			return fmt.Errorf("weight.types[%d]: minWeight (%d) must be <= maxWeight (%d)", i, t.MinWeight, t.MaxWeight)
		}
	}

	// Simulation
	if c.Simulation.Cores < 1 {
		return fmt.Errorf("simulation.cores must be >= 1, got %d", c.Simulation.Cores)
	}
	if c.Simulation.QueueSize < 1 {
		return fmt.Errorf("simulation.queueSize must be >= 1, got %d", c.Simulation.QueueSize)
	}
	if c.Simulation.MemoryBudget == 0 {
		return fmt.Errorf("simulation.memoryBudget must be > 0")
	}
	if c.Simulation.Cores > 1024 {
		log.Printf("⚠ WARNING: simulation.cores=%d is far above the goroutines a host usually runs well", c.Simulation.Cores)
	}
	if c.Simulation.RuntimeLog {
		log.Printf("⚠ WARNING: simulation.runtimeLog is on; every spike will be logged")
	}

	// Storage
	backend := strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if backend != "file" && backend != "memory" && backend != "sqlite" {
		return fmt.Errorf("storage.backend must be one of file|memory|sqlite")
	}
	c.Storage.Backend = backend
	if backend != "memory" && c.Storage.DataPath == "" {
		return fmt.Errorf("storage.dataPath must not be empty for the %s backend", backend)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Environment variable helpers
// ---------------------------------------------------------------------------

// setEnvStr sets *target to the value of the named env var if it is non-empty.
func setEnvStr(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// setEnvBool sets *target to the parsed boolean value of the named env var.
func setEnvBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

// setEnvInt sets *target to the parsed integer value of the named env var.
func setEnvInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

// setEnvInt32 sets *target to the parsed int32 value of the named env var.
func setEnvInt32(key string, target *int32) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*target = int32(n)
		}
	}
}

// setEnvUint32 sets *target to the parsed uint32 value of the named env var.
func setEnvUint32(key string, target *uint32) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*target = uint32(n)
		}
	}
}

// setEnvUint32CSV sets *target from a comma-separated list of uint32 values.
// The whole variable is ignored if any element fails to parse.
func setEnvUint32CSV(key string, target *[]uint32) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]uint32, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return
		}
		out = append(out, uint32(n))
	}
	*target = out
}

// setEnvByteSize sets *target to the parsed size string of the named env var.
func setEnvByteSize(key string, target *datasize.ByteSize) {
	if v := os.Getenv(key); v != "" {
		var b datasize.ByteSize
		if err := b.UnmarshalText([]byte(v)); err == nil {
			*target = b
		}
	}
}

// ---------------------------------------------------------------------------
// CLI flag overrides are the final layer of the configuration hierarchy.
// ---------------------------------------------------------------------------

// CLIOverrides carries optional values set via command-line flags.
// Pointer fields are nil when the flag was not explicitly provided,
// allowing the caller to distinguish "not set" from the zero value.
type CLIOverrides struct {
	ConfigPath              *string
	Rule                    *string
	AccumulatorDepression   *int32
	AccumulatorPotentiation *int32
	PreWindowLength         *uint32
	PostWindowLength        *uint32
	Alpha                   *int32
	Cores                   *int
	MemoryBudget            *datasize.ByteSize
	RuntimeLog              *bool
	StorageBackend          *string
	DataPath                *string
	Compress                *bool
}

// ApplyCLIOverrides patches the Config with any explicitly-set CLI flags.
// Only non-nil fields in the CLIOverrides are applied, preserving all
// values resolved from earlier hierarchy layers.
func (c *Config) ApplyCLIOverrides(o *CLIOverrides) {
	if o == nil {
		return
	}
	if o.Rule != nil {
		c.Rule.Name = *o.Rule
	}
	if o.AccumulatorDepression != nil {
		c.Rule.AccumulatorDepression = *o.AccumulatorDepression
	}
	if o.AccumulatorPotentiation != nil {
		c.Rule.AccumulatorPotentiation = *o.AccumulatorPotentiation
	}
	if o.PreWindowLength != nil {
		c.Rule.PreWindowLength = *o.PreWindowLength
	}
	if o.PostWindowLength != nil {
		c.Rule.PostWindowLength = *o.PostWindowLength
	}
	if o.Alpha != nil {
		c.Rule.Alpha = *o.Alpha
	}
	if o.Cores != nil {
		c.Simulation.Cores = *o.Cores
	}
	if o.MemoryBudget != nil {
		c.Simulation.MemoryBudget = *o.MemoryBudget
	}
	if o.RuntimeLog != nil {
		c.Simulation.RuntimeLog = *o.RuntimeLog
	}
	if o.StorageBackend != nil {
		c.Storage.Backend = *o.StorageBackend
	}
	if o.DataPath != nil {
		c.Storage.DataPath = *o.DataPath
	}
	if o.Compress != nil {
		c.Storage.Compress = *o.Compress
	}
}
