// Package config centralizes Animica's runtime configuration: a TOML
// file provides the base layer, environment variables override it, and
// the result is validated before use. Grounded on execution/config.py's
// env-default layering (_bool_env, _parse_size_bytes, FeatureFlags,
// Limits, ExecutionConfig, load_config/get_config/summary), adapted to
// a TOML-file base layer in the teacher's own config-loading idiom.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/animicaorg/animica/aicf"
	"github.com/animicaorg/animica/core/feemarket"
	"github.com/animicaorg/animica/core/ratelimiter"
	"github.com/animicaorg/animica/params"
	"github.com/animicaorg/animica/randomness"
)

// Config is the fully-resolved configuration for one node process.
type Config struct {
	GasTablePath string `toml:"gas_table_path"`

	Features params.FeatureFlags `toml:"-"`
	Limits   params.Limits       `toml:"-"`

	FeeMarket   feemarket.Config     `toml:"-"`
	RateLimiter ratelimiter.Config   `toml:"-"`
	Randomness  randomness.Params    `toml:"-"`

	AICFHeartbeat     aicf.HeartbeatValidatorConfig `toml:"-"`
	AICFWorkerPool    aicf.WorkerPoolConfig         `toml:"-"`
	AICFQueueCapacity int                           `toml:"aicf_queue_capacity"`
}

// fileShape is the subset of Config that BurntSushi/toml can decode
// directly from flat scalar fields; nested domain configs are applied as
// typed overrides afterward (mirroring execution/config.py's `overrides`
// mapping, just statically typed instead of a dict).
type fileShape struct {
	GasTablePath string `toml:"gas_table_path"`

	StrictVM            bool `toml:"strict_vm"`
	OptimisticScheduler bool `toml:"optimistic_scheduler"`
	EnableVMEntry       bool `toml:"enable_vm_entry"`

	MaxTxSizeBytes    string  `toml:"max_tx_size_bytes"`
	MaxCodeSizeBytes  string  `toml:"max_code_size_bytes"`
	MaxLogsPerTx      int     `toml:"max_logs_per_tx"`
	MaxEventTopics    int     `toml:"max_event_topics"`
	MaxEventDataBytes string  `toml:"max_event_data_bytes"`
	MaxAccessListLen  int     `toml:"max_access_list_len"`
	RefundRatioCap    float64 `toml:"refund_ratio_cap"`

	GenesisT0      int64 `toml:"beacon_genesis_t0"`
	CommitSec      int64 `toml:"beacon_commit_sec"`
	RevealSec      int64 `toml:"beacon_reveal_sec"`
	RevealGraceSec int64 `toml:"beacon_reveal_grace_sec"`
	VDFSec         int64 `toml:"beacon_vdf_sec"`

	AICFMinIntervalSec int64 `toml:"aicf_hb_min_interval_sec"`
	AICFMaxSkewSec     int64 `toml:"aicf_hb_max_skew_sec"`
	AICFQueueCapacity  int   `toml:"aicf_queue_capacity"`
}

func defaultFileShape() fileShape {
	return fileShape{
		GasTablePath:        "vm/gas_table.json",
		StrictVM:            true,
		OptimisticScheduler: false,
		EnableVMEntry:       true,
		MaxTxSizeBytes:      "128KiB",
		MaxCodeSizeBytes:    "64KiB",
		MaxLogsPerTx:        128,
		MaxEventTopics:      4,
		MaxEventDataBytes:   "64KiB",
		MaxAccessListLen:    1024,
		RefundRatioCap:      0.20,
		GenesisT0:           0,
		CommitSec:           30,
		RevealSec:           20,
		RevealGraceSec:      5,
		VDFSec:              10,
		AICFMinIntervalSec:  5,
		AICFMaxSkewSec:      300,
		AICFQueueCapacity:   1024,
	}
}

var boolTrue = map[string]bool{"1": true, "true": true, "t": true, "yes": true, "y": true, "on": true}
var boolFalse = map[string]bool{"0": true, "false": true, "f": true, "no": true, "n": true, "off": true}

// boolEnv mirrors execution/config.py's _bool_env: missing var keeps the
// default; an unrecognized non-empty value is also forgiving (kept as
// default) rather than erroring, matching the original's permissiveness.
func boolEnv(v string, present bool, def bool) bool {
	if !present {
		return def
	}
	lv := strings.ToLower(strings.TrimSpace(v))
	if boolTrue[lv] {
		return true
	}
	if boolFalse[lv] {
		return false
	}
	return def
}

var sizeRe = regexp.MustCompile(`(?i)^\s*(\d+)\s*([kmg]i?b)?\s*$`)

// parseSizeBytes mirrors execution/config.py's _parse_size_bytes:
// "256KiB", "64KB", "131072" -> bytes.
func parseSizeBytes(s string) (uint64, error) {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("config: invalid size %q", s)
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, err
	}
	unit := strings.ToLower(m[2])
	var mult uint64 = 1
	switch unit {
	case "", "b":
		mult = 1
	case "kb":
		mult = 1_000
	case "kib":
		mult = 1_024
	case "mb":
		mult = 1_000_000
	case "mib":
		mult = 1_048_576
	case "gb":
		mult = 1_000_000_000
	case "gib":
		mult = 1_073_741_824
	default:
		return 0, fmt.Errorf("config: unknown size unit %q", unit)
	}
	return n * mult, nil
}

func envOverride(key string) (string, bool) {
	v, ok := os.LookupEnv("ANIMICA_" + key)
	return v, ok
}

// Load reads a TOML file (if path is non-empty) layered under defaults,
// applies ANIMICA_*-prefixed environment overrides, and validates the
// result. A non-empty path that is missing or fails to decode is an
// error. Passing an empty path loads defaults + env only.
func Load(path string) (*Config, error) {
	fs := defaultFileShape()
	if path != "" {
		if _, err := toml.DecodeFile(path, &fs); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if v, ok := envOverride("EXEC_GAS_TABLE"); ok {
		fs.GasTablePath = v
	}
	v, ok := envOverride("EXEC_STRICT")
	fs.StrictVM = boolEnv(v, ok, fs.StrictVM)
	v, ok = envOverride("EXEC_OPTIMISTIC")
	fs.OptimisticScheduler = boolEnv(v, ok, fs.OptimisticScheduler)
	v, ok = envOverride("EXEC_ENABLE_VM_ENTRY")
	fs.EnableVMEntry = boolEnv(v, ok, fs.EnableVMEntry)
	if v, ok := envOverride("EXEC_MAX_TX_BYTES"); ok {
		fs.MaxTxSizeBytes = v
	}
	if v, ok := envOverride("EXEC_MAX_CODE_BYTES"); ok {
		fs.MaxCodeSizeBytes = v
	}
	if v, ok := envOverride("EXEC_MAX_LOGS_PER_TX"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			fs.MaxLogsPerTx = n
		}
	}
	if v, ok := envOverride("EXEC_MAX_EVENT_TOPICS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			fs.MaxEventTopics = n
		}
	}
	if v, ok := envOverride("EXEC_MAX_EVENT_DATA"); ok {
		fs.MaxEventDataBytes = v
	}
	if v, ok := envOverride("EXEC_MAX_ACCESSLIST_LEN"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			fs.MaxAccessListLen = n
		}
	}
	if v, ok := envOverride("EXEC_REFUND_RATIO_CAP"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			fs.RefundRatioCap = f
		}
	}

	maxTx, err := parseSizeBytes(fs.MaxTxSizeBytes)
	if err != nil {
		return nil, err
	}
	maxCode, err := parseSizeBytes(fs.MaxCodeSizeBytes)
	if err != nil {
		return nil, err
	}
	maxEvent, err := parseSizeBytes(fs.MaxEventDataBytes)
	if err != nil {
		return nil, err
	}

	limits := params.Limits{
		MaxTxSizeBytes:    maxTx,
		MaxCodeSizeBytes:  maxCode,
		MaxLogsPerTx:      fs.MaxLogsPerTx,
		MaxEventTopics:    fs.MaxEventTopics,
		MaxEventDataBytes: maxEvent,
		MaxAccessListLen:  fs.MaxAccessListLen,
		RefundRatioCapPPM: uint64(fs.RefundRatioCap * 1_000_000),
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	features := params.FeatureFlags{
		StrictVM:            fs.StrictVM,
		OptimisticScheduler: fs.OptimisticScheduler,
		EnableVMEntry:       fs.EnableVMEntry,
	}

	randomnessParams := randomness.Params{
		GenesisT0:      fs.GenesisT0,
		CommitSec:      fs.CommitSec,
		RevealSec:      fs.RevealSec,
		RevealGraceSec: fs.RevealGraceSec,
		VDFSec:         fs.VDFSec,
	}
	if err := randomnessParams.Validate(); err != nil {
		return nil, err
	}

	return &Config{
		GasTablePath:      fs.GasTablePath,
		Features:          features,
		Limits:            limits,
		FeeMarket:         feemarket.DefaultConfig(),
		RateLimiter:       ratelimiter.DefaultConfig(),
		Randomness:        randomnessParams,
		AICFHeartbeat: aicf.HeartbeatValidatorConfig{
			MinIntervalSec: fs.AICFMinIntervalSec,
			MaxSkewSec:     fs.AICFMaxSkewSec,
		},
		AICFWorkerPool:    aicf.DefaultWorkerPoolConfig(),
		AICFQueueCapacity: fs.AICFQueueCapacity,
	}, nil
}

// Summary renders a one-line human-readable view, mirroring
// execution/config.py's summary().
func (c *Config) Summary() string {
	f := c.Features
	l := c.Limits
	return fmt.Sprintf(
		"exec{gas=%s, strict=%d, opt=%d, vm_entry=%d, tx=%dB, code=%dB, logs=%d, topics=%d, event=%dB, alist=%d, refund_cap_ppm=%d}",
		c.GasTablePath, boolInt(f.StrictVM), boolInt(f.OptimisticScheduler), boolInt(f.EnableVMEntry),
		l.MaxTxSizeBytes, l.MaxCodeSizeBytes, l.MaxLogsPerTx, l.MaxEventTopics, l.MaxEventDataBytes, l.MaxAccessListLen, l.RefundRatioCapPPM,
	)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
