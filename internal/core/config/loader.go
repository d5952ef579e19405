package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
	BackendMemory   = "memory"

	// DefaultThreshold is 0.0002 of an 18-decimals token.
	DefaultThreshold = "200000000000000"

	DefaultNotifierURL = "https://dapp-server.bnbchain.world/api/v1/4ya/upload-user"

	// MaxBatchSize caps the blocks fetched per cycle.
	MaxBatchSize = 100
)

// Load reads configuration from a YAML file, applies defaults and validates it.
func Load(path string) (*AppConfig, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads configuration and applies defaults without validating it.
// Admin commands that only touch storage use this.
func Parse(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *AppConfig) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Chain.RPCTimeout == 0 {
		c.Chain.RPCTimeout = 30 * time.Second
	}
	if c.Tasks.Threshold == "" {
		c.Tasks.Threshold = DefaultThreshold
	}
	if c.Scheduler.PollInterval == 0 {
		c.Scheduler.PollInterval = 10 * time.Second
	}
	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = MaxBatchSize
	}
	if c.Scheduler.LinearBracket == 0 {
		c.Scheduler.LinearBracket = 32
	}
	if c.Checkpoint.Backend == "" {
		c.Checkpoint.Backend = BackendFile
	}
	if c.Checkpoint.Path == "" {
		c.Checkpoint.Path = "last_processed_block.txt"
	}
	if c.Checkpoint.Name == "" {
		c.Checkpoint.Name = "default"
	}
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = BackendPostgres
	}
	if c.Notifier.URL == "" {
		c.Notifier.URL = DefaultNotifierURL
	}
	if c.Notifier.Timeout == 0 {
		c.Notifier.Timeout = 10 * time.Second
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "taskwatcher"
	}
}

// Validate reports every missing or malformed required setting at once.
func (c *AppConfig) Validate() error {
	var problems []string
	missing := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, key+" is required")
		}
	}
	address := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, key+" is required")
			return
		}
		if !common.IsHexAddress(value) {
			problems = append(problems, key+" is not a valid address")
		}
	}

	missing("chain.rpc_url", c.Chain.RPCURL)
	address("contracts.stake", c.Contracts.Stake)
	address("contracts.swap_pair", c.Contracts.SwapPair)
	address("contracts.deposit", c.Contracts.Deposit)
	address("contracts.tracked_token", c.Contracts.TrackedToken)
	if !c.Notifier.DryRun {
		missing("notifier.token", c.Notifier.Token)
	}

	if c.Window.Start == 0 {
		problems = append(problems, "window.start is required")
	}
	if c.Window.End == 0 {
		problems = append(problems, "window.end is required")
	}
	if err := c.Window.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	for _, kv := range [][2]string{
		{"tasks.threshold", c.Tasks.Threshold},
		{"tasks.stake_threshold", c.Tasks.StakeThreshold},
		{"tasks.swap_threshold", c.Tasks.SwapThreshold},
		{"tasks.deposit_threshold", c.Tasks.DepositThreshold},
	} {
		if kv[1] == "" {
			continue
		}
		if _, err := ParseAmount(kv[1]); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", kv[0], err))
		}
	}

	if c.Scheduler.BatchSize > MaxBatchSize {
		problems = append(problems, fmt.Sprintf("scheduler.batch_size %d exceeds %d", c.Scheduler.BatchSize, MaxBatchSize))
	}

	switch c.Checkpoint.Backend {
	case BackendFile:
	case BackendPostgres:
		missing("database.url", c.Database.URL)
	case BackendMongo:
		missing("mongo.uri", c.Mongo.URI)
	default:
		problems = append(problems, fmt.Sprintf("checkpoint.backend %q is not supported", c.Checkpoint.Backend))
	}

	switch c.Ledger.Backend {
	case BackendPostgres:
		missing("database.url", c.Database.URL)
	case BackendMongo:
		missing("mongo.uri", c.Mongo.URI)
	case BackendRedis:
		missing("redis.url", c.Redis.URL)
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("ledger.backend %q is not supported", c.Ledger.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(dedupe(problems), "; "))
	}
	return nil
}

// ParseAmount parses a non-negative decimal integer amount.
func ParseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is negative", s)
	}
	return n, nil
}

// Thresholds resolves the per-task thresholds.
func (t TasksConfig) Thresholds() (stake, swap, deposit *big.Int, err error) {
	pick := func(override string) (*big.Int, error) {
		if override != "" {
			return ParseAmount(override)
		}
		return ParseAmount(t.Threshold)
	}
	if stake, err = pick(t.StakeThreshold); err != nil {
		return nil, nil, nil, err
	}
	if swap, err = pick(t.SwapThreshold); err != nil {
		return nil, nil, nil, err
	}
	if deposit, err = pick(t.DepositThreshold); err != nil {
		return nil, nil, nil, err
	}
	return stake, swap, deposit, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
