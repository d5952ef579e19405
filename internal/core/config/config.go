package config

import (
	"time"

	"github.com/vietddude/taskwatcher/internal/core/domain"
	redisclient "github.com/vietddude/taskwatcher/internal/infra/redis"
	"github.com/vietddude/taskwatcher/internal/infra/storage/mongo"
	"github.com/vietddude/taskwatcher/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Chain      ChainConfig        `yaml:"chain"`
	Contracts  ContractsConfig    `yaml:"contracts"`
	Window     domain.TimeWindow  `yaml:"window"`
	Tasks      TasksConfig        `yaml:"tasks"`
	Scheduler  SchedulerConfig    `yaml:"scheduler"`
	Checkpoint CheckpointConfig   `yaml:"checkpoint"`
	Ledger     LedgerConfig       `yaml:"ledger"`
	Notifier   NotifierConfig     `yaml:"notifier"`
	Database   postgres.Config    `yaml:"database"`
	Mongo      mongo.Config       `yaml:"mongo"`
	Redis      redisclient.Config `yaml:"redis"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds health/metrics HTTP server settings.
type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ChainConfig holds RPC settings.
type ChainConfig struct {
	RPCURL     string        `yaml:"rpc_url"`
	RPCTimeout time.Duration `yaml:"rpc_timeout"`
}

// ContractsConfig holds the tracked contract addresses (hex).
type ContractsConfig struct {
	Stake        string `yaml:"stake"`
	SwapPair     string `yaml:"swap_pair"`
	Deposit      string `yaml:"deposit"`
	TrackedToken string `yaml:"tracked_token"`
}

// TasksConfig holds eligibility thresholds as decimal strings in token
// smallest units. Per-task values override Threshold.
type TasksConfig struct {
	Threshold        string `yaml:"threshold"`
	StakeThreshold   string `yaml:"stake_threshold"`
	SwapThreshold    string `yaml:"swap_threshold"`
	DepositThreshold string `yaml:"deposit_threshold"`
}

// SchedulerConfig holds polling loop settings.
type SchedulerConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchSize     uint64        `yaml:"batch_size"`
	LinearBracket uint64        `yaml:"linear_bracket"`
	HeadCacheTTL  time.Duration `yaml:"head_cache_ttl"`
}

// CheckpointConfig selects the checkpoint backend.
type CheckpointConfig struct {
	Backend string `yaml:"backend"` // file, postgres, mongo
	Path    string `yaml:"path"`
	Name    string `yaml:"name"`
}

// LedgerConfig selects the credit ledger backend.
type LedgerConfig struct {
	Backend string `yaml:"backend"` // postgres, mongo, redis, memory
}

// NotifierConfig holds the downstream endpoint settings. DryRun logs
// payloads instead of sending them.
type NotifierConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
	DryRun  bool          `yaml:"dry_run"`
}
