package config

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig admin api config
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DBConfig database config
type DBConfig struct {
	Type     string `yaml:"type"` // postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// LogConfig logger config
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// ChainConfig ledger access
type ChainConfig struct {
	RpcUrl          string        `yaml:"rpc_url"`
	SignerUrl       string        `yaml:"signer_url"`     // signing bridge; empty means read-only
	SignerAddress   string        `yaml:"signer_address"` // account the bridge signs for
	PackageID       string        `yaml:"package_id"`
	ClockObjectID   string        `yaml:"clock_object_id"`
	GasBuffer       int64         `yaml:"gas_buffer"` // MIST
	GasBudget       uint64        `yaml:"gas_budget"` // MIST
	FinalityTimeout time.Duration `yaml:"finality_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	Workers         int           `yaml:"workers"`
	SyncInterval    string        `yaml:"sync_interval"` // cron spec of the store sync job
}

// EscrowConfig escrow tracker config
type EscrowConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	MetadataFile    string        `yaml:"metadata_file"`
	MetadataTTLDays int           `yaml:"metadata_ttl_days"`
	LogKeepDays     int           `yaml:"log_keep_days"`
	Owner           string        `yaml:"owner"`
}

// AnalyticsConfig decision service config
type AnalyticsConfig struct {
	BaseUrl string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AppConfig application config
type AppConfig struct {
	System    SysConfig       `yaml:"system"`
	Web       WebConfig       `yaml:"web"`
	Database  DBConfig        `yaml:"database"`
	Logger    LogConfig       `yaml:"logger"`
	Chain     ChainConfig     `yaml:"chain"`
	Escrow    EscrowConfig    `yaml:"escrow"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// GetLogDir returns the log directory under the workdir
func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

// GetDataDir returns the data directory under the workdir
func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

// MetadataPath returns the escrow metadata file, relative paths resolved against the data dir
func (c *AppConfig) MetadataPath() string {
	if path.IsAbs(c.Escrow.MetadataFile) {
		return c.Escrow.MetadataFile
	}
	return path.Join(c.GetDataDir(), c.Escrow.MetadataFile)
}

func (c *AppConfig) initDirs() {
	_ = os.MkdirAll(c.GetLogDir(), 0o755)
	_ = os.MkdirAll(c.GetDataDir(), 0o755)
}

// DefaultAppConfig returns the built-in defaults
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "SupplyChain",
			Location: "Asia/Shanghai",
			Workdir:  "/var/supplychain",
			Debug:    true,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 1816,
		},
		Database: DBConfig{
			Type:     "sqlite",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "supplychain.db",
			User:     "postgres",
			Passwd:   "myroot",
			MaxConn:  100,
			IdleConn: 10,
			Debug:    false,
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: true,
			Filename:   "/var/supplychain/logs/supplychain.log",
		},
		Chain: ChainConfig{
			RpcUrl:          "https://fullnode.testnet.sui.io:443",
			ClockObjectID:   "0x6",
			GasBuffer:       10_000_000,
			GasBudget:       50_000_000,
			FinalityTimeout: 30 * time.Second,
			RequestTimeout:  15 * time.Second,
			Workers:         8,
			SyncInterval:    "@every 5m",
		},
		Escrow: EscrowConfig{
			TickInterval:    time.Second,
			RefreshInterval: 5 * time.Second,
			MetadataFile:    "escrow-metadata.db",
			MetadataTTLDays: 30,
			LogKeepDays:     365,
		},
		Analytics: AnalyticsConfig{
			BaseUrl: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
	}
}

// LoadConfig reads cfile over the defaults, then applies SUPPLYCHAIN_* environment overrides.
// A missing file is not an error.
func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultAppConfig()
	if cfile == "" {
		cfile = "supplychain.yml"
	}
	if data, err := os.ReadFile(cfile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			panic(err)
		}
	}
	applyEnv(cfg, os.LookupEnv)
	cfg.initDirs()
	return cfg
}

type lookupFunc func(key string) (string, bool)

func setString(lookup lookupFunc, key string, dst *string) {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(lookup lookupFunc, key string, dst *int) {
	if v, ok := lookup(key); ok {
		if n, err := cast.ToIntE(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setInt64(lookup lookupFunc, key string, dst *int64) {
	if v, ok := lookup(key); ok {
		if n, err := cast.ToInt64E(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setUint64(lookup lookupFunc, key string, dst *uint64) {
	if v, ok := lookup(key); ok {
		if n, err := cast.ToUint64E(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setBool(lookup lookupFunc, key string, dst *bool) {
	if v, ok := lookup(key); ok {
		if b, err := cast.ToBoolE(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

func setDuration(lookup lookupFunc, key string, dst *time.Duration) {
	if v, ok := lookup(key); ok {
		if d, err := cast.ToDurationE(strings.TrimSpace(v)); err == nil {
			*dst = d
		}
	}
}

func applyEnv(cfg *AppConfig, lookup lookupFunc) {
	setString(lookup, "SUPPLYCHAIN_SYSTEM_LOCATION", &cfg.System.Location)
	setString(lookup, "SUPPLYCHAIN_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setBool(lookup, "SUPPLYCHAIN_SYSTEM_DEBUG", &cfg.System.Debug)

	setString(lookup, "SUPPLYCHAIN_WEB_HOST", &cfg.Web.Host)
	setInt(lookup, "SUPPLYCHAIN_WEB_PORT", &cfg.Web.Port)

	setString(lookup, "SUPPLYCHAIN_DB_TYPE", &cfg.Database.Type)
	setString(lookup, "SUPPLYCHAIN_DB_HOST", &cfg.Database.Host)
	setInt(lookup, "SUPPLYCHAIN_DB_PORT", &cfg.Database.Port)
	setString(lookup, "SUPPLYCHAIN_DB_NAME", &cfg.Database.Name)
	setString(lookup, "SUPPLYCHAIN_DB_USER", &cfg.Database.User)
	setString(lookup, "SUPPLYCHAIN_DB_PWD", &cfg.Database.Passwd)
	setInt(lookup, "SUPPLYCHAIN_DB_MAX_CONN", &cfg.Database.MaxConn)
	setInt(lookup, "SUPPLYCHAIN_DB_IDLE_CONN", &cfg.Database.IdleConn)
	setBool(lookup, "SUPPLYCHAIN_DB_DEBUG", &cfg.Database.Debug)

	setString(lookup, "SUPPLYCHAIN_LOGGER_MODE", &cfg.Logger.Mode)
	setBool(lookup, "SUPPLYCHAIN_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)
	setString(lookup, "SUPPLYCHAIN_LOGGER_FILENAME", &cfg.Logger.Filename)

	setString(lookup, "SUPPLYCHAIN_CHAIN_RPC_URL", &cfg.Chain.RpcUrl)
	setString(lookup, "SUPPLYCHAIN_CHAIN_SIGNER_URL", &cfg.Chain.SignerUrl)
	setString(lookup, "SUPPLYCHAIN_CHAIN_SIGNER_ADDRESS", &cfg.Chain.SignerAddress)
	setString(lookup, "SUPPLYCHAIN_CHAIN_PACKAGE_ID", &cfg.Chain.PackageID)
	setString(lookup, "SUPPLYCHAIN_CHAIN_CLOCK_OBJECT_ID", &cfg.Chain.ClockObjectID)
	setInt64(lookup, "SUPPLYCHAIN_CHAIN_GAS_BUFFER", &cfg.Chain.GasBuffer)
	setUint64(lookup, "SUPPLYCHAIN_CHAIN_GAS_BUDGET", &cfg.Chain.GasBudget)
	setDuration(lookup, "SUPPLYCHAIN_CHAIN_FINALITY_TIMEOUT", &cfg.Chain.FinalityTimeout)
	setDuration(lookup, "SUPPLYCHAIN_CHAIN_REQUEST_TIMEOUT", &cfg.Chain.RequestTimeout)
	setInt(lookup, "SUPPLYCHAIN_CHAIN_WORKERS", &cfg.Chain.Workers)
	setString(lookup, "SUPPLYCHAIN_CHAIN_SYNC_INTERVAL", &cfg.Chain.SyncInterval)

	setDuration(lookup, "SUPPLYCHAIN_ESCROW_TICK_INTERVAL", &cfg.Escrow.TickInterval)
	setDuration(lookup, "SUPPLYCHAIN_ESCROW_REFRESH_INTERVAL", &cfg.Escrow.RefreshInterval)
	setString(lookup, "SUPPLYCHAIN_ESCROW_METADATA_FILE", &cfg.Escrow.MetadataFile)
	setInt(lookup, "SUPPLYCHAIN_ESCROW_METADATA_TTL_DAYS", &cfg.Escrow.MetadataTTLDays)
	setInt(lookup, "SUPPLYCHAIN_ESCROW_LOG_KEEP_DAYS", &cfg.Escrow.LogKeepDays)
	setString(lookup, "SUPPLYCHAIN_ESCROW_OWNER", &cfg.Escrow.Owner)

	setString(lookup, "SUPPLYCHAIN_ANALYTICS_BASE_URL", &cfg.Analytics.BaseUrl)
	setDuration(lookup, "SUPPLYCHAIN_ANALYTICS_TIMEOUT", &cfg.Analytics.Timeout)
}
