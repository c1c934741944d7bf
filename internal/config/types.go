// Package config loads BOS's runtime configuration.
//
// Config file format: a single YAML schema shared by bos-api and
// bos-operators, distinguished by section — both processes load the
// same file and each reads only the sections it needs.
//
// Load priority (high to low):
//  1. Environment variables (via .env or shell/systemd injection)
//  2. YAML config file ({env}.yaml, e.g. dev.yaml, test.yaml, prod.yaml)
//  3. Hard-coded defaults in code
//
// Credentials live only in environment variables / .env files, never
// in YAML, so the same .env file can be shared by Docker Compose
// (--env-file), the Go binaries (godotenv), and systemd
// (EnvironmentFile=).
//
// Config path resolution:
//  1. --config flag (explicit path, SetConfigDir)
//  2. CONFIG_DIR environment variable
//  3. APP_ENV-selected default: prod → /etc/bos/, dev/test → ./configs/
package config

import "time"

// Environment is the deployment tier a process is running under.
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig is the on-disk config file schema. bos-api and
// bos-operators share it, each reading only the sections it uses.
type YAMLConfig struct {
	APIServer APIServerConfig `yaml:"api_server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Etcd      EtcdConfig      `yaml:"etcd"`
	ObjStore  ObjectStoreConfig `yaml:"object_store"`
	External  ExternalConfig  `yaml:"external_services"`
	TLS       TLSConfig       `yaml:"tls"`
	Liveness  LivenessConfig  `yaml:"liveness"`
}

// APIServerConfig configures the REST+websocket listener.
type APIServerConfig struct {
	Port string `yaml:"port"`
	URL  string `yaml:"url"`
}

// TLSConfig configures HTTPS termination on the API server. BOS has no
// dashboard to serve, so it carries no self-signed cert generation,
// ACME, or dev reverse-proxy support — only the cert/key pair
// http.Server.ListenAndServeTLS needs directly.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// DatabaseConfig selects and configures the store backend: mongo,
// postgres, or sqlite (component/session/template/options
// records) — see internal/store for the Store implementations.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "mongodb" (default), "postgres", or "sqlite" — the document store
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // DB_PASSWORD / MONGO_ROOT_PASSWORD env only
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // mongodb:// URI, takes precedence over host/port
}

// EtcdConfig configures the etcd-backed TokenStore that holds BSS
// referral tokens.
type EtcdConfig struct {
	Endpoints []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// RedisConfig configures the Redis connection shared by the wakebus
// and eventbus Streams.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // REDIS_PASSWORD env only
	URL      string `yaml:"url"`
}

// ObjectStoreConfig configures the S3/MinIO-compatible bucket holding
// boot manifests read by internal/clients/objectstore.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"-"` // S3_ACCESS_KEY env only
	SecretKey string `yaml:"-"` // S3_SECRET_KEY env only
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

// ExternalConfig holds the base URLs of every service BOS's operators
// and session-setup call out to.
type ExternalConfig struct {
	PowerControlURL string `yaml:"power_control_url"`
	HSMURL          string `yaml:"hsm_url"`
	BSSURL          string `yaml:"bss_url"`
	IMSURL          string `yaml:"ims_url"`
	CFSURL          string `yaml:"cfs_url"`
	TenantURL       string `yaml:"tenant_url"`
}

// LivenessConfig configures the liveness file each operator Runner
// touches at the top of every iteration, per the cancellation
// contract: a hung operator stops touching it, and a supervisor (or
// /v2/healthz) can alert on a stale mtime.
type LivenessConfig struct {
	Path string `yaml:"path"`
}

// Config is the resolved, ready-to-use application configuration.
type Config struct {
	Env            Environment
	DatabaseDriver string // "mongodb", "postgres", or "sqlite"
	DatabaseURL    string
	DatabaseDBName string // mongodb database name
	EtcdEndpoints  []string
	RedisURL       string
	APIPort        string
	APIServer      APIServerConfig
	TLS            TLSConfig
	ObjStore       ObjectStoreConfig
	External       ExternalConfig
	LivenessPath   string
	ConfigFilePath string
}

// yamlConfigInternal wraps YAMLConfig with its load source, which
// never round-trips through YAML itself.
type yamlConfigInternal struct {
	YAMLConfig `yaml:",inline"`
	loadedFrom string
}
