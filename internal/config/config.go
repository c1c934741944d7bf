package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFileName returns the config file name for the current
// APP_ENV, e.g. "dev.yaml".
func ConfigFileName() string {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	return fmt.Sprintf("%s.yaml", env)
}

// Load resolves the full application Config: it loads .env files,
// reads the YAML config for the current APP_ENV, and overlays
// environment-variable overrides (credentials and CI/container
// convenience vars) on top.
func Load() (*Config, error) {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)

	y := loadYAMLConfig(env)

	dbPassword := firstEnv("DB_PASSWORD", "MONGO_ROOT_PASSWORD")
	databaseURL := firstEnv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL(y.Database, dbPassword)
	}
	driver := detectDatabaseDriver(y.Database.Driver, databaseURL)

	redisURL := firstEnv("REDIS_URL")
	if redisURL == "" {
		y.Redis.Password = os.Getenv("REDIS_PASSWORD")
		redisURL = buildRedisURL(y.Redis)
	}

	objStore := y.ObjStore
	objStore.AccessKey = firstEnv("S3_ACCESS_KEY", "MINIO_ROOT_USER")
	objStore.SecretKey = firstEnv("S3_SECRET_KEY", "MINIO_ROOT_PASSWORD")

	apiServer := y.APIServer
	if apiServer.Port == "" {
		apiServer.Port = getEnv("API_PORT", "8080")
	}

	cfg := &Config{
		Env:            env,
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		DatabaseDBName: y.Database.Name,
		EtcdEndpoints:  y.Etcd.Endpoints,
		RedisURL:       redisURL,
		APIPort:        apiServer.Port,
		APIServer:      apiServer,
		TLS:            y.TLS,
		ObjStore:       objStore,
		External:       y.External,
		LivenessPath:   firstEnv("LIVENESS_PATH"),
		ConfigFilePath: y.loadedFrom,
	}
	if cfg.LivenessPath == "" {
		cfg.LivenessPath = y.Liveness.Path
	}
	applyExternalOverrides(&cfg.External)

	return cfg, nil
}

// applyExternalOverrides lets each external service URL be overridden
// individually by environment variable, so a single service can be
// redirected (e.g. in a test harness) without a full YAML rewrite.
func applyExternalOverrides(ext *ExternalConfig) {
	if v := os.Getenv("POWER_CONTROL_URL"); v != "" {
		ext.PowerControlURL = v
	}
	if v := os.Getenv("HSM_URL"); v != "" {
		ext.HSMURL = v
	}
	if v := os.Getenv("BSS_URL"); v != "" {
		ext.BSSURL = v
	}
	if v := os.Getenv("IMS_URL"); v != "" {
		ext.IMSURL = v
	}
	if v := os.Getenv("CFS_URL"); v != "" {
		ext.CFSURL = v
	}
	if v := os.Getenv("TENANT_URL"); v != "" {
		ext.TenantURL = v
	}
}

// loadYAMLConfig reads the YAML config file for env, returning a zero
// value (loadedFrom == "") if none is found — an empty config is
// valid, since every section has a code-level default applied by the
// caller or by the consuming client constructors.
func loadYAMLConfig(env Environment) yamlConfigInternal {
	var out yamlConfigInternal
	path := findConfigFile()
	if path == "" {
		return out
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	if err := yaml.Unmarshal(data, &out.YAMLConfig); err != nil {
		return out
	}
	out.loadedFrom = path
	return out
}
