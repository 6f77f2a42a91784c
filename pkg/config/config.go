package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the YAML file schema. Env vars (CHATDB_*) override file
// values; flags override both.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Assets struct {
		Dir     string `yaml:"dir"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"assets"`
	Security struct {
		APIKeys   []string `yaml:"api_keys"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"security"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text|json
	} `yaml:"logging"`
	Validation struct {
		MaxContentLen int `yaml:"max_content_len"`
		MaxNameLen    int `yaml:"max_name_len"`
	} `yaml:"validation"`
	Janitor struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
	} `yaml:"janitor"`
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Load reads the config file (when path is non-empty) and applies env
// overrides on top of defaults.
func Load(path string) (*Config, error) {
	var c Config
	c.Storage.DBPath = "./chatdb-data"
	c.Assets.Dir = "./chatdb-assets"
	c.Assets.BaseURL = "http://localhost:8080/assets"
	c.Server.Port = 8080

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&c)
	return &c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("CHATDB_ADDR"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("CHATDB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("CHATDB_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("CHATDB_ASSETS_DIR"); v != "" {
		c.Assets.Dir = v
	}
	if v := os.Getenv("CHATDB_ASSETS_BASE_URL"); v != "" {
		c.Assets.BaseURL = v
	}
	if v := os.Getenv("CHATDB_API_KEY"); v != "" {
		c.Security.APIKeys = append(c.Security.APIKeys, v)
	}
	if v := os.Getenv("CHATDB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CHATDB_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CHATDB_JANITOR_CRON"); v != "" {
		c.Janitor.Enabled = true
		c.Janitor.Cron = v
	}
}

// ParseCommandFlags centralizes flag parsing for the server binary.
// Returns the values plus which flags were set explicitly, so callers
// can let explicit flags win over file and env.
func ParseCommandFlags(args []string) (addr, db, cfg string, set map[string]bool, err error) {
	fs := flag.NewFlagSet("chatdb", flag.ContinueOnError)
	addrFlag := fs.String("addr", "", "listen address (host:port)")
	dbFlag := fs.String("db", "", "pebble database path")
	cfgFlag := fs.String("config", "", "path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return "", "", "", nil, err
	}
	set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return *addrFlag, *dbFlag, *cfgFlag, set, nil
}

// ResolveConfigPath prefers an explicit flag, then the env var, then
// a conventional default when the file exists.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if v := os.Getenv("CHATDB_CONFIG"); v != "" {
		return v
	}
	if _, err := os.Stat("chatdb.yaml"); err == nil {
		return "chatdb.yaml"
	}
	return ""
}
