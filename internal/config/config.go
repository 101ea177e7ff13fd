// Package config loads and validates the YAML configuration surface
// described by the mysql, replication, tables, cache, and server sections.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MySQLConfig describes the upstream connection used for both the metadata
// probe and the replication subscription.
type MySQLConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Database         string `yaml:"database"`
	DatetimeTimezone string `yaml:"datetime_timezone"`
	ConnectTimeoutMs int    `yaml:"connect_timeout"`
	ReadTimeoutMs    int    `yaml:"read_timeout"`
	WriteTimeoutMs   int    `yaml:"write_timeout"`
}

// ReplicationConfig controls the fetch loop.
type ReplicationConfig struct {
	Enable                  bool   `yaml:"enable"`
	ServerID                uint32 `yaml:"server_id"`
	StartGTID               string `yaml:"start_gtid"`
	StateFilePath           string `yaml:"state_file_path"`
	StateWriteIntervalEvents int   `yaml:"state_write_interval_events"`
	QueueSize               int    `yaml:"queue_size"`
	ReconnectDelayMs        int    `yaml:"reconnect_delay_ms"`
}

// TextSource names either a single column or a delimiter-joined concatenation
// of several columns as the searchable text for a table.
type TextSource struct {
	Column    string   `yaml:"column"`
	Concat    []string `yaml:"concat"`
	Delimiter string   `yaml:"delimiter"`
}

// RequiredFilterConfig is a predicate every row must satisfy to be accepted.
type RequiredFilterConfig struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Op    string `yaml:"op"`
	Value string `yaml:"value"`

	BitmapIndex bool `yaml:"bitmap_index"`
}

// FilterConfig is an optional column bound onto each document for post-hoc
// SEARCH/COUNT filtering.
type FilterConfig struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	DictCompress bool   `yaml:"dict_compress"`
	BitmapIndex  bool   `yaml:"bitmap_index"`
}

// TableConfig describes one mirrored table.
//
// Columns lists the table's column names in the exact order MySQL reports
// them in ROWS events. The binlog wire format identifies columns by ordinal
// position only (TABLE_MAP carries types, not names, unless the upstream
// runs with binlog_row_metadata=FULL); declaring the order explicitly here
// avoids depending on that optional server setting, the way canal-style
// binlog consumers handle it.
type TableConfig struct {
	Name            string                 `yaml:"name"`
	PrimaryKey      string                 `yaml:"primary_key"`
	Columns         []string               `yaml:"columns"`
	TextSource      TextSource             `yaml:"text_source"`
	NgramSize       int                    `yaml:"ngram_size"`
	KanjiNgramSize  int                    `yaml:"kanji_ngram_size"`
	RequiredFilters []RequiredFilterConfig `yaml:"required_filters"`
	Filters         []FilterConfig         `yaml:"filters"`
}

// CacheConfig controls the query cache.
type CacheConfig struct {
	Enabled        bool  `yaml:"enabled"`
	MaxMemoryBytes int64 `yaml:"max_memory_bytes"`
	MinQueryCostMs int64 `yaml:"min_query_cost_ms"`
	TTLSeconds     int64 `yaml:"ttl_seconds"`
}

// ServerConfig controls the client-facing TCP listener.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	MaxConnections  int      `yaml:"max_connections"`
	WorkerThreads   int      `yaml:"worker_threads"`
	RecvBufferSize  int      `yaml:"recv_buffer_size"`
	SendBufferSize  int      `yaml:"send_buffer_size"`
	DefaultLimit    int      `yaml:"default_limit"`
	MaxQueryLength  int      `yaml:"max_query_length"`
	AllowCIDRs      []string `yaml:"allow_cidrs"`
}

// Config is the root of the YAML configuration file.
type Config struct {
	MySQL       MySQLConfig       `yaml:"mysql"`
	Replication ReplicationConfig `yaml:"replication"`
	Tables      []TableConfig     `yaml:"tables"`
	Cache       CacheConfig       `yaml:"cache"`
	Server      ServerConfig      `yaml:"server"`
}

// Load reads path, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config %s:\n  - %s", path, strings.Join(errs, "\n  - "))
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MySQL.DatetimeTimezone == "" {
		c.MySQL.DatetimeTimezone = "+00:00"
	}
	if c.Replication.ReconnectDelayMs == 0 {
		c.Replication.ReconnectDelayMs = 1000
	}
	if c.Replication.QueueSize == 0 {
		c.Replication.QueueSize = 10000
	}
	if c.Replication.StateWriteIntervalEvents == 0 {
		c.Replication.StateWriteIntervalEvents = 100
	}
	if c.Server.DefaultLimit == 0 {
		c.Server.DefaultLimit = 20
	}
	if c.Server.DefaultLimit < 5 {
		c.Server.DefaultLimit = 5
	}
	if c.Server.DefaultLimit > 1000 {
		c.Server.DefaultLimit = 1000
	}
	if c.Server.MaxQueryLength == 0 {
		c.Server.MaxQueryLength = 8192
	}
	if c.Server.WorkerThreads == 0 {
		c.Server.WorkerThreads = 16
	}
}

// Validate aggregates every violation found rather than short-circuiting on
// the first, so CONFIG VERIFY can report the whole picture in one reply.
func (c *Config) Validate() []string {
	var errs []string

	if c.Replication.Enable && c.Replication.ServerID == 0 {
		errs = append(errs, "replication.server_id must be non-zero when replication.enable is true")
	}
	if len(c.Tables) == 0 {
		errs = append(errs, "at least one entry in tables[] is required")
	}
	seen := make(map[string]bool, len(c.Tables))
	for i, t := range c.Tables {
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("tables[%d].name is required", i))
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Sprintf("tables[%d]: duplicate table name %q", i, t.Name))
		}
		seen[t.Name] = true
		if t.PrimaryKey == "" {
			errs = append(errs, fmt.Sprintf("tables[%q].primary_key is required", t.Name))
		}
		if t.TextSource.Column == "" && len(t.TextSource.Concat) == 0 {
			errs = append(errs, fmt.Sprintf("tables[%q].text_source requires column or concat", t.Name))
		}
		if len(t.Columns) == 0 {
			errs = append(errs, fmt.Sprintf("tables[%q].columns (ordinal column list) is required", t.Name))
		}
		for _, rf := range t.RequiredFilters {
			if !validOp(rf.Op) {
				errs = append(errs, fmt.Sprintf("tables[%q].required_filters[%q]: invalid op %q", t.Name, rf.Name, rf.Op))
			}
		}
	}
	if c.Cache.Enabled && c.Cache.MaxMemoryBytes <= 0 {
		errs = append(errs, "cache.max_memory_bytes must be positive when cache.enabled is true")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be in [0, 65535]")
	}

	return errs
}

func validOp(op string) bool {
	switch op {
	case "=", "!=", ">", ">=", "<", "<=", "IS NULL", "IS NOT NULL":
		return true
	default:
		return false
	}
}

// MaskedCopy returns a copy of Config with sensitive fields replaced by
// "***", for CONFIG SHOW.
func (c *Config) MaskedCopy() *Config {
	cp := *c
	if cp.MySQL.Password != "" {
		cp.MySQL.Password = "***"
	}
	return &cp
}
