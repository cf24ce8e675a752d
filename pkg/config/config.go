// Package config loads node configuration from YAML, with environment
// variable substitution the same way the anchor configuration loader this
// package's layout is grounded on does it.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/certen/private-currency/pkg/keys"
	"github.com/certen/private-currency/pkg/storage"
	"github.com/certen/private-currency/pkg/txn"
)

// Duration unmarshals a YAML duration string ("5s", "1h") into a
// time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Validator describes one member of the trust anchor: the validator set a
// light client must see a quorum of precommits from before trusting a
// block proof (§4.5).
type Validator struct {
	PublicKey string `yaml:"public_key"`
	Address   string `yaml:"address"`
}

// Config is a node's full configuration.
type Config struct {
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `yaml:"listen_addr"`
	// MetricsAddr is the Prometheus metrics bind address.
	MetricsAddr string `yaml:"metrics_addr"`
	// AbciAddr is the socket address CometBFT connects to reach this
	// node's ABCI application.
	AbciAddr string `yaml:"abci_addr"`
	// RPCAddr is the local CometBFT node's RPC endpoint, used by the HTTP
	// API to broadcast transactions submitted to it.
	RPCAddr string `yaml:"rpc_addr"`
	// DataDir holds the node's CometBFT-backed key-value store.
	DataDir string `yaml:"data_dir"`
	// ChainID identifies the CometBFT network.
	ChainID string `yaml:"chain_id"`

	// InitialBalance defaults to storage.InitialBalance. Wallet creation
	// always seeds storage.InitialBalance; nothing reads this field.
	InitialBalance uint64 `yaml:"initial_balance"`
	// RollbackDelayMin and RollbackDelayMax default to txn.RollbackDelayMin
	// and txn.RollbackDelayMax, and Validate requires Min < Max. Transfer
	// verification always checks against the txn constants; nothing else
	// reads these fields.
	RollbackDelayMin uint32 `yaml:"rollback_delay_min"`
	RollbackDelayMax uint32 `yaml:"rollback_delay_max"`

	// TrustAnchor is the validator set light clients verify block proofs
	// against.
	TrustAnchor []Validator `yaml:"trust_anchor"`

	// RequestTimeout defaults to 5s. Neither the HTTP API nor the node
	// reads it; no request is bounded by it.
	RequestTimeout Duration `yaml:"request_timeout"`

	// DebugChannelCapacity sizes the debugtap event channel; 0 takes the
	// default of 16, and a negative value disables the debugger.
	DebugChannelCapacity int `yaml:"debug_channel_capacity"`
	CheckInvariants      bool `yaml:"check_invariants"`
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default} references in a
// raw YAML document, substituted before parsing.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], ""
		if len(groups[2]) > 2 {
			def = groups[2][2:]
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return def
	})
}

// Load reads and parses a YAML configuration file at path, substituting
// ${VAR} environment references first, then applies defaults to any field
// the file left zero-valued.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "0.0.0.0:8080"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = "0.0.0.0:9090"
	}
	if c.AbciAddr == "" {
		c.AbciAddr = "tcp://0.0.0.0:26658"
	}
	if c.RPCAddr == "" {
		c.RPCAddr = "tcp://127.0.0.1:26657"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.ChainID == "" {
		c.ChainID = "private-currency"
	}
	if c.InitialBalance == 0 {
		c.InitialBalance = storage.InitialBalance
	}
	if c.RollbackDelayMin == 0 {
		c.RollbackDelayMin = txn.RollbackDelayMin
	}
	if c.RollbackDelayMax == 0 {
		c.RollbackDelayMax = txn.RollbackDelayMax
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(5 * time.Second)
	}
	if c.DebugChannelCapacity == 0 {
		c.DebugChannelCapacity = 16
	}
}

// Validate checks that the trust anchor is well formed and the rollback
// bounds are sane.
func (c *Config) Validate() error {
	if len(c.TrustAnchor) == 0 {
		return fmt.Errorf("config: trust_anchor must list at least one validator")
	}
	for i, v := range c.TrustAnchor {
		if _, err := keys.PublicKeyFromHex(v.PublicKey); err != nil {
			return fmt.Errorf("config: trust_anchor[%d]: %w", i, err)
		}
	}
	if c.RollbackDelayMin >= c.RollbackDelayMax {
		return fmt.Errorf("config: rollback_delay_min must be less than rollback_delay_max")
	}
	return nil
}

// QuorumSize returns the number of precommits a block proof must carry to
// be trusted: floor(2n/3) + 1 of the trust anchor (§4.5).
func (c *Config) QuorumSize() int {
	n := len(c.TrustAnchor)
	return (2*n)/3 + 1
}
