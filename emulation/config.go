package emulation

import (
	"bytes"
	"embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ezoic/sealedml/core/tensor"
	"github.com/ezoic/sealedml/mpc/aby3"
	"github.com/ezoic/sealedml/pkg/errors"
)

//go:embed clusters/*.toml
var clusterFiles embed.FS

const (
	ProtocolABY3 = "ABY3"
	FieldFM64    = "FM64"
)

// NodeConfig is one computing party.
type NodeConfig struct {
	Party   string `toml:"party" yaml:"party"`
	Address string `toml:"address" yaml:"address"`
}

// RuntimeConfig selects the secret-sharing protocol and its encoding.
type RuntimeConfig struct {
	Protocol        string `toml:"protocol" yaml:"protocol"`
	Field           string `toml:"field" yaml:"field"`
	FxpFractionBits uint   `toml:"fxp_fraction_bits" yaml:"fxp_fraction_bits"`
}

// ClusterConfig describes the emulated cluster.
type ClusterConfig struct {
	Name    string        `toml:"name" yaml:"name"`
	Nodes   []NodeConfig  `toml:"nodes" yaml:"nodes"`
	Runtime RuntimeConfig `toml:"runtime_config" yaml:"runtime_config"`
}

// ClusterABY3_3PC returns the built-in three party ABY3 cluster over FM64.
func ClusterABY3_3PC() ClusterConfig {
	data, err := clusterFiles.ReadFile("clusters/aby3_3pc.toml")
	if err != nil {
		panic(err)
	}
	cfg, err := decodeTOML(data)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadClusterConfig reads a cluster file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as TOML.
func LoadClusterConfig(path string) (ClusterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClusterConfig{}, errors.Wrapf(err, "read cluster config %s", path)
	}
	var cfg ClusterConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return ClusterConfig{}, errors.Wrapf(err, "parse cluster config %s", path)
		}
	default:
		if cfg, err = decodeTOML(data); err != nil {
			return ClusterConfig{}, errors.Wrapf(err, "parse cluster config %s", path)
		}
	}
	if err := cfg.Validate(); err != nil {
		return ClusterConfig{}, err
	}
	return cfg, nil
}

func decodeTOML(data []byte) (ClusterConfig, error) {
	var cfg ClusterConfig
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return ClusterConfig{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return ClusterConfig{}, errors.Newf("unknown keys %v", undecoded)
	}
	return cfg, nil
}

// Validate checks that the runtime can execute cfg. A zero fraction bit
// count is replaced by the default.
func (c *ClusterConfig) Validate() error {
	if len(c.Nodes) != aby3.NumParties {
		return errors.NewValidationError("nodes", "ABY3 needs exactly 3 nodes", len(c.Nodes))
	}
	seen := make(map[string]bool)
	for i, n := range c.Nodes {
		if n.Party == "" {
			return errors.NewValidationError("nodes.party", "must not be empty", i)
		}
		if seen[n.Party] {
			return errors.NewValidationError("nodes.party", "duplicate party", n.Party)
		}
		seen[n.Party] = true
		if n.Address == "" {
			return errors.NewValidationError("nodes.address", "must not be empty", n.Party)
		}
	}
	if !strings.EqualFold(c.Runtime.Protocol, ProtocolABY3) {
		return errors.NewModelError("ClusterConfig", "protocol "+c.Runtime.Protocol, errors.ErrUnsupported)
	}
	if !strings.EqualFold(c.Runtime.Field, FieldFM64) {
		return errors.NewModelError("ClusterConfig", "field "+c.Runtime.Field, errors.ErrUnsupported)
	}
	if c.Runtime.FxpFractionBits == 0 {
		c.Runtime.FxpFractionBits = tensor.DefaultFracBits
	}
	if c.Runtime.FxpFractionBits > 30 {
		return errors.NewValidationError("fxp_fraction_bits", "must be in [1, 30]", c.Runtime.FxpFractionBits)
	}
	return nil
}

// Addresses returns the node addresses in party order.
func (c ClusterConfig) Addresses() []string {
	out := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		out[i] = n.Address
	}
	return out
}
