package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/mingle/src/common"
	"github.com/mosaicnetworks/mingle/src/hyparview"
	"github.com/mosaicnetworks/mingle/src/node"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultPeersFile is the default name of the file containing the
	// bootstrap peers
	DefaultPeersFile = "peers.json"
)

// Default configuration values.
const (
	DefaultLogLevel        = "debug"
	DefaultBindAddr        = "127.0.0.1:1337"
	DefaultServiceAddr     = "127.0.0.1:8000"
	DefaultShuffleInterval = 10000 * time.Millisecond
	DefaultNeighborTimeout = 1000 * time.Millisecond
	DefaultTCPTimeout      = 1000 * time.Millisecond
	DefaultMaxPool         = 2
)

// Config contains all the configuration properties of a Mingle node.
type Config struct {
	// DataDir is the top-level directory containing Mingle configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// BindAddr is the local address:port where this node talks to other
	// nodes. In some cases, there may be a routable address that cannot be
	// bound. Use AdvertiseAddr to advertise a different address to support
	// this. If this address is not routable, the node will be in a constant
	// flapping state as other nodes will treat the non-routability as a
	// failure.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// JoinAddr is the address of an existing node to join the overlay
	// through. It takes precedence over the contents of the peers.json file
	// in DataDir. A node started without a join address and without a
	// peers.json file starts a new overlay.
	JoinAddr string `mapstructure:"join"`

	// ShuffleInterval is the frequency of the shuffle timer.
	ShuffleInterval time.Duration `mapstructure:"shuffle-interval"`

	// NeighborTimeout is how long the node waits for a reply to a
	// NeighborRequest before giving up on the candidate and trying another
	// one.
	NeighborTimeout time.Duration `mapstructure:"neighbor-timeout"`

	// MaxPool controls how many connections are pooled per target in the
	// transport.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of outbound connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// ActiveViewSize is the maximum number of overlay links the node
	// maintains; the fanout of the broadcast layer riding on top.
	ActiveViewSize int `mapstructure:"active-size"`

	// PassiveViewSize is the maximum number of backup peers the node keeps
	// around to repair its active view.
	PassiveViewSize int `mapstructure:"passive-size"`

	// ActiveRandomWalkLength is the initial TTL of ForwardJoin and Shuffle
	// walks.
	ActiveRandomWalkLength int `mapstructure:"arwl"`

	// PassiveRandomWalkLength is the TTL at which a relayed ForwardJoin also
	// lands in the relay's passive view.
	PassiveRandomWalkLength int `mapstructure:"prwl"`

	// ShuffleActiveSize is the number of active-view entries included in a
	// shuffle payload.
	ShuffleActiveSize int `mapstructure:"shuffle-active"`

	// ShufflePassiveSize is the number of passive-view entries included in a
	// shuffle payload.
	ShufflePassiveSize int `mapstructure:"shuffle-passive"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	protocol := hyparview.NewDefaultConfig()

	config := &Config{
		DataDir:                 DefaultDataDir(),
		LogLevel:                DefaultLogLevel,
		BindAddr:                DefaultBindAddr,
		ServiceAddr:             DefaultServiceAddr,
		ShuffleInterval:         DefaultShuffleInterval,
		NeighborTimeout:         DefaultNeighborTimeout,
		TCPTimeout:              DefaultTCPTimeout,
		MaxPool:                 DefaultMaxPool,
		ActiveViewSize:          protocol.ActiveViewSize,
		PassiveViewSize:         protocol.PassiveViewSize,
		ActiveRandomWalkLength:  protocol.ActiveRandomWalkLength,
		PassiveRandomWalkLength: protocol.PassiveRandomWalkLength,
		ShuffleActiveSize:       protocol.ShuffleActiveSize,
		ShufflePassiveSize:      protocol.ShufflePassiveSize,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level Mingle directory.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
}

// PeersFile returns the full path of the file containing the bootstrap
// peers.
func (c *Config) PeersFile() string {
	return filepath.Join(c.DataDir, DefaultPeersFile)
}

// Protocol assembles the protocol parameters into a hyparview Config.
func (c *Config) Protocol() *hyparview.Config {
	return &hyparview.Config{
		ActiveViewSize:          c.ActiveViewSize,
		PassiveViewSize:         c.PassiveViewSize,
		ActiveRandomWalkLength:  c.ActiveRandomWalkLength,
		PassiveRandomWalkLength: c.PassiveRandomWalkLength,
		ShuffleActiveSize:       c.ShuffleActiveSize,
		ShufflePassiveSize:      c.ShufflePassiveSize,
	}
}

// NodeConfig extracts the node-level configuration.
func (c *Config) NodeConfig() *node.Config {
	return node.NewConfig(
		c.ShuffleInterval,
		c.NeighborTimeout,
		c.TCPTimeout,
		c.Protocol(),
		c.Logger().Logger,
	)
}

// Logger returns a formatted logrus Entry, with prefix set to "mingle".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "mingle")
}

// DefaultDataDir return the default directory name for top-level Mingle
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Mingle")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Mingle")
		} else {
			return filepath.Join(home, ".mingle")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
