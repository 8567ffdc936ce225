package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/mingle/src/common"
	"github.com/mosaicnetworks/mingle/src/hyparview"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ShuffleInterval time.Duration `mapstructure:"shuffle-interval"`
	NeighborTimeout time.Duration `mapstructure:"neighbor-timeout"`
	TCPTimeout      time.Duration `mapstructure:"timeout"`
	Protocol        *hyparview.Config
	Logger          *logrus.Logger
}

func NewConfig(shuffleInterval time.Duration,
	neighborTimeout time.Duration,
	timeout time.Duration,
	protocol *hyparview.Config,
	logger *logrus.Logger) *Config {

	return &Config{
		ShuffleInterval: shuffleInterval,
		NeighborTimeout: neighborTimeout,
		TCPTimeout:      timeout,
		Protocol:        protocol,
		Logger:          logger,
	}
}

func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		ShuffleInterval: 10000 * time.Millisecond,
		NeighborTimeout: 1000 * time.Millisecond,
		TCPTimeout:      1000 * time.Millisecond,
		Protocol:        hyparview.NewDefaultConfig(),
		Logger:          logger,
	}
}

func TestConfig(t *testing.T) *Config {
	config := DefaultConfig()
	config.ShuffleInterval = 50 * time.Millisecond
	config.NeighborTimeout = 100 * time.Millisecond
	config.Logger = common.NewTestLogger(t)
	return config
}
