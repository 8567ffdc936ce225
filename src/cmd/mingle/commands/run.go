package commands

import (
	"github.com/mosaicnetworks/mingle/src/mingle"
	"github.com/mosaicnetworks/mingle/src/proxy/inmem"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a Mingle node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runMingle,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runMingle(cmd *cobra.Command, args []string) error {
	// The standalone node has no application riding on it, so neighbor
	// notifications go to an in-memory proxy that nobody reads. Applications
	// embedding mingle provide their own BroadcastProxy.
	proxy := inmem.NewInmemProxy(_config.Logger().Logger)

	go drainProxy(proxy)

	engine := mingle.NewMingle(_config, proxy)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	return engine.Run()
}

func drainProxy(proxy *inmem.InmemProxy) {
	for {
		select {
		case <-proxy.NeighborUpCh():
		case <-proxy.NeighborDownCh():
		}
	}
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for mingle node")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for mingle node")
	cmd.Flags().StringP("join", "j", _config.JoinAddr, "IP:Port of an existing node to join through")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")

	// Protocol configuration
	cmd.Flags().Duration("shuffle-interval", _config.ShuffleInterval, "Time between shuffles")
	cmd.Flags().Duration("neighbor-timeout", _config.NeighborTimeout, "Timeout of NeighborRequests")
	cmd.Flags().Int("active-size", _config.ActiveViewSize, "Max size of the active view")
	cmd.Flags().Int("passive-size", _config.PassiveViewSize, "Max size of the passive view")
	cmd.Flags().Int("arwl", _config.ActiveRandomWalkLength, "TTL of Join and Shuffle walks")
	cmd.Flags().Int("prwl", _config.PassiveRandomWalkLength, "TTL at which walks land in passive views")
	cmd.Flags().Int("shuffle-active", _config.ShuffleActiveSize, "Active entries per shuffle")
	cmd.Flags().Int("shuffle-passive", _config.ShufflePassiveSize, "Passive entries per shuffle")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.SetDataDir(_config.DataDir)

	_config.Logger().WithFields(logrus.Fields{
		"mingle.DataDir":         _config.DataDir,
		"mingle.BindAddr":        _config.BindAddr,
		"mingle.AdvertiseAddr":   _config.AdvertiseAddr,
		"mingle.JoinAddr":        _config.JoinAddr,
		"mingle.ServiceAddr":     _config.ServiceAddr,
		"mingle.NoService":       _config.NoService,
		"mingle.MaxPool":         _config.MaxPool,
		"mingle.LogLevel":        _config.LogLevel,
		"mingle.Moniker":         _config.Moniker,
		"mingle.ShuffleInterval": _config.ShuffleInterval,
		"mingle.NeighborTimeout": _config.NeighborTimeout,
		"mingle.TCPTimeout":      _config.TCPTimeout,
		"mingle.ActiveSize":      _config.ActiveViewSize,
		"mingle.PassiveSize":     _config.PassiveViewSize,
		"mingle.ARWL":            _config.ActiveRandomWalkLength,
		"mingle.PRWL":            _config.PassiveRandomWalkLength,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all
	// other persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/mingle.toml (.json, .yaml also work)
	viper.SetConfigName("mingle")
	viper.AddConfigPath(_config.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
