// Package config defines the configuration for a Mingle node.
//
// Regardless of how Mingle is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// options, Mingle looks for one additional file in the data directory,
// defined by Config.DataDir:
//
//  peers.json // (optional) a JSON file containing the bootstrap peers.
package config
