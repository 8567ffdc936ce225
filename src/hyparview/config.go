package hyparview

import "fmt"

// Default protocol parameters. The view sizes and walk lengths are the
// values recommended by the HyParView paper for networks of a few thousand
// nodes.
const (
	DefaultActiveViewSize          = 4
	DefaultPassiveViewSize         = 24
	DefaultActiveRandomWalkLength  = 5
	DefaultPassiveRandomWalkLength = 2
	DefaultShuffleActiveSize       = 2
	DefaultShufflePassiveSize      = 2
)

// Config contains the protocol parameters of a HyParView engine. They are
// fixed at construction; Validate rejects inconsistent combinations before
// the engine starts.
type Config struct {
	// ActiveViewSize is the maximum number of peers in the active view;
	// the fanout of the broadcast layer riding on top.
	ActiveViewSize int `mapstructure:"active-size"`

	// PassiveViewSize is the maximum number of peers in the passive view,
	// the backup set used to repair the active view. It must be larger
	// than ActiveViewSize.
	PassiveViewSize int `mapstructure:"passive-size"`

	// ActiveRandomWalkLength (ARWL) is the initial TTL of ForwardJoin and
	// Shuffle walks.
	ActiveRandomWalkLength int `mapstructure:"arwl"`

	// PassiveRandomWalkLength (PRWL) is the TTL value at which a relayed
	// ForwardJoin inserts the new node into the relay's passive view.
	PassiveRandomWalkLength int `mapstructure:"prwl"`

	// ShuffleActiveSize is the number of active-view entries included in a
	// shuffle payload.
	ShuffleActiveSize int `mapstructure:"shuffle-active"`

	// ShufflePassiveSize is the number of passive-view entries included in
	// a shuffle payload.
	ShufflePassiveSize int `mapstructure:"shuffle-passive"`
}

// NewDefaultConfig returns the paper's recommended parameters.
func NewDefaultConfig() *Config {
	return &Config{
		ActiveViewSize:          DefaultActiveViewSize,
		PassiveViewSize:         DefaultPassiveViewSize,
		ActiveRandomWalkLength:  DefaultActiveRandomWalkLength,
		PassiveRandomWalkLength: DefaultPassiveRandomWalkLength,
		ShuffleActiveSize:       DefaultShuffleActiveSize,
		ShufflePassiveSize:      DefaultShufflePassiveSize,
	}
}

// Validate checks the parameters for consistency. Configuration errors are
// fatal at construction time; nothing else in the protocol is.
func (c *Config) Validate() error {
	if c.ActiveViewSize < 1 {
		return fmt.Errorf("active view size must be at least 1, not %d", c.ActiveViewSize)
	}

	if c.PassiveViewSize <= c.ActiveViewSize {
		return fmt.Errorf("passive view size (%d) must be greater than active view size (%d)",
			c.PassiveViewSize, c.ActiveViewSize)
	}

	if c.ActiveRandomWalkLength < 1 {
		return fmt.Errorf("active random walk length must be at least 1, not %d",
			c.ActiveRandomWalkLength)
	}

	if c.PassiveRandomWalkLength < 1 {
		return fmt.Errorf("passive random walk length must be at least 1, not %d",
			c.PassiveRandomWalkLength)
	}

	if c.PassiveRandomWalkLength > c.ActiveRandomWalkLength {
		return fmt.Errorf("passive random walk length (%d) must not exceed active random walk length (%d)",
			c.PassiveRandomWalkLength, c.ActiveRandomWalkLength)
	}

	if c.ShuffleActiveSize < 1 || c.ShufflePassiveSize < 1 {
		return fmt.Errorf("shuffle sample sizes must be at least 1, not %d/%d",
			c.ShuffleActiveSize, c.ShufflePassiveSize)
	}

	return nil
}
