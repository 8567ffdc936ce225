package hyparview

import "testing"

func TestConfigValidate(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	break1 := func(f func(*Config)) *Config {
		conf := NewDefaultConfig()
		f(conf)
		return conf
	}

	bad := map[string]*Config{
		"zero active view":      break1(func(c *Config) { c.ActiveViewSize = 0 }),
		"passive not larger":    break1(func(c *Config) { c.PassiveViewSize = c.ActiveViewSize }),
		"zero ARWL":             break1(func(c *Config) { c.ActiveRandomWalkLength = 0 }),
		"zero PRWL":             break1(func(c *Config) { c.PassiveRandomWalkLength = 0 }),
		"PRWL exceeds ARWL":     break1(func(c *Config) { c.PassiveRandomWalkLength = c.ActiveRandomWalkLength + 1 }),
		"zero shuffle active":   break1(func(c *Config) { c.ShuffleActiveSize = 0 }),
		"zero shuffle passive":  break1(func(c *Config) { c.ShufflePassiveSize = 0 }),
		"negative passive view": break1(func(c *Config) { c.PassiveViewSize = -1 }),
	}

	for name, conf := range bad {
		if err := conf.Validate(); err == nil {
			t.Fatalf("%s: Validate should have failed", name)
		}
	}
}
