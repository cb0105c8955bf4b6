package configuration

import (
	"os"

	"github.com/pathwatch-io/pathwatch/pkg/encoding"
	"github.com/pathwatch-io/pathwatch/pkg/filesystem/watching"
)

// Configuration is the global configuration object type. All fields are
// optional; zero values select documented defaults. It is loaded from the
// global YAML configuration file, which need not exist.
type Configuration struct {
	// Protocol contains protocol behavior parameters.
	Protocol struct {
		// StrictWait controls whether a WAIT request naming an unknown
		// replica terminates the monitor (the historical behavior) or merely
		// reports an error and continues. It defaults to true.
		StrictWait *bool `yaml:"strictWait"`
	} `yaml:"protocol"`
	// Watch contains filesystem watch parameters.
	Watch struct {
		// EventBufferSize is the capacity of the raw event channel. Zero or
		// negative values select the default.
		EventBufferSize int `yaml:"eventBufferSize"`
	} `yaml:"watch"`
	// Log contains logging parameters.
	Log struct {
		// Level is the log level name. An empty value selects "info".
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load loads the global configuration from the specified path. A missing file
// is not an error and yields a default configuration.
func Load(path string) (*Configuration, error) {
	// Create the configuration.
	configuration := &Configuration{}

	// Attempt to load, treating a missing file as an empty configuration.
	if err := encoding.LoadAndUnmarshalYAML(path, configuration); err != nil {
		if os.IsNotExist(err) {
			return configuration, nil
		}
		return nil, err
	}

	// Success.
	return configuration, nil
}

// StrictWait returns the effective strict-wait setting.
func (c *Configuration) StrictWait() bool {
	if c == nil || c.Protocol.StrictWait == nil {
		return true
	}
	return *c.Protocol.StrictWait
}

// EventBufferSize returns the effective event buffer size.
func (c *Configuration) EventBufferSize() int {
	if c == nil || c.Watch.EventBufferSize <= 0 {
		return watching.DefaultEventBufferSize
	}
	return c.Watch.EventBufferSize
}

// LogLevel returns the configured log level name, or an empty string if none
// is configured.
func (c *Configuration) LogLevel() string {
	if c == nil {
		return ""
	}
	return c.Log.Level
}
