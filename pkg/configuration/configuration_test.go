package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pathwatch-io/pathwatch/pkg/filesystem/watching"
)

const (
	testConfigurationGibberish = "[a+1a4"
	testConfigurationValid     = `protocol:
  strictWait: false
watch:
  eventBufferSize: 256
log:
  level: debug
`
)

// writeTestConfiguration writes configuration contents to a temporary file
// and returns its path.
func writeTestConfiguration(t *testing.T, contents string) string {
	t.Helper()
	directory, err := os.MkdirTemp("", "pathwatch_configuration")
	if err != nil {
		t.Fatal("unable to create temporary directory:", err)
	}
	t.Cleanup(func() { os.RemoveAll(directory) })
	path := filepath.Join(directory, GlobalConfigurationName)
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal("unable to write configuration:", err)
	}
	return path
}

// TestLoad tests loading of a valid configuration.
func TestLoad(t *testing.T) {
	configuration, err := Load(writeTestConfiguration(t, testConfigurationValid))
	if err != nil {
		t.Fatal("unable to load configuration:", err)
	}
	if configuration.StrictWait() {
		t.Error("strict wait not overridden")
	}
	if configuration.EventBufferSize() != 256 {
		t.Error("event buffer size mismatch:", configuration.EventBufferSize())
	}
	if configuration.LogLevel() != "debug" {
		t.Error("log level mismatch:", configuration.LogLevel())
	}
}

// TestLoadGibberish tests that malformed configuration is rejected.
func TestLoadGibberish(t *testing.T) {
	if _, err := Load(writeTestConfiguration(t, testConfigurationGibberish)); err == nil {
		t.Error("gibberish configuration loaded successfully")
	}
}

// TestLoadMissing tests that a missing configuration file yields defaults.
func TestLoadMissing(t *testing.T) {
	configuration, err := Load(filepath.Join(os.TempDir(), "pathwatch_nonexistent_configuration"))
	if err != nil {
		t.Fatal("missing configuration treated as error:", err)
	}
	if !configuration.StrictWait() {
		t.Error("default strict wait incorrect")
	}
	if configuration.EventBufferSize() != watching.DefaultEventBufferSize {
		t.Error("default event buffer size incorrect:", configuration.EventBufferSize())
	}
	if configuration.LogLevel() != "" {
		t.Error("default log level incorrect:", configuration.LogLevel())
	}
}
