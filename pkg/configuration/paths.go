package configuration

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// GlobalConfigurationName is the name of the global configuration file
	// within the user's home directory.
	GlobalConfigurationName = ".pathwatch.yml"
)

// GlobalConfigurationPath computes the path to the global configuration file.
func GlobalConfigurationPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to compute home directory")
	}
	return filepath.Join(home, GlobalConfigurationName), nil
}
