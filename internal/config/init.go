package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

const initHeader = `# bedshift daemon configuration.
# ${VAR} references are expanded from the environment (and .env).
`

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ErrExists.WithContext("path", path)
	}

	example := Default()
	example.Triggers.Location = "Europe/Oslo"
	example.NATS.URL = "${BEDSHIFT_NATS_URL}"

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(path, append([]byte(initHeader), data...), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to write config file").
			WithContext("path", path).Build()
	}
	return nil
}
