package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// PropertiesFile is the standalone properties.yml operators edit most
// often, kept apart from engine settings.
type PropertiesFile struct {
	Properties []PropertyConfig `yaml:"properties"`
}

func OverlayProperties(cfg *Config, propertiesPath string) error {
	b, err := os.ReadFile(propertiesPath)
	if err != nil {
		// Missing properties file should not kill startup
		return nil
	}

	var pf PropertiesFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return err
	}

	if len(pf.Properties) > 0 {
		cfg.Properties = pf.Properties
	}
	return nil
}
