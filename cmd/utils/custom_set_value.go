package utils

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// SetConfigOptionLogLevel parses a logrus level name ("trace" ... "panic").
func SetConfigOptionLogLevel(co *ConfigOption) error {
	levelName := viper.GetString(co.Name)
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("parsing log level in %s: %w", co.Name, err)
	}

	key, ok := co.ConfigKey.(*logrus.Level)
	if !ok {
		return fmt.Errorf("the expected type for the config key in %s is a logrus.Level, but a %T was provided instead", co.Name, co.ConfigKey)
	}
	*key = level

	return nil
}
