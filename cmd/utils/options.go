// Package utils provides config option plumbing shared by the CLI commands.
// Options are declared once and resolved from, in order of precedence:
// command line flag, environment variable (upper-cased, dashes to
// underscores), then flag default.
package utils

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type OptType string

const (
	OptTypeString OptType = "string"
	OptTypeInt    OptType = "int"
	OptTypeBool   OptType = "bool"
)

// ConfigOption describes a single configuration value of a command.
type ConfigOption struct {
	Name        string
	Usage       string
	OptType     OptType
	FlagDefault interface{}
	Required    bool
	// ConfigKey is a pointer to the variable receiving the resolved value.
	ConfigKey interface{}
	// CustomSetValue overrides the default flag-to-ConfigKey assignment.
	CustomSetValue func(co *ConfigOption) error
}

func (co *ConfigOption) envName() string {
	return strings.ToUpper(strings.ReplaceAll(co.Name, "-", "_"))
}

// Init declares the flag on cmd and binds it to viper.
func (co *ConfigOption) Init(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	switch co.OptType {
	case OptTypeString:
		def, _ := co.FlagDefault.(string)
		flags.String(co.Name, def, co.Usage)
	case OptTypeInt:
		def, _ := co.FlagDefault.(int)
		flags.Int(co.Name, def, co.Usage)
	case OptTypeBool:
		def, _ := co.FlagDefault.(bool)
		flags.Bool(co.Name, def, co.Usage)
	default:
		return fmt.Errorf("unexpected option type %q for option %s", co.OptType, co.Name)
	}

	if err := viper.BindPFlag(co.Name, flags.Lookup(co.Name)); err != nil {
		return fmt.Errorf("binding flag %s: %w", co.Name, err)
	}
	if err := viper.BindEnv(co.Name, co.envName()); err != nil {
		return fmt.Errorf("binding environment variable %s: %w", co.envName(), err)
	}
	return nil
}

// Require fatals when a required option resolved to its zero value.
func (co *ConfigOption) Require() {
	if !co.Required {
		return
	}
	if !viper.IsSet(co.Name) && isZero(viper.Get(co.Name)) {
		logrus.Fatalf("Missing required config option %q (flag --%s or env %s)", co.Name, co.Name, co.envName())
	}
}

// SetValue resolves the option into its ConfigKey.
func (co *ConfigOption) SetValue() error {
	if co.CustomSetValue != nil {
		return co.CustomSetValue(co)
	}

	switch key := co.ConfigKey.(type) {
	case *string:
		*key = viper.GetString(co.Name)
	case *int:
		*key = viper.GetInt(co.Name)
	case *bool:
		*key = viper.GetBool(co.Name)
	default:
		return fmt.Errorf("unexpected config key type %T for option %s", co.ConfigKey, co.Name)
	}
	return nil
}

func isZero(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case int:
		return value == 0
	case bool:
		return false
	default:
		return false
	}
}

// ConfigOptions is a group of ConfigOption entries handled together.
type ConfigOptions []*ConfigOption

func (cos ConfigOptions) Init(cmd *cobra.Command) error {
	for _, co := range cos {
		if err := co.Init(cmd); err != nil {
			return fmt.Errorf("initializing config option %s: %w", co.Name, err)
		}
	}
	return nil
}

func (cos ConfigOptions) Require() {
	for _, co := range cos {
		co.Require()
	}
}

func (cos ConfigOptions) SetValues() error {
	for _, co := range cos {
		if err := co.SetValue(); err != nil {
			return fmt.Errorf("setting value of config option %s: %w", co.Name, err)
		}
	}
	return nil
}
