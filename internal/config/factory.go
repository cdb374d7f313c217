package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FromCobraCmd creates a BGConfig from a cobra command, honouring an explicit
// --config flag when the user set one. Configuration errors are fatal.
func FromCobraCmd(cmd *cobra.Command) *BGConfig {
	flags := cmd.InheritedFlags()
	if cmd.Name() == "bgtctl" {
		flags = cmd.PersistentFlags()
	}

	var paths []string
	if path, ok := configPath(flags); ok {
		paths = append(paths, path)
	}

	conf, err := LoadConfig(paths...)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load config file")
	}
	return conf
}

// configPath returns the --config flag value when the user changed it.
func configPath(flags *pflag.FlagSet) (string, bool) {
	flag := flags.Lookup("config")
	if flag == nil || !flag.Changed {
		return "", false
	}
	return flag.Value.String(), true
}
