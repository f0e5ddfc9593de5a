package aviary

import (
	"os"

	"github.com/spf13/viper"
)

var (
	cfgLoaded = false
	config    = _aviaryconfig{}
)

// _aviaryconfig is a "hidden" struct, just use `aviaryConfig`
type _aviaryconfig struct {
	dataDir   string
	outputDir string
	verbosity int
}

// aviaryConfig returns the process configuration. Missing configuration is not
// fatal: data and output directories default to the working directory.
func aviaryConfig() _aviaryconfig {
	if cfgLoaded {
		return config
	}
	confPath := os.Getenv("AVIARY_CONFIG")
	if confPath == "" {
		cfgLoaded = true
		config = _aviaryconfig{dataDir: ".", outputDir: ".", verbosity: 1}
		return config
	}
	viper.SetConfigName("conf")
	viper.AddConfigPath(confPath)
	viper.SetDefault("general.data_path", ".")
	viper.SetDefault("general.output_path", ".")
	viper.SetDefault("general.verbosity", 1)
	if err := viper.ReadInConfig(); err != nil {
		panic("conf.toml not found in " + confPath)
	}
	cfgLoaded = true
	config = _aviaryconfig{
		dataDir:   viper.GetString("general.data_path"),
		outputDir: viper.GetString("general.output_path"),
		verbosity: viper.GetInt("general.verbosity"),
	}
	return config
}
