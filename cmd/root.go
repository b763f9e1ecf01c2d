/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pseudotran",
	Short: "Pseudocode to Python translator",
	Long: `A CLI application that translates pseudocode and natural-language
program descriptions into runnable Python. Natural-language segments are
translated by a local LLM; the generated fragments are merged by a
structural assembler into one coherent script.

Use "pseudotran translate --help" for translation options.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./pseudotran.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// initConfig loads the optional config file and environment overrides.
// Missing config files are fine; the defaults cover everything.
func initConfig() {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pseudotran")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/pseudotran")
	}

	viper.SetEnvPrefix("PSEUDOTRAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debug("using config file", "path", viper.ConfigFileUsed())
	}
}
