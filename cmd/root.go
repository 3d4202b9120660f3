/*
Copyright © 2020 hit.zhangjie@gmail.com

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
	"fmt"
	"io"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitzhangjie/m68kdbg/cmd/debug"
	"github.com/hitzhangjie/m68kdbg/pkg/logflags"
	"github.com/hitzhangjie/m68kdbg/pkg/symbol"
)

const (
	cfgName   = ".m68kdbg"
	envPrefix = "M68KDBG"

	defaultELF = "rom.out"
)

var (
	cfgFile string
	logFile io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "m68kdbg [address]",
	Short: "resolve m68k program addresses to functions and source lines",
	Long: `m68kdbg reads the DWARF information of an m68k ELF object and maps
program counter values to the function, source file, line and column
they belong to.

With an address it answers once and exits. Without one it reads addresses,
one per line, until "quit". Every answer is a single line starting with '>'.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
		logflags.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		bi, err := loadBinary()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			fmt.Fprintln(cmd.OutOrStdout(), debug.Lookup(bi, args[0]))
			return nil
		}

		sess := debug.NewDebugSession(bi, os.Stdin, cmd.OutOrStdout()).SetPrompt(viper.GetString("prompt"))
		sess.AtExit(func() {
			if logflags.Session() {
				logflags.SessionLogger().Debugf("session closed after %d queries", sess.Queries())
			}
		})
		if sess.Interactive() {
			fmt.Fprintln(cmd.OutOrStdout(), "Type 'help' for list of commands.")
		}
		debug.CurrentSession = sess
		sess.Start()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/"+cfgName+".yaml)")
	flags.StringP("elf", "e", defaultELF, "ELF object carrying the DWARF information")
	flags.Bool("log", false, "enable debug logging")
	flags.String("log-output", "", "comma separated list of layers to log: elf, dwarf, line, symbol, session, all")
	flags.String("log-dest", "", "write logs to the specified file instead of stderr")
	flags.String("prompt", "", "prompt of the interactive session")

	for _, name := range []string{"elf", "log", "log-output", "log-dest", "prompt"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".m68kdbg" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(cfgName)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setupLogging() error {
	if dest := viper.GetString("log-dest"); dest != "" {
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log destination: %w", err)
		}
		logflags.SetOutput(f)
		logFile = f
	}
	return logflags.Setup(viper.GetBool("log"), viper.GetString("log-output"))
}

func loadBinary() (*symbol.BinaryInfo, error) {
	path, err := homedir.Expand(viper.GetString("elf"))
	if err != nil {
		return nil, err
	}
	return symbol.Analyze(path)
}
