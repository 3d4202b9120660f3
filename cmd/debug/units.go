package debug

import (
	"github.com/spf13/cobra"
)

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "list the compilation units",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return PrintUnits(cmd.OutOrStdout(), CurrentSession.bi)
	},
}

var funcsCmd = &cobra.Command{
	Use:   "funcs",
	Short: "list the functions with a code range",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return PrintFunctions(cmd.OutOrStdout(), CurrentSession.bi)
	},
}

func init() {
	debugRootCmd.AddCommand(unitsCmd)
	debugRootCmd.AddCommand(funcsCmd)
}
