package debug

import (
	"github.com/spf13/cobra"
)

var exitCmd = &cobra.Command{
	Use:     "exit",
	Short:   "end the lookup session",
	Aliases: []string{"quit", "q"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupOthers,
	},
	Run: func(cmd *cobra.Command, args []string) {
		CurrentSession.Stop()
	},
}

func init() {
	debugRootCmd.AddCommand(exitCmd)
}
