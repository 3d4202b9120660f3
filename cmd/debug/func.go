package debug

import (
	"fmt"

	"github.com/spf13/cobra"
)

var funcCmd = &cobra.Command{
	Use:   "func <address>",
	Short: "show the function covering an address and its range",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupResolve,
	},
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := ParseAddress(args[0])
		if err != nil {
			return err
		}

		fn, err := CurrentSession.bi.PCToFunction(pc)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), reply(err))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%#x, %#x) in %s\n", fn.Name, fn.LowPC, fn.HighPC, fn.CU.Name())
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(funcCmd)
}
