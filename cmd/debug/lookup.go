package debug

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/m68kdbg/pkg/logflags"
	"github.com/hitzhangjie/m68kdbg/pkg/symbol"
)

// Reply lines of the lookup protocol.
const (
	replyNotFound         = ">not found"
	replyFunctionNotFound = ">not found in decode_funcname"
	replyLineNotFound     = ">not found in decode_file_line, funcname: %s"
	replyLocation         = ">%s %s %d %d"
)

var lookupCmd = &cobra.Command{
	Use:     "lookup <address>...",
	Short:   "resolve addresses to function, file, line and column",
	Aliases: []string{"where"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupResolve,
	},
	// addresses such as -1 must reach Lookup and get a reply
	DisableFlagParsing: true,
	Args:               cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := CurrentSession
		for _, arg := range args {
			seq := s.next()
			if logflags.Session() {
				logflags.SessionLogger().WithField("seq", seq).Debugf("lookup %s", arg)
			}
			fmt.Fprintln(cmd.OutOrStdout(), Lookup(s.bi, arg))
		}
	},
}

func init() {
	debugRootCmd.AddCommand(lookupCmd)
}

// ParseAddress parses a hexadecimal address, with or without 0x.
func ParseAddress(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	pc, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return pc, nil
}

// Lookup resolves addr and returns the reply line for it. Decode failures
// and malformed addresses are reported as ">not found"; the cause goes to
// the log output, never to the reply stream.
func Lookup(bi *symbol.BinaryInfo, addr string) string {
	pc, err := ParseAddress(addr)
	if err != nil {
		logflags.ErrorLogger().Errorf("lookup: %v", err)
		return replyNotFound
	}

	loc, err := bi.Lookup(pc)
	if err != nil {
		return reply(err)
	}
	return fmt.Sprintf(replyLocation, loc.Function, loc.File, loc.Line, loc.Column)
}

func reply(err error) string {
	var (
		fnerr *symbol.ErrFunctionNotFound
		lnerr *symbol.ErrLineNotFound
	)
	switch {
	case errors.As(err, &fnerr):
		return replyFunctionNotFound
	case errors.As(err, &lnerr):
		return fmt.Sprintf(replyLineNotFound, lnerr.Function)
	default:
		logflags.ErrorLogger().Errorf("lookup: %v", err)
		return replyNotFound
	}
}
