package debug

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/atomic"

	"github.com/hitzhangjie/m68kdbg/pkg/logflags"
	"github.com/hitzhangjie/m68kdbg/pkg/symbol"
)

const (
	cmdGroupAnnotation = "cmd_group_annotation"

	cmdGroupResolve = "1-resolve"
	cmdGroupInfo    = "2-info"
	cmdGroupOthers  = "3-other"
	cmdGroupCobra   = "other"

	cmdGroupDelimiter = "-"

	prefix    = "m68kdbg> "
	descShort = "m68kdbg interactive lookup commands"
)

var debugRootCmd = &cobra.Command{
	Use:           "help [command]",
	Short:         descShort,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	CurrentSession *DebugSession
)

// DebugSession reads queries from the user or from the emulator driving the
// tool through a pipe, and answers each of them on out.
type DebugSession struct {
	done   chan bool
	prefix string
	root   *cobra.Command
	liner  *liner.State
	last   string

	bi  *symbol.BinaryInfo
	in  io.Reader
	out io.Writer
	seq *atomic.Uint64

	defers []func()
}

// NewDebugSession creates a session over bi. When in is a terminal the
// session prompts with liner; otherwise it reads plain lines and prints no
// prompt, so that every line written to out is a reply.
func NewDebugSession(bi *symbol.BinaryInfo, in io.Reader, out io.Writer) *DebugSession {

	fn := func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()

		fmt.Fprintln(w, cmd.Short)
		fmt.Fprintln(w)

		fmt.Fprintln(w, cmd.Use)
		fmt.Fprintln(w, cmd.Flags().FlagUsages())

		fmt.Fprintln(w, helpMessageByGroups(cmd))
	}
	debugRootCmd.SetHelpFunc(fn)
	debugRootCmd.InitDefaultHelpCmd()
	debugRootCmd.SetOut(out)
	debugRootCmd.SetErr(os.Stderr)

	s := &DebugSession{
		done:   make(chan bool),
		prefix: prefix,
		root:   debugRootCmd,
		bi:     bi,
		in:     in,
		out:    out,
		seq:    atomic.NewUint64(0),
	}
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		s.liner = liner.NewLiner()
	}
	return s
}

// SetPrompt replaces the interactive prompt.
func (s *DebugSession) SetPrompt(p string) *DebugSession {
	if p != "" {
		s.prefix = p
	}
	return s
}

// Interactive reports whether the session prompts through liner.
func (s *DebugSession) Interactive() bool {
	return s.liner != nil
}

func (s *DebugSession) Start() {
	defer func() {
		for idx := len(s.defers) - 1; idx >= 0; idx-- {
			s.defers[idx]()
		}
	}()

	if s.liner != nil {
		s.prompt()
		return
	}
	s.pipe()
}

func (s *DebugSession) prompt() {
	defer s.liner.Close()

	s.liner.SetCompleter(completer)
	s.liner.SetTabCompletionStyle(liner.TabPrints)

	for !s.stopped() {
		txt, err := s.liner.Prompt(s.prefix)
		if err != nil {
			if err != io.EOF {
				logflags.SessionLogger().Errorf("read prompt: %v", err)
			}
			return
		}

		txt = strings.TrimSpace(txt)
		if len(txt) != 0 {
			s.last = txt
			s.liner.AppendHistory(txt)
		} else {
			txt = s.last
		}
		if txt == "" {
			continue
		}
		s.exec(txt)
	}
}

// pipe answers one line at a time until quit or the end of input. Empty
// lines are ignored, they do not repeat the previous query.
func (s *DebugSession) pipe() {
	scanner := bufio.NewScanner(s.in)
	for !s.stopped() && scanner.Scan() {
		txt := strings.TrimSpace(scanner.Text())
		if txt == "" {
			continue
		}
		s.exec(txt)
	}
	if err := scanner.Err(); err != nil {
		logflags.SessionLogger().Errorf("read input: %v", err)
	}
}

// exec runs txt as a session command. A line that names no command is
// taken as an address to look up.
func (s *DebugSession) exec(txt string) {
	args := strings.Fields(txt)
	cmd, _, err := s.root.Find(args)
	if err != nil || cmd == s.root {
		args = append([]string{lookupCmd.Name()}, args...)
		cmd = lookupCmd
	}
	query := cmd == lookupCmd
	defer resetFlags(cmd)

	s.root.SetArgs(args)
	if err := s.root.Execute(); err != nil {
		logflags.ErrorLogger().Errorf("%q: %v", txt, err)
		// every query gets a reply line
		if query {
			fmt.Fprintln(s.out, replyNotFound)
		}
	}
}

// resetFlags restores the flags of cmd to their defaults. The command tree
// lives as long as the session, and a --help left set would turn every later
// run of cmd into a usage message.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
}

func (s *DebugSession) AtExit(fn func()) *DebugSession {
	s.defers = append(s.defers, fn)
	return s
}

func (s *DebugSession) Stop() {
	if !s.stopped() {
		close(s.done)
	}
}

func (s *DebugSession) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Queries returns the number of addresses looked up so far.
func (s *DebugSession) Queries() uint64 {
	return s.seq.Load()
}

// next numbers a query for log correlation.
func (s *DebugSession) next() uint64 {
	return s.seq.Inc()
}

func completer(line string) []string {
	cmds := []string{}
	for _, c := range debugRootCmd.Commands() {
		// complete cmd
		if strings.HasPrefix(c.Use, line) {
			cmds = append(cmds, strings.Split(c.Use, " ")[0])
		}
		// complete cmd's aliases
		for _, alias := range c.Aliases {
			if strings.HasPrefix(alias, line) {
				cmds = append(cmds, alias)
			}
		}
	}
	return cmds
}

// helpMessageByGroups lists the commands grouped by their group annotation.
func helpMessageByGroups(cmd *cobra.Command) string {

	// key:group, val:sorted commands in same group
	groups := map[string][]string{}
	for _, c := range cmd.Commands() {
		// commands without a group go to "other"
		var groupName string
		v, ok := c.Annotations[cmdGroupAnnotation]
		if !ok {
			groupName = cmdGroupCobra
		} else {
			groupName = v
		}

		groupCmds := groups[groupName]
		groupCmds = append(groupCmds, fmt.Sprintf("  %-16s:%s", c.Name(), c.Short))
		sort.Strings(groupCmds)

		groups[groupName] = groupCmds
	}

	if len(groups[cmdGroupCobra]) != 0 {
		groups[cmdGroupOthers] = append(groups[cmdGroupOthers], groups[cmdGroupCobra]...)
	}
	delete(groups, cmdGroupCobra)

	groupNames := []string{}
	for k := range groups {
		groupNames = append(groupNames, k)
	}
	sort.Strings(groupNames)

	buf := bytes.Buffer{}
	for _, groupName := range groupNames {
		commands := groups[groupName]

		group := strings.Split(groupName, cmdGroupDelimiter)[1]
		buf.WriteString(fmt.Sprintf("- [%s]\n", group))

		for _, cmd := range commands {
			buf.WriteString(fmt.Sprintf("%s\n", cmd))
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
