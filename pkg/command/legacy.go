package command

import (
	"strings"

	"github.com/google/shlex"
)

// LegacyScriptParser recognizes the bootstrap script plain ssh clients run
// instead of invoking xpra directly. The script probes a handful of install
// locations with an if/elif chain and runs the first hit, e.g.:
//
//	sh -c ': run-xpra _proxy;xpra initenv;
//	 if [ -x $XDG_RUNTIME_DIR/xpra/run-xpra ]; then $XDG_RUNTIME_DIR/xpra/run-xpra _proxy;
//	 elif type "xpra" > /dev/null 2>&1; then xpra _proxy;
//	 else echo "no run-xpra command found"; exit 1; fi'
//
// The parser extracts the subcommand from each branch body without running a
// shell. Splitting on "if " also cuts inside "elif ", which is what picks up
// the later branches.
type LegacyScriptParser struct{}

// Target selects the script text to parse from a token list: the sole token,
// or the third when the command is sh -c <script>.
func (LegacyScriptParser) Target(tokens []string) (string, bool) {
	switch {
	case len(tokens) == 1:
		return tokens[0], true
	case len(tokens) == 3 && tokens[0] == "sh" && tokens[1] == "-c":
		return tokens[2], true
	}
	return "", false
}

// Candidates returns the subcommand named in each recognizable branch of the
// script, in order. Branches it cannot make sense of are skipped.
func (LegacyScriptParser) Candidates(script string) []string {
	var subcommands []string
	for _, s := range strings.Split(script, "if ") {
		if !strings.HasPrefix(s, `type "xpra"`) &&
			!strings.HasPrefix(s, `which "xpra"`) &&
			!strings.HasPrefix(s, "[ -x") {
			continue
		}
		idx := strings.Index(s, "then ")
		if idx <= 0 {
			continue
		}
		// ie: `$XDG_RUNTIME_DIR/xpra/run-xpra _proxy;  el`
		thenStr := s[idx+len("then "):]
		if sep := strings.Index(thenStr, ";"); sep > 0 {
			thenStr = thenStr[:sep]
		}
		parts, err := shlex.Split(thenStr)
		if err != nil || len(parts) < 2 {
			continue
		}
		subcommands = append(subcommands, parts[1])
	}
	return subcommands
}

// Extract parses the token list end to end. It reports the subcommand only
// when every branch of the script agrees on a single one.
func (p LegacyScriptParser) Extract(tokens []string) (string, bool) {
	script, ok := p.Target(tokens)
	if !ok {
		return "", false
	}
	subcommands := p.Candidates(script)
	if len(subcommands) == 0 {
		return "", false
	}
	for _, s := range subcommands[1:] {
		if s != subcommands[0] {
			return "", false
		}
	}
	return subcommands[0], true
}
