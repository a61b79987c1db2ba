// Package command classifies the exec requests an SSH client sends to the
// gateway. Clients do not get a shell: the only accepted commands are xpra
// subcommand invocations, "type/which/command" probes for the xpra binary,
// and the multi-branch bootstrap script older clients synthesize. Everything
// else is refused.
package command

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Kind is the dispatch class an exec command line falls into.
type Kind int

const (
	// KindRejected means the command matched no dispatch rule or failed a
	// policy check; the channel should be closed.
	KindRejected Kind = iota

	// KindProbe means the command is a lookup probe for the xpra binary.
	// The caller answers it on the channel and keeps the session open.
	KindProbe

	// KindDirectProxy means the client wants the channel itself used as the
	// xpra connection, with no subprocess involved.
	KindDirectProxy

	// KindProxyStart means the client asked for a new session; a subprocess
	// must be spawned and bridged onto the channel.
	KindProxyStart
)

func (k Kind) String() string {
	switch k {
	case KindProbe:
		return "probe"
	case KindDirectProxy:
		return "proxy"
	case KindProxyStart:
		return "proxy-start"
	default:
		return "rejected"
	}
}

// Verdict is the outcome of interpreting one exec command line.
type Verdict struct {
	Kind Kind

	// Tokens is the full shell-split command line. Probe handling needs it
	// to run the lookup verbatim.
	Tokens []string

	// Subcommand is the resolved xpra subcommand for KindDirectProxy and
	// KindProxyStart.
	Subcommand string

	// Args are the tokens following the subcommand, passed through to the
	// spawned subprocess for KindProxyStart.
	Args []string

	// Reason explains a KindRejected verdict.
	Reason string
}

// Interpreter applies the dispatch rules to exec command lines. The zero
// value refuses proxy-start requests and has no display to hand off.
type Interpreter struct {
	// AllowProxyStart permits the _proxy_start family of subcommands, which
	// spawn a subprocess on the gateway host.
	AllowProxyStart bool

	// Display is the display this gateway serves. A _proxy request naming a
	// different display is refused.
	Display string

	legacy LegacyScriptParser
}

// probeTools are accepted as the first token of a lookup probe.
// 'command -v xpra' has three tokens, the others two.
var probeTools = map[string]bool{
	"type":    true,
	"which":   true,
	"command": true,
}

// Interpret classifies a raw exec command line. It never performs I/O; the
// caller acts on the verdict.
func (it *Interpreter) Interpret(raw string) Verdict {
	tokens, err := shlex.Split(raw)
	if err != nil {
		return rejected(fmt.Sprintf("unparseable command %q: %v", raw, err))
	}
	if len(tokens) == 0 {
		return rejected("empty command")
	}

	if probeTools[tokens[0]] && (len(tokens) == 2 || len(tokens) == 3) {
		return Verdict{Kind: KindProbe, Tokens: tokens}
	}

	if strings.HasSuffix(tokens[0], "xpra") && len(tokens) >= 2 {
		return it.xpraSubcommand(tokens)
	}

	// Older clients wrap the real invocation in a probing shell script.
	if sub, ok := it.legacy.Extract(tokens); ok {
		if sub == "_proxy" {
			return Verdict{Kind: KindDirectProxy, Tokens: tokens, Subcommand: sub}
		}
		return rejected(fmt.Sprintf("unsupported subcommand %q in legacy script", sub))
	}
	return rejected(fmt.Sprintf("unrecognized command %q", raw))
}

func (it *Interpreter) xpraSubcommand(tokens []string) Verdict {
	sub := strings.TrimRight(strings.Trim(tokens[1], `"'`), ";")
	switch sub {
	case "_proxy_start", "_proxy_start_desktop", "_proxy_shadow_start":
		if !it.AllowProxyStart {
			return rejected(fmt.Sprintf("%s session requests are disabled (enable gateway.proxy-start)", sub))
		}
		return Verdict{Kind: KindProxyStart, Tokens: tokens, Subcommand: sub, Args: tokens[2:]}
	case "_proxy":
		// With exactly one extra argument the client names the display it
		// expects; anything else there is not ours to serve.
		if len(tokens) == 3 && tokens[2] != it.Display {
			return rejected(fmt.Sprintf("requested display %q does not match %q", tokens[2], it.Display))
		}
		return Verdict{Kind: KindDirectProxy, Tokens: tokens, Subcommand: sub}
	}
	return rejected(fmt.Sprintf("unsupported xpra subcommand %q", tokens[1]))
}

func rejected(reason string) Verdict {
	return Verdict{Kind: KindRejected, Reason: reason}
}
