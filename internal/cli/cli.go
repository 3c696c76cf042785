// Package cli parses parley's argv into a single command.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandChat      Command = "chat"
	CommandStatus    Command = "status"
	CommandQuit      Command = "quit"
	CommandDevices   Command = "devices"
	CommandKeyboards Command = "keyboards"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

// commands is ordered as shown in help output.
var commands = []struct {
	name    Command
	summary string
}{
	{CommandChat, "Run the push-to-talk conversation loop"},
	{CommandStatus, "Print the running session's state"},
	{CommandQuit, "Ask the running session to quit after its current turn"},
	{CommandDevices, "List audio input devices"},
	{CommandKeyboards, "List keyboard devices used for push-to-talk"},
	{CommandDoctor, "Run configuration and environment checks"},
	{CommandVersion, "Print version information"},
	{CommandHelp, "Show this help"},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	sawCommand := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "-h" || arg == "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case arg == "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case arg == "--config":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			path := strings.TrimPrefix(arg, "--config=")
			if strings.TrimSpace(path) == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = path
		case strings.HasPrefix(arg, "-"):
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		default:
			if sawCommand {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}
			cmd := Command(arg)
			if !known(cmd) {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			sawCommand = true
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
		}
	}

	return parsed, nil
}

func known(cmd Command) bool {
	for _, c := range commands {
		if c.name == cmd {
			return true
		}
	}
	return false
}

func HelpText(binaryName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n  %s [--config PATH] <command>\n\nCommands:\n", binaryName)
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-10s %s\n", c.name, c.summary)
	}
	b.WriteString(`
Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/parley/config.yaml)
  -h, --help      Show help
  --version       Show version

Environment:
  PARLEY_*          Override config values (see README); .env in the working dir is read too
  PARLEY_LOG_LEVEL  debug, info, warn, or error
`)
	return b.String()
}
