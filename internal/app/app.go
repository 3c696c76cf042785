// Package app dispatches parsed CLI commands and owns process exit codes.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/cli"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/doctor"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/keys"
	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/version"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2

	forwardTimeout = 220 * time.Millisecond
	binaryName     = "parley"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return exitUsage
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return exitOK
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return exitOK
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	loaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return exitFailure
	}
	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", loaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandChat:
		return r.commandChat(ctx, loaded.Config, logger)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, loaded, doctor.Probes{})
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return exitOK
		}
		return exitFailure
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandKeyboards:
		return r.commandKeyboards(loaded.Config.Keys)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandQuit:
		return r.forwardOrFail(ctx, ipc.CommandQuit)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return exitUsage
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return exitFailure
	}

	for _, device := range devices {
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			mark(device.Default, "*", " "),
			device.ID,
			device.Description,
			device.State,
			mark(device.Available, "yes", "no"),
			mark(device.Muted, "yes", "no"),
		)
	}
	return exitOK
}

func (r Runner) commandKeyboards(cfg config.KeysConfig) int {
	keyboards, err := keys.ListKeyboards(cfg.Devices)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	readable := 0
	for _, kb := range keyboards {
		if kb.Readable {
			readable++
			fmt.Fprintf(r.Stdout, "+ %s | name=%q\n", kb.Path, kb.Name)
			continue
		}
		fmt.Fprintf(r.Stdout, "- %s | error=%v\n", kb.Path, kb.Err)
	}
	if readable == 0 {
		fmt.Fprintln(r.Stderr, "error: no readable keyboards; add your user to the input group")
		return exitFailure
	}
	return exitOK
}

func mark(ok bool, yes string, no string) string {
	if ok {
		return yes
	}
	return no
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.SocketPath(config.RuntimeDir())
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if !handled {
		fmt.Fprintln(r.Stdout, "not running")
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	if resp.State == "" {
		resp.State = "unknown"
	}
	fmt.Fprintln(r.Stdout, resp.State)
	return exitOK
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.SocketPath(config.RuntimeDir())
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active parley session")
		return exitFailure
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return exitOK
}

// tryForward sends command to a running session. handled is false when no
// session is listening.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}
