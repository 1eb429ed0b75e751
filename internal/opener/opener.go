// Package opener hands a file to the desktop's default application.
package opener

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/mattn/go-shellwords"
)

// ErrUnsupported is returned when no way to open files is available.
var ErrUnsupported = errors.New("opening files is not supported on this system")

// Opener launches the system handler for a path without waiting for it.
type Opener struct {
	// Command overrides the platform default. It is split like a shell
	// command line and the path is appended as the last argument.
	Command string
	Logger  *slog.Logger

	goos     string
	lookPath func(string) (string, error)
	start    func(*exec.Cmd) error
}

// New creates an Opener. An empty command selects the platform default.
func New(command string, logger *slog.Logger) *Opener {
	return &Opener{
		Command:  command,
		Logger:   logger,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		start:    startDetached,
	}
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// defaultCommand returns the launcher argv for goos.
func defaultCommand(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}

func (o *Opener) argv() ([]string, error) {
	if o.Command == "" {
		return defaultCommand(o.goos), nil
	}
	args, err := shellwords.Parse(o.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid opener command '%s': %w", o.Command, err)
	}
	if len(args) == 0 {
		return defaultCommand(o.goos), nil
	}
	return args, nil
}

// Open launches the handler for path.
func (o *Opener) Open(path string) error {
	args, err := o.argv()
	if err != nil {
		return err
	}
	bin, err := o.lookPath(args[0])
	if err != nil {
		return fmt.Errorf("%w: %s not found", ErrUnsupported, args[0])
	}

	cmd := exec.Command(bin, append(args[1:], path)...)
	if err := o.start(cmd); err != nil {
		o.Logger.Error(fmt.Sprintf("Failed to open file %s with %s", path, bin), "error", err)
		return fmt.Errorf("failed to open '%s': %w", path, err)
	}
	o.Logger.Info(fmt.Sprintf("Opened file %s", path))
	return nil
}
