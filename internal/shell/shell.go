// Package shell is the interactive front end: it prints the current
// directory as a table and maps typed commands onto controller operations.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/stackvity/filer/internal/controller"
	"github.com/stackvity/filer/internal/fileops"
	"github.com/stackvity/filer/internal/render"
	"github.com/stackvity/filer/internal/sizer"
)

// Prompt is printed before every command.
const Prompt = "filer> "

// SizeSource computes directory sizes in the background. *sizer.Pool implements it.
type SizeSource interface {
	Submit(gen uint64, paths []string)
	Results() <-chan sizer.Result
}

// DirWatcher reports changes to one directory. *watch.Watcher implements it.
type DirWatcher interface {
	SetDir(dir string) error
	Changes() <-chan struct{}
}

// FileOpener opens a file in its default application. *opener.Opener implements it.
type FileOpener interface {
	Open(path string) error
}

// Config wires a Shell. Sizes, Watcher and Opener are optional.
type Config struct {
	Controller    *controller.Controller
	Session       *controller.Session
	Sizes         SizeSource
	Watcher       DirWatcher
	Opener        FileOpener
	Logger        *slog.Logger
	In            io.Reader
	Out           io.Writer
	ConfirmDelete bool
}

// Shell holds the table model for the directory on screen. All methods run
// on the goroutine that called Run.
type Shell struct {
	ctl     *controller.Controller
	session *controller.Session
	sizes   SizeSource
	watcher DirWatcher
	opener  FileOpener
	logger  *slog.Logger
	out     io.Writer
	confirm bool

	lines chan string
	done  chan struct{}

	gen      uint64
	rows     []fileops.Entry
	index    map[string]int
	query    string
	selected string
	pending  int
}

// New creates a Shell from cfg.
func New(cfg Config) *Shell {
	sh := &Shell{
		ctl:     cfg.Controller,
		session: cfg.Session,
		sizes:   cfg.Sizes,
		watcher: cfg.Watcher,
		opener:  cfg.Opener,
		logger:  cfg.Logger.With("session", cfg.Session.ID),
		out:     cfg.Out,
		confirm: cfg.ConfirmDelete,
		lines:   make(chan string),
		done:    make(chan struct{}),
		index:   make(map[string]int),
	}
	go sh.readLines(cfg.In)
	return sh
}

func (sh *Shell) readLines(in io.Reader) {
	defer close(sh.lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case sh.lines <- scanner.Text():
		case <-sh.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		sh.logger.Error("Failed to read input", "error", err)
	}
}

// readLine waits for the next input line. It reports false at end of input
// or when ctx is done.
func (sh *Shell) readLine(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-sh.lines:
		return line, ok
	}
}

// Run shows the start directory and processes commands until quit, end of
// input or cancellation of ctx.
func (sh *Shell) Run(ctx context.Context) error {
	defer close(sh.done)
	sh.watchCurrent()
	if err := sh.reload(); err != nil {
		sh.printError(err)
	}
	sh.show()

	for {
		sh.drainWatcher()
		sh.drainSizes()
		fmt.Fprint(sh.out, Prompt)

		line, ok := sh.readLine(ctx)
		if !ok {
			fmt.Fprintln(sh.out)
			return ctx.Err()
		}
		args, err := shellwords.Parse(line)
		if err != nil {
			sh.printError(fmt.Errorf("cannot parse command: %w", err))
			continue
		}
		if len(args) == 0 {
			continue
		}
		sh.logger.Debug("Command", "args", args)
		if quit := sh.dispatch(ctx, args[0], args[1:]); quit {
			return nil
		}
	}
}

func (sh *Shell) printError(err error) {
	fmt.Fprintf(sh.out, "error: %v\n", err)
}

func (sh *Shell) printf(format string, a ...any) {
	fmt.Fprintf(sh.out, format, a...)
}

// reload re-reads the current directory, applying the active search query,
// and starts a new size generation for the directory rows.
func (sh *Shell) reload() error {
	var (
		entries []fileops.Entry
		err     error
	)
	if sh.query != "" {
		entries, err = sh.ctl.Search(sh.session, sh.query)
	} else {
		entries, err = sh.ctl.List(sh.session)
	}
	if err != nil {
		entries = nil
	}
	sh.setRows(entries)
	return err
}

// setRows replaces the table contents. Any size result still in flight for
// the previous rows belongs to an older generation and will be discarded.
func (sh *Shell) setRows(entries []fileops.Entry) {
	sh.gen++
	sh.rows = entries
	sh.index = make(map[string]int, len(entries))
	var dirs []string
	for i, e := range entries {
		sh.index[e.Path] = i
		if e.IsDir() && !e.SizeKnown {
			dirs = append(dirs, e.Path)
		}
	}
	sh.pending = 0
	if sh.sizes != nil {
		sh.pending = len(dirs)
		sh.sizes.Submit(sh.gen, dirs)
	}
}

// drainSizes applies every size result already delivered. Results of another
// generation or for a path no longer on screen are dropped. A cached result
// is shown until the recalculated one replaces it.
func (sh *Shell) drainSizes() {
	if sh.sizes == nil {
		return
	}
	for {
		select {
		case r, ok := <-sh.sizes.Results():
			if !ok {
				sh.sizes = nil
				return
			}
			sh.applySize(r)
		default:
			return
		}
	}
}

func (sh *Shell) applySize(r sizer.Result) bool {
	if r.Gen != sh.gen {
		return false
	}
	i, ok := sh.index[r.Path]
	if !ok {
		return false
	}
	if r.Cached {
		// Provisional; the recalculated result follows.
		if r.Err == nil {
			sh.rows[i].Size, sh.rows[i].SizeKnown, sh.rows[i].SizeCached = r.Size, true, true
		}
		return r.Err == nil
	}
	sh.pending--
	if r.Err != nil {
		sh.logger.Debug("Directory size unavailable", "dir", r.Path, "error", r.Err)
		return false
	}
	sh.rows[i].Size, sh.rows[i].SizeKnown, sh.rows[i].SizeCached = r.Size, true, false
	return true
}

// drainWatcher reloads the table when the directory on screen has changed.
func (sh *Shell) drainWatcher() {
	if sh.watcher == nil {
		return
	}
	select {
	case <-sh.watcher.Changes():
		before := sh.rowNames()
		if err := sh.reload(); err != nil {
			sh.printError(err)
		}
		// Our own mutations are already on screen.
		if before == sh.rowNames() {
			return
		}
		sh.logger.Debug("Directory changed on disk, reloaded", "dir", sh.session.Dir())
		sh.printf("\n(directory changed)\n")
		sh.show()
	default:
	}
}

func (sh *Shell) rowNames() string {
	names := make([]string, len(sh.rows))
	for i, e := range sh.rows {
		names[i] = e.Name
	}
	return strings.Join(names, "/")
}

func (sh *Shell) watchCurrent() {
	if sh.watcher == nil {
		return
	}
	if err := sh.watcher.SetDir(sh.session.Dir()); err != nil {
		sh.logger.Warn("Cannot watch directory", "dir", sh.session.Dir(), "error", err)
	}
}

// show prints the window: the path line and the table.
func (sh *Shell) show() {
	sh.drainSizes()
	path := sh.session.Dir()
	if sh.selected != "" {
		path = sh.selected
	}
	fmt.Fprint(sh.out, render.Window(path, sh.rows))
	var notes []string
	if sh.query != "" {
		notes = append(notes, fmt.Sprintf("filter: %q", sh.query))
	}
	if sh.pending > 0 {
		notes = append(notes, fmt.Sprintf("%d sizes pending", sh.pending))
	}
	for _, e := range sh.rows {
		if e.SizeCached {
			notes = append(notes, render.CachedMark+" cached, recalculating")
			break
		}
	}
	if len(notes) > 0 {
		sh.printf("(%s)\n", strings.Join(notes, ", "))
	}
}

// changedDir resets per-directory state after navigation.
func (sh *Shell) changedDir() error {
	sh.query = ""
	sh.selected = ""
	sh.watchCurrent()
	return sh.reload()
}
