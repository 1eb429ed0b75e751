package shell

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/stackvity/filer/internal/fileops"
	"github.com/stackvity/filer/internal/render"
)

type command struct {
	usage string
	help  string
	run   func(sh *Shell, ctx context.Context, args []string) error
}

var errUsage = errors.New("usage")

var commands map[string]command

var order = []string{
	"ls", "refresh", "open", "back", "cd", "mkdir", "cp", "mv", "rm", "cut", "paste",
	"search", "find", "info", "select", "pwd", "help", "quit",
}

func init() {
	commands = map[string]command{
		"ls":      {"ls", "show the table again, with any sizes computed since", (*Shell).cmdList},
		"refresh": {"refresh", "re-read the current directory", (*Shell).cmdRefresh},
		"open":    {"open <name>", "enter a folder, or open a file with its default application", (*Shell).cmdOpen},
		"back":    {"back", "go to the parent folder", (*Shell).cmdBack},
		"cd":      {"cd <path>", "go to a directory", (*Shell).cmdCd},
		"mkdir":   {"mkdir <name>", "create a folder in the current directory", (*Shell).cmdMkdir},
		"cp":      {"cp <name> <destDir>", "copy, adding a number to the name if it is taken", (*Shell).cmdCopy},
		"mv":      {"mv <name> <destDir>", "move, replacing a file of the same name", (*Shell).cmdMove},
		"rm":      {"rm [-r] [-f] <name>", "delete; -r for folders with contents, -f to skip the prompt", (*Shell).cmdDelete},
		"cut":     {"cut <name>", "mark a file to be moved by paste", (*Shell).cmdCut},
		"paste":   {"paste [destDir]", "move the cut file here, or into destDir", (*Shell).cmdPaste},
		"search":  {"search [query]", "filter the table by name; no query clears the filter", (*Shell).cmdSearch},
		"find":    {"find <pattern>", "search below the current directory (glob or substring)", (*Shell).cmdFind},
		"info":    {"info <name>", "show details of an entry", (*Shell).cmdInfo},
		"select":  {"select <name>", "show the absolute path of an entry in the path line", (*Shell).cmdSelect},
		"pwd":     {"pwd", "print the current directory", (*Shell).cmdPwd},
		"help":    {"help", "list commands", (*Shell).cmdHelp},
		"quit":    {"quit", "leave (also: exit)", nil},
	}
}

// dispatch runs one command and reports whether the shell should exit.
func (sh *Shell) dispatch(ctx context.Context, name string, args []string) bool {
	name = strings.ToLower(name)
	if name == "quit" || name == "exit" {
		return true
	}
	cmd, ok := commands[name]
	if !ok {
		sh.printError(fmt.Errorf("unknown command %q (type help)", name))
		return false
	}
	if err := cmd.run(sh, ctx, args); err != nil {
		if errors.Is(err, errUsage) {
			sh.printf("usage: %s\n", cmd.usage)
		} else {
			sh.printError(err)
		}
	}
	return false
}

// one returns the single argument of a command, or errUsage.
func one(args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage
	}
	return args[0], nil
}

// mutated reloads and shows the table after a change.
func (sh *Shell) mutated() error {
	err := sh.reload()
	sh.show()
	return err
}

func (sh *Shell) cmdList(_ context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	sh.show()
	return nil
}

func (sh *Shell) cmdRefresh(_ context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	return sh.mutated()
}

func (sh *Shell) cmdOpen(_ context.Context, args []string) error {
	name, err := one(args)
	if err != nil {
		return err
	}
	if sh.ctl.OpenFolder(sh.session, name) {
		if err := sh.changedDir(); err != nil {
			return err
		}
		sh.show()
		return nil
	}

	path := sh.session.Resolve(name)
	exists, err := sh.ctl.Service.Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("'%s' does not exist", name)
	}
	if sh.opener == nil {
		return fmt.Errorf("no application configured to open '%s'", name)
	}
	if err := sh.opener.Open(path); err != nil {
		return err
	}
	sh.printf("opened %s\n", path)
	return nil
}

func (sh *Shell) cmdBack(_ context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if !sh.ctl.Back(sh.session) {
		sh.printf("already at the root\n")
		return nil
	}
	err := sh.changedDir()
	sh.show()
	return err
}

func (sh *Shell) cmdCd(_ context.Context, args []string) error {
	path, err := one(args)
	if err != nil {
		return err
	}
	if err := sh.ctl.Navigate(sh.session, path); err != nil {
		return err
	}
	err = sh.changedDir()
	sh.show()
	return err
}

func (sh *Shell) cmdMkdir(_ context.Context, args []string) error {
	name, err := one(args)
	if err != nil {
		return err
	}
	if _, err := sh.ctl.CreateFolder(sh.session, name); err != nil {
		return err
	}
	return sh.mutated()
}

func (sh *Shell) cmdCopy(_ context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	target, err := sh.ctl.Copy(sh.session, args[0], args[1])
	if err != nil {
		return err
	}
	sh.printf("copied to %s\n", target)
	return sh.mutated()
}

func (sh *Shell) cmdMove(_ context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	target, err := sh.ctl.Move(sh.session, args[0], args[1])
	if err != nil {
		return err
	}
	sh.printf("moved to %s\n", target)
	return sh.mutated()
}

func (sh *Shell) cmdDelete(ctx context.Context, args []string) error {
	var (
		recursive bool
		force     bool
		names     []string
	)
	for _, a := range args {
		switch a {
		case "-r", "-R":
			recursive = true
		case "-f":
			force = true
		case "-rf", "-fr":
			recursive, force = true, true
		default:
			names = append(names, a)
		}
	}
	name, err := one(names)
	if err != nil {
		return err
	}
	path := sh.session.Resolve(name)

	if sh.confirm && !force {
		sh.printf("Delete %s? [y/N] ", path)
		answer, ok := sh.readLine(ctx)
		if !ok {
			return ctx.Err()
		}
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			sh.printf("cancelled\n")
			return nil
		}
	}
	if err := sh.ctl.Delete(sh.session, path, recursive); err != nil {
		return err
	}
	if sh.selected == path {
		sh.selected = ""
	}
	return sh.mutated()
}

func (sh *Shell) cmdCut(_ context.Context, args []string) error {
	name, err := one(args)
	if err != nil {
		return err
	}
	sh.printf("cut %s\n", sh.ctl.Cut(sh.session, name))
	return nil
}

func (sh *Shell) cmdPaste(_ context.Context, args []string) error {
	if len(args) > 1 {
		return errUsage
	}
	dest := ""
	if len(args) == 1 {
		dest = args[0]
	}
	target, err := sh.ctl.Paste(sh.session, dest)
	if err != nil {
		return err
	}
	sh.printf("pasted to %s\n", target)
	return sh.mutated()
}

func (sh *Shell) cmdSearch(_ context.Context, args []string) error {
	sh.query = strings.TrimSpace(strings.Join(args, " "))
	err := sh.reload()
	sh.show()
	return err
}

func (sh *Shell) cmdFind(ctx context.Context, args []string) error {
	pattern, err := one(args)
	if err != nil {
		return err
	}
	root := sh.session.Dir()
	found, err := sh.ctl.Service.Find(ctx, root, pattern)
	if err != nil {
		return err
	}
	for i := range found {
		if rel, err := filepath.Rel(root, found[i].Path); err == nil {
			found[i].Name = rel
		}
	}
	sh.printf("%s", render.Table(found))
	sh.printf("\n%d match(es)\n", len(found))
	return nil
}

func (sh *Shell) cmdInfo(_ context.Context, args []string) error {
	name, err := one(args)
	if err != nil {
		return err
	}
	e, err := sh.ctl.Service.Info(sh.session.Resolve(name))
	if err != nil {
		return err
	}
	if e.IsDir() {
		if i, ok := sh.index[e.Path]; ok && sh.rows[i].SizeKnown {
			e.Size, e.SizeKnown = sh.rows[i].Size, true
		}
	}
	return render.Info(sh.out, e)
}

func (sh *Shell) cmdSelect(_ context.Context, args []string) error {
	name, err := one(args)
	if err != nil {
		return err
	}
	path := sh.session.Resolve(name)
	if _, ok := sh.index[path]; !ok {
		return fmt.Errorf("'%s' is not in the current listing", name)
	}
	sh.selected = path
	sh.printf("%s\n", render.PathLine(path))
	return nil
}

func (sh *Shell) cmdPwd(_ context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	sh.printf("%s\n", sh.session.Dir())
	return nil
}

func (sh *Shell) cmdHelp(_ context.Context, _ []string) error {
	for _, name := range order {
		c := commands[name]
		sh.printf("  %-22s %s\n", c.usage, c.help)
	}
	return nil
}

// Rows returns a copy of the table currently on screen.
func (sh *Shell) Rows() []fileops.Entry {
	return append([]fileops.Entry(nil), sh.rows...)
}
