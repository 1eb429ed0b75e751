package main

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stackvity/filer/internal/controller"
	"github.com/stackvity/filer/internal/fileops"
	"github.com/stackvity/filer/internal/opener"
	"github.com/stackvity/filer/internal/render"
	"github.com/stackvity/filer/internal/sizer"
	"github.com/stackvity/filer/internal/template"
)

// addCommands registers the one-shot subcommands on root.
func addCommands(root *cobra.Command) {
	lsCmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runList,
	}
	lsCmd.Flags().Bool("sizes", false, "Compute directory sizes before printing")

	searchCmd := &cobra.Command{
		Use:   "search <query> [dir]",
		Short: "List the entries of a directory whose name contains query (case-insensitive)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runSearch,
	}

	findCmd := &cobra.Command{
		Use:   "find <pattern> [dir]",
		Short: "Search a directory tree by glob (e.g. '**/*.go') or name substring",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runFind,
	}

	rmCmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Delete files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDelete,
	}
	rmCmd.Flags().BoolP("recursive", "r", false, "Delete directories and their contents")
	rmCmd.Flags().BoolP("force", "f", false, "Do not ask for confirmation")

	root.AddCommand(
		lsCmd,
		searchCmd,
		findCmd,
		rmCmd,
		&cobra.Command{
			Use:   "mkdir <path>",
			Short: "Create a folder",
			Args:  cobra.ExactArgs(1),
			RunE:  runMkdir,
		},
		&cobra.Command{
			Use:   "cp <src> <destDir>",
			Short: "Copy into destDir, numbering the copy if the name is taken",
			Args:  cobra.ExactArgs(2),
			RunE:  runCopy,
		},
		&cobra.Command{
			Use:   "mv <src> <destDir>",
			Short: "Move into destDir, replacing a file of the same name",
			Args:  cobra.ExactArgs(2),
			RunE:  runMove,
		},
		&cobra.Command{
			Use:   "du <dir>...",
			Short: "Print the total size of directories",
			Args:  cobra.MinimumNArgs(1),
			RunE:  runDiskUsage,
		},
		&cobra.Command{
			Use:   "info <path>",
			Short: "Show details of a file or directory",
			Args:  cobra.ExactArgs(1),
			RunE:  runInfo,
		},
		&cobra.Command{
			Use:   "open <path>",
			Short: "Open a file with its default application",
			Args:  cobra.ExactArgs(1),
			RunE:  runOpen,
		},
	)
}

func argOr(args []string, i int, fallback string) string {
	if len(args) > i {
		return args[i]
	}
	return fallback
}

// writeListing prints entries in the configured format or template.
func (a *app) writeListing(w io.Writer, dir string, entries []fileops.Entry) error {
	exec, err := template.NewExecutor(a.opts.TemplateFile, a.fs)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return render.Write(w, a.opts.Format, render.Listing{Dir: abs, Entries: entries}, exec)
}

func runList(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.close()
	dir := argOr(args, 0, ".")

	entries, err := a.svc.List(dir)
	if err != nil {
		return err
	}
	if withSizes, _ := cmd.Flags().GetBool("sizes"); withSizes {
		calc := sizer.NewCalculator(a.fs, a.sizeCache(), a.logger)
		for i := range entries {
			if !entries[i].IsDir() {
				continue
			}
			size, err := calc.Fresh(cmd.Context(), entries[i].Path)
			if err != nil {
				a.logger.Warn("Directory size unavailable", "dir", entries[i].Path, "error", err)
				continue
			}
			entries[i].Size, entries[i].SizeKnown = size, true
		}
	}
	return a.writeListing(cmd.OutOrStdout(), dir, entries)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a := newApp()
	dir := argOr(args, 1, ".")
	entries, err := a.svc.Search(args[0], dir)
	if err != nil {
		return err
	}
	return a.writeListing(cmd.OutOrStdout(), dir, entries)
}

func runFind(cmd *cobra.Command, args []string) error {
	a := newApp()
	dir := argOr(args, 1, ".")
	entries, err := a.svc.Find(cmd.Context(), dir, args[0])
	if err != nil {
		return err
	}
	return a.writeListing(cmd.OutOrStdout(), dir, entries)
}

func runMkdir(cmd *cobra.Command, args []string) error {
	a := newApp()
	s := controller.NewSession(filepath.Dir(args[0]))
	path, err := a.ctl.CreateFolder(s, filepath.Base(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runCopy(cmd *cobra.Command, args []string) error {
	a := newApp()
	target, err := a.ctl.Copy(controller.NewSession("."), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), target)
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	a := newApp()
	target, err := a.ctl.Move(controller.NewSession("."), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), target)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	a := newApp()
	recursive, _ := cmd.Flags().GetBool("recursive")
	force, _ := cmd.Flags().GetBool("force")
	s := controller.NewSession(".")

	in := bufio.NewReader(cmd.InOrStdin())
	for _, p := range args {
		if a.opts.ConfirmDelete && !force {
			fmt.Fprintf(cmd.OutOrStdout(), "Delete %s? [y/N] ", s.Resolve(p))
			answer, _ := in.ReadString('\n')
			if ans := strings.ToLower(strings.TrimSpace(answer)); ans != "y" && ans != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), "skipped")
				continue
			}
		}
		if err := a.ctl.Delete(s, p, recursive); err != nil {
			return err
		}
	}
	return nil
}

func runDiskUsage(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.close()
	calc := sizer.NewCalculator(a.fs, a.sizeCache(), a.logger)

	for _, dir := range args {
		size, err := calc.Fresh(cmd.Context(), dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", humanize.Bytes(uint64(size)), dir)
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	a := newApp()
	e, err := a.svc.Info(args[0])
	if err != nil {
		return err
	}
	return render.Info(cmd.OutOrStdout(), e)
}

func runOpen(_ *cobra.Command, args []string) error {
	a := newApp()
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	return opener.New(a.opts.Opener, a.logger).Open(path)
}
