// Package render turns listings into text: the four-column table shown by the
// shell, and the json, yaml, toml or template output of one-shot commands.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/stackvity/filer/internal/fileops"
	"github.com/stackvity/filer/internal/template"
)

// UnknownSize is shown for directories whose size has not been computed yet.
const UnknownSize = "--"

// CachedMark prefixes a size taken from the cache that is still being
// recalculated.
const CachedMark = "~"

// Headers are the table columns, in order.
var Headers = []string{"Name", "Size", "Type", "Last Modified"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dirStyle    = cellStyle.Foreground(lipgloss.Color("39"))
	pathStyle   = lipgloss.NewStyle().Bold(true)
)

// Listing is one directory listing as exported by the structured formats.
type Listing struct {
	Dir     string          `json:"dir" yaml:"dir" toml:"dir"`
	Entries []fileops.Entry `json:"entries" yaml:"entries" toml:"entries"`
}

// SizeText formats an entry's size: SI units for known sizes, UnknownSize
// otherwise. Provisional cached sizes carry CachedMark.
func SizeText(e fileops.Entry) string {
	if !e.SizeKnown {
		return UnknownSize
	}
	text := "0 B"
	if e.Size > 0 {
		text = humanize.Bytes(uint64(e.Size))
	}
	if e.SizeCached {
		return CachedMark + text
	}
	return text
}

// Row returns the table cells for e.
func Row(e fileops.Entry) []string {
	return []string{e.Name, SizeText(e), string(e.Kind), e.ModTime.Format(template.TimeLayout)}
}

// Table renders entries as a bordered table with the standard headers.
func Table(entries []fileops.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Row(e))
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(Headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0 && row >= 0 && row < len(entries) && entries[row].IsDir():
				return dirStyle
			default:
				return cellStyle
			}
		}).
		String()
}

// PathLine renders the line above the table.
func PathLine(dir string) string {
	return pathStyle.Render("Path:") + " " + dir
}

// Window renders the path line followed by the table.
func Window(dir string, entries []fileops.Entry) string {
	return PathLine(dir) + "\n" + Table(entries) + "\n"
}

// Write renders l to w in format. A non-nil executor takes precedence over format.
func Write(w io.Writer, format string, l Listing, exec *template.Executor) error {
	if exec != nil {
		out, err := exec.Execute(l)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	}

	switch strings.ToLower(format) {
	case "", "table":
		_, err := io.WriteString(w, Window(l.Dir, l.Entries))
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("failed to encode listing as json: %w", err)
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("failed to encode listing as yaml: %w", err)
		}
		return enc.Close()
	case "toml":
		if err := toml.NewEncoder(w).Encode(l); err != nil {
			return fmt.Errorf("failed to encode listing as toml: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format '%s'", format)
	}
}

// Info renders the details of a single entry as aligned key/value lines.
func Info(w io.Writer, e fileops.Entry) error {
	lines := [][2]string{
		{"Name", e.Name},
		{"Path", e.Path},
		{"Type", string(e.Kind)},
		{"Size", SizeText(e)},
		{"Modified", fmt.Sprintf("%s (%s)", e.ModTime.Format(template.TimeLayout), humanize.Time(e.ModTime))},
	}
	if e.SizeKnown {
		lines[3][1] = fmt.Sprintf("%s (%s bytes)", SizeText(e), humanize.Comma(e.Size))
	}
	if e.MIME != "" {
		lines = append(lines, [2]string{"MIME", e.MIME})
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%-9s %s\n", l[0]+":", l[1]); err != nil {
			return err
		}
	}
	return nil
}
