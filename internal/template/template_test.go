package template

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/filer/internal/filesystem"
)

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "listing.tmpl")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestNewExecutor(t *testing.T) {
	mockFS := filesystem.NewMockFileSystem()

	t.Run("EmptyPath", func(t *testing.T) {
		exec, err := NewExecutor("", mockFS)
		assert.NoError(t, err)
		assert.Nil(t, exec)
	})

	t.Run("ValidTemplate", func(t *testing.T) {
		p := writeTemplate(t, `{{ range .Entries }}{{ .Name }}{{ end }}`)
		exec, err := NewExecutor(p, mockFS)
		require.NoError(t, err)
		require.NotNil(t, exec)
		assert.Equal(t, p, exec.filePath)
		mockFS.AssertCalled(t, filesystem.OpReadFile, p)
	})

	t.Run("NonExistentTemplateFile", func(t *testing.T) {
		exec, err := NewExecutor(filepath.Join(t.TempDir(), "missing.tmpl"), mockFS)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Nil(t, exec)
	})

	t.Run("InvalidSyntax", func(t *testing.T) {
		exec, err := NewExecutor(writeTemplate(t, `{{ .Name`), mockFS)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse template file")
		assert.Nil(t, exec)
	})

	t.Run("ReadError", func(t *testing.T) {
		p := writeTemplate(t, `ok`)
		denied := errors.New("permission denied")
		mockFS.SimulateError(filesystem.OpReadFile, p, denied)
		_, err := NewExecutor(p, mockFS)
		assert.ErrorIs(t, err, denied)
	})
}

func TestExecutor_Execute(t *testing.T) {
	fs := filesystem.NewMockFileSystem()
	mod := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	data := map[string]any{
		"Name":    "report.pdf",
		"Size":    int64(1500000),
		"ModTime": mod,
	}

	exec, err := NewExecutor(writeTemplate(t, `{{ .Name }} {{ bytes .Size }} {{ formatTime .ModTime }}`), fs)
	require.NoError(t, err)
	out, err := exec.Execute(data)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf 1.5 MB 2024-05-01 12:30:00", out)

	t.Run("ExecutionError", func(t *testing.T) {
		exec, err := NewExecutor(writeTemplate(t, `{{ template "missing" }}`), fs)
		require.NoError(t, err)
		_, err = exec.Execute(data)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to execute template")
	})
}
