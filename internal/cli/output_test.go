package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSON(t *testing.T) {
	tests := []struct {
		name   string
		write  func(f *OutputFormatter) error
		status string
		code   string
	}{
		{
			name:   "success",
			write:  func(f *OutputFormatter) error { return f.Success(SaveResult{Objects: 1, Nodes: 2}) },
			status: "ok",
		},
		{
			name:   "error",
			write:  func(f *OutputFormatter) error { return f.Error(ErrCodeQuerySyntax, "bad filter", nil) },
			status: "error",
			code:   ErrCodeQuerySyntax,
		},
		{
			name: "error with details",
			write: func(f *OutputFormatter) error {
				return f.Error(ErrCodeSchema, "type is required", map[string]any{"file": "people.cue", "line": 3})
			},
			status: "error",
			code:   ErrCodeSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			require.NoError(t, tt.write(&OutputFormatter{Format: "json", Writer: buf}))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			if tt.code == "" {
				assert.Nil(t, resp.Error)
				assert.NotNil(t, resp.Data)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("plain value"))
	assert.Equal(t, "plain value\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	details := map[string]string{"file": "people.cue"}

	buf := &bytes.Buffer{}
	quiet := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, quiet.Error(ErrCodeStorage, "database is locked", details))
	assert.Equal(t, "Error [E021]: database is locked\n", buf.String())

	buf.Reset()
	verbose := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}
	require.NoError(t, verbose.Error(ErrCodeStorage, "database is locked", details))
	assert.Contains(t, buf.String(), "Details: map[file:people.cue]")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}
		formatter.VerboseLog("Saved %s", "Person#ada")
		assert.Empty(t, buf.String())
	})

	t.Run("goes to the error writer when set", func(t *testing.T) {
		out, diag := &bytes.Buffer{}, &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}
		formatter.VerboseLog("Saved %s", "Person#ada")
		assert.Empty(t, out.String())
		assert.Equal(t, "Saved Person#ada\n", diag.String())
	})
}

type textResult struct{ N int }

func (r textResult) Text() string { return "rendered\n" }

func TestOutputFormatter_TextUsesTexter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(textResult{N: 1}))
	assert.Equal(t, "rendered\n", buf.String())

	buf.Reset()
	formatter.Format = "json"
	require.NoError(t, formatter.Success(textResult{N: 1}))
	assert.Contains(t, buf.String(), `"N":1`)
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(ExitFailure, ErrCodeStorage, "disk full", nil)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "E021: disk full", err.Error())
	assert.Equal(t, "Error [E021]: disk full\n", buf.String())
}

func TestOutputFormatter_FailLoad(t *testing.T) {
	t.Run("load error keeps its code", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}

		err := formatter.FailLoad(&LoadError{Code: ErrCodeNoFiles, Message: "nothing here"})
		assert.Equal(t, ExitCommandError, GetExitCode(err))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeNoFiles, resp.Error.Code)
		assert.Nil(t, resp.Error.Details)
	})

	t.Run("position becomes details", func(t *testing.T) {
		dir := t.TempDir()
		src := "class: A: fields: {\n\tx: {column: \"y\"}\n}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(src), 0o644))
		_, loadErr := LoadSchema(dir)
		require.Error(t, loadErr)

		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}
		_ = formatter.FailLoad(loadErr)

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		details, ok := resp.Error.Details.(map[string]any)
		require.True(t, ok)
		assert.Contains(t, details["file"], "bad.cue")
		assert.Equal(t, float64(2), details["line"])
	})

	t.Run("other errors are generic", func(t *testing.T) {
		formatter := &OutputFormatter{Format: "text", Writer: &bytes.Buffer{}}
		err := formatter.FailLoad(errors.New("boom"))
		assert.Contains(t, err.Error(), ErrCodeGeneric)
	})
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", nil)))

	wrapped := WrapExitError(ExitFailure, "outer", errors.New("inner"))
	assert.Equal(t, "outer: inner", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "inner")
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	quiet := newLogger(buf, false)
	quiet.Info("hidden")
	quiet.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	loud := newLogger(buf, true)
	loud.Debug("detail", "key", "value")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "key=value")
	assert.True(t, loud.Enabled(context.Background(), slog.LevelDebug))
}
