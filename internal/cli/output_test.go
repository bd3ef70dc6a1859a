package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp Envelope
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E_ORDER", "order carries no evidence", nil)
	require.NoError(t, err)

	var resp Envelope
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, CodeOrder, resp.Error.Code)
	assert.Equal(t, "order carries no evidence", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"file": "catalog.cue", "case": "case-001"}
	err := formatter.Error("E_CATALOG", "unknown evidence", details)
	require.NoError(t, err)

	var resp Envelope
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("Catalog seeded")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Catalog seeded")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E_ORDER", "order carries no evidence", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_ORDER]")
	assert.Contains(t, buf.String(), "order carries no evidence")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "catalog.cue"}
	err := formatter.Error("E_ORDER", "order carries no evidence", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_ORDER]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Seeding %s", "catalog.cue")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Seeding catalog.cue")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	cause := WrapExitError(ExitFailure, "order rejected", errors.New("order carries no evidence"))
	err := formatter.Fail(CodeOrder, cause)
	assert.Same(t, cause, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, map[string]any{
		"code":    "E_ORDER",
		"message": "order rejected: order carries no evidence",
	}, resp["error"])
	assert.NotContains(t, resp, "trace_id")
}

func TestOutputFormatter_VerboseLogAvoidsJSONStream(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("Seeding %s", "catalog.cue")
	require.NoError(t, formatter.Success(map[string]int{"cases": 2}))

	assert.Equal(t, "Seeding catalog.cue\n", diag.String())
	var resp Envelope
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

type stubRenderer struct{ text string }

func (s stubRenderer) RenderText(w io.Writer) {
	fmt.Fprintf(w, "rendered: %s\n", s.text)
}

func TestOutputFormatter_TextRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(stubRenderer{text: "case-001"}))
	assert.Equal(t, "rendered: case-001\n", buf.String())
}

func TestOutputFormatter_JSONIgnoresRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(SeedOutput{Catalog: "lab.yaml", CasesInserted: 2}))

	var resp struct {
		Status string     `json:"status"`
		Data   SeedOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.CasesInserted)
	assert.NotContains(t, buf.String(), "Seeded")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad config")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitFailure, "order rejected", io.EOF))))
	assert.Equal(t, ExitFailure, GetExitCode(io.EOF))
}
