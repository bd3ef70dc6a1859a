package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Format identifies the syntax of a catalog file.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
)

// FormatOf picks a format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported catalog extension %q (want .cue, .yaml or .yml)", filepath.Ext(path))
	}
}

// Load reads, parses and prepares the catalog at path.
func Load(path string) (*Catalog, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, format, path)
}

// Parse decodes a catalog in the given format and prepares it.
// source is used in error messages (typically the file name).
func Parse(data []byte, format Format, source string) (*Catalog, error) {
	var (
		cat *Catalog
		err error
	)
	switch format {
	case FormatCUE:
		cat, err = parseCUE(data, source)
	case FormatYAML:
		cat, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", source, err)
	}

	if err := cat.Prepare(source); err != nil {
		return nil, err
	}
	return cat, nil
}

func parseYAML(data []byte) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(&cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func parseCUE(data []byte, source string) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Catalog"))

	v := ctx.CompileBytes(data, cue.Filename(source))
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(err)
	}

	var cat Catalog
	if err := unified.Decode(&cat); err != nil {
		return nil, cueError(err)
	}
	return &cat, nil
}

// cueError flattens CUE's error list into one message with positions.
func cueError(err error) error {
	return fmt.Errorf("%s", strings.TrimSpace(cueerrors.Details(err, nil)))
}
