package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"signpad/internal/raster"
)

// LegacyIndex is the index file of a legacy signature directory.
const LegacyIndex = "signatures.json"

// ErrLegacyFormat is returned when the index does not match either known
// layout.
var ErrLegacyFormat = errors.New("library: unrecognized signatures.json")

// The index is either an object carrying the annotator name or, in older
// directories, a bare list of signatures.
const legacySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "signature": {
      "type": "object",
      "required": ["name", "filename"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "filename": {"type": "string", "minLength": 1}
      }
    },
    "list": {
      "type": "array",
      "items": {"$ref": "#/definitions/signature"}
    }
  },
  "oneOf": [
    {
      "type": "object",
      "required": ["signature_name"],
      "properties": {
        "signature_name": {"type": "string"},
        "signatures": {"$ref": "#/definitions/list"}
      }
    },
    {"$ref": "#/definitions/list"}
  ]
}`

const legacySchemaURL = "signpad://legacy-signatures.schema.json"

var (
	legacyOnce     sync.Once
	legacyCompiled *jsonschema.Schema
	legacyErr      error
)

func compiledLegacySchema() (*jsonschema.Schema, error) {
	legacyOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(legacySchemaURL, strings.NewReader(legacySchema)); err != nil {
			legacyErr = fmt.Errorf("add legacy schema: %w", err)
			return
		}
		legacyCompiled, legacyErr = c.Compile(legacySchemaURL)
	})
	return legacyCompiled, legacyErr
}

// LegacySignature is one entry of a legacy index.
type LegacySignature struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
}

type legacyDocument struct {
	SignatureName string            `json:"signature_name"`
	Signatures    []LegacySignature `json:"signatures"`
}

// LegacyIndexData is a parsed legacy index.
type LegacyIndexData struct {
	// Annotator is empty for the old list layout.
	Annotator  string
	Signatures []LegacySignature
}

// ParseLegacyIndex validates and parses the content of signatures.json.
func ParseLegacyIndex(data []byte) (*LegacyIndexData, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLegacyFormat, err)
	}
	schema, err := compiledLegacySchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLegacyFormat, err)
	}

	if _, ok := instance.([]any); ok {
		var list []LegacySignature
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLegacyFormat, err)
		}
		return &LegacyIndexData{Signatures: list}, nil
	}
	var doc legacyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLegacyFormat, err)
	}
	return &LegacyIndexData{Annotator: doc.SignatureName, Signatures: doc.Signatures}, nil
}

// ImportResult summarizes ImportLegacy.
type ImportResult struct {
	Annotator string
	Imported  []string
	// Skipped maps a signature name to the reason it was not imported.
	Skipped map[string]string
}

// ImportLegacy copies the signatures listed in dir/signatures.json into the
// store. Entries whose image is missing or unreadable are skipped; existing
// names are replaced.
func (s *Store) ImportLegacy(ctx context.Context, dir string) (*ImportResult, error) {
	data, err := os.ReadFile(filepath.Join(dir, LegacyIndex))
	if err != nil {
		return nil, fmt.Errorf("read legacy index: %w", err)
	}
	idx, err := ParseLegacyIndex(data)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Annotator: idx.Annotator, Skipped: make(map[string]string)}
	for _, sig := range idx.Signatures {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if filepath.Base(sig.Filename) != sig.Filename {
			res.Skipped[sig.Name] = "filename outside the directory"
			continue
		}
		path := filepath.Join(dir, sig.Filename)
		img, err := raster.DecodeFile(path)
		if err != nil {
			s.logger.Warn("skipping legacy signature", "name", sig.Name, "path", path, "error", err)
			res.Skipped[sig.Name] = err.Error()
			continue
		}
		if err := s.save(ctx, sig.Name, img, path, true); err != nil {
			if errors.Is(err, ErrInvalidName) {
				res.Skipped[sig.Name] = err.Error()
				continue
			}
			return res, err
		}
		res.Imported = append(res.Imported, sig.Name)
	}
	s.logger.Info("legacy signatures imported",
		"dir", dir,
		"imported", len(res.Imported),
		"skipped", len(res.Skipped))
	return res, nil
}
