package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"one4allvocab.org/internal/vocab"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names, one per request body shape.
const (
	schemaCredentials = "credentials.json"
	schemaCheck       = "check.json"
	schemaDeconstruct = "deconstruct.json"
	schemaCoach       = "coach.json"
	schemaWord        = "word.json"
	schemaWordUpdate  = "word_update.json"
	schemaGrade       = "grade.json"
	schemaSentence    = "sentence.json"
)

type schemaSet struct {
	byName map[string]*jsonschema.Schema
}

func loadSchemas() (*schemaSet, error) {
	names, err := fs.Glob(schemaFS, "schemas/*.json")
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	for _, name := range names {
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if err := c.AddResource(path.Base(name), doc); err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
	}
	set := &schemaSet{byName: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		base := path.Base(name)
		sch, err := c.Compile(base)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", base, err)
		}
		set.byName[base] = sch
	}
	return set, nil
}

// decode validates the request body against the named schema and then
// unmarshals it into dst. An empty body is accepted only when optional is
// set, in which case dst is left untouched.
func (s *schemaSet) decode(r *http.Request, schema string, dst any, optional bool) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%w: unreadable body", vocab.ErrValidation)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: request body is required", vocab.ErrValidation)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: malformed JSON", vocab.ErrValidation)
	}
	sch, ok := s.byName[schema]
	if !ok {
		return fmt.Errorf("unknown schema %q", schema)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %s", vocab.ErrValidation, validationDetail(err))
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: invalid field type", vocab.ErrValidation)
	}
	return nil
}

// validationDetail keeps the most specific line of a schema error.
func validationDetail(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	return strings.TrimPrefix(last, "- ")
}
