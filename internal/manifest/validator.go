package manifest

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	//go:embed schema/manifest.schema.json
	manifestSchemaBytes []byte

	//go:embed schema/source.schema.json
	sourceSchemaBytes []byte
)

var (
	manifestSchema = &embeddedSchema{name: "manifest.schema.json", data: manifestSchemaBytes}
	sourceSchema   = &embeddedSchema{name: "source.schema.json", data: sourceSchemaBytes}
	printer        = message.NewPrinter(language.English)
)

// ValidationResult contains the outcome of a schema validation. An invalid
// result is also an error so callers can return it directly.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// ValidationIssue represents a single validation error from the schema.
type ValidationIssue struct {
	Path    string // Instance location (e.g., "/name")
	Message string // Human-readable error message
	Keyword string // Schema keyword that failed
}

// Error joins the issues into one line.
func (r *ValidationResult) Error() string {
	parts := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		if issue.Path == "" {
			parts = append(parts, issue.Message)
			continue
		}
		parts = append(parts, issue.Path+": "+issue.Message)
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

type embeddedSchema struct {
	name string
	data []byte

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// get compiles the embedded JSON schema once and returns it.
func (s *embeddedSchema) get() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(s.data))
		if err != nil {
			s.err = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(s.name, doc); err != nil {
			s.err = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		s.compiled, s.err = c.Compile(s.name)
		if s.err != nil {
			s.err = fmt.Errorf("compiling schema: %w", s.err)
		}
	})
	return s.compiled, s.err
}

// ValidateManifest validates raw JSON against the manifest schema. The error
// return is for malformed JSON or schema compilation failures; validation
// issues are returned in the ValidationResult.
func ValidateManifest(data []byte) (*ValidationResult, error) {
	return validate(manifestSchema, data)
}

// ValidateSource validates raw JSON against the source schema.
func ValidateSource(data []byte) (*ValidationResult, error) {
	return validate(sourceSchema, data)
}

func validate(s *embeddedSchema, data []byte) (*ValidationResult, error) {
	schema, err := s.get()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return nil, fmt.Errorf("unexpected validation error type: %w", err)
	}

	return &ValidationResult{
		Valid:  false,
		Issues: extractIssues(validationErr),
	}, nil
}

// extractIssues flattens the error tree into its leaf issues in tree order,
// skipping grouping keywords and repeats. A tree with no usable leaf yields a
// single issue carrying the top-level message.
func extractIssues(ve *jsonschema.ValidationError) []ValidationIssue {
	seen := make(map[ValidationIssue]struct{})
	var issues []ValidationIssue

	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}
		issue, ok := leafIssue(e)
		if !ok {
			return
		}
		if _, dup := seen[issue]; dup {
			return
		}
		seen[issue] = struct{}{}
		issues = append(issues, issue)
	}
	walk(ve)

	if len(issues) == 0 {
		return []ValidationIssue{{Message: ve.Error()}}
	}
	return issues
}

// leafIssue describes one leaf error. Keywords that only group other
// failures report nothing on their own.
func leafIssue(e *jsonschema.ValidationError) (ValidationIssue, bool) {
	if e.ErrorKind == nil {
		return ValidationIssue{}, false
	}
	kwPath := e.ErrorKind.KeywordPath()
	if len(kwPath) == 0 {
		return ValidationIssue{}, false
	}
	keyword := kwPath[len(kwPath)-1]
	if keyword == "allOf" || keyword == "$ref" {
		return ValidationIssue{}, false
	}

	var path string
	if len(e.InstanceLocation) > 0 {
		path = "/" + strings.Join(e.InstanceLocation, "/")
	}
	return ValidationIssue{
		Path:    path,
		Message: e.ErrorKind.LocalizedString(printer),
		Keyword: keyword,
	}, true
}
