// Package swadl parses SWADL workflow definitions from YAML into the
// definition model, validating the document against the SWADL schema first.
package swadl

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/chatflow-io/chatflow/pkg/models"
)

var ErrEmptyDocument = errors.New("empty workflow document")

// ValidationError reports SWADL schema violations for one document.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid workflow definition: " + strings.Join(e.Violations, "; ")
}

var validate = validator.New()

// FromYAML parses and validates one SWADL document. It returns the definition
// model together with the raw source text, which the deployer persists
// alongside version records.
func FromYAML(data []byte) (*models.Workflow, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyDocument
	}

	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var workflow models.Workflow
	if err := yaml.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}

	assignActivityIDs(&workflow)

	if err := validate.Struct(&workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow definition: %w", err)
	}

	return &workflow, nil
}

// FromFile reads one workflow source file. Empty files yield ErrEmptyDocument.
func FromFile(path string) (*models.Workflow, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read workflow file %s: %w", path, err)
	}

	workflow, err := FromYAML(data)
	if err != nil {
		return nil, "", err
	}

	return workflow, string(data), nil
}

func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("malformed YAML: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}

		return &ValidationError{Violations: violations}
	}

	return nil
}

// assignActivityIDs derives stable ids for activities declared without an
// explicit one. Derived ids are positional, so unchanged documents always
// compile to the same graph.
func assignActivityIDs(workflow *models.Workflow) {
	for i := range workflow.Activities {
		if workflow.Activities[i].ID == "" {
			workflow.Activities[i].ID = fmt.Sprintf("%s-%d", workflow.Activities[i].Kind, i+1)
		}
	}
}
