// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "github-portal/internal/common/errors"
)

// LoadRegistry reads and validates an aggregation job registry file.
func LoadRegistry(path string) (*JobRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegistry(data)
}

// ParseRegistry validates raw registry JSON against the embedded schema and
// unmarshals it.
func ParseRegistry(data []byte) (*JobRegistry, error) {
	schemaLoader := gojsonschema.NewStringLoader(jobRegistrySchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validate job registry: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, apperrors.NewJobSpecInvalidError("registry", strings.Join(details, "; "))
	}

	var reg JobRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse job registry: %w", err)
	}

	seen := make(map[string]bool, len(reg.Jobs))
	for _, job := range reg.Jobs {
		if seen[job.Name] {
			return nil, apperrors.NewJobSpecInvalidError(job.Name, "duplicate job name")
		}
		seen[job.Name] = true
	}

	return &reg, nil
}

// Find returns the job spec registered under name.
func (r *JobRegistry) Find(name string) (*JobSpec, error) {
	for i := range r.Jobs {
		if r.Jobs[i].Name == name {
			return &r.Jobs[i], nil
		}
	}
	return nil, apperrors.NewJobSpecNotFoundError(name)
}
