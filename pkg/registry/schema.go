// pkg/registry/schema.go
package registry

import "github-portal/internal/engine"

type JobRegistry struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Jobs        []JobSpec `json:"jobs"`
}

// JobSpec is the on-disk form of one aggregation job. Method identities are
// resolved against the engine's method registry when the job is constructed,
// not per call.
type JobSpec struct {
	Name                      string            `json:"name"`
	Description               string            `json:"description,omitempty"`
	APIName                   string            `json:"apiName"`
	OuterMethod               string            `json:"outerMethod"`
	InnerMethod               string            `json:"innerMethod"`
	CollectionKey             string            `json:"collectionKey"`
	InnerKeyType              string            `json:"innerKeyType"`
	AnnotateOrganizationLogin bool              `json:"annotateOrganizationLogin"`
	Options                   map[string]string `json:"options,omitempty"`
	MaxAgeSeconds             int               `json:"maxAgeSeconds,omitempty"`
	IndividualMaxAgeSeconds   int               `json:"individualMaxAgeSeconds,omitempty"`
	BackgroundRefresh         bool              `json:"backgroundRefresh,omitempty"`
}

// ToJob converts the spec into the engine's job form.
func (s *JobSpec) ToJob() engine.Job {
	return engine.Job{
		Name:             s.Name,
		APIName:          s.APIName,
		OuterMethod:      s.OuterMethod,
		InnerMethod:      s.InnerMethod,
		CollectionKey:    s.CollectionKey,
		InnerKey:         engine.InnerKeyType(s.InnerKeyType),
		AnnotateOrgLogin: s.AnnotateOrganizationLogin,
	}
}

// Policy converts the spec's freshness settings into a cache policy.
func (s *JobSpec) Policy() engine.CachePolicy {
	return engine.CachePolicy{
		MaxAgeSeconds:           s.MaxAgeSeconds,
		IndividualMaxAgeSeconds: s.IndividualMaxAgeSeconds,
		BackgroundRefresh:       s.BackgroundRefresh,
	}
}

// jobRegistrySchema validates registry files before they are trusted.
const jobRegistrySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "jobs"],
  "properties": {
    "version": {"type": "string"},
    "lastUpdated": {"type": "string"},
    "jobs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "apiName", "outerMethod", "innerMethod", "collectionKey", "innerKeyType"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "apiName": {"type": "string", "minLength": 1},
          "outerMethod": {"type": "string", "minLength": 1},
          "innerMethod": {"type": "string", "minLength": 1},
          "collectionKey": {"type": "string", "minLength": 1},
          "innerKeyType": {"type": "string", "enum": ["team", "repo"]},
          "annotateOrganizationLogin": {"type": "boolean"},
          "options": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          },
          "maxAgeSeconds": {"type": "integer", "minimum": 1},
          "individualMaxAgeSeconds": {"type": "integer", "minimum": 1},
          "backgroundRefresh": {"type": "boolean"}
        }
      }
    }
  }
}`
