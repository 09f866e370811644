// pkg/registry/registry_test.go
package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github-portal/internal/common/errors"
	"github-portal/internal/engine"
)

const validRegistry = `{
  "version": "1.0.0",
  "lastUpdated": "2026-08-20",
  "jobs": [
    {
      "name": "teams-with-members",
      "apiName": "github",
      "outerMethod": "teams.list",
      "innerMethod": "teams.members",
      "collectionKey": "members",
      "innerKeyType": "team",
      "annotateOrganizationLogin": true,
      "backgroundRefresh": true
    },
    {
      "name": "repos-with-collaborators",
      "apiName": "github",
      "outerMethod": "repos.list",
      "innerMethod": "repos.collaborators",
      "collectionKey": "collaborators",
      "innerKeyType": "repo",
      "options": {"affiliation": "direct"},
      "maxAgeSeconds": 1800,
      "individualMaxAgeSeconds": 600
    }
  ]
}`

func TestParseRegistry_Valid(t *testing.T) {
	reg, err := ParseRegistry([]byte(validRegistry))
	require.NoError(t, err)
	require.Len(t, reg.Jobs, 2)
	assert.Equal(t, "1.0.0", reg.Version)

	spec, err := reg.Find("teams-with-members")
	require.NoError(t, err)

	job := spec.ToJob()
	assert.Equal(t, engine.InnerKeyTeam, job.InnerKey)
	assert.Equal(t, "members", job.CollectionKey)
	assert.True(t, job.AnnotateOrgLogin)

	policy := spec.Policy()
	assert.True(t, policy.BackgroundRefresh)
	assert.Zero(t, policy.MaxAgeSeconds, "omitted bound defers to the engine default")
}

func TestParseRegistry_PolicyFields(t *testing.T) {
	reg, err := ParseRegistry([]byte(validRegistry))
	require.NoError(t, err)

	spec, err := reg.Find("repos-with-collaborators")
	require.NoError(t, err)

	policy := spec.Policy()
	assert.Equal(t, 1800, policy.MaxAgeSeconds)
	assert.Equal(t, 600, policy.IndividualMaxAgeSeconds)
	assert.False(t, policy.BackgroundRefresh)
}

func TestParseRegistry_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "missing required field",
			data: `{"version":"1","jobs":[{"name":"x","apiName":"github","outerMethod":"a","innerMethod":"b","collectionKey":"c"}]}`,
		},
		{
			name: "invalid inner key type",
			data: `{"version":"1","jobs":[{"name":"x","apiName":"github","outerMethod":"a","innerMethod":"b","collectionKey":"c","innerKeyType":"project"}]}`,
		},
		{
			name: "unknown property",
			data: `{"version":"1","jobs":[{"name":"x","apiName":"github","outerMethod":"a","innerMethod":"b","collectionKey":"c","innerKeyType":"team","extra":true}]}`,
		},
		{
			name: "missing jobs",
			data: `{"version":"1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tt.data))
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeJobSpecInvalid, apperrors.CodeOf(err))
		})
	}
}

func TestParseRegistry_DuplicateJobName(t *testing.T) {
	data := `{"version":"1","jobs":[
	  {"name":"dup","apiName":"github","outerMethod":"a","innerMethod":"b","collectionKey":"c","innerKeyType":"team"},
	  {"name":"dup","apiName":"github","outerMethod":"a","innerMethod":"b","collectionKey":"c","innerKeyType":"team"}
	]}`

	_, err := ParseRegistry([]byte(data))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeJobSpecInvalid, apperrors.CodeOf(err))
}

func TestFind_UnknownJob(t *testing.T) {
	reg, err := ParseRegistry([]byte(validRegistry))
	require.NoError(t, err)

	_, err = reg.Find("nope")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeJobSpecNotFound, apperrors.CodeOf(err))
}
