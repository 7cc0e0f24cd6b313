package schemas

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllEmbeddedSchemas_ValidJSON(t *testing.T) {
	names := List()
	require.ElementsMatch(t, []string{LearnerProfile, SearchQueries, AdvisementCorpus, RoadmapStages, PostMatches}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			raw, err := Get(name)
			require.NoError(t, err)

			var v any
			assert.NoError(t, json.Unmarshal([]byte(raw), &v))

			_, err = load(name)
			assert.NoError(t, err, "schema should compile")
		})
	}
}

func TestValidate_LearnerProfile(t *testing.T) {
	valid := `{"profile": {"background": "student", "current_skills": [], "time_constraints": "6 months", "career_goals": ["backend engineer"], "conflicts": []}}`
	assert.NoError(t, Validate(LearnerProfile, valid))

	missing := `{"profile": {"background": "student"}}`
	err := Validate(LearnerProfile, missing)
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, LearnerProfile, validationErr.Schema)
	assert.NotEmpty(t, validationErr.Errors)
}

func TestValidate_SearchQueries(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"three queries", `{"queries": ["a", "b", "c"]}`, false},
		{"empty list", `{"queries": []}`, true},
		{"wrong type", `{"queries": "a"}`, true},
		{"missing", `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(SearchQueries, tt.doc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_RoadmapStages(t *testing.T) {
	valid := `{"stages": [{"id": "stage_1", "title": "Foundations", "focus": ["HTTP"], "why": "basics", "skills": ["Go"], "projects": ["CLI"]}]}`
	assert.NoError(t, Validate(RoadmapStages, valid))

	noTitle := `{"stages": [{"focus": [], "why": "", "skills": [], "projects": []}]}`
	assert.Error(t, Validate(RoadmapStages, noTitle))
}

func TestValidate_PostMatches(t *testing.T) {
	assert.NoError(t, Validate(PostMatches, `{"matches": []}`))
	assert.NoError(t, Validate(PostMatches, `{"matches": [{"id": "p1", "reason": "covers SQL"}]}`))
	assert.Error(t, Validate(PostMatches, `{"matches": [{"reason": "no id"}]}`))
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("does_not_exist", `{}`)
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestValidate_MalformedDocument(t *testing.T) {
	assert.Error(t, Validate(SearchQueries, `{not json`))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name": "x"}`))

	err := ValidateJSONString(schema, `{"name": 1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
