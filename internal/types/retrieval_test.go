package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentMatch_Metadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		postID   string
		url      string
	}{
		{"string id", map[string]any{"post_id": "p1", "url": "https://fb.com/p1"}, "p1", "https://fb.com/p1"},
		{"numeric id", map[string]any{"post_id": json.Number("12345")}, "12345", ""},
		{"float id is rejected", map[string]any{"post_id": float64(12345)}, "", ""},
		{"missing", map[string]any{}, "", ""},
		{"nil metadata", nil, "", ""},
		{"wrong type", map[string]any{"post_id": []any{"x"}}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DocumentMatch{Metadata: tt.metadata}
			assert.Equal(t, tt.postID, m.PostID())
			assert.Equal(t, tt.url, m.URL())
		})
	}
}

func TestDocumentMatch_LargeNumericPostID(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"post_id": 1234567890123456789, "url": "https://fb.com/x"}`))
	dec.UseNumber()
	var md map[string]any
	require.NoError(t, dec.Decode(&md))

	m := DocumentMatch{Metadata: md}
	assert.Equal(t, "1234567890123456789", m.PostID())
	assert.Equal(t, "https://fb.com/x", m.URL())
}

func TestRoadmapJSONFieldNames(t *testing.T) {
	roadmap := Roadmap{
		Goal:          "backend job",
		TimelineStyle: TimelineStyleHorizontalPath,
		Nodes: []UINode{{
			ID:      "stage_1",
			Posts:   []PostRecord{{ID: "p1", Reason: "fits"}},
			Courses: []CourseRecord{{ID: "https://udemy.com/x", URL: "https://udemy.com/x"}},
		}},
	}

	data, err := json.Marshal(roadmap)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "horizontal_path", raw["timeline_style"])
	nodes := raw["nodes"].([]any)
	require.Len(t, nodes, 1)
	node := nodes[0].(map[string]any)
	assert.Contains(t, node, "description")
	assert.Contains(t, node, "posts")
	assert.Contains(t, node, "courses")
}

func TestAdvisementCorpusJSONName(t *testing.T) {
	var corpus AdvisementCorpus
	require.NoError(t, json.Unmarshal([]byte(`{"advisement_corpus": ["Learn SQL early."]}`), &corpus))
	assert.Equal(t, []string{"Learn SQL early."}, corpus.Units)
}
