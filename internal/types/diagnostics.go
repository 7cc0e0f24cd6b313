package types

// Diagnostic records a degraded-but-continuing failure inside a pipeline run.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Scope   string `json:"scope,omitempty"` // e.g. a query string or roadmap stage id
	Message string `json:"message"`
}

// Pipeline stage names used in diagnostics and errors.
const (
	StageProfile    = "profile"
	StageQueries    = "queries"
	StageCorpus     = "corpus"
	StageRoadmap    = "roadmap"
	StageEnrich     = "enrich"
	StageProjection = "projection"
)
