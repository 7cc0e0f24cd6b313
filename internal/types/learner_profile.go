// Package types provides type definitions for the data passed between roadmap pipeline stages.
//
//nolint:revive // types is a standard Go package name pattern
package types

// LearnerProfile is the structured view of a learner extracted from a free-text goal.
type LearnerProfile struct {
	Background      string   `json:"background"`
	CurrentSkills   []string `json:"current_skills"`
	TimeConstraints string   `json:"time_constraints"`
	CareerGoals     []string `json:"career_goals"`
	Conflicts       []string `json:"conflicts"`
}

// SearchQuerySet holds the web-search queries derived from a profile (3-6 entries).
type SearchQuerySet struct {
	Queries []string `json:"queries"`
}

// AdvisementCorpus is the cleaned list of short advisement units.
type AdvisementCorpus struct {
	Units []string `json:"advisement_corpus"`
}
