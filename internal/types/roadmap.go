package types

// TimelineStyleHorizontalPath is the presentation tag attached to every roadmap.
const TimelineStyleHorizontalPath = "horizontal_path"

// RoadmapStage is one entry of the learning plan. Order encodes pedagogical progression.
type RoadmapStage struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Focus    []string `json:"focus"`
	Why      string   `json:"why"`
	Skills   []string `json:"skills"`
	Projects []string `json:"projects"`
}

// PostReference points at a stored post, with the reason it fits a stage.
type PostReference struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// CourseReference is synthesized directly from a course search hit.
type CourseReference struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// EnrichedStage carries the resource references for one roadmap stage.
type EnrichedStage struct {
	ID      string            `json:"id"`
	Posts   []PostReference   `json:"posts"`
	Courses []CourseReference `json:"courses"`
}

// PostRecord is a post reference hydrated from the relational store.
type PostRecord struct {
	ID      string   `json:"id"`
	URL     string   `json:"url"`
	Author  string   `json:"author"`
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
	Reason  string   `json:"reason"`
}

// CourseRecord is the presentation form of a course reference.
type CourseRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// UINode is the final presentation unit for one roadmap stage.
type UINode struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Skills      []string       `json:"skills"`
	Projects    []string       `json:"projects"`
	Posts       []PostRecord   `json:"posts"`
	Courses     []CourseRecord `json:"courses"`
}

// Roadmap is the UI-ready learning path returned to callers.
type Roadmap struct {
	Goal          string   `json:"goal"`
	TimelineStyle string   `json:"timeline_style"`
	Nodes         []UINode `json:"nodes"`
}
