package ir

import "time"

const Version = "1.0"

type Run struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	Source        string    `json:"source,omitempty"`
	SchemaVersion string    `json:"schema_version,omitempty"`

	Context    Context      `json:"context"`
	Files      []FileResult `json:"files"`
	Violations []Violation  `json:"violations,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`
}

type Context struct {
	SeverityThreshold string   `json:"severity_threshold,omitempty"`
	DisabledRules     []string `json:"disabled_rules,omitempty"`
	RulePacks         []string `json:"rule_packs,omitempty"`
	Waived            int      `json:"waived,omitempty"`
}

// FileResult summarises one scanned file.
type FileResult struct {
	Path         string `json:"path"`
	Lines        int    `json:"lines"`
	CodeLines    int    `json:"code_lines"`
	CommentLines int    `json:"comment_lines"`
	Violations   int    `json:"violations"`
}

type Violation struct {
	ID       string `json:"id"`
	RuleID   string `json:"rule_id"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
	Severity string `json:"severity"` // LOW|MEDIUM|HIGH
	Message  string `json:"message"`
	Evidence string `json:"evidence,omitempty"`
}

// Counts returns the number of violations per rule ID.
func (r *Run) Counts() map[string]int {
	out := make(map[string]int)
	for _, v := range r.Violations {
		out[v.RuleID]++
	}
	return out
}
