package model

import (
	"encoding/json"
	"time"
)

// AnalysisStatus is the lifecycle state of an analysis job.
type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisRunning   AnalysisStatus = "running"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

var statusRank = map[AnalysisStatus]int{
	AnalysisPending:   0,
	AnalysisRunning:   1,
	AnalysisCompleted: 2,
	AnalysisFailed:    2,
}

// CanTransitionTo reports whether moving from s to next is a forward
// progression. Terminal states never transition.
func (s AnalysisStatus) CanTransitionTo(next AnalysisStatus) bool {
	if s.Terminal() {
		return false
	}
	return statusRank[next] > statusRank[s]
}

func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisCompleted || s == AnalysisFailed
}

// AnalysisJob is one requested run of one or more analysis stages over a
// project. Stage payloads are stored as raw JSON because each stage has its
// own result shape.
type AnalysisJob struct {
	ID            string                     `json:"id"`
	ProjectID     string                     `json:"project_id"`
	AnalysisTypes []string                   `json:"analysis_types"`
	Status        AnalysisStatus             `json:"status"`
	CurrentStage  string                     `json:"current_stage,omitempty"`
	Progress      int                        `json:"progress"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
	CompletedAt   *time.Time                 `json:"completed_at,omitempty"`
	Results       map[string]json.RawMessage `json:"results"`
	Error         *string                    `json:"error,omitempty"`

	// Project metadata snapshot taken at creation time. Not live-linked to
	// the project record.
	ProjectName string   `json:"project_name"`
	FileCount   int      `json:"file_count"`
	Languages   []string `json:"languages"`
}

// AnalysisUpdate is a typed partial update for an analysis job record.
// Nil fields are left untouched; every applied update bumps UpdatedAt.
type AnalysisUpdate struct {
	Status       *AnalysisStatus
	CurrentStage *string
	Progress     *int
	Results      map[string]json.RawMessage
	Error        *string
	CompletedAt  *time.Time
}

// Apply merges the update into job field by field.
func (u AnalysisUpdate) Apply(job *AnalysisJob, now time.Time) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.CurrentStage != nil {
		job.CurrentStage = *u.CurrentStage
	}
	if u.Progress != nil {
		job.Progress = *u.Progress
	}
	if u.Results != nil {
		job.Results = u.Results
	}
	if u.Error != nil {
		job.Error = u.Error
	}
	if u.CompletedAt != nil {
		job.CompletedAt = u.CompletedAt
	}
	job.UpdatedAt = now
}

// CodeResult is the payload of the "code" stage.
type CodeResult struct {
	LanguageSummaries    map[string]string `json:"language_summaries"`
	FileSummaries        map[string]string `json:"file_summaries"`
	FileCount            int               `json:"file_count"`
	LanguageDistribution map[string]int    `json:"language_distribution"`
}

// DependencyResult is the payload of the "dependencies" stage.
type DependencyResult struct {
	Dependencies    string   `json:"dependencies"`
	DependencyGraph string   `json:"dependency_graph"`
	AnalyzedFiles   []string `json:"analyzed_files"`
}

// BusinessResult is the payload of the "business" stage.
type BusinessResult struct {
	BusinessFunctionality string   `json:"business_functionality"`
	BusinessEntities      string   `json:"business_entities"`
	AnalyzedFiles         []string `json:"analyzed_files"`
}

// ArchitectureResult is the payload of the "architecture" stage.
type ArchitectureResult struct {
	ArchitectureAnalysis string   `json:"architecture_analysis"`
	ArchitectureDiagram  string   `json:"architecture_diagram"`
	AnalyzedFiles        []string `json:"analyzed_files"`
}

// StageError is recorded in place of a stage result when the stage fails.
// The job itself still completes.
type StageError struct {
	Error string `json:"error"`
}
