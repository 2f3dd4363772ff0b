package dto

type AnalyzeRequest struct {
	AnalysisTypes  []string `json:"analysis_types" binding:"required,min=1"`
	FromRepository bool     `json:"from_repository"`
}
