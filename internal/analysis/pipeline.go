package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/homelabrg/codelens/common/logger"
	"github.com/homelabrg/codelens/internal/llm"
	"github.com/homelabrg/codelens/internal/model"
)

// Stage names recognized by the pipeline, in their canonical order.
const (
	StageCode         = "code"
	StageDependencies = "dependencies"
	StageBusiness     = "business"
	StageArchitecture = "architecture"
)

const (
	filesPerLanguage = 10
	multiFileSample  = 20
)

// Pipeline executes one analysis stage at a time over a project's files.
// Every stage filters to files with a detected language, samples a
// deterministic prefix, reads content through the project store and invokes
// the analyzer strictly sequentially.
type Pipeline struct {
	projects Projects
	analyzer llm.Analyzer
}

func NewPipeline(projects Projects, analyzer llm.Analyzer) *Pipeline {
	return &Pipeline{projects: projects, analyzer: analyzer}
}

// Recognizes reports whether stage is a known analysis stage.
func (p *Pipeline) Recognizes(stage string) bool {
	switch stage {
	case StageCode, StageDependencies, StageBusiness, StageArchitecture:
		return true
	}
	return false
}

// Run executes one stage and returns its result payload. Errors are
// stage-local; the caller decides how to record them.
func (p *Pipeline) Run(ctx context.Context, stage string, proj *model.Project, files []model.FileInfo) (any, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Stage: logger.Ptr(stage)})

	sc := logger.StartSpan(ctx, "analysis.stage."+stage)
	defer sc.End()
	ctx = sc.Context()

	switch stage {
	case StageCode:
		return p.analyzeCode(ctx, proj.ID, files)
	case StageDependencies:
		return p.analyzeDependencies(ctx, proj.ID, files)
	case StageBusiness:
		return p.analyzeBusiness(ctx, proj.ID, files)
	case StageArchitecture:
		return p.analyzeArchitecture(ctx, proj, files)
	}
	return nil, fmt.Errorf("unknown analysis stage %q", stage)
}

func (p *Pipeline) analyzeCode(ctx context.Context, projectID string, files []model.FileInfo) (*model.CodeResult, error) {
	slog.InfoContext(ctx, "starting code analysis", "project_id", projectID)

	codeFiles := withLanguage(files)

	// Group by language, preserving first-seen order so results are stable.
	byLanguage := map[string][]model.FileInfo{}
	var languages []string
	for _, f := range codeFiles {
		lang := *f.Language
		if _, seen := byLanguage[lang]; !seen {
			languages = append(languages, lang)
		}
		byLanguage[lang] = append(byLanguage[lang], f)
	}

	languageSummaries := map[string]string{}
	fileSummaries := map[string]string{}
	distribution := map[string]int{}

	for _, lang := range languages {
		group := byLanguage[lang]
		distribution[lang] = len(group)

		summary, err := p.analyzer.Analyze(ctx, languageSummaryPrompt(lang, group))
		if err != nil {
			return nil, fmt.Errorf("summarizing %s files: %w", lang, err)
		}
		languageSummaries[lang] = summary

		sample := group
		if len(sample) > filesPerLanguage {
			sample = sample[:filesPerLanguage]
		}
		for _, f := range sample {
			content, err := p.projects.GetFileContent(ctx, projectID, f.Path)
			if err != nil {
				slog.WarnContext(ctx, "skipping unreadable file",
					"project_id", projectID, "path", f.Path, "error", err)
				continue
			}
			summary, err := p.analyzer.Analyze(ctx, fileSummaryPrompt(f.Path, lang, content))
			if err != nil {
				return nil, fmt.Errorf("summarizing %s: %w", f.Path, err)
			}
			fileSummaries[f.Path] = summary
		}
	}

	return &model.CodeResult{
		LanguageSummaries:    languageSummaries,
		FileSummaries:        fileSummaries,
		FileCount:            len(codeFiles),
		LanguageDistribution: distribution,
	}, nil
}

func (p *Pipeline) analyzeDependencies(ctx context.Context, projectID string, files []model.FileInfo) (*model.DependencyResult, error) {
	slog.InfoContext(ctx, "starting dependency analysis", "project_id", projectID)

	samples := p.collectSamples(ctx, projectID, files)

	dependencies, err := p.analyzer.Analyze(ctx, dependencyAnalysisPrompt(samples))
	if err != nil {
		return nil, fmt.Errorf("analyzing dependencies: %w", err)
	}
	graph, err := p.analyzer.Analyze(ctx, dependencyGraphPrompt(dependencies))
	if err != nil {
		return nil, fmt.Errorf("generating dependency graph: %w", err)
	}

	return &model.DependencyResult{
		Dependencies:    dependencies,
		DependencyGraph: graph,
		AnalyzedFiles:   samplePaths(samples),
	}, nil
}

func (p *Pipeline) analyzeBusiness(ctx context.Context, projectID string, files []model.FileInfo) (*model.BusinessResult, error) {
	slog.InfoContext(ctx, "starting business analysis", "project_id", projectID)

	samples := p.collectSamples(ctx, projectID, files)

	functionality, err := p.analyzer.Analyze(ctx, businessAnalysisPrompt(samples))
	if err != nil {
		return nil, fmt.Errorf("analyzing business functionality: %w", err)
	}
	entities, err := p.analyzer.Analyze(ctx, businessEntityPrompt(functionality))
	if err != nil {
		return nil, fmt.Errorf("extracting business entities: %w", err)
	}

	return &model.BusinessResult{
		BusinessFunctionality: functionality,
		BusinessEntities:      entities,
		AnalyzedFiles:         samplePaths(samples),
	}, nil
}

func (p *Pipeline) analyzeArchitecture(ctx context.Context, proj *model.Project, files []model.FileInfo) (*model.ArchitectureResult, error) {
	slog.InfoContext(ctx, "starting architecture analysis", "project_id", proj.ID)

	samples := p.collectSamples(ctx, proj.ID, files)

	analysis, err := p.analyzer.Analyze(ctx, architectureAnalysisPrompt(proj.Name, proj.Languages, samples))
	if err != nil {
		return nil, fmt.Errorf("analyzing architecture: %w", err)
	}
	diagram, err := p.analyzer.Analyze(ctx, architectureDiagramPrompt(analysis))
	if err != nil {
		return nil, fmt.Errorf("generating architecture diagram: %w", err)
	}

	return &model.ArchitectureResult{
		ArchitectureAnalysis: analysis,
		ArchitectureDiagram:  diagram,
		AnalyzedFiles:        samplePaths(samples),
	}, nil
}

// collectSamples reads content for the first files with a detected language,
// up to the multi-file sample bound. Unreadable files are skipped, not
// fatal.
func (p *Pipeline) collectSamples(ctx context.Context, projectID string, files []model.FileInfo) []fileSample {
	codeFiles := withLanguage(files)
	if len(codeFiles) > multiFileSample {
		codeFiles = codeFiles[:multiFileSample]
	}

	samples := []fileSample{}
	for _, f := range codeFiles {
		content, err := p.projects.GetFileContent(ctx, projectID, f.Path)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable file",
				"project_id", projectID, "path", f.Path, "error", err)
			continue
		}
		samples = append(samples, fileSample{Path: f.Path, Content: content})
	}
	return samples
}

func withLanguage(files []model.FileInfo) []model.FileInfo {
	out := []model.FileInfo{}
	for _, f := range files {
		if f.Language != nil {
			out = append(out, f)
		}
	}
	return out
}

func samplePaths(samples []fileSample) []string {
	paths := make([]string, 0, len(samples))
	for _, s := range samples {
		paths = append(paths, s.Path)
	}
	return paths
}
