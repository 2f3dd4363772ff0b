package analysis_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/homelabrg/codelens/internal/analysis"
	"github.com/homelabrg/codelens/internal/model"
)

var _ = Describe("Pipeline", func() {
	var (
		ctx      context.Context
		projects *mockProjects
		analyzer *mockAnalyzer
		pipeline *analysis.Pipeline
	)

	proj := &model.Project{
		ID:        "proj-1",
		Name:      "demo",
		Languages: []string{"Python"},
	}

	BeforeEach(func() {
		ctx = context.Background()
		projects = &mockProjects{}
		analyzer = &mockAnalyzer{}
		pipeline = analysis.NewPipeline(projects, analyzer)
	})

	Describe("Recognizes", func() {
		It("accepts the four analysis stages and nothing else", func() {
			for _, stage := range []string{"code", "dependencies", "business", "architecture"} {
				Expect(pipeline.Recognizes(stage)).To(BeTrue(), stage)
			}
			Expect(pipeline.Recognizes("wizardry")).To(BeFalse())
			Expect(pipeline.Recognizes("")).To(BeFalse())
		})
	})

	Describe("code stage", func() {
		It("counts only files with a detected language", func() {
			files := []model.FileInfo{
				{Path: "a.py", Language: strPtr("Python")},
				{Path: "b.md"},
			}

			result, err := pipeline.Run(ctx, "code", proj, files)

			Expect(err).NotTo(HaveOccurred())
			code := result.(*model.CodeResult)
			Expect(code.FileCount).To(Equal(1))
			Expect(code.LanguageDistribution).To(Equal(map[string]int{"Python": 1}))
			Expect(code.LanguageSummaries).To(HaveKey("Python"))
			Expect(code.FileSummaries).To(HaveKey("a.py"))
		})

		It("summarizes at most ten files per language", func() {
			files := make([]model.FileInfo, 0, 12)
			for i := 0; i < 12; i++ {
				files = append(files, model.FileInfo{
					Path:     fmt.Sprintf("mod_%02d.py", i),
					Language: strPtr("Python"),
				})
			}

			result, err := pipeline.Run(ctx, "code", proj, files)

			Expect(err).NotTo(HaveOccurred())
			code := result.(*model.CodeResult)
			Expect(code.FileCount).To(Equal(12))
			Expect(code.FileSummaries).To(HaveLen(10))
			// One language summary plus ten file summaries.
			Expect(analyzer.callCount()).To(Equal(11))
		})

		It("skips files whose content cannot be read", func() {
			projects.getFileContentFn = func(_ context.Context, _, path string) (string, error) {
				if path == "broken.py" {
					return "", errors.New("unreadable")
				}
				return "print('ok')", nil
			}
			files := []model.FileInfo{
				{Path: "good.py", Language: strPtr("Python")},
				{Path: "broken.py", Language: strPtr("Python")},
			}

			result, err := pipeline.Run(ctx, "code", proj, files)

			Expect(err).NotTo(HaveOccurred())
			code := result.(*model.CodeResult)
			Expect(code.FileSummaries).To(HaveKey("good.py"))
			Expect(code.FileSummaries).NotTo(HaveKey("broken.py"))
			Expect(code.FileCount).To(Equal(2))
		})
	})

	Describe("dependencies stage", func() {
		It("samples a deterministic prefix of twenty files", func() {
			files := make([]model.FileInfo, 0, 25)
			for i := 0; i < 25; i++ {
				files = append(files, model.FileInfo{
					Path:     fmt.Sprintf("pkg_%02d.py", i),
					Language: strPtr("Python"),
				})
			}

			result, err := pipeline.Run(ctx, "dependencies", proj, files)

			Expect(err).NotTo(HaveOccurred())
			deps := result.(*model.DependencyResult)
			Expect(deps.AnalyzedFiles).To(HaveLen(20))
			Expect(deps.AnalyzedFiles[0]).To(Equal("pkg_00.py"))
			Expect(deps.AnalyzedFiles[19]).To(Equal("pkg_19.py"))
		})

		It("feeds the first narrative into the graph prompt", func() {
			analyzer.analyzeFn = func(_ context.Context, prompt string) (string, error) {
				if strings.Contains(prompt, "dependency analyzer") {
					return "module A imports module B", nil
				}
				return "graph TD", nil
			}
			files := []model.FileInfo{{Path: "a.py", Language: strPtr("Python")}}

			result, err := pipeline.Run(ctx, "dependencies", proj, files)

			Expect(err).NotTo(HaveOccurred())
			deps := result.(*model.DependencyResult)
			Expect(deps.Dependencies).To(Equal("module A imports module B"))
			Expect(deps.DependencyGraph).To(Equal("graph TD"))
			Expect(analyzer.calls).To(HaveLen(2))
			Expect(analyzer.calls[1]).To(ContainSubstring("module A imports module B"))
		})

		It("propagates an analyzer failure", func() {
			analyzer.analyzeFn = func(_ context.Context, _ string) (string, error) {
				return "", errors.New("model unavailable")
			}
			files := []model.FileInfo{{Path: "a.py", Language: strPtr("Python")}}

			_, err := pipeline.Run(ctx, "dependencies", proj, files)
			Expect(err).To(MatchError(ContainSubstring("model unavailable")))
		})
	})

	Describe("business stage", func() {
		It("extracts entities from the functionality narrative", func() {
			analyzer.analyzeFn = func(_ context.Context, prompt string) (string, error) {
				if strings.Contains(prompt, "business analyst") {
					return "orders and invoices", nil
				}
				return "entity list", nil
			}
			files := []model.FileInfo{{Path: "orders.py", Language: strPtr("Python")}}

			result, err := pipeline.Run(ctx, "business", proj, files)

			Expect(err).NotTo(HaveOccurred())
			biz := result.(*model.BusinessResult)
			Expect(biz.BusinessFunctionality).To(Equal("orders and invoices"))
			Expect(biz.BusinessEntities).To(Equal("entity list"))
			Expect(biz.AnalyzedFiles).To(Equal([]string{"orders.py"}))
		})
	})

	Describe("architecture stage", func() {
		It("includes project metadata in the analysis prompt", func() {
			files := []model.FileInfo{{Path: "app.py", Language: strPtr("Python")}}

			result, err := pipeline.Run(ctx, "architecture", proj, files)

			Expect(err).NotTo(HaveOccurred())
			arch := result.(*model.ArchitectureResult)
			Expect(arch.AnalyzedFiles).To(Equal([]string{"app.py"}))
			Expect(analyzer.calls[0]).To(ContainSubstring(`"demo"`))
			Expect(analyzer.calls[0]).To(ContainSubstring("Python"))
		})
	})
})
