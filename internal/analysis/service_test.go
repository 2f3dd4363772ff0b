package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/homelabrg/codelens/internal/analysis"
	"github.com/homelabrg/codelens/internal/model"
	"github.com/homelabrg/codelens/internal/store"
)

func strPtr(s string) *string { return &s }

var _ = Describe("Service", func() {
	var (
		ctx      context.Context
		projects *mockProjects
		repos    *mockRepositories
		analyzer *mockAnalyzer
		results  *memoryArchive
	)

	readyProject := &model.Project{
		ID:        "proj-1",
		Name:      "demo",
		Status:    model.ProjectReady,
		FileCount: 2,
		Languages: []string{"Go", "Python"},
	}
	projectFiles := []model.FileInfo{
		{Path: "main.go", Size: 100, Language: strPtr("Go")},
		{Path: "util.py", Size: 50, Language: strPtr("Python")},
		{Path: "notes.txt", Size: 10},
	}

	BeforeEach(func() {
		ctx = context.Background()
		projects = &mockProjects{
			getProjectFn: func(_ context.Context, projectID string) (*model.Project, error) {
				if projectID == readyProject.ID {
					return readyProject, nil
				}
				return nil, store.ErrNotFound
			},
			listFilesFn: func(_ context.Context, _ string) ([]model.FileInfo, error) {
				return projectFiles, nil
			},
		}
		repos = &mockRepositories{}
		analyzer = &mockAnalyzer{}
		results = newMemoryArchive()
	})

	newService := func(jobs store.AnalysisStore) *analysis.Service {
		pipeline := analysis.NewPipeline(projects, analyzer)
		return analysis.NewService(jobs, results, projects, repos, pipeline)
	}

	Describe("CreateJob", func() {
		It("persists a pending job with a project metadata snapshot", func() {
			var created []*model.AnalysisJob
			jobs := &mockAnalysisStore{
				createFn: func(_ context.Context, job *model.AnalysisJob) error {
					created = append(created, job)
					return nil
				},
			}

			job, err := newService(jobs).CreateJob(ctx, "proj-1", []string{"code"}, false)

			Expect(err).NotTo(HaveOccurred())
			Expect(job.ID).NotTo(BeEmpty())
			Expect(job.Status).To(Equal(model.AnalysisPending))
			Expect(job.Progress).To(Equal(0))
			Expect(job.ProjectName).To(Equal("demo"))
			Expect(job.FileCount).To(Equal(2))
			Expect(job.Languages).To(Equal([]string{"Go", "Python"}))
			Expect(created).To(HaveLen(1))
		})

		Context("when the project does not exist", func() {
			It("fails and persists only a terminal failed record", func() {
				var created []*model.AnalysisJob
				jobs := &mockAnalysisStore{
					createFn: func(_ context.Context, job *model.AnalysisJob) error {
						created = append(created, job)
						return nil
					},
				}

				_, err := newService(jobs).CreateJob(ctx, "missing", []string{"code"}, false)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not found"))
				Expect(created).To(HaveLen(1))
				Expect(created[0].Status).To(Equal(model.AnalysisFailed))
				Expect(created[0].Error).NotTo(BeNil())
				Expect(created[0].CompletedAt).NotTo(BeNil())
			})
		})

		Context("when importing from a repository", func() {
			It("materializes the repository as a new project first", func() {
				repos.getRepositoryFn = func(_ context.Context, repositoryID string) (*model.Repository, error) {
					return &model.Repository{
						ID: repositoryID, Owner: "acme", Repo: "rocket",
						Status: model.RepositoryReady,
					}, nil
				}
				var importedRepo string
				projects.importFn = func(_ context.Context, repositoryID, owner, repo string) (string, error) {
					importedRepo = repositoryID
					return "proj-1", nil
				}
				jobs := &mockAnalysisStore{}

				job, err := newService(jobs).CreateJob(ctx, "repo-9", []string{"code"}, true)

				Expect(err).NotTo(HaveOccurred())
				Expect(importedRepo).To(Equal("repo-9"))
				Expect(job.ProjectID).To(Equal("proj-1"))
			})

			It("records a failed job and propagates when the repository is not ready", func() {
				repos.getRepositoryFn = func(_ context.Context, repositoryID string) (*model.Repository, error) {
					return &model.Repository{ID: repositoryID, Status: model.RepositoryCloning}, nil
				}
				var created []*model.AnalysisJob
				jobs := &mockAnalysisStore{
					createFn: func(_ context.Context, job *model.AnalysisJob) error {
						created = append(created, job)
						return nil
					},
				}

				_, err := newService(jobs).CreateJob(ctx, "repo-9", []string{"code"}, true)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not ready"))
				Expect(created).To(HaveLen(1))
				Expect(created[0].Status).To(Equal(model.AnalysisFailed))
			})
		})
	})

	Describe("RunJob", func() {
		var jobs *recordingStore

		createAndRun := func(svc *analysis.Service, types []string) *model.AnalysisJob {
			job, err := svc.CreateJob(ctx, "proj-1", types, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.RunJob(ctx, job.ID, job.ProjectID, job.AnalysisTypes)).To(Succeed())
			final, err := jobs.GetByID(ctx, job.ID)
			Expect(err).NotTo(HaveOccurred())
			return final
		}

		BeforeEach(func() {
			jobs = newRecordingStore()
		})

		It("runs every stage in order and completes with full progress", func() {
			final := createAndRun(newService(jobs), []string{"code", "dependencies"})

			Expect(final.Status).To(Equal(model.AnalysisCompleted))
			Expect(final.Progress).To(Equal(100))
			Expect(final.CompletedAt).NotTo(BeNil())
			Expect(final.Results).To(HaveKey("code"))
			Expect(final.Results).To(HaveKey("dependencies"))

			Expect(jobs.stages).To(Equal([]string{"code", "dependencies", ""}))
			for i := 1; i < len(jobs.progress); i++ {
				Expect(jobs.progress[i]).To(BeNumerically(">=", jobs.progress[i-1]))
			}
			Expect(jobs.progress[len(jobs.progress)-1]).To(Equal(100))
		})

		It("writes each stage result through to the archive", func() {
			final := createAndRun(newService(jobs), []string{"code"})

			archived, err := results.Get(ctx, final.ID, "code")
			Expect(err).NotTo(HaveOccurred())
			Expect(json.RawMessage(archived)).To(MatchJSON(final.Results["code"]))
		})

		It("skips unrecognized stages but still counts them toward progress", func() {
			final := createAndRun(newService(jobs), []string{"code", "wizardry"})

			Expect(final.Status).To(Equal(model.AnalysisCompleted))
			Expect(final.Results).To(HaveKey("code"))
			Expect(final.Results).NotTo(HaveKey("wizardry"))
			// Progress before the skipped stage reflects one of two slots done.
			Expect(jobs.progress).To(ContainElement(50))
		})

		It("isolates a stage failure without failing the job", func() {
			analyzer.analyzeFn = func(_ context.Context, prompt string) (string, error) {
				if strings.Contains(prompt, "dependency analyzer") {
					return "", errors.New("model unavailable")
				}
				return "analysis text", nil
			}

			final := createAndRun(newService(jobs), []string{"code", "dependencies"})

			Expect(final.Status).To(Equal(model.AnalysisCompleted))

			var code model.CodeResult
			Expect(json.Unmarshal(final.Results["code"], &code)).To(Succeed())
			Expect(code.FileCount).To(Equal(2))

			var stageErr model.StageError
			Expect(json.Unmarshal(final.Results["dependencies"], &stageErr)).To(Succeed())
			Expect(stageErr.Error).To(ContainSubstring("model unavailable"))
		})

		It("fails the job before any stage when the project has vanished", func() {
			svc := newService(jobs)
			job, err := svc.CreateJob(ctx, "proj-1", []string{"code"}, false)
			Expect(err).NotTo(HaveOccurred())

			projects.getProjectFn = func(_ context.Context, _ string) (*model.Project, error) {
				return nil, store.ErrNotFound
			}

			Expect(svc.RunJob(ctx, job.ID, job.ProjectID, job.AnalysisTypes)).NotTo(Succeed())

			final, err := jobs.GetByID(ctx, job.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(final.Status).To(Equal(model.AnalysisFailed))
			Expect(final.Error).NotTo(BeNil())
			Expect(*final.Error).To(ContainSubstring("not found"))
			Expect(final.Results).To(BeEmpty())
			Expect(analyzer.callCount()).To(BeZero())
		})

		It("fails the job when the project has no files", func() {
			svc := newService(jobs)
			job, err := svc.CreateJob(ctx, "proj-1", []string{"code"}, false)
			Expect(err).NotTo(HaveOccurred())

			projects.listFilesFn = func(_ context.Context, _ string) ([]model.FileInfo, error) {
				return []model.FileInfo{}, nil
			}

			Expect(svc.RunJob(ctx, job.ID, job.ProjectID, job.AnalysisTypes)).NotTo(Succeed())

			final, err := jobs.GetByID(ctx, job.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(final.Status).To(Equal(model.AnalysisFailed))
			Expect(*final.Error).To(ContainSubstring("no files"))
		})
	})

	Describe("GetLatestCompleted", func() {
		base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

		job := func(id string, age time.Duration, status model.AnalysisStatus, types []string, resultStages ...string) model.AnalysisJob {
			res := map[string]json.RawMessage{}
			for _, stage := range resultStages {
				res[stage] = json.RawMessage(`{}`)
			}
			return model.AnalysisJob{
				ID: id, ProjectID: "proj-1", AnalysisTypes: types,
				Status: status, CreatedAt: base.Add(age), Results: res,
			}
		}

		It("returns the newest completed job", func() {
			jobs := &mockAnalysisStore{
				listByProjectFn: func(_ context.Context, _ string) ([]model.AnalysisJob, error) {
					return []model.AnalysisJob{
						job("old", 0, model.AnalysisCompleted, []string{"code"}, "code"),
						job("running", 2*time.Hour, model.AnalysisRunning, []string{"code"}),
						job("new", time.Hour, model.AnalysisCompleted, []string{"code"}, "code"),
					}, nil
				},
			}

			latest, err := newService(jobs).GetLatestCompleted(ctx, "proj-1", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.ID).To(Equal("new"))
		})

		It("requires the stage in both analysis_types and results", func() {
			jobs := &mockAnalysisStore{
				listByProjectFn: func(_ context.Context, _ string) ([]model.AnalysisJob, error) {
					return []model.AnalysisJob{
						job("qualifying", 0, model.AnalysisCompleted, []string{"business"}, "business"),
						// Requested business but holds no result for it.
						job("skipped", time.Hour, model.AnalysisCompleted, []string{"business"}, "code"),
					}, nil
				},
			}

			latest, err := newService(jobs).GetLatestCompleted(ctx, "proj-1", "business")
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.ID).To(Equal("qualifying"))
		})

		It("returns not found when nothing qualifies", func() {
			jobs := &mockAnalysisStore{
				listByProjectFn: func(_ context.Context, _ string) ([]model.AnalysisJob, error) {
					return []model.AnalysisJob{
						job("failed", 0, model.AnalysisFailed, []string{"code"}),
					}, nil
				},
			}

			_, err := newService(jobs).GetLatestCompleted(ctx, "proj-1", "")
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("GetResults", func() {
		var jobs *mockAnalysisStore

		BeforeEach(func() {
			jobs = &mockAnalysisStore{
				getByIDFn: func(_ context.Context, id string) (*model.AnalysisJob, error) {
					return &model.AnalysisJob{
						ID: id, ProjectID: "proj-1",
						Status: model.AnalysisCompleted,
						Results: map[string]json.RawMessage{
							"code": json.RawMessage(`{"from":"record"}`),
						},
					}, nil
				},
			}
		})

		It("merges record and archive results with the record winning", func() {
			Expect(results.Put(ctx, "job-1", "code", []byte(`{"from":"archive"}`))).To(Succeed())
			Expect(results.Put(ctx, "job-1", "business", []byte(`{"entities":"ok"}`))).To(Succeed())

			merged, err := newService(jobs).GetResults(ctx, "job-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(merged).To(HaveLen(2))
			Expect(merged["code"]).To(MatchJSON(`{"from":"record"}`))
			Expect(merged["business"]).To(MatchJSON(`{"entities":"ok"}`))
		})

		It("falls back to the archive for a stage missing from the record", func() {
			Expect(results.Put(ctx, "job-1", "dependencies", []byte(`{"graph":"ok"}`))).To(Succeed())

			payload, err := newService(jobs).GetStageResult(ctx, "job-1", "dependencies")

			Expect(err).NotTo(HaveOccurred())
			Expect(payload).To(MatchJSON(`{"graph":"ok"}`))
		})

		It("prefers the record for a filtered stage", func() {
			Expect(results.Put(ctx, "job-1", "code", []byte(`{"from":"archive"}`))).To(Succeed())

			payload, err := newService(jobs).GetStageResult(ctx, "job-1", "code")

			Expect(err).NotTo(HaveOccurred())
			Expect(payload).To(MatchJSON(`{"from":"record"}`))
		})

		It("returns not found when neither source has the stage", func() {
			_, err := newService(jobs).GetStageResult(ctx, "job-1", "architecture")
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})
})
