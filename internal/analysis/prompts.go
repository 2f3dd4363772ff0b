package analysis

import (
	"fmt"
	"strings"

	"github.com/homelabrg/codelens/internal/model"
)

// Prompt construction for each pipeline stage. File content is always
// bounded before it reaches a prompt: per-file summaries take a character
// prefix, multi-file stages take a line prefix per file.

const (
	fileContentCap   = 7000
	fileExcerptLines = 100
	fence            = "```"
)

type fileSample struct {
	Path    string
	Content string
}

func languageSummaryPrompt(language string, files []model.FileInfo) string {
	var list strings.Builder
	for i, f := range files {
		if i == 20 {
			break
		}
		fmt.Fprintf(&list, "- %s\n", f.Path)
	}

	return fmt.Sprintf(`You are an expert code analyzer specialized in %s.

I have a codebase with %d files written in %s. Here's a sample of the file paths:

%s
Please provide a summary of what you can infer about this codebase based on the file structure and naming conventions.
Your analysis should cover:

1. The likely type of application or project (web app, library, command-line tool, etc.)
2. Potential architecture patterns that might be used
3. Possible frameworks or major dependencies based on directory structure
4. Any other insights you can provide about the codebase organization

Respond with a concise, professional summary. Do not make excessive assumptions beyond what the file structure suggests.`,
		language, len(files), language, list.String())
}

func fileSummaryPrompt(path, language, content string) string {
	return fmt.Sprintf(`You are an expert code analyzer specialized in %s.

Please analyze the following code file:

File: %s
Language: %s

%s%s
%s
%s

Provide a concise summary of this file that includes:

1. The main purpose of this file
2. Key functions, classes, or components defined
3. Dependencies and imports
4. Notable patterns or techniques used
5. Any potential issues or code quality concerns

Keep your response brief but informative, focusing on the most important aspects of the code.`,
		language, path, language, fence, language, truncate(content, fileContentCap), fence)
}

func dependencyAnalysisPrompt(samples []fileSample) string {
	return fmt.Sprintf(`You are an expert dependency analyzer for software projects.

I have a codebase with the following files:

%s
I'll provide samples of each file. Please analyze these files and identify:

1. Dependencies between files (imports, references)
2. Hierarchical relationships between components
3. Key modules and their responsibilities
4. Potential dependency issues (circular dependencies, tight coupling)

Here are the file samples:

%s
Provide a comprehensive analysis of the dependencies in this codebase based on the available information.`,
		sampleList(samples), sampleExcerpts(samples))
}

func dependencyGraphPrompt(dependencyAnalysis string) string {
	return fmt.Sprintf(`You are an expert at creating visualizations of code dependencies.

Based on the following dependency analysis, create a Mermaid graph representation of the dependencies between components in the codebase.

Dependency Analysis:
%s

Please generate a mermaid graph definition using the following syntax:
%smermaid
graph TD
  A[Component A] --> B[Component B]
  B --> C[Component C]
%s

Focus on the most important components and relationships. Use clear labels and organize the graph for readability.`,
		dependencyAnalysis, fence, fence)
}

func businessAnalysisPrompt(samples []fileSample) string {
	return fmt.Sprintf(`You are an expert business analyst who understands software code.

I have a codebase with the following files:

%s
I'll provide samples of each file. Please analyze these files and identify:

1. The core business domain and functionality this code implements
2. Business processes and workflows represented in the code
3. Business rules and constraints embedded in the code
4. Business entities and their relationships
5. Business terminology used in the code

Here are the file samples:

%s
Provide a comprehensive analysis of the business functionality represented in this codebase, using business-oriented language rather than technical jargon where possible.`,
		sampleList(samples), sampleExcerpts(samples))
}

func businessEntityPrompt(businessAnalysis string) string {
	return fmt.Sprintf(`You are an expert at extracting business domain models from code.

Based on the following business analysis, identify and describe the key business entities in this codebase and their relationships.

Business Analysis:
%s

For each business entity:
1. Provide the entity name
2. Describe its purpose and meaning in the business domain
3. List its key attributes
4. Describe its relationships with other entities

Then, create a JSON representation of these entities and their relationships that could be used to generate an entity relationship diagram.`,
		businessAnalysis)
}

func architectureAnalysisPrompt(projectName string, languages []string, samples []fileSample) string {
	return fmt.Sprintf(`You are an expert software architect specializing in %s.

I have a codebase named %q with the following files:

%s
I'll provide samples of each file. Please analyze these files and identify:

1. The overall architectural pattern(s) used in this codebase
2. Major components and their responsibilities
3. Component interactions and data flow
4. Technologies, frameworks, and libraries used
5. Architectural strengths and potential improvements

Here are the file samples:

%s
Provide a comprehensive architectural analysis of this codebase. Use standard architectural terminology and concepts.`,
		strings.Join(languages, ", "), projectName, sampleList(samples), sampleExcerpts(samples))
}

func architectureDiagramPrompt(architectureAnalysis string) string {
	return fmt.Sprintf(`You are an expert at creating software architecture diagrams.

Based on the following architectural analysis, create a Mermaid diagram representation of the architecture of this codebase.

Architectural Analysis:
%s

Please generate a mermaid diagram definition using the following syntax:
%smermaid
graph TD
  subgraph Component1
    A[Module A]
    B[Module B]
  end
  A --> B
%s

Focus on the high-level architecture, major components, and their interactions. Use clear labels and organize the diagram for readability.`,
		architectureAnalysis, fence, fence)
}

func sampleList(samples []fileSample) string {
	var b strings.Builder
	for _, s := range samples {
		fmt.Fprintf(&b, "- %s\n", s.Path)
	}
	return b.String()
}

func sampleExcerpts(samples []fileSample) string {
	var b strings.Builder
	for _, s := range samples {
		fmt.Fprintf(&b, "File: %s\n%s\n%s\n%s\n\n",
			s.Path, fence, firstLines(s.Content, fileExcerptLines), fence)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
