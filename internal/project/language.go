package project

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var extensionLanguages = map[string]string{
	".py":  "Python",
	".pyw": "Python",
	".pyx": "Python",
	".pxd": "Python",

	".js":  "JavaScript",
	".jsx": "JavaScript",
	".mjs": "JavaScript",

	".ts":  "TypeScript",
	".tsx": "TypeScript",

	".java": "Java",
	".cs":   "C#",

	".cpp": "C++",
	".cc":  "C++",
	".cxx": "C++",
	".hpp": "C++",
	".hxx": "C++",

	".c": "C",
	".h": "C",

	".go": "Go",

	".rb":   "Ruby",
	".rake": "Ruby",

	".php":   "PHP",
	".swift": "Swift",
	".rs":    "Rust",

	".kt":  "Kotlin",
	".kts": "Kotlin",

	".scala": "Scala",

	".html": "HTML",
	".htm":  "HTML",

	".css":  "CSS",
	".scss": "SCSS",
	".sass": "SASS",

	".json": "JSON",
	".xml":  "XML",

	".yaml": "YAML",
	".yml":  "YAML",

	".md":       "Markdown",
	".markdown": "Markdown",

	".sh":   "Shell",
	".bash": "Shell",
	".ps1":  "PowerShell",

	".sql": "SQL",
	".r":   "R",

	".pl": "Perl",
	".pm": "Perl",

	".hs":     "Haskell",
	".lua":    "Lua",
	".groovy": "Groovy",

	".dockerfile": "Dockerfile",

	".tf":     "Terraform",
	".tfvars": "Terraform",

	".ipynb": "Jupyter Notebook",
}

type contentPattern struct {
	re       *regexp.Regexp
	language string
}

var shebangPatterns = []contentPattern{
	{regexp.MustCompile(`(?m)^#!.*\bpython`), "Python"},
	{regexp.MustCompile(`(?m)^#!.*\bnode`), "JavaScript"},
	{regexp.MustCompile(`(?m)^#!.*\bruby`), "Ruby"},
	{regexp.MustCompile(`(?m)^#!.*\bperl`), "Perl"},
	{regexp.MustCompile(`(?m)^#!.*\bbash`), "Shell"},
	{regexp.MustCompile(`(?m)^#!.*\bsh\b`), "Shell"},
	{regexp.MustCompile(`(?m)^#!.*\bzsh\b`), "Shell"},
	{regexp.MustCompile(`(?m)^#!.*\bphp`), "PHP"},
}

var contentPatterns = []contentPattern{
	{regexp.MustCompile(`(?m)^\s*<\?php`), "PHP"},
	{regexp.MustCompile(`(?m)^\s*package\s+[a-z0-9_.]+;`), "Java"},
	{regexp.MustCompile(`(?m)^\s*using\s+[a-zA-Z0-9_.]+;`), "C#"},
	{regexp.MustCompile(`(?m)^\s*import\s+React`), "JavaScript"},
	{regexp.MustCompile(`(?m)^\s*import\s+\{.*\}\s+from\s+['"]react['"]`), "JavaScript"},
	{regexp.MustCompile(`(?m)^\s*#include\s+<[a-zA-Z0-9_.]+>`), "C++"},
	{regexp.MustCompile(`(?m)^\s*from\s+__future__\s+import`), "Python"},
	{regexp.MustCompile(`(?m)^\s*defmodule\s+[A-Z][a-zA-Z0-9_.]*\s+do`), "Elixir"},
	{regexp.MustCompile(`(?m)^\s*\(\s*ns\s+[a-z0-9_.-]+`), "Clojure"},
}

// DetectLanguage determines the programming language of a file, first by
// extension and then by inspecting its opening lines for shebangs or
// language-specific constructs. Returns false for files it cannot classify.
func DetectLanguage(path string) (string, bool) {
	if lang, ok := detectByName(path); ok {
		return lang, true
	}

	head, err := readFirstLines(path, 10)
	if err != nil {
		return "", false
	}
	for _, p := range shebangPatterns {
		if p.re.MatchString(head) {
			return p.language, true
		}
	}
	for _, p := range contentPatterns {
		if p.re.MatchString(head) {
			return p.language, true
		}
	}
	return "", false
}

func detectByName(path string) (string, bool) {
	ext := filepath.Ext(path)
	if lang, ok := extensionLanguages[strings.ToLower(ext)]; ok {
		return lang, true
	}
	if strings.EqualFold(filepath.Base(path), "dockerfile") {
		return "Dockerfile", true
	}
	return "", false
}

func readFirstLines(path string, n int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for i := 0; i < n && scanner.Scan(); i++ {
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
	}
	return b.String(), nil
}
