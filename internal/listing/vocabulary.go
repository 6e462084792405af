package listing

import "strings"

// Vocabulary is the fixed list of technical terms recognised in listing texts.
var Vocabulary = []string{
	"python", "java", "javascript", "typescript", "go", "golang", "rust", "c", "c++", "c#", "php", "ruby",
	"kotlin", "swift", "scala", "r", "matlab", "bash", "sql", "nosql", "postgresql", "mysql", "mongodb",
	"redis", "elasticsearch", "kafka", "rabbitmq", "spark", "hadoop", "airflow", "dbt", "snowflake",
	"react", "angular", "vue", "svelte", "next.js", "node.js", "express", "django", "flask", "fastapi",
	"spring", "spring boot", ".net", "laravel", "symfony", "rails", "html", "css", "sass", "graphql",
	"rest", "grpc", "docker", "kubernetes", "terraform", "ansible", "helm", "aws", "azure", "gcp",
	"linux", "git", "ci/cd", "jenkins", "gitlab", "github actions", "prometheus", "grafana",
	"pandas", "numpy", "scikit-learn", "tensorflow", "pytorch", "machine learning", "deep learning",
	"nlp", "llm", "power bi", "tableau", "excel", "sap", "salesforce", "figma", "jira", "agile", "scrum",
	"android", "ios", "flutter", "react native", "unity", "embedded", "devops", "security",
}

// ExtractSkills scans text for vocabulary terms on word boundaries.
func ExtractSkills(text string) SkillSet {
	skills := make(SkillSet)
	if text == "" {
		return skills
	}

	folded := Fold(text)
	tokens := make(map[string]struct{})
	for _, token := range Tokens(folded) {
		tokens[token] = struct{}{}
	}

	for _, term := range Vocabulary {
		if len(term) <= 2 && term != "go" && term != "c#" {
			// single letters such as "c" and "r" only count when written as a standalone token
			if _, ok := tokens[term]; ok && standaloneLetter(folded, term) {
				skills.Add(term)
			}
			continue
		}
		if _, ok := tokens[term]; ok {
			skills.Add(term)
			continue
		}
		if ContainsWord(folded, term) {
			skills.Add(term)
		}
	}

	return skills
}

// standaloneLetter rejects "r" and "c" when they only appear as French elisions or list markers.
func standaloneLetter(text, term string) bool {
	for _, marker := range []string{" " + term + ",", " " + term + " ", "(" + term + ")", " " + term + "/", "/" + term + " "} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
