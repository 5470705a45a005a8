package interview

import (
	_ "embed"
	"strings"
)

//go:embed prompts/interviewer.md
var interviewerTemplate string

//go:embed prompts/intent.md
var intentTemplate string

//go:embed prompts/analyzer.md
var analyzerTemplate string

//go:embed prompts/feedback.md
var feedbackTemplate string

func buildInterviewerPrompt(role, phase, context string) string {
	prompt := strings.ReplaceAll(interviewerTemplate, "{{ROLE}}", role)
	prompt = strings.ReplaceAll(prompt, "{{PHASE}}", phase)
	prompt = strings.ReplaceAll(prompt, "{{CONTEXT}}", context)
	return prompt
}

func buildIntentPrompt(input string) string {
	return strings.ReplaceAll(intentTemplate, "{{INPUT}}", input)
}

func buildAnalyzerPrompt(question, answer string, difficulty Level) string {
	prompt := strings.ReplaceAll(analyzerTemplate, "{{QUESTION}}", question)
	prompt = strings.ReplaceAll(prompt, "{{ANSWER}}", answer)
	prompt = strings.ReplaceAll(prompt, "{{DIFFICULTY}}", string(difficulty))
	return prompt
}

func buildFeedbackPrompt(notes string) string {
	return strings.ReplaceAll(feedbackTemplate, "{{NOTES}}", notes)
}
