package grading

import (
	"fmt"
	"strings"

	"github.com/nikhilbhutani/coursegrader/internal/models"
)

const systemPrompt = `You are an experienced teacher grading open-ended answers on a test.
Grade each student answer against the question, the model answer and any provided course material.
Respond with only a JSON object holding one evaluation per answer, in this exact shape:
{"evaluations": [{"questionId": "<question id>", "suggestedScore": <number between 0 and max points>, "feedback": "<one or two sentences for the student>"}]}
Do not add any text before or after the object.`

const failedFeedback = "Automatic grading could not evaluate this answer. A teacher will review it."

const missingFeedback = "The grader returned no evaluation for this answer. A teacher will review it."

type batchItem struct {
	answerIdx int
	question  models.Question
	answer    models.Answer
}

func buildBatchPrompt(items []batchItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Grade the following %d answers.\n", len(items))
	for i, it := range items {
		fmt.Fprintf(&sb, "\n### Answer %d\n", i+1)
		fmt.Fprintf(&sb, "Question ID: %s\n", it.question.ID)
		fmt.Fprintf(&sb, "Question: %s\n", it.question.Text)
		if it.question.ModelAnswer != "" {
			fmt.Fprintf(&sb, "Model answer: %s\n", it.question.ModelAnswer)
		}
		fmt.Fprintf(&sb, "Max points: %g\n", it.question.MaxPoints)
		fmt.Fprintf(&sb, "Student answer: %s\n", it.answer.StudentResponse)
	}
	return sb.String()
}
