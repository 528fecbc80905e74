package grading

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var errNoEvaluations = errors.New(`reply object has no "evaluations" list`)

// evaluationReply is the grading reply: the {"evaluations": [...]} object the
// prompt asks for, or a bare array of evaluations.
type evaluationReply []evaluation

func (r *evaluationReply) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Evaluations *[]evaluation `json:"evaluations"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		if wrapped.Evaluations == nil {
			return errNoEvaluations
		}
		*r = *wrapped.Evaluations
		return nil
	}

	var list []evaluation
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*r = list
	return nil
}

// evaluation is one graded answer. Entries that are not objects or carry no
// parseable question id decode without error and stay invalid, so one bad
// entry does not sink the rest of the batch.
type evaluation struct {
	valid      bool
	questionID uuid.UUID
	score      float64
	hasScore   bool
	feedback   string
}

func (e *evaluation) UnmarshalJSON(data []byte) error {
	var obj map[string]any
	if json.Unmarshal(data, &obj) != nil || obj == nil {
		return nil
	}
	qid, err := uuid.Parse(stringField(obj, "questionId", "question_id"))
	if err != nil {
		return nil
	}
	e.valid = true
	e.questionID = qid
	e.score, e.hasScore = numberField(obj, "suggestedScore", "suggested_score", "score")
	e.feedback = stringField(obj, "feedback")
	return nil
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			return s
		}
	}
	return ""
}

// numberField accepts JSON numbers and numeric strings. NaN and infinities
// are rejected.
func numberField(obj map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return f, true
			}
		}
	}
	return 0, false
}
