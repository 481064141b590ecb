package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"studymate/internal/model"
	"studymate/internal/pkg/llmjson"
)

// QuizDraft is one question as returned by the model, before it is stored.
type QuizDraft struct {
	QuestionText  string   `json:"question_text"`
	Topic         string   `json:"topic"`
	QuestionType  string   `json:"question_type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

type QuizParseStatus int

const (
	QuizParsed QuizParseStatus = iota + 1
	QuizMalformed
)

// QuizParse is either Parsed with Questions set, or Malformed with the raw
// completion and the reason it was rejected.
type QuizParse struct {
	Status    QuizParseStatus
	Questions []QuizDraft
	Raw       string
	Reason    string
}

func (p QuizParse) Err() error {
	if p.Status == QuizParsed {
		return nil
	}
	return &MalformedResponseError{Raw: p.Raw, Reason: p.Reason}
}

func malformed(raw, format string, args ...any) QuizParse {
	return QuizParse{Status: QuizMalformed, Raw: raw, Reason: fmt.Sprintf(format, args...)}
}

// ParseQuizResponse turns a completion into validated question drafts. A
// bare JSON array of questions is accepted as well as the {"questions": [...]}
// object the prompt asks for.
func ParseQuizResponse(raw string) QuizParse {
	body := llmjson.StripFences(raw)
	if body == "" {
		return malformed(raw, "empty response")
	}

	var drafts []QuizDraft
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &drafts); err != nil {
			return malformed(raw, "decode question list: %v", err)
		}
	} else {
		var envelope struct {
			Questions []QuizDraft `json:"questions"`
		}
		if err := json.Unmarshal([]byte(body), &envelope); err != nil {
			return malformed(raw, "decode quiz object: %v", err)
		}
		drafts = envelope.Questions
	}
	if len(drafts) == 0 {
		return malformed(raw, "no questions")
	}

	for i := range drafts {
		if reason := normalizeDraft(&drafts[i]); reason != "" {
			return malformed(raw, "question %d: %s", i+1, reason)
		}
	}
	return QuizParse{Status: QuizParsed, Questions: drafts, Raw: raw}
}

func normalizeDraft(d *QuizDraft) string {
	d.QuestionText = strings.TrimSpace(d.QuestionText)
	d.Topic = strings.TrimSpace(d.Topic)
	d.CorrectAnswer = strings.TrimSpace(d.CorrectAnswer)
	d.Explanation = strings.TrimSpace(d.Explanation)
	d.QuestionType = strings.ToUpper(strings.TrimSpace(d.QuestionType))

	switch {
	case d.QuestionText == "":
		return "missing question_text"
	case d.Topic == "":
		return "missing topic"
	case d.CorrectAnswer == "":
		return "missing correct_answer"
	}

	switch d.QuestionType {
	case model.QuestionTypeMCQ:
		options := make([]string, 0, len(d.Options))
		for _, o := range d.Options {
			if o = strings.TrimSpace(o); o != "" {
				options = append(options, o)
			}
		}
		if len(options) < 2 {
			return "multiple choice question needs at least two options"
		}
		matched := false
		for _, o := range options {
			if strings.EqualFold(o, d.CorrectAnswer) {
				d.CorrectAnswer = o
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Sprintf("correct_answer %q is not one of the options", d.CorrectAnswer)
		}
		d.Options = options
	case model.QuestionTypeSAQ:
		d.Options = nil
	default:
		return fmt.Sprintf("unknown question_type %q", d.QuestionType)
	}
	return ""
}
