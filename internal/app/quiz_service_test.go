package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studymate/internal/model"
)

const quizReply = "Here is your quiz:\n```json\n" + `{
  "questions": [
    {"question_text": "What keeps planets in orbit?", "topic": "Gravity", "question_type": "MCQ",
     "options": ["Gravity", "Magnetism", "Friction", "Light"], "correct_answer": "gravity", "explanation": "Gravity pulls."},
    {"question_text": "Which quantity differs from weight?", "topic": "Mass", "question_type": "mcq",
     "options": ["Mass", "Force", "Speed", "Energy"], "correct_answer": "Mass", "explanation": ""},
    {"question_text": "Define mass.", "topic": "Mass", "question_type": "SAQ",
     "options": null, "correct_answer": "The amount of matter in an object", "explanation": "By definition."}
  ]
}` + "\n```"

func Test_ParseQuizResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        string
		wantStatus QuizParseStatus
		wantCount  int
	}{
		{name: "fenced object", raw: quizReply, wantStatus: QuizParsed, wantCount: 3},
		{name: "bare array", raw: `[{"question_text":"q","topic":"t","question_type":"SAQ","correct_answer":"a"}]`, wantStatus: QuizParsed, wantCount: 1},
		{name: "prose", raw: "Sorry, I cannot help with that.", wantStatus: QuizMalformed},
		{name: "empty", raw: "   ", wantStatus: QuizMalformed},
		{name: "no questions", raw: `{"questions": []}`, wantStatus: QuizMalformed},
		{name: "answer not an option", raw: `{"questions":[{"question_text":"q","topic":"t","question_type":"MCQ","options":["a","b"],"correct_answer":"c"}]}`, wantStatus: QuizMalformed},
		{name: "too few options", raw: `{"questions":[{"question_text":"q","topic":"t","question_type":"MCQ","options":["a"],"correct_answer":"a"}]}`, wantStatus: QuizMalformed},
		{name: "unknown type", raw: `{"questions":[{"question_text":"q","topic":"t","question_type":"ESSAY","correct_answer":"a"}]}`, wantStatus: QuizMalformed},
		{name: "missing topic", raw: `{"questions":[{"question_text":"q","question_type":"SAQ","correct_answer":"a"}]}`, wantStatus: QuizMalformed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ParseQuizResponse(tc.raw)
			if got.Status != tc.wantStatus {
				t.Fatalf("Status = %v (reason %q), want %v", got.Status, got.Reason, tc.wantStatus)
			}
			if got.Status == QuizParsed {
				if len(got.Questions) != tc.wantCount || got.Err() != nil {
					t.Fatalf("parsed %d questions, err %v; want %d", len(got.Questions), got.Err(), tc.wantCount)
				}
				return
			}
			var malformedErr *MalformedResponseError
			if err := got.Err(); !errors.As(err, &malformedErr) || !errors.Is(err, ErrResponseMalformed) {
				t.Fatalf("Err() = %v, want *MalformedResponseError", err)
			}
			if malformedErr.Raw != tc.raw || got.Reason == "" {
				t.Fatalf("malformed result lost the raw text or reason: %+v", got)
			}
		})
	}
}

func Test_ParseQuizResponse_NormalizesQuestions(t *testing.T) {
	t.Parallel()

	got := ParseQuizResponse(quizReply)
	if got.Status != QuizParsed {
		t.Fatalf("Status = %v, reason %q", got.Status, got.Reason)
	}
	if got.Questions[0].CorrectAnswer != "Gravity" {
		t.Errorf("MCQ answer = %q, want the option's exact text", got.Questions[0].CorrectAnswer)
	}
	if got.Questions[1].QuestionType != model.QuestionTypeMCQ {
		t.Errorf("question type = %q, want upper-cased", got.Questions[1].QuestionType)
	}
	if got.Questions[2].Options != nil {
		t.Errorf("SAQ options = %q, want nil", got.Questions[2].Options)
	}
}

func Test_Quiz_Generate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.llm.quiz = quizReply
	res := env.mustIngest(t, "", gravityText)

	quiz, err := env.quiz.Generate(context.Background(), res.ChatID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if quiz.QuizID == 0 || len(quiz.Questions) != 3 {
		t.Fatalf("quiz = %+v, want 3 stored questions", quiz)
	}
	for i, q := range quiz.Questions {
		if q.ID == 0 || q.QuizID != quiz.QuizID {
			t.Fatalf("question %d not re-read from storage: %+v", i, q)
		}
	}
	if quiz.Questions[0].CorrectAnswer != "Gravity" || len(quiz.Questions[0].Options) != 4 {
		t.Fatalf("first question = %+v", quiz.Questions[0])
	}

	prompt := env.llm.prompts[len(env.llm.prompts)-1]
	if !strings.Contains(prompt, `Topic List: ["Gravity", "Mass", "Ohm's Law"]`) {
		t.Fatalf("quiz prompt misses the topic list:\n%s", prompt)
	}
	if !strings.Contains(prompt, "2 Multiple Choice Questions and 1 Short Answer Question") {
		t.Fatalf("quiz prompt misses the question mix")
	}
	if !strings.Contains(prompt, "Gravity is the force") {
		t.Fatalf("quiz prompt misses the document text")
	}
}

func Test_Quiz_ContextIsBounded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.llm.quiz = quizReply
	res := env.mustIngest(t, "", strings.Repeat(gravityText+"\n\n", 120))

	if _, err := env.quiz.Generate(context.Background(), res.ChatID); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	prompt := env.llm.prompts[len(env.llm.prompts)-1]
	_, contextText, _ := strings.Cut(prompt, "\n\nContext:\n")
	if n := len([]rune(contextText)); n > quizContextLimit {
		t.Fatalf("quiz context has %d runes, want <= %d", n, quizContextLimit)
	}
	if got := strings.Count(contextText, contextSeparator); got > quizSampleChunks-1 {
		t.Fatalf("quiz context joins %d chunks, want <= %d", got+1, quizSampleChunks)
	}
}

func Test_Quiz_Failures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("topics missing", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		chat, _ := env.chats.Create(ctx, "")
		if _, err := env.quiz.Generate(ctx, chat.ID); !errors.Is(err, ErrTopicsMissing) {
			t.Fatalf("Generate() error = %v, want ErrTopicsMissing", err)
		}
	})

	t.Run("no documents", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		if err := env.topics.CreateIfAbsent(ctx, &model.ChatTopics{ChatID: "c1", Topics: []string{"Gravity"}}); err != nil {
			t.Fatalf("CreateIfAbsent() error = %v", err)
		}
		if _, err := env.quiz.Generate(ctx, "c1"); !errors.Is(err, ErrNoDocuments) {
			t.Fatalf("Generate() error = %v, want ErrNoDocuments", err)
		}
	})

	t.Run("malformed reply", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.llm.quiz = "I think the quiz should cover gravity."
		res := env.mustIngest(t, "", gravityText)

		_, err := env.quiz.Generate(ctx, res.ChatID)
		var malformedErr *MalformedResponseError
		if !errors.As(err, &malformedErr) || malformedErr.Raw != env.llm.quiz {
			t.Fatalf("Generate() error = %v, want MalformedResponseError with raw text", err)
		}
		if !strings.HasPrefix(err.Error(), "Failed to parse AI response. Raw text: ") {
			t.Fatalf("error message = %q", err.Error())
		}
		var quizzes int64
		env.db.Model(&model.Quiz{}).Count(&quizzes)
		if quizzes != 0 {
			t.Fatalf("malformed reply stored %d quizzes", quizzes)
		}
	})

	t.Run("upstream", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		res := env.mustIngest(t, "", gravityText)
		env.llm.completeErr = errUpstream
		if _, err := env.quiz.Generate(ctx, res.ChatID); !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("Generate() error = %v, want ErrUpstreamUnavailable", err)
		}
	})

	t.Run("question insert fails after quiz row", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.llm.quiz = quizReply
		res := env.mustIngest(t, "", gravityText)
		if err := env.db.Migrator().DropTable(&model.Question{}); err != nil {
			t.Fatalf("DropTable() error = %v", err)
		}

		if _, err := env.quiz.Generate(ctx, res.ChatID); !errors.Is(err, ErrStorageFailed) {
			t.Fatalf("Generate() error = %v, want ErrStorageFailed", err)
		}
		var quizzes int64
		env.db.Model(&model.Quiz{}).Where("chat_id = ?", res.ChatID).Count(&quizzes)
		if quizzes != 1 {
			t.Fatalf("quiz rows = %d, want the orphan quiz row to remain", quizzes)
		}
	})
}
