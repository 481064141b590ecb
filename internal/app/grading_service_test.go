package app

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"studymate/internal/model"
)

func seedQuiz(t *testing.T, env *testEnv, questions ...model.Question) (uint, []model.Question) {
	t.Helper()
	ctx := context.Background()

	quiz := &model.Quiz{ChatID: "chat-1"}
	if err := env.quizzes.CreateQuiz(ctx, quiz); err != nil {
		t.Fatalf("CreateQuiz() error = %v", err)
	}
	for i := range questions {
		questions[i].QuizID = quiz.ID
	}
	if err := env.quizzes.CreateQuestions(ctx, questions); err != nil {
		t.Fatalf("CreateQuestions() error = %v", err)
	}
	stored, err := env.quizzes.ListQuestions(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("ListQuestions() error = %v", err)
	}
	return quiz.ID, stored
}

func key(q model.Question) string {
	return strconv.FormatUint(uint64(q.ID), 10)
}

func Test_TopicNormalizer(t *testing.T) {
	t.Parallel()

	n := NewTopicNormalizer(0.8)
	vocabulary := []string{"Ohm's Law", "Gravity", "LVDT Sensitivity"}

	tests := []struct {
		topic string
		want  string
	}{
		{topic: "Ohms law", want: "Ohm's Law"},
		{topic: "  gravity ", want: "Gravity"},
		{topic: "LVDT sensitivities", want: "LVDT Sensitivity"},
		{topic: "Thermodynamics", want: "Thermodynamics"},
		{topic: "Ohm", want: "Ohm"},
	}
	for _, tc := range tests {
		got := n.Normalize(tc.topic, vocabulary)
		if got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.topic, got, tc.want)
		}
		if again := n.Normalize(got, vocabulary); again != got {
			t.Errorf("Normalize is not idempotent for %q: %q then %q", tc.topic, got, again)
		}
	}

	if got := n.Normalize("Anything", nil); got != "Anything" {
		t.Errorf("Normalize() with empty vocabulary = %q", got)
	}
	if d := NewTopicNormalizer(0); d.Threshold != DefaultTopicMatchThreshold {
		t.Errorf("default threshold = %v", d.Threshold)
	}
}

func Test_Grade_ScoresAndAggregatesTopics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.progress.Increment(ctx, "u1", "Ohm's Law", 1, 1); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	quizID, questions := seedQuiz(t, env,
		model.Question{QuestionText: "Capital of France?", QuestionType: model.QuestionTypeMCQ, Options: []string{"Paris", "Rome"}, CorrectAnswer: "Paris", Topic: "Ohms law"},
		model.Question{QuestionText: "V = ?", QuestionType: model.QuestionTypeSAQ, CorrectAnswer: "IR", Topic: "Ohm's law"},
		model.Question{QuestionText: "Entropy?", QuestionType: model.QuestionTypeSAQ, CorrectAnswer: "Disorder", Topic: "Thermodynamics"},
	)

	answers := map[string]string{
		key(questions[0]): "paris ",
		key(questions[1]): "V/R",
	}
	res, err := env.grading.Grade(ctx, GradeInput{QuizID: quizID, UserID: " u1 ", Answers: answers})
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if res.Score != 1 || res.Total != 3 {
		t.Fatalf("score = %d/%d, want 1/3", res.Score, res.Total)
	}
	if !res.Results[0].IsCorrect || res.Results[1].IsCorrect || res.Results[2].IsCorrect {
		t.Fatalf("per-question results = %+v", res.Results)
	}
	if res.Results[0].CorrectAnswer != "Paris" || res.UserAnswers[key(questions[0])] != "paris " {
		t.Fatalf("result does not echo questions and answers: %+v", res)
	}

	rows, err := env.progress.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := map[string][2]int{}
	for _, r := range rows {
		got[r.Topic] = [2]int{r.CorrectAttempts, r.TotalAttempts}
	}
	want := map[string][2]int{
		"Ohm's Law":      {2, 3},
		"Thermodynamics": {0, 1},
	}
	if len(got) != len(want) {
		t.Fatalf("progress topics = %v, want %v", got, want)
	}
	for topic, w := range want {
		if got[topic] != w {
			t.Errorf("progress[%q] = %v, want %v", topic, got[topic], w)
		}
	}

	var attempts []model.UserAttempt
	if err := env.db.Find(&attempts).Error; err != nil {
		t.Fatalf("load attempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Score != 1 || attempts[0].Total != 3 || attempts[0].UserID != "u1" {
		t.Fatalf("attempts = %+v", attempts)
	}
	if attempts[0].UserAnswers.Data()[key(questions[1])] != "V/R" {
		t.Fatalf("stored answers = %v", attempts[0].UserAnswers.Data())
	}
}

func Test_Grade_NewUserTopicsKeptAsStated(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	quizID, questions := seedQuiz(t, env,
		model.Question{QuestionText: "a", QuestionType: model.QuestionTypeSAQ, CorrectAnswer: "x", Topic: "Ohm's Law"},
		model.Question{QuestionText: "b", QuestionType: model.QuestionTypeSAQ, CorrectAnswer: "y", Topic: "Ohms law"},
	)
	answers := map[string]string{key(questions[0]): "X", key(questions[1]): "Y"}
	if _, err := env.grading.Grade(ctx, GradeInput{QuizID: quizID, UserID: "fresh", Answers: answers}); err != nil {
		t.Fatalf("Grade() error = %v", err)
	}

	rows, err := env.progress.List(ctx, "fresh")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := map[string][2]int{}
	for _, r := range rows {
		got[r.Topic] = [2]int{r.CorrectAttempts, r.TotalAttempts}
	}
	if len(got) != 2 || got["Ohm's Law"] != [2]int{1, 1} || got["Ohms law"] != [2]int{1, 1} {
		t.Fatalf("progress = %v, want both topics as stated at 1/1", got)
	}

	// The next submission folds onto the topics the user now has.
	if _, err := env.grading.Grade(ctx, GradeInput{QuizID: quizID, UserID: "fresh", Answers: map[string]string{}}); err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	rows, _ = env.progress.List(ctx, "fresh")
	if len(rows) != 2 {
		t.Fatalf("progress rows = %d after second submission, want 2", len(rows))
	}
}

func Test_Grade_ConcurrentSubmissionsLoseNothing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	quizID, questions := seedQuiz(t, env,
		model.Question{QuestionText: "a", QuestionType: model.QuestionTypeSAQ, CorrectAnswer: "x", Topic: "Gravity"},
		model.Question{QuestionText: "b", QuestionType: model.QuestionTypeSAQ, CorrectAnswer: "y", Topic: "Mass"},
	)

	const submissions = 12
	var wg sync.WaitGroup
	errs := make(chan error, submissions)
	for i := 0; i < submissions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.grading.Grade(context.Background(), GradeInput{
				QuizID: quizID, UserID: "u1", Answers: map[string]string{key(questions[0]): "x"},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Grade() error = %v", err)
		}
	}

	rows, _ := env.progress.List(context.Background(), "u1")
	for _, r := range rows {
		want := [2]int{submissions, submissions}
		if r.Topic == "Mass" {
			want = [2]int{0, submissions}
		}
		if got := [2]int{r.CorrectAttempts, r.TotalAttempts}; got != want {
			t.Errorf("progress[%q] = %v, want %v", r.Topic, got, want)
		}
	}
	if len(rows) != 2 {
		t.Fatalf("progress rows = %d, want 2", len(rows))
	}
}

func Test_Grade_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	quizID, _ := seedQuiz(t, env, model.Question{QuestionText: "a", QuestionType: model.QuestionTypeSAQ, CorrectAnswer: "x", Topic: "T"})

	long := make([]byte, maxUserIDLength+1)
	for i := range long {
		long[i] = 'u'
	}
	tests := []struct {
		name  string
		input GradeInput
	}{
		{name: "missing quiz", input: GradeInput{UserID: "u1"}},
		{name: "unknown quiz", input: GradeInput{QuizID: quizID + 100, UserID: "u1"}},
		{name: "missing user", input: GradeInput{QuizID: quizID, UserID: "  "}},
		{name: "user too long", input: GradeInput{QuizID: quizID, UserID: string(long)}},
	}
	for _, tc := range tests {
		if _, err := env.grading.Grade(context.Background(), tc.input); !errors.Is(err, ErrPayloadInvalid) {
			t.Errorf("%s: Grade() error = %v, want ErrPayloadInvalid", tc.name, err)
		}
	}
}

func Test_Grade_Answers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	quizID, _ := seedQuiz(t, env, model.Question{QuestionText: "a", QuestionType: model.QuestionTypeSAQ, CorrectAnswer: "x", Topic: "T"})

	if _, err := env.grading.Grade(ctx, GradeInput{QuizID: quizID, UserID: "u1"}); !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("Grade() without answers error = %v, want ErrPayloadInvalid", err)
	}
	rows, err := env.progress.List(ctx, "u1")
	if err != nil || len(rows) != 0 {
		t.Fatalf("progress after rejected submission = %+v, %v; want none", rows, err)
	}

	res, err := env.grading.Grade(ctx, GradeInput{QuizID: quizID, UserID: "u1", Answers: map[string]string{}})
	if err != nil {
		t.Fatalf("Grade() with empty answers error = %v", err)
	}
	if res.Score != 0 || res.Total != 1 {
		t.Fatalf("result = %+v, want 0/1", res)
	}
}

func Test_Progress_ListWithMastery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.progress.Increment(ctx, "u1", "Gravity", 3, 4); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if err := env.progress.Increment(ctx, "u2", "Mass", 0, 2); err != nil {
		t.Fatalf("Increment() error = %v", err)
	}

	views, err := env.progSvc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(views) != 1 || views[0].Mastery != 0.75 {
		t.Fatalf("views = %+v, want Gravity at 0.75", views)
	}
	all, err := env.progSvc.List(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("List(all) = %d rows, %v; want 2", len(all), err)
	}
}
