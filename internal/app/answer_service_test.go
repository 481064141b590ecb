package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"studymate/internal/model"
)

func Test_Answer_RetrievesWithinChatAndStreams(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	gravity := env.mustIngest(t, "", gravityText)
	ohm := env.mustIngest(t, "", ohmText)

	prepared, err := env.answer.Prepare(ctx, AnswerInput{ChatID: gravity.ChatID, UserID: "u1", Question: "What is gravity?"})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(prepared.Sources) == 0 {
		t.Fatalf("Prepare() found no sources")
	}
	for _, hit := range prepared.Sources {
		if hit.Chunk.ChatID != gravity.ChatID {
			t.Fatalf("source from chat %q leaked into chat %q", hit.Chunk.ChatID, gravity.ChatID)
		}
	}
	user := prepared.Messages[len(prepared.Messages)-1].Content
	if !strings.Contains(user, "Gravity is the force") || strings.Contains(user, "Ohm's law") {
		t.Fatalf("prompt context is wrong:\n%s", user)
	}
	if !strings.Contains(user, "Question: What is gravity?") {
		t.Fatalf("prompt misses the question:\n%s", user)
	}

	var streamed []string
	answer, err := env.answer.Stream(ctx, prepared, func(tok string) error {
		streamed = append(streamed, tok)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if answer != "Gravity pulls mass." || len(streamed) != 3 {
		t.Fatalf("Stream() = %q with %d tokens", answer, len(streamed))
	}

	var transcript []model.TranscriptJob
	for _, j := range env.publisher.published() {
		if j.queue == transcriptQueue {
			transcript = append(transcript, j.job.(model.TranscriptJob))
		}
	}
	if len(transcript) != 1 || transcript[0].Answer != answer || transcript[0].ChatID != gravity.ChatID {
		t.Fatalf("transcript jobs = %+v", transcript)
	}

	// The other chat only ever sees its own document.
	prepared, err = env.answer.Prepare(ctx, AnswerInput{ChatID: ohm.ChatID, Question: "What is gravity?"})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	for _, hit := range prepared.Sources {
		if hit.Chunk.ChatID != ohm.ChatID {
			t.Fatalf("source from chat %q leaked into chat %q", hit.Chunk.ChatID, ohm.ChatID)
		}
	}
}

func Test_Answer_ContextJoinsTopChunks(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	var paragraphs []string
	for i := 0; i < 6; i++ {
		paragraphs = append(paragraphs, strings.Repeat("Gravity and orbit notes. ", 45))
	}
	res := env.mustIngest(t, "", strings.Join(paragraphs, "\n\n"))
	if res.ChunkCount <= retrievalTopK {
		t.Fatalf("need more than %d chunks, got %d", retrievalTopK, res.ChunkCount)
	}

	prepared, err := env.answer.Prepare(context.Background(), AnswerInput{ChatID: res.ChatID, Question: "orbit"})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(prepared.Sources) != retrievalTopK {
		t.Fatalf("got %d sources, want %d", len(prepared.Sources), retrievalTopK)
	}
	user := prepared.Messages[len(prepared.Messages)-1].Content
	if got := strings.Count(user, contextSeparator); got != retrievalTopK-1 {
		t.Fatalf("context has %d separators, want %d", got, retrievalTopK-1)
	}
}

func Test_Answer_ScopeKey(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	first := env.mustIngest(t, "", gravityText)
	second := env.mustIngest(t, first.ChatID, ohmText)
	other := env.mustIngest(t, "", gravityText)

	prepared, err := env.answer.Prepare(ctx, AnswerInput{ChatID: first.ChatID, ScopeKey: second.ScopeKey, Question: "What is gravity?"})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	for _, hit := range prepared.Sources {
		if hit.Chunk.DocumentID != second.DocumentID {
			t.Fatalf("source from document %d, want only %d", hit.Chunk.DocumentID, second.DocumentID)
		}
	}

	_, err = env.answer.Prepare(ctx, AnswerInput{ChatID: first.ChatID, ScopeKey: other.ScopeKey, Question: "q"})
	if !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("Prepare() with foreign scope key error = %v, want ErrPayloadInvalid", err)
	}
	_, err = env.answer.Prepare(ctx, AnswerInput{ChatID: first.ChatID, ScopeKey: "garbage", Question: "q"})
	if !errors.Is(err, ErrPayloadInvalid) {
		t.Fatalf("Prepare() with malformed scope key error = %v, want ErrPayloadInvalid", err)
	}
}

func Test_Answer_RejectsMissingInput(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	for _, in := range []AnswerInput{{Question: "q"}, {ChatID: "c", Question: "   "}} {
		if _, err := env.answer.Prepare(context.Background(), in); !errors.Is(err, ErrPayloadInvalid) {
			t.Errorf("Prepare(%+v) error = %v, want ErrPayloadInvalid", in, err)
		}
	}
}

func Test_Answer_EmptyChatHasEmptyContext(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	prepared, err := env.answer.Prepare(context.Background(), AnswerInput{ChatID: "no-docs", Question: "Anything?"})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(prepared.Sources) != 0 {
		t.Fatalf("got %d sources for an empty chat", len(prepared.Sources))
	}
	if !strings.HasPrefix(prepared.Messages[1].Content, "Context:\n\n\nChat History:") {
		t.Fatalf("unexpected prompt:\n%s", prepared.Messages[1].Content)
	}
}

func Test_Answer_HistoryDefaultsToTranscript(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	res := env.mustIngest(t, "", gravityText)

	if err := env.chats.AppendExchange(ctx, model.TranscriptJob{ChatID: res.ChatID, UserID: "u1", Question: "What is mass?", Answer: "Amount of matter."}); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}

	prepared, err := env.answer.Prepare(ctx, AnswerInput{ChatID: res.ChatID, Question: "And weight?"})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	user := prepared.Messages[1].Content
	if !strings.Contains(user, "User: What is mass?\nAssistant: Amount of matter.\n") {
		t.Fatalf("prompt misses transcript history:\n%s", user)
	}

	prepared, err = env.answer.Prepare(ctx, AnswerInput{
		ChatID:   res.ChatID,
		Question: "And weight?",
		History:  []Turn{{Role: "user", Content: "client supplied"}},
	})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if user := prepared.Messages[1].Content; strings.Contains(user, "What is mass?") || !strings.Contains(user, "User: client supplied") {
		t.Fatalf("explicit history not used:\n%s", user)
	}
}

func Test_Answer_StreamStopsOnCancel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res := env.mustIngest(t, "", gravityText)
	before := len(env.publisher.published())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prepared, err := env.answer.Prepare(ctx, AnswerInput{ChatID: res.ChatID, Question: "gravity?"})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	tokens := 0
	_, err = env.answer.Stream(ctx, prepared, func(string) error {
		tokens++
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Stream() error = %v, want context.Canceled", err)
	}
	if tokens != 1 {
		t.Fatalf("received %d tokens after cancel, want 1", tokens)
	}
	if got := len(env.publisher.published()); got != before {
		t.Fatalf("cancelled stream published a transcript job")
	}
}

func Test_Answer_EmbeddingFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.embedder.fail = true
	_, err := env.answer.Prepare(context.Background(), AnswerInput{ChatID: "c", Question: "q"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Prepare() error = %v, want ErrUpstreamUnavailable", err)
	}
}
