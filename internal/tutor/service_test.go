package tutor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/socratic/internal/llm"
	"github.com/pavelanni/socratic/internal/model"
	"github.com/pavelanni/socratic/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, o llm.Oracle) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	svc := NewService(NewEngine(o, Options{}), store.NewMemory())
	svc.SetClock(clock.Now)
	return svc, clock
}

var startReq = StartRequest{StudentID: "stu-1", GradeLevel: "7", Subject: "science", Topic: "photosynthesis"}

func TestStartValidates(t *testing.T) {
	svc, _ := newTestService(t, llm.NewMockOracle())
	_, err := svc.Start(context.Background(), StartRequest{StudentID: "s", Topic: " "})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v, want ErrMissingFields", err)
	}
	for _, f := range []string{"grade_level", "subject", "topic"} {
		if !strings.Contains(err.Error(), f) {
			t.Errorf("error %q does not name %s", err, f)
		}
	}
}

func TestStartSeedsQuestions(t *testing.T) {
	svc, _ := newTestService(t, llm.NewMockOracle(llm.Text(fullQuestionSet)))
	ctx := context.Background()

	q, err := svc.Start(ctx, startReq)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if q.Index != 0 || q.Level != model.LevelRemember || q.Question != "What gas do plants release?" {
		t.Errorf("first payload = %+v", q)
	}

	sess, err := svc.Session(ctx, "stu-1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID == "" || sess.CurrentIndex != 0 || sess.StartTimes[0] == nil {
		t.Errorf("session not initialised: %+v", sess)
	}
	if sess.Questions[5].Text != "Design an experiment to measure photosynthesis." {
		t.Errorf("create question = %q", sess.Questions[5].Text)
	}
}

func TestAnswerUnknownSession(t *testing.T) {
	svc, _ := newTestService(t, llm.NewMockOracle())
	_, err := svc.Answer(context.Background(), AnswerRequest{StudentID: "ghost", Index: 0, Answer: longAnswer})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.Session(context.Background(), "ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Session err = %v, want ErrSessionNotFound", err)
	}
}

func TestAnswerOutOfOrder(t *testing.T) {
	svc, _ := newTestService(t, llm.NewMockOracle())
	ctx := context.Background()
	if _, err := svc.Start(ctx, startReq); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Answer(ctx, AnswerRequest{StudentID: "stu-1", Index: 2, Answer: longAnswer})
	if !errors.Is(err, ErrOutOfOrderAnswer) {
		t.Fatalf("err = %v, want ErrOutOfOrderAnswer", err)
	}

	sess, _ := svc.Session(ctx, "stu-1")
	if sess.CurrentIndex != 0 {
		t.Errorf("CurrentIndex = %d after rejected answer, want 0", sess.CurrentIndex)
	}
	if sess.Answers[2] != nil || sess.Answers[0] != nil || len(sess.History) != 0 {
		t.Error("rejected answer mutated the session")
	}
}

func TestFullPassWithOracleDown(t *testing.T) {
	svc, clock := newTestService(t, llm.NewMockOracle())
	ctx := context.Background()

	q, err := svc.Start(ctx, startReq)
	if err != nil {
		t.Fatal(err)
	}
	if q.Question != "Can you recall a basic fact about photosynthesis?" {
		t.Errorf("first question = %q, want templated fallback", q.Question)
	}

	elapsed := []time.Duration{3 * time.Second, 12 * time.Second, 7 * time.Second, 1 * time.Second, 30 * time.Second, 5 * time.Second}
	wantTimes := []int{5, 12, 7, 5, 30, 5}

	var res *AnswerResult
	for i, d := range elapsed {
		clock.Advance(d)
		res, err = svc.Answer(ctx, AnswerRequest{StudentID: "stu-1", Index: i, Answer: longAnswer})
		if err != nil {
			t.Fatalf("Answer(%d): %v", i, err)
		}
		if i < model.NumLevels-1 {
			if res.Next == nil || res.Report != nil {
				t.Fatalf("Answer(%d) should return the next question", i)
			}
			if res.Next.Index != i+1 || res.Next.Level != model.Levels[i+1] {
				t.Errorf("Answer(%d) next = %+v", i, res.Next.QuestionPayload)
			}
			if res.Next.SuggestedAction != model.ActionContinue || res.Next.Score != 80 {
				t.Errorf("Answer(%d) action %q score %d", i, res.Next.SuggestedAction, res.Next.Score)
			}
			if res.Next.TimeTaken != wantTimes[i] {
				t.Errorf("Answer(%d) time = %d, want %d", i, res.Next.TimeTaken, wantTimes[i])
			}
			if !strings.HasPrefix(res.Next.Feedback, "Excellent!") {
				t.Errorf("Answer(%d) feedback = %q", i, res.Next.Feedback)
			}
		}
	}

	rep := res.Report
	if rep == nil {
		t.Fatal("sixth answer should return the mastery report")
	}
	if !rep.Mastery || rep.OverallScore != 80 {
		t.Errorf("Mastery = %v overall = %v, want mastery at 80", rep.Mastery, rep.OverallScore)
	}
	if len(rep.WeakLevels) != 0 {
		t.Errorf("WeakLevels = %v, want empty", rep.WeakLevels)
	}
	sum := 0
	for i, tp := range rep.Times {
		if tp == nil || *tp != wantTimes[i] {
			t.Errorf("times[%d] = %v, want %d", i, tp, wantTimes[i])
			continue
		}
		sum += *tp
	}
	if want := float64(sum) / 6; rep.AvgTime != want {
		t.Errorf("AvgTime = %v, want %v", rep.AvgTime, want)
	}
	for i, sp := range rep.Scores {
		if sp == nil || *sp != 80 {
			t.Errorf("scores[%d] = %v, want 80", i, sp)
		}
	}

	if _, err := svc.Answer(ctx, AnswerRequest{StudentID: "stu-1", Index: 5, Answer: longAnswer}); !errors.Is(err, ErrDialogueComplete) {
		t.Errorf("answer after completion: err = %v, want ErrDialogueComplete", err)
	}

	sess, _ := svc.Session(ctx, "stu-1")
	if !sess.Completed || sess.LastMastery == nil || len(sess.History) != model.NumLevels {
		t.Errorf("completed session state: completed=%v history=%d", sess.Completed, len(sess.History))
	}
}

func TestAnswerHesitantScaffolds(t *testing.T) {
	svc, _ := newTestService(t, llm.NewMockOracle())
	ctx := context.Background()
	if _, err := svc.Start(ctx, startReq); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Answer(ctx, AnswerRequest{StudentID: "stu-1", Index: 0, Answer: "um"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Next.SuggestedAction != model.ActionOfferHint || res.Next.Score != 0 {
		t.Errorf("first answer: action %q score %d", res.Next.SuggestedAction, res.Next.Score)
	}
	if res.Next.ScaffoldQuestion == nil || !strings.HasPrefix(*res.Next.ScaffoldQuestion, "Here's a hint") {
		t.Errorf("scaffold = %v, want hint", res.Next.ScaffoldQuestion)
	}

	res, err = svc.Answer(ctx, AnswerRequest{StudentID: "stu-1", Index: 1, Answer: "I'm not sure, maybe light?"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Next.SuggestedAction != model.BacktrackTo(model.LevelRemember) {
		t.Errorf("action = %q, want backtrack_to_remember", res.Next.SuggestedAction)
	}
	if res.Next.Score != 20 {
		t.Errorf("hedged answer score = %d, want 20", res.Next.Score)
	}
	if res.Next.ScaffoldQuestion == nil || *res.Next.ScaffoldQuestion != "Can you recall a basic fact about photosynthesis?" {
		t.Errorf("scaffold = %v", res.Next.ScaffoldQuestion)
	}
	if res.Next.Index != 2 || res.Next.Level != model.LevelApply {
		t.Errorf("dialogue should still advance, got %+v", res.Next.QuestionPayload)
	}
	if res.Next.Feedback != hesitantFeedback {
		t.Errorf("feedback = %q", res.Next.Feedback)
	}
}

func TestRetryFlow(t *testing.T) {
	svc, _ := newTestService(t, llm.NewMockOracle())
	ctx := context.Background()
	if _, err := svc.Start(ctx, startReq); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Retry(ctx, RetryRequest{StudentID: "stu-1", RetryIndex: 0})
	if !errors.Is(err, ErrDialogueIncomplete) {
		t.Fatalf("retry before completion: err = %v, want ErrDialogueIncomplete", err)
	}

	// A 30-character answer at understand scores 40 under the fallback scorer.
	weakAnswer := "Plants make food using light."
	var res *AnswerResult
	for i := range model.NumLevels {
		a := longAnswer
		if i == 1 {
			a = weakAnswer
		}
		if res, err = svc.Answer(ctx, AnswerRequest{StudentID: "stu-1", Index: i, Answer: a}); err != nil {
			t.Fatalf("Answer(%d): %v", i, err)
		}
	}
	rep := res.Report
	if rep.Mastery {
		t.Fatalf("unexpected mastery at %v", rep.OverallScore)
	}
	if rep.NextWeakLevel == nil || *rep.NextWeakLevel != model.LevelUnderstand {
		t.Fatalf("NextWeakLevel = %v, want understand", rep.NextWeakLevel)
	}
	if *rep.NextQuestion != "Can you explain photosynthesis in your own words?" {
		t.Errorf("NextQuestion = %q", *rep.NextQuestion)
	}

	retry, err := svc.Retry(ctx, RetryRequest{
		StudentID:  "stu-1",
		AllAnswers: map[model.Level]string{model.LevelUnderstand: longAnswer},
		WeakLevels: rep.WeakLevels,
		RetryIndex: 1,
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if !retry.Mastery || retry.OverallScore != 80 {
		t.Errorf("after retry: mastery %v overall %v", retry.Mastery, retry.OverallScore)
	}
	if *retry.Scores[1] != 80 {
		t.Errorf("understand score = %d, want 80", *retry.Scores[1])
	}

	sess, _ := svc.Session(ctx, "stu-1")
	last := sess.History[len(sess.History)-1]
	if last.Kind != model.AttemptRetry || last.Level != model.LevelUnderstand || last.Assessment.Score != 80 {
		t.Errorf("last attempt = %+v", last)
	}
	if *sess.Answers[1] != longAnswer {
		t.Errorf("retry answer not merged")
	}
}

func TestRetryRejectsUnknownLevel(t *testing.T) {
	svc, _ := newTestService(t, llm.NewMockOracle())
	ctx := context.Background()
	if _, err := svc.Start(ctx, startReq); err != nil {
		t.Fatal(err)
	}
	for i := range model.NumLevels {
		if _, err := svc.Answer(ctx, AnswerRequest{StudentID: "stu-1", Index: i, Answer: longAnswer}); err != nil {
			t.Fatal(err)
		}
	}
	_, err := svc.Retry(ctx, RetryRequest{
		StudentID:  "stu-1",
		AllAnswers: map[model.Level]string{"synthesis": longAnswer},
	})
	if !errors.Is(err, model.ErrUnknownLevel) {
		t.Errorf("err = %v, want ErrUnknownLevel", err)
	}
}

func TestConcurrentAnswersAreSerialized(t *testing.T) {
	svc, _ := newTestService(t, llm.NewMockOracle())
	ctx := context.Background()
	if _, err := svc.Start(ctx, startReq); err != nil {
		t.Fatal(err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Answer(ctx, AnswerRequest{StudentID: "stu-1", Index: 0, Answer: longAnswer})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrOutOfOrderAnswer):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != writers-1 {
		t.Errorf("ok = %d rejected = %d, want exactly one accepted answer", ok, rejected)
	}
	sess, _ := svc.Session(ctx, "stu-1")
	if sess.CurrentIndex != 1 || len(sess.History) != 1 {
		t.Errorf("CurrentIndex = %d history = %d", sess.CurrentIndex, len(sess.History))
	}
}

func TestSweepAndEvict(t *testing.T) {
	svc, clock := newTestService(t, llm.NewMockOracle())
	ctx := context.Background()
	if _, err := svc.Start(ctx, startReq); err != nil {
		t.Fatal(err)
	}
	other := startReq
	other.StudentID = "stu-2"
	clock.Advance(time.Hour)
	if _, err := svc.Start(ctx, other); err != nil {
		t.Fatal(err)
	}

	n, err := svc.Sweep(ctx, 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, err := svc.Session(ctx, "stu-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("stale session survived sweep: %v", err)
	}

	if n, _ := svc.Sweep(ctx, 0); n != 0 {
		t.Errorf("Sweep with ttl 0 removed %d", n)
	}

	if err := svc.Evict(ctx, "stu-2"); err != nil {
		t.Fatal(err)
	}
	list, _ := svc.Sessions(ctx)
	if len(list) != 0 {
		t.Errorf("Sessions after evict = %v", list)
	}
}

func TestKeyedMutexForgetsKeys(t *testing.T) {
	var k keyedMutex
	unlock := k.Lock("a")
	unlock()
	if len(k.locks) != 0 {
		t.Errorf("locks map retains %d keys", len(k.locks))
	}
}
