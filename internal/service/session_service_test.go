package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindfold/questionnaire/internal/apperror"
	"github.com/mindfold/questionnaire/internal/dto"
	"github.com/mindfold/questionnaire/internal/model"
)

type engineFixture struct {
	svc          SessionService
	questionRepo *fakeQuestionRepo
	sessionRepo  *fakeSessionRepo
	answerRepo   *fakeAnswerRepo
	user         *model.User
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	db := newMemDB()
	questionRepo := &fakeQuestionRepo{db: db}
	sessionRepo := &fakeSessionRepo{db: db}
	answerRepo := &fakeAnswerRepo{db: db}
	userRepo := &fakeUserRepo{db: db}

	user := &model.User{Username: "taker", Email: "taker@example.com", Role: model.RoleUser}
	require.NoError(t, userRepo.Create(user))

	return &engineFixture{
		svc:          NewSessionService(questionRepo, sessionRepo, answerRepo, NewResultService()),
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		answerRepo:   answerRepo,
		user:         user,
	}
}

func (f *engineFixture) seedQuestion(t *testing.T, title, qtype string, order int, options ...model.Option) *model.Question {
	t.Helper()
	for i := range options {
		options[i].Position = i + 1
	}
	q := &model.Question{
		Title:    title,
		Type:     qtype,
		Order:    order,
		Category: "procrastination",
		Required: true,
		IsActive: true,
		Options:  options,
	}
	require.NoError(t, f.questionRepo.Create(q))
	return q
}

// seedLinear creates n single-choice questions with one zero-score option
// each and no branch targets.
func (f *engineFixture) seedLinear(t *testing.T, n int) []*model.Question {
	t.Helper()
	questions := make([]*model.Question, n)
	for i := 0; i < n; i++ {
		questions[i] = f.seedQuestion(t, "Q", model.QuestionTypeSingle, i+1,
			model.Option{Text: "ok", Score: 1})
	}
	return questions
}

func (f *engineFixture) start(t *testing.T) *dto.SessionResponse {
	t.Helper()
	resp, err := f.svc.StartSession(f.user, dto.StartSessionRequest{TestType: "procrastination"})
	require.NoError(t, err)
	return resp
}

func (f *engineFixture) submit(sessionID, questionID uint, optionIDs ...uint) (*dto.SubmitAnswerResponse, error) {
	return f.svc.SubmitAnswer(f.user, sessionID, dto.SubmitAnswerRequest{
		QuestionID:        questionID,
		SelectedOptionIDs: optionIDs,
	})
}

func TestStartSession_NoActiveQuestions(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.svc.StartSession(f.user, dto.StartSessionRequest{TestType: "unknown"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, "invalid_test_type", apperror.CodeOf(err))
}

func TestStartSession_PositionsAtFirstQuestion(t *testing.T) {
	f := newEngineFixture(t)
	questions := f.seedLinear(t, 3)

	resp := f.start(t)

	assert.Equal(t, model.SessionStatusInProgress, resp.Status)
	assert.Zero(t, resp.TotalScore)
	require.NotNil(t, resp.CurrentQuestion)
	assert.Equal(t, questions[0].ID, resp.CurrentQuestion.ID)
}

func TestSubmitAnswer_BranchSkipsQuestion(t *testing.T) {
	f := newEngineFixture(t)

	// Q1's option A jumps straight to Q3, skipping Q2.
	q2 := f.seedQuestion(t, "Q2", model.QuestionTypeSingle, 2, model.Option{Text: "x"})
	q3 := f.seedQuestion(t, "Q3", model.QuestionTypeSingle, 3, model.Option{Text: "y"})
	q1 := f.seedQuestion(t, "Q1", model.QuestionTypeSingle, 1,
		model.Option{Text: "A", Score: 2, NextQuestionID: &q3.ID},
		model.Option{Text: "B", Score: 0, NextQuestionID: &q2.ID},
	)

	session := f.start(t)
	require.Equal(t, q1.ID, session.CurrentQuestion.ID)

	resp, err := f.submit(session.ID, q1.ID, q1.Options[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, resp.TotalScore)
	require.NotNil(t, resp.NextQuestion)
	assert.Equal(t, q3.ID, resp.NextQuestion.ID)

	// Q3 has no branch and Q2 sits before it in display order, so the
	// questionnaire ends here with Q2 never visited.
	resp, err = f.submit(session.ID, q3.ID, q3.Options[0].ID)
	require.NoError(t, err)
	assert.Nil(t, resp.NextQuestion)
	assert.True(t, resp.Completed)

	ids, err := f.answerRepo.AnsweredQuestionIDs(session.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{q1.ID, q3.ID}, ids)
}

func TestSubmitAnswer_BranchIsDeterministic(t *testing.T) {
	f := newEngineFixture(t)
	q3 := f.seedQuestion(t, "Q3", model.QuestionTypeSingle, 3, model.Option{Text: "y"})
	q1 := f.seedQuestion(t, "Q1", model.QuestionTypeSingle, 1,
		model.Option{Text: "A", NextQuestionID: &q3.ID})
	f.seedQuestion(t, "Q2", model.QuestionTypeSingle, 2, model.Option{Text: "x"})

	for i := 0; i < 3; i++ {
		session := f.start(t)
		resp, err := f.submit(session.ID, q1.ID, q1.Options[0].ID)
		require.NoError(t, err)
		require.NotNil(t, resp.NextQuestion)
		assert.Equal(t, q3.ID, resp.NextQuestion.ID)
	}
}

func TestSubmitAnswer_LinearTraversalVisitsAllInOrder(t *testing.T) {
	f := newEngineFixture(t)
	questions := f.seedLinear(t, 4)

	session := f.start(t)
	var visited []uint
	current := session.CurrentQuestion.ID
	for {
		visited = append(visited, current)
		q, err := f.questionRepo.FindByID(current)
		require.NoError(t, err)
		resp, err := f.submit(session.ID, current, q.Options[0].ID)
		require.NoError(t, err)
		if resp.NextQuestion == nil {
			assert.True(t, resp.Completed)
			assert.Equal(t, 4.0, resp.TotalScore)
			break
		}
		current = resp.NextQuestion.ID
	}

	want := make([]uint, len(questions))
	for i, q := range questions {
		want[i] = q.ID
	}
	assert.Equal(t, want, visited)
}

func TestSubmitAnswer_AccumulatesScore(t *testing.T) {
	f := newEngineFixture(t)
	q1 := f.seedQuestion(t, "Q1", model.QuestionTypeMultiple, 1,
		model.Option{Text: "a", Score: 1.5},
		model.Option{Text: "b", Score: 2.5},
		model.Option{Text: "c", Score: 4},
	)
	q2 := f.seedQuestion(t, "Q2", model.QuestionTypeSingle, 2,
		model.Option{Text: "d", Score: 3})

	session := f.start(t)

	resp, err := f.submit(session.ID, q1.ID, q1.Options[0].ID, q1.Options[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, resp.TotalScore)

	resp, err = f.submit(session.ID, q2.ID, q2.Options[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 7.0, resp.TotalScore)
	assert.True(t, resp.Completed)

	stored, err := f.sessionRepo.FindByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 7.0, stored.TotalScore)
}

func TestSubmitAnswer_SelectionValidation(t *testing.T) {
	f := newEngineFixture(t)
	choice := f.seedQuestion(t, "choice", model.QuestionTypeSingle, 1,
		model.Option{Text: "a", Score: 1},
		model.Option{Text: "b", Score: 2},
	)
	multi := f.seedQuestion(t, "multi", model.QuestionTypeMultiple, 2,
		model.Option{Text: "c", Score: 1},
		model.Option{Text: "d", Score: 2},
	)
	text := f.seedQuestion(t, "text", model.QuestionTypeText, 3)

	tests := []struct {
		name     string
		question *model.Question
		req      dto.SubmitAnswerRequest
		code     string
	}{
		{
			name:     "single with no selection",
			question: choice,
			req:      dto.SubmitAnswerRequest{},
			code:     "single_choice_required",
		},
		{
			name:     "single with two options",
			question: choice,
			req:      dto.SubmitAnswerRequest{SelectedOptionIDs: []uint{choice.Options[0].ID, choice.Options[1].ID}},
			code:     "single_choice_required",
		},
		{
			name:     "single with text answer",
			question: choice,
			req:      dto.SubmitAnswerRequest{SelectedOptionIDs: []uint{choice.Options[0].ID}, TextAnswer: "hello"},
			code:     "unexpected_text",
		},
		{
			name:     "foreign option id",
			question: choice,
			req:      dto.SubmitAnswerRequest{SelectedOptionIDs: []uint{multi.Options[0].ID}},
			code:     "invalid_option",
		},
		{
			name:     "multiple with empty selection",
			question: multi,
			req:      dto.SubmitAnswerRequest{},
			code:     "selection_required",
		},
		{
			name:     "multiple with duplicate option",
			question: multi,
			req:      dto.SubmitAnswerRequest{SelectedOptionIDs: []uint{multi.Options[0].ID, multi.Options[0].ID}},
			code:     "duplicate_option",
		},
		{
			name:     "text with empty answer",
			question: text,
			req:      dto.SubmitAnswerRequest{TextAnswer: "   "},
			code:     "text_required",
		},
		{
			name:     "text with option ids",
			question: text,
			req:      dto.SubmitAnswerRequest{SelectedOptionIDs: []uint{choice.Options[0].ID}, TextAnswer: "hi"},
			code:     "unexpected_options",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session := f.start(t)
			// Walk the session up to the question under test.
			currentID := *mustSession(t, f, session.ID).CurrentQuestionID
			for currentID != tc.question.ID {
				q, err := f.questionRepo.FindByID(currentID)
				require.NoError(t, err)
				resp, err := f.submit(session.ID, currentID, q.Options[0].ID)
				require.NoError(t, err)
				require.NotNil(t, resp.NextQuestion)
				currentID = resp.NextQuestion.ID
			}

			before := mustSession(t, f, session.ID)
			tc.req.QuestionID = tc.question.ID
			_, err := f.svc.SubmitAnswer(f.user, session.ID, tc.req)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindValidation), "expected validation error, got %v", err)
			assert.Equal(t, tc.code, apperror.CodeOf(err))

			// No state mutated: score, position and version are untouched.
			after := mustSession(t, f, session.ID)
			assert.Equal(t, before.TotalScore, after.TotalScore)
			assert.Equal(t, before.CurrentQuestionID, after.CurrentQuestionID)
			assert.Equal(t, before.Version, after.Version)
		})
	}
}

func mustSession(t *testing.T, f *engineFixture, id uint) *model.TestSession {
	t.Helper()
	session, err := f.sessionRepo.FindByID(id)
	require.NoError(t, err)
	return session
}

func TestSubmitAnswer_QuestionMismatch(t *testing.T) {
	f := newEngineFixture(t)
	questions := f.seedLinear(t, 2)
	session := f.start(t)

	// Not the current question.
	_, err := f.submit(session.ID, questions[1].ID, questions[1].Options[0].ID)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	assert.Equal(t, "question_mismatch", apperror.CodeOf(err))

	// Answer Q1, then try Q1 again: exactly-once per question.
	_, err = f.submit(session.ID, questions[0].ID, questions[0].Options[0].ID)
	require.NoError(t, err)
	_, err = f.submit(session.ID, questions[0].ID, questions[0].Options[0].ID)
	require.Error(t, err)
	assert.Equal(t, "question_mismatch", apperror.CodeOf(err))
}

func TestSubmitAnswer_ClosedSession(t *testing.T) {
	f := newEngineFixture(t)
	questions := f.seedLinear(t, 2)
	session := f.start(t)

	_, err := f.svc.AbandonSession(f.user, session.ID)
	require.NoError(t, err)

	_, err = f.submit(session.ID, questions[0].ID, questions[0].Options[0].ID)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	assert.Equal(t, "session_closed", apperror.CodeOf(err))
}

func TestSubmitAnswer_SessionNotFound(t *testing.T) {
	f := newEngineFixture(t)
	f.seedLinear(t, 1)

	_, err := f.submit(999, 1, 1)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestSubmitAnswer_OtherUsersSession(t *testing.T) {
	f := newEngineFixture(t)
	questions := f.seedLinear(t, 1)
	session := f.start(t)

	intruder := &model.User{ID: f.user.ID + 1000, Role: model.RoleUser}
	_, err := f.svc.SubmitAnswer(intruder, session.ID, dto.SubmitAnswerRequest{
		QuestionID:        questions[0].ID,
		SelectedOptionIDs: []uint{questions[0].Options[0].ID},
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
}

func TestSubmitAnswer_BrokenBranchEndsQuestionnaire(t *testing.T) {
	f := newEngineFixture(t)
	missing := uint(9999)
	q1 := f.seedQuestion(t, "Q1", model.QuestionTypeSingle, 1,
		model.Option{Text: "A", Score: 3, NextQuestionID: &missing})
	f.seedQuestion(t, "Q2", model.QuestionTypeSingle, 2, model.Option{Text: "x"})

	session := f.start(t)
	resp, err := f.submit(session.ID, q1.ID, q1.Options[0].ID)

	// A dangling branch target is an authoring error, not a user error: the
	// call succeeds, the score is kept and the session completes.
	require.NoError(t, err)
	assert.True(t, resp.Completed)
	assert.Nil(t, resp.NextQuestion)
	assert.Equal(t, 3.0, resp.TotalScore)
	assert.NotNil(t, resp.Result)
}

func TestSubmitAnswer_InactiveBranchTargetEndsQuestionnaire(t *testing.T) {
	f := newEngineFixture(t)
	inactive := f.seedQuestion(t, "gone", model.QuestionTypeSingle, 5, model.Option{Text: "z"})
	require.NoError(t, f.questionRepo.Deactivate(inactive.ID))
	q1 := f.seedQuestion(t, "Q1", model.QuestionTypeSingle, 1,
		model.Option{Text: "A", Score: 1, NextQuestionID: &inactive.ID})

	session := f.start(t)
	resp, err := f.submit(session.ID, q1.ID, q1.Options[0].ID)
	require.NoError(t, err)
	assert.True(t, resp.Completed)
}

func TestSubmitAnswer_BranchCycleEndsQuestionnaire(t *testing.T) {
	f := newEngineFixture(t)

	// Q1 and Q2 branch at each other. Once both are answered the cycle must
	// end the questionnaire; re-entering Q1 would strand the session, since a
	// question can never be answered twice.
	q2 := f.seedQuestion(t, "Q2", model.QuestionTypeSingle, 2, model.Option{Text: "back", Score: 1})
	q1 := f.seedQuestion(t, "Q1", model.QuestionTypeSingle, 1,
		model.Option{Text: "fwd", Score: 1, NextQuestionID: &q2.ID})
	q2.Options[0].NextQuestionID = &q1.ID
	require.NoError(t, f.questionRepo.Update(q2))

	session := f.start(t)
	resp, err := f.submit(session.ID, q1.ID, q1.Options[0].ID)
	require.NoError(t, err)
	require.NotNil(t, resp.NextQuestion)
	assert.Equal(t, q2.ID, resp.NextQuestion.ID)

	resp, err = f.submit(session.ID, q2.ID, q2.Options[0].ID)
	require.NoError(t, err)
	assert.Nil(t, resp.NextQuestion)
	assert.True(t, resp.Completed)
	assert.Equal(t, 2.0, resp.TotalScore)

	stored := mustSession(t, f, session.ID)
	assert.Equal(t, model.SessionStatusCompleted, stored.Status)

	ids, err := f.answerRepo.AnsweredQuestionIDs(session.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{q1.ID, q2.ID}, ids)
}

func TestSessionLocks_ReleasedOnTerminal(t *testing.T) {
	f := newEngineFixture(t)
	q1 := f.seedQuestion(t, "Q1", model.QuestionTypeSingle, 1, model.Option{Text: "A"})

	completed := f.start(t)
	_, err := f.submit(completed.ID, q1.ID, q1.Options[0].ID)
	require.NoError(t, err)

	abandoned := f.start(t)
	_, err = f.svc.AbandonSession(f.user, abandoned.ID)
	require.NoError(t, err)

	impl := f.svc.(*sessionService)
	_, ok := impl.locks.Load(completed.ID)
	assert.False(t, ok, "completed session keeps no lock entry")
	_, ok = impl.locks.Load(abandoned.ID)
	assert.False(t, ok, "abandoned session keeps no lock entry")
}

func TestSubmitAnswer_TextScoresZero(t *testing.T) {
	f := newEngineFixture(t)
	q1 := f.seedQuestion(t, "essay", model.QuestionTypeText, 1)

	session := f.start(t)
	resp, err := f.svc.SubmitAnswer(f.user, session.ID, dto.SubmitAnswerRequest{
		QuestionID: q1.ID,
		TextAnswer: "I usually put things off until the deadline.",
	})
	require.NoError(t, err)
	assert.Zero(t, resp.TotalScore)
	assert.True(t, resp.Completed)
}

func TestCompletion_SetsResultAndCompletedAt(t *testing.T) {
	f := newEngineFixture(t)
	q1 := f.seedQuestion(t, "Q1", model.QuestionTypeSingle, 1,
		model.Option{Text: "A", Score: 20})

	session := f.start(t)
	resp, err := f.submit(session.ID, q1.ID, q1.Options[0].ID)
	require.NoError(t, err)
	require.True(t, resp.Completed)
	require.NotNil(t, resp.Result)

	stored := mustSession(t, f, session.ID)
	assert.Equal(t, model.SessionStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.NotNil(t, stored.Result)
	assert.Nil(t, stored.CurrentQuestionID)
}

func TestAbandonSession_Idempotent(t *testing.T) {
	f := newEngineFixture(t)
	f.seedLinear(t, 2)
	session := f.start(t)

	first, err := f.svc.AbandonSession(f.user, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusAbandoned, first.Status)
	assert.Nil(t, first.CompletedAt)

	second, err := f.svc.AbandonSession(f.user, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusAbandoned, second.Status)
}

func TestAbandonSession_CompletedStaysCompleted(t *testing.T) {
	f := newEngineFixture(t)
	q1 := f.seedQuestion(t, "Q1", model.QuestionTypeSingle, 1, model.Option{Text: "A"})
	session := f.start(t)

	_, err := f.submit(session.ID, q1.ID, q1.Options[0].ID)
	require.NoError(t, err)

	resp, err := f.svc.AbandonSession(f.user, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, resp.Status)
}

func TestSubmitAnswer_ConcurrentDoubleSubmit(t *testing.T) {
	f := newEngineFixture(t)
	questions := f.seedLinear(t, 2)
	session := f.start(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.submit(session.ID, questions[0].ID, questions[0].Options[0].ID)
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case apperror.Is(err, apperror.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	ids, err := f.answerRepo.AnsweredQuestionIDs(session.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestGetSession_Ownership(t *testing.T) {
	f := newEngineFixture(t)
	f.seedLinear(t, 1)
	session := f.start(t)

	_, err := f.svc.GetSession(f.user, session.ID)
	require.NoError(t, err)

	intruder := &model.User{ID: f.user.ID + 1000, Role: model.RoleUser}
	_, err = f.svc.GetSession(intruder, session.ID)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	admin := &model.User{ID: f.user.ID + 2000, Role: model.RoleAdmin}
	_, err = f.svc.GetSession(admin, session.ID)
	require.NoError(t, err)
}
