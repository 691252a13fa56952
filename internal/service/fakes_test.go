package service

import (
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/mindfold/questionnaire/internal/apperror"
	"github.com/mindfold/questionnaire/internal/model"
)

// memDB backs the in-memory fake repositories used by the service tests.
// The session fake reproduces the store's version compare-and-swap and the
// unique (session, question) answer index, so the engine's concurrency and
// exactly-once behavior can be exercised without a database.
type memDB struct {
	mu        sync.Mutex
	users     map[uint]model.User
	questions map[uint]model.Question
	sessions  map[uint]model.TestSession
	answers   []model.Answer
	nextID    uint
}

func newMemDB() *memDB {
	return &memDB{
		users:     make(map[uint]model.User),
		questions: make(map[uint]model.Question),
		sessions:  make(map[uint]model.TestSession),
	}
}

func (db *memDB) id() uint {
	db.nextID++
	return db.nextID
}

// --- user repository ---

type fakeUserRepo struct{ db *memDB }

func (r *fakeUserRepo) Create(user *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = r.db.id()
	r.db.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) FindByID(id uint) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &user, nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, user := range r.db.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByUsername(username string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, user := range r.db.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// --- question repository ---

type fakeQuestionRepo struct{ db *memDB }

func (r *fakeQuestionRepo) Create(question *model.Question) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	question.ID = r.db.id()
	for i := range question.Options {
		question.Options[i].ID = r.db.id()
		question.Options[i].QuestionID = question.ID
	}
	r.db.questions[question.ID] = *question
	return nil
}

func (r *fakeQuestionRepo) FindByID(id uint) (*model.Question, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	question, ok := r.db.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	q := question
	return &q, nil
}

func (r *fakeQuestionRepo) FindActiveByCategory(category string) ([]model.Question, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var questions []model.Question
	for _, q := range r.db.questions {
		if q.IsActive && q.Category == category {
			questions = append(questions, q)
		}
	}
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].Order != questions[j].Order {
			return questions[i].Order < questions[j].Order
		}
		return questions[i].ID < questions[j].ID
	})
	return questions, nil
}

func (r *fakeQuestionRepo) Update(question *model.Question) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.questions[question.ID] = *question
	return nil
}

func (r *fakeQuestionRepo) ReplaceOptions(question *model.Question, options []model.Option) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i := range options {
		options[i].ID = r.db.id()
		options[i].QuestionID = question.ID
	}
	question.Options = options
	r.db.questions[question.ID] = *question
	return nil
}

func (r *fakeQuestionRepo) Deactivate(id uint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	question, ok := r.db.questions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	question.IsActive = false
	r.db.questions[id] = question
	return nil
}

// --- session repository ---

type fakeSessionRepo struct{ db *memDB }

func (r *fakeSessionRepo) Create(session *model.TestSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	session.ID = r.db.id()
	r.db.sessions[session.ID] = *session
	return nil
}

func (r *fakeSessionRepo) FindByID(id uint) (*model.TestSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	session, ok := r.db.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	s := session
	return &s, nil
}

func (r *fakeSessionRepo) FindByIDWithAnswers(id uint) (*model.TestSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	session, ok := r.db.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	s := session
	for _, a := range r.db.answers {
		if a.TestSessionID == id {
			s.Answers = append(s.Answers, a)
		}
	}
	return &s, nil
}

func (r *fakeSessionRepo) FindAllByUser(userID uint) ([]model.TestSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var sessions []model.TestSession
	for _, s := range r.db.sessions {
		if s.UserID == userID {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

func (r *fakeSessionRepo) RecordAnswer(session *model.TestSession, answer *model.Answer) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.answers {
		if a.TestSessionID == answer.TestSessionID && a.QuestionID == answer.QuestionID {
			return fmt.Errorf("duplicate answer for question %d in session %d", answer.QuestionID, answer.TestSessionID)
		}
	}
	if err := r.casUpdateLocked(session); err != nil {
		return err
	}
	answer.ID = r.db.id()
	r.db.answers = append(r.db.answers, *answer)
	return nil
}

func (r *fakeSessionRepo) UpdateWithVersion(session *model.TestSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.casUpdateLocked(session)
}

func (r *fakeSessionRepo) casUpdateLocked(session *model.TestSession) error {
	stored, ok := r.db.sessions[session.ID]
	if !ok || stored.Version != session.Version {
		return apperror.Conflict("session_conflict", "session was modified concurrently")
	}
	session.Version++
	r.db.sessions[session.ID] = *session
	return nil
}

// --- answer repository ---

type fakeAnswerRepo struct{ db *memDB }

func (r *fakeAnswerRepo) FindBySession(sessionID uint) ([]model.Answer, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var answers []model.Answer
	for _, a := range r.db.answers {
		if a.TestSessionID == sessionID {
			answers = append(answers, a)
		}
	}
	return answers, nil
}

func (r *fakeAnswerRepo) AnsweredQuestionIDs(sessionID uint) ([]uint, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var ids []uint
	for _, a := range r.db.answers {
		if a.TestSessionID == sessionID {
			ids = append(ids, a.QuestionID)
		}
	}
	return ids, nil
}
