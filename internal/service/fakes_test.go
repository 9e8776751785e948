package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/nzoschke/beatmarket/internal/model"
	"github.com/nzoschke/beatmarket/internal/repository"
)

// fakeUserRepo mirrors the SQL repository semantics, including the unique
// email index and the conditional token consume.
type fakeUserRepo struct {
	mu      sync.Mutex
	users   map[string]*model.User
	failGet error
	failAdd error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func clone(u *model.User) *model.User {
	c := *u
	if u.VerificationToken != nil {
		t := *u.VerificationToken
		c.VerificationToken = &t
	}
	if u.VerificationExpiresAt != nil {
		t := *u.VerificationExpiresAt
		c.VerificationExpiresAt = &t
	}
	return &c
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failAdd != nil {
		return r.failAdd
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.users[user.ID] = clone(user)
	return nil
}

func (r *fakeUserRepo) ByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return clone(u), nil
}

func (r *fakeUserRepo) ByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failGet != nil {
		return nil, r.failGet
	}
	for _, u := range r.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) ByVerificationToken(_ context.Context, token string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			return clone(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) ConsumeVerificationToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok || u.Verified || u.VerificationToken == nil || *u.VerificationToken != token {
		return repository.ErrTokenNotFound
	}
	u.Verified = true
	u.VerificationToken = nil
	u.VerificationExpiresAt = nil
	return nil
}

func (r *fakeUserRepo) SetVerificationToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok || u.Verified {
		return repository.ErrUserNotFound
	}
	u.VerificationToken = &token
	u.VerificationExpiresAt = &expiresAt
	return nil
}

func (r *fakeUserRepo) MarkVerified(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Verified = true
	u.VerificationToken = nil
	u.VerificationExpiresAt = nil
	return nil
}

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

type sentEmail struct {
	to  string
	url string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (n *fakeNotifier) SendVerificationEmail(_ context.Context, email, verifyURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentEmail{to: email, url: verifyURL})
	return nil
}

func (n *fakeNotifier) last() sentEmail {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentEmail{}
	}
	return n.sent[len(n.sent)-1]
}

type fakeCaptcha struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (c *fakeCaptcha) Verify(context.Context, string, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

// countingHasher wraps a real hasher and counts calls, so tests can assert the
// dummy comparison happens for unknown emails.
type countingHasher struct {
	PasswordHasher
	mu       sync.Mutex
	verifies int
}

func (h *countingHasher) Verify(password, hash string) (bool, error) {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return h.PasswordHasher.Verify(password, hash)
}

type fakeBeatRepo struct {
	mu    sync.Mutex
	beats map[string]*model.Beat
	fail  error
}

func newFakeBeatRepo() *fakeBeatRepo {
	return &fakeBeatRepo{beats: map[string]*model.Beat{}}
}

func (r *fakeBeatRepo) Create(_ context.Context, beat *model.Beat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	c := *beat
	r.beats[beat.ID] = &c
	return nil
}

func (r *fakeBeatRepo) ByID(_ context.Context, id string) (*model.Beat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.beats[id]
	if !ok {
		return nil, repository.ErrBeatNotFound
	}
	c := *b
	return &c, nil
}

func (r *fakeBeatRepo) List(_ context.Context) ([]*model.Beat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Beat{}
	for _, b := range r.beats {
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeBeatRepo) ByUser(ctx context.Context, userID string) ([]*model.Beat, error) {
	all, _ := r.List(ctx)
	out := []*model.Beat{}
	for _, b := range all {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
	failErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: map[string][]byte{}}
}

func (s *fakeStorage) Save(_ context.Context, path string, file io.Reader, _ string) error {
	if s.failErr != nil {
		return s.failErr
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	return nil
}

func (s *fakeStorage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; !ok {
		return errors.New("no such file")
	}
	delete(s.files, path)
	s.deleted = append(s.deleted, path)
	return nil
}

func (s *fakeStorage) URL(_ context.Context, path string) string {
	return "http://files.test/" + path
}
