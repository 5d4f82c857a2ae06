package authcore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

/*
====================================
TEST CLOCK
====================================
*/

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

/*
====================================
MOCK STORE
====================================
*/

// mockStore is an in-memory UserStore with call counters and error
// injection for exercising persistence failure paths.
type mockStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*User
	bindings map[string]*ProviderBinding

	createCalls int
	updateCalls int

	failUpdate error
}

func newMockStore() *mockStore {
	return &mockStore{
		users:    make(map[uuid.UUID]*User),
		bindings: make(map[string]*ProviderBinding),
	}
}

func (s *mockStore) CreateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++

	for _, existing := range s.users {
		switch {
		case existing.Email == user.Email:
			return ErrEmailTaken
		case existing.Username == user.Username:
			return ErrUsernameTaken
		case existing.IDNumber == user.IDNumber:
			return ErrIDNumberTaken
		}
	}

	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *mockStore) GetUserByEmail(_ context.Context, email string, includeInactive bool) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email && (includeInactive || user.IsActive) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *mockStore) GetUserByID(_ context.Context, id uuid.UUID, includeInactive bool) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok || (!includeInactive && !user.IsActive) {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *mockStore) GetUserByIDNumber(_ context.Context, idNumber int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.IDNumber == idNumber {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *mockStore) UpdateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++

	if s.failUpdate != nil {
		return s.failUpdate
	}
	if _, ok := s.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *mockStore) GetProviderBinding(_ context.Context, provider, subject string) (*ProviderBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	binding, ok := s.bindings[provider+"/"+subject]
	if !ok {
		return nil, ErrBindingNotFound
	}
	clone := *binding
	return &clone, nil
}

func (s *mockStore) CreateProviderBinding(_ context.Context, binding *ProviderBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := binding.Provider + "/" + binding.Subject
	if _, ok := s.bindings[key]; ok {
		return ErrDuplicateBinding
	}
	clone := *binding
	s.bindings[key] = &clone
	return nil
}

// mustGetByEmail reads the stored record directly, bypassing the active
// filter, for assertions on persisted state.
func (s *mockStore) mustGetByEmail(t *testing.T, email string) *User {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone
		}
	}
	t.Fatalf("user %s not in store", email)
	return nil
}

func (s *mockStore) put(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	s.users[user.ID] = &clone
}

/*
====================================
MOCK MAILER
====================================
*/

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// recordingMailer captures sends and can fail the first failFirst calls
// (or all of them when failAll is set).
type recordingMailer struct {
	mu        sync.Mutex
	sent      []sentMail
	sendCalls int
	failFirst int
	failAll   bool
	failErr   error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendCalls++

	if m.failAll || m.sendCalls <= m.failFirst {
		if m.failErr != nil {
			return m.failErr
		}
		return errSMTPDown
	}

	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) lastSent(t *testing.T) sentMail {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCalls
}

var errSMTPDown = errTest("smtp down")

type errTest string

func (e errTest) Error() string { return string(e) }

/*
====================================
ENGINE HARNESS
====================================
*/

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	// Keep hashing cheap; the floors still hold.
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testEnv struct {
	engine *Engine
	store  *mockStore
	mailer *recordingMailer
	clock  *testClock
}

func newTestEngine(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	store := newMockStore()
	mailer := &recordingMailer{}
	clock := newTestClock()

	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithMailer(mailer).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("engine build: %v", err)
	}
	t.Cleanup(engine.Close)

	// Retries must not slow the suite down.
	engine.sleep = func(context.Context, time.Duration) error { return nil }

	return &testEnv{engine: engine, store: store, mailer: mailer, clock: clock}
}

const (
	testEmail    = "ada@example.com"
	testPassword = "correct-horse-battery"
)

var seedSequence atomic.Int64

// seedActiveUser registers and activates an account directly through
// the store, returning the stored record.
func (env *testEnv) seedActiveUser(t *testing.T, email, password string) *User {
	t.Helper()

	hash, err := env.engine.passwordHash.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	seq := seedSequence.Add(1)
	now := env.clock.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		Username:     fmt.Sprintf("CB-TEST%05d", seq),
		FirstName:    "Ada",
		LastName:     "Lovelace",
		IDNumber:     4_200_000 + seq,
		PasswordHash: hash,
		Role:         RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	setStatus(user, AccountActive)
	env.store.put(user)
	return user
}

// requestOTP drives the password stage and returns the code now stored
// on the user.
func (env *testEnv) requestOTP(t *testing.T, email, password string) string {
	t.Helper()

	if err := env.engine.RequestLoginOTP(context.Background(), email, password); err != nil {
		t.Fatalf("RequestLoginOTP: %v", err)
	}

	user := env.store.mustGetByEmail(t, email)
	if user.OTP == "" {
		t.Fatal("no OTP stored after request")
	}
	return user.OTP
}
