package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeStore struct {
	users    map[string]*User
	resets   map[string]string
	sessions map[string]string
	revoked  map[string]bool
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*User{},
		resets:   map[string]string{},
		sessions: map[string]string{},
		revoked:  map[string]bool{},
	}
}

func (f *fakeStore) CreateAccount(_ context.Context, email, hash, fullName, _ string) (User, error) {
	f.nextID++
	user := User{
		ID:             fmt.Sprintf("user-%d", f.nextID),
		Email:          email,
		PasswordHash:   hash,
		Status:         UserStatusActive,
		FullName:       fullName,
		OrganizationID: fmt.Sprintf("org-%d", f.nextID),
		Role:           RoleAdmin,
	}
	f.users[user.ID] = &user
	return user, nil
}

func (f *fakeStore) FindUserByEmail(_ context.Context, email string) (*User, error) {
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindUserByID(_ context.Context, id string) (*User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) UpdateLastLogin(context.Context, string) error { return nil }

func (f *fakeStore) CreateSession(_ context.Context, userID string, _ time.Time) (string, error) {
	id := fmt.Sprintf("session-%d", len(f.sessions)+1)
	f.sessions[id] = userID
	return id, nil
}

func (f *fakeStore) RevokeSession(_ context.Context, _ string, sessionID string) error {
	f.revoked[sessionID] = true
	return nil
}

func (f *fakeStore) SessionValid(_ context.Context, userID, sessionID string) (bool, error) {
	return f.sessions[sessionID] == userID && !f.revoked[sessionID], nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID, tokenHash string, _ time.Time) error {
	f.resets[tokenHash] = userID
	return nil
}

func (f *fakeStore) ResetPassword(_ context.Context, tokenHash, hash string) (string, error) {
	userID, ok := f.resets[tokenHash]
	if !ok {
		return "", ErrInvalidToken
	}
	delete(f.resets, tokenHash)
	f.users[userID].PasswordHash = hash
	return userID, nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, userID, hash string) error {
	user, ok := f.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = hash
	return nil
}

func (f *fakeStore) DeleteExpiredTokens(context.Context) (int64, error) { return 0, nil }

type recordingNotifier struct {
	welcome []string
	resets  map[string]string
	changed []string
	fail    bool
}

func (n *recordingNotifier) Welcome(_ context.Context, email, _ string) error {
	n.welcome = append(n.welcome, email)
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (n *recordingNotifier) PasswordReset(_ context.Context, email, token string) error {
	if n.resets == nil {
		n.resets = map[string]string{}
	}
	n.resets[email] = token
	return nil
}

func (n *recordingNotifier) PasswordChanged(_ context.Context, email string) error {
	n.changed = append(n.changed, email)
	return nil
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]bool{
		"short1A":        false,
		"Abc123":         false,
		"alllower123":    false,
		"ALLUPPER123":    false,
		"NoDigitsHere":   false,
		"Valid1Password": true,
	}
	for password, ok := range cases {
		err := ValidatePassword(password)
		if ok && err != nil {
			t.Fatalf("expected %q to be valid, got %v", password, err)
		}
		if !ok && !errors.Is(err, ErrWeakPassword) {
			t.Fatalf("expected %q to be rejected, got %v", password, err)
		}
	}
}

func TestSignupCreatesAccountAndSendsWelcome(t *testing.T) {
	store := newFakeStore()
	notifier := &recordingNotifier{fail: true}
	svc := NewService(store, notifier, "secret")

	session, err := svc.Signup(context.Background(), SignupInput{
		Email:    "  Owner@Example.com ",
		Password: "Str0ngPass",
		FullName: "Olive Owner",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if session.User.Email != "owner@example.com" {
		t.Fatalf("expected normalized email, got %q", session.User.Email)
	}
	if session.User.OrganizationID == "" || session.User.Role != RoleAdmin {
		t.Fatalf("expected organization and admin role, got %+v", session.User)
	}
	if len(notifier.welcome) != 1 {
		t.Fatalf("expected welcome email attempt, got %d", len(notifier.welcome))
	}
	claims, err := ParseToken("secret", session.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.OrganizationID != session.User.OrganizationID || claims.SessionID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := svc.Signup(context.Background(), SignupInput{Email: "owner@example.com", Password: "Str0ngPass"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, "secret")
	if _, err := svc.Signup(context.Background(), SignupInput{Email: "a@example.com", Password: "Str0ngPass"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := svc.Login(context.Background(), "a@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "missing@example.com", "Str0ngPass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	session, err := svc.Login(context.Background(), "A@example.com", "Str0ngPass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected token")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	store := newFakeStore()
	notifier := &recordingNotifier{}
	svc := NewService(store, notifier, "secret")
	ctx := context.Background()
	if _, err := svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "Str0ngPass"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email should not error: %v", err)
	}
	if err := svc.RequestPasswordReset(ctx, "a@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := notifier.resets["a@example.com"]
	if token == "" {
		t.Fatal("expected reset token to be emailed")
	}
	if _, ok := store.resets[token]; ok {
		t.Fatal("expected only the token hash to be stored")
	}

	if err := svc.ResetPassword(ctx, token, "weak"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "N3wPassword"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "N3wPassword"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token to be single use, got %v", err)
	}
	if len(notifier.changed) != 1 {
		t.Fatalf("expected password changed email, got %d", len(notifier.changed))
	}
	if _, err := svc.Login(ctx, "a@example.com", "N3wPassword"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	store := newFakeStore()
	notifier := &recordingNotifier{}
	svc := NewService(store, notifier, "secret")
	ctx := context.Background()
	session, err := svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "Str0ngPass"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := svc.ChangePassword(ctx, session.User.ID, "wrong", "N3wPassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, session.User.ID, "Str0ngPass", "N3wPassword"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if len(notifier.changed) != 1 {
		t.Fatalf("expected one password changed email, got %d", len(notifier.changed))
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, "secret")
	ctx := context.Background()
	session, err := svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "Str0ngPass"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	claims, err := ParseToken("secret", session.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	user := UserContext{UserID: claims.UserID, SessionID: claims.SessionID}
	if ok, _ := svc.SessionValid(ctx, user.UserID, user.SessionID); !ok {
		t.Fatal("expected session to be valid")
	}
	if err := svc.Logout(ctx, user); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if ok, _ := svc.SessionValid(ctx, user.UserID, user.SessionID); ok {
		t.Fatal("expected session to be revoked")
	}
}
