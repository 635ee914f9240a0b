package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// Demographics carries the optional registration fields.
type Demographics struct {
	Country string
	Email   string
	Phone   string
	Gender  string
}

// Register creates a new account with a freshly hashed password and seeds
// its default progress.
func (s *Store) Register(username, password string, extra Demographics) (PublicUser, error) {
	name := strings.TrimSpace(username)
	if len(name) < 3 {
		return PublicUser{}, fmt.Errorf("%w: username too short", ErrValidation)
	}
	if len(password) < 4 {
		return PublicUser{}, fmt.Errorf("%w: password too short", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return PublicUser{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, name) {
			s.mu.Unlock()
			return PublicUser{}, ErrUserExists
		}
	}

	user := User{
		ID:        uuid.NewString(),
		Username:  name,
		PassHash:  string(hash),
		CreatedAt: time.Now().UnixMilli(),
		Country:   extra.Country,
		Email:     extra.Email,
		Phone:     extra.Phone,
	}
	switch extra.Gender {
	case "M", "F", "X":
		user.Gender = extra.Gender
	}
	s.users = append(s.users, user)
	s.ensureProgressLocked(user.ID)
	s.log("register", user.ID, map[string]any{"username": name})
	s.mu.Unlock()

	s.saver.Schedule()
	return user.Public(), nil
}

// VerifyLogin checks credentials and stamps the login time. The same error
// covers unknown user and wrong password so the response does not leak which
// usernames exist.
func (s *Store) VerifyLogin(username, password string) (PublicUser, error) {
	s.mu.Lock()
	var id, hash string
	for i := range s.users {
		if strings.EqualFold(s.users[i].Username, strings.TrimSpace(username)) {
			id, hash = s.users[i].ID, s.users[i].PassHash
			break
		}
	}
	s.mu.Unlock()
	if id == "" {
		return PublicUser{}, ErrInvalidLogin
	}

	// bcrypt runs outside the lock; it is deliberately slow.
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return PublicUser{}, ErrInvalidLogin
	}

	// Re-find by id: a concurrent Register may have grown the slice.
	s.mu.Lock()
	var pub PublicUser
	found := false
	for i := range s.users {
		if s.users[i].ID == id {
			s.users[i].LastLoginAt = time.Now().UnixMilli()
			s.log("login", id, map[string]any{"username": s.users[i].Username})
			pub = s.users[i].Public()
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return PublicUser{}, ErrInvalidLogin
	}

	s.saver.Schedule()
	return pub, nil
}

// ChangePassword replaces the stored hash. New passwords must be at least
// eight characters.
func (s *Store) ChangePassword(userID, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password too short", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].PassHash = string(hash)
			s.log("password_change", userID, nil)
			s.saver.Schedule()
			return nil
		}
	}
	return ErrNotFound
}
