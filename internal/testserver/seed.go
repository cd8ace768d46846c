package testserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"

	"whispr/internal/models"
)

// Account is a seeded user and the password it was created with.
type Account struct {
	User     *models.User
	Password string
}

// AddUser creates an account directly in the database.
func (s *Server) AddUser(ctx context.Context, name, username, email, password string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := &userRow{
		ID:        newID(),
		Name:      name,
		Username:  username,
		Email:     email,
		Password:  string(hash),
		Followers: []string{},
		Following: []string{},
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, fmt.Errorf("add user %s: %w", username, err)
	}
	return &Account{User: u.toModel(), Password: password}, nil
}

// AddPost creates a post by authorID directly in the database.
func (s *Server) AddPost(ctx context.Context, authorID, content, image string) (*models.Post, error) {
	row := &postRow{
		ID:       newID(),
		PostedBy: authorID,
		Content:  content,
		Image:    image,
		Likes:    []string{},
		Replies:  []models.Reply{},
	}
	s.writeMu.Lock()
	err := s.db.WithContext(ctx).Create(row).Error
	s.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("add post: %w", err)
	}
	out, err := s.hydrate(ctx, []postRow{*row})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// Connect makes follower follow target.
func (s *Server) Connect(ctx context.Context, followerID, targetID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	follower, err := s.userByID(ctx, followerID)
	if err != nil {
		return err
	}
	target, err := s.userByID(ctx, targetID)
	if err != nil {
		return err
	}
	follower.Following = models.AddUnique(follower.Following, targetID)
	target.Followers = models.AddUnique(target.Followers, followerID)
	if err := s.db.WithContext(ctx).Save(follower).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(target).Error
}

// Seed fills the database with deterministic fake users and posts. Every
// account has the password "password123".
func (s *Server) Seed(ctx context.Context, seed int64, users, postsPerUser int) ([]*Account, error) {
	faker := gofakeit.New(seed)
	accounts := make([]*Account, 0, users)
	for i := 0; i < users; i++ {
		first := faker.FirstName()
		handle := fmt.Sprintf("%s%d", strings.ToLower(first), i)
		acct, err := s.AddUser(ctx, first+" "+faker.LastName(), handle, handle+"@"+faker.DomainName(), "password123")
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)

		for j := 0; j < postsPerUser; j++ {
			content := faker.Sentence(8)
			if len(content) > models.DefaultMaxPostChars {
				content = content[:models.DefaultMaxPostChars]
			}
			image := ""
			if j%2 == 1 {
				image = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", faker.UUID())
			}
			if _, err := s.AddPost(ctx, acct.User.ID, content, image); err != nil {
				return nil, err
			}
			// Spread creation times so feed order is stable.
			time.Sleep(time.Millisecond)
		}
	}
	return accounts, nil
}
