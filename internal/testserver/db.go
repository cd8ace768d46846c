package testserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whispr/internal/models"
)

// userRow is a stored account.
type userRow struct {
	ID         string   `gorm:"primaryKey;size:26"`
	Name       string   `gorm:"not null"`
	Username   string   `gorm:"uniqueIndex;not null"`
	Email      string   `gorm:"uniqueIndex;not null"`
	Password   string   `gorm:"not null"`
	ProfilePic string
	Bio        string
	Followers  []string `gorm:"serializer:json"`
	Following  []string `gorm:"serializer:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (userRow) TableName() string { return "users" }

func (u *userRow) toModel() *models.User {
	return &models.User{
		ID:         u.ID,
		Name:       u.Name,
		Username:   u.Username,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		Bio:        u.Bio,
		Followers:  nonNil(u.Followers),
		Following:  nonNil(u.Following),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// postRow is a stored post. Replies are embedded.
type postRow struct {
	ID        string         `gorm:"primaryKey;size:26"`
	PostedBy  string         `gorm:"index;not null"`
	Content   string         `gorm:"not null"`
	Image     string
	Likes     []string       `gorm:"serializer:json"`
	Replies   []models.Reply `gorm:"serializer:json"`
	CreatedAt time.Time      `gorm:"index"`
	UpdatedAt time.Time
}

func (postRow) TableName() string { return "posts" }

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func newID() string { return ulid.Make().String() }

var errNotFound = errors.New("record not found")

func openDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&userRow{}, &postRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (s *Server) userByID(ctx context.Context, id string) (*userRow, error) {
	var u userRow
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotFound
	}
	return &u, err
}

func (s *Server) userWhere(ctx context.Context, column, value string) (*userRow, error) {
	var u userRow
	err := s.db.WithContext(ctx).Where(column+" = ?", value).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotFound
	}
	return &u, err
}

func (s *Server) postByID(ctx context.Context, id string) (*postRow, error) {
	var p postRow
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotFound
	}
	return &p, err
}

// hydrate attaches author snapshots to posts.
func (s *Server) hydrate(ctx context.Context, rows []postRow) ([]models.Post, error) {
	authorIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		authorIDs = append(authorIDs, r.PostedBy)
	}
	var authors []userRow
	if len(authorIDs) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", authorIDs).Find(&authors).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[string]*models.User, len(authors))
	for i := range authors {
		byID[authors[i].ID] = authors[i].toModel()
	}

	out := make([]models.Post, 0, len(rows))
	for _, r := range rows {
		replies := r.Replies
		if replies == nil {
			replies = []models.Reply{}
		}
		out = append(out, models.Post{
			ID:        r.ID,
			PostedBy:  byID[r.PostedBy].Clone(),
			Content:   r.Content,
			Image:     r.Image,
			Likes:     nonNil(r.Likes),
			Replies:   replies,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}
