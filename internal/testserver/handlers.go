package testserver

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"whispr/internal/models"
)

func (s *Server) routes() {
	users := s.app.Group("/api/users")
	users.Post("/signup", s.signup)
	users.Post("/login", s.login)
	users.Post("/logout", s.logout)
	users.Get("/profile/:username", s.getProfile)
	users.Post("/follow/:id", s.requireAuth, s.follow(true))
	users.Post("/unfollow/:id", s.requireAuth, s.follow(false))
	users.Post("/update", s.requireAuth, s.updateProfile)

	posts := s.app.Group("/api/posts")
	posts.Get("/feed", s.requireAuth, s.feed)
	posts.Get("/all", s.allPosts)
	posts.Get("/get/:id", s.getPost)
	posts.Post("/create", s.requireAuth, s.createPost)
	posts.Delete("/delete/:id", s.requireAuth, s.deletePost)
	posts.Post("/like/:id", s.requireAuth, s.likePost)
	posts.Post("/reply/:id", s.requireAuth, s.replyToPost)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return respondError(c, fiber.StatusBadRequest, models.NewValidationError(msg))
}

func notFound(c *fiber.Ctx, resource string, id string) error {
	return respondError(c, fiber.StatusNotFound, models.NewNotFoundError(resource, id))
}

func (s *Server) signup(c *fiber.Ctx) error {
	var req models.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := models.ValidateInput(req); err != nil {
		return badRequest(c, "Name, username, email and password are required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var taken int64
	if err := s.db.WithContext(reqCtx(c)).Model(&userRow{}).
		Where("email = ? OR username = ?", req.Email, req.Username).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return badRequest(c, "User already exists")
	}

	u, err := s.createUser(c, req)
	if err != nil {
		return err
	}
	if err := s.setSession(c, u.ID); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(u.toModel())
}

func (s *Server) createUser(c *fiber.Ctx, req models.SignupRequest) (*userRow, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	u := &userRow{
		ID:        newID(),
		Name:      req.Name,
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hash),
		Followers: []string{},
		Following: []string{},
	}
	if err := s.db.WithContext(reqCtx(c)).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Server) login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	u, err := s.userWhere(reqCtx(c), "email", req.Email)
	if err != nil && !errors.Is(err, errNotFound) {
		return err
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		return respondError(c, fiber.StatusBadRequest, models.NewUnauthorizedError("Invalid email or password"))
	}
	if err := s.setSession(c, u.ID); err != nil {
		return err
	}
	return c.JSON(u.toModel())
}

func (s *Server) logout(c *fiber.Ctx) error {
	clearSession(c)
	return c.JSON(fiber.Map{"message": "User logged out successfully"})
}

func (s *Server) getProfile(c *fiber.Ctx) error {
	u, err := s.userWhere(reqCtx(c), "username", c.Params("username"))
	if errors.Is(err, errNotFound) {
		return notFound(c, "User", c.Params("username"))
	}
	if err != nil {
		return err
	}
	return c.JSON(u.toModel())
}

func (s *Server) follow(on bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		me := viewerID(c)
		targetID := c.Params("id")
		if targetID == me {
			return badRequest(c, "You cannot follow/unfollow yourself")
		}

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		target, err := s.userByID(reqCtx(c), targetID)
		if errors.Is(err, errNotFound) {
			return notFound(c, "User", targetID)
		}
		if err != nil {
			return err
		}
		self, err := s.userByID(reqCtx(c), me)
		if err != nil {
			return err
		}

		if on {
			target.Followers = models.AddUnique(target.Followers, me)
			self.Following = models.AddUnique(self.Following, targetID)
		} else {
			target.Followers = models.Remove(target.Followers, me)
			self.Following = models.Remove(self.Following, targetID)
		}
		if err := s.db.WithContext(reqCtx(c)).Save(target).Error; err != nil {
			return err
		}
		if err := s.db.WithContext(reqCtx(c)).Save(self).Error; err != nil {
			return err
		}

		msg := "User followed successfully"
		if !on {
			msg = "User unfollowed successfully"
		}
		return c.JSON(fiber.Map{"message": msg})
	}
}

func (s *Server) updateProfile(c *fiber.Ctx) error {
	var req models.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	u, err := s.userByID(reqCtx(c), viewerID(c))
	if err != nil {
		return err
	}
	if req.Username != nil && *req.Username != u.Username {
		if _, err := s.userWhere(reqCtx(c), "username", *req.Username); err == nil {
			return badRequest(c, "Username is already taken")
		}
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&u.Name, req.Name)
	apply(&u.Username, req.Username)
	apply(&u.Email, req.Email)
	apply(&u.Bio, req.Bio)
	apply(&u.ProfilePic, req.ProfilePic)
	if err := s.db.WithContext(reqCtx(c)).Save(u).Error; err != nil {
		return err
	}
	return c.JSON(u.toModel())
}

func (s *Server) listPosts(c *fiber.Ctx, authorIDs []string) error {
	q := s.db.WithContext(reqCtx(c)).Order("created_at DESC, id DESC")
	if authorIDs != nil {
		q = q.Where("posted_by IN ?", authorIDs)
	}
	var rows []postRow
	if err := q.Find(&rows).Error; err != nil {
		return err
	}
	out, err := s.hydrate(reqCtx(c), rows)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *Server) feed(c *fiber.Ctx) error {
	me, err := s.userByID(reqCtx(c), viewerID(c))
	if err != nil {
		return err
	}
	return s.listPosts(c, append([]string{me.ID}, me.Following...))
}

func (s *Server) allPosts(c *fiber.Ctx) error {
	return s.listPosts(c, nil)
}

func (s *Server) getPost(c *fiber.Ctx) error {
	row, err := s.postByID(reqCtx(c), c.Params("id"))
	if errors.Is(err, errNotFound) {
		return notFound(c, "Post", c.Params("id"))
	}
	if err != nil {
		return err
	}
	out, err := s.hydrate(reqCtx(c), []postRow{*row})
	if err != nil {
		return err
	}
	return c.JSON(out[0])
}

func (s *Server) createPost(c *fiber.Ctx) error {
	var req models.NewPost
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return badRequest(c, "Text field is required")
	}
	if utf8.RuneCountInString(req.Content) > models.DefaultMaxPostChars {
		return badRequest(c, "Text must be less than 500 characters")
	}

	row, err := s.insertPost(c, viewerID(c), req)
	if err != nil {
		return err
	}
	out, err := s.hydrate(reqCtx(c), []postRow{*row})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out[0])
}

func (s *Server) insertPost(c *fiber.Ctx, authorID string, req models.NewPost) (*postRow, error) {
	row := &postRow{
		ID:       newID(),
		PostedBy: authorID,
		Content:  req.Content,
		Image:    req.Image,
		Likes:    []string{},
		Replies:  []models.Reply{},
	}
	if err := s.db.WithContext(reqCtx(c)).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Server) deletePost(c *fiber.Ctx) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	row, err := s.postByID(reqCtx(c), c.Params("id"))
	if errors.Is(err, errNotFound) {
		return notFound(c, "Post", c.Params("id"))
	}
	if err != nil {
		return err
	}
	if row.PostedBy != viewerID(c) {
		return respondError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError("Unauthorized to delete post"))
	}
	if err := s.db.WithContext(reqCtx(c)).Delete(&postRow{}, "id = ?", row.ID).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

func (s *Server) likePost(c *fiber.Ctx) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	row, err := s.postByID(reqCtx(c), c.Params("id"))
	if errors.Is(err, errNotFound) {
		return notFound(c, "Post", c.Params("id"))
	}
	if err != nil {
		return err
	}
	me := viewerID(c)
	msg := "Post liked successfully"
	if models.Contains(row.Likes, me) {
		row.Likes = models.Remove(row.Likes, me)
		msg = "Post unliked successfully"
	} else {
		row.Likes = models.AddUnique(row.Likes, me)
	}
	if err := s.db.WithContext(reqCtx(c)).Save(row).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": msg})
}

func (s *Server) replyToPost(c *fiber.Ctx) error {
	var req models.NewReply
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return badRequest(c, "Text field is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	row, err := s.postByID(reqCtx(c), c.Params("id"))
	if errors.Is(err, errNotFound) {
		return notFound(c, "Post", c.Params("id"))
	}
	if err != nil {
		return err
	}
	me, err := s.userByID(reqCtx(c), viewerID(c))
	if err != nil {
		return err
	}
	reply := models.Reply{
		ID:             newID(),
		UserID:         me.ID,
		Username:       me.Username,
		UserProfilePic: me.ProfilePic,
		Content:        req.Content,
		Image:          req.Image,
		Likes:          []string{},
	}
	row.Replies = append(row.Replies, reply)
	if err := s.db.WithContext(reqCtx(c)).Save(row).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}
