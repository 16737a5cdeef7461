package course

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/parse"
	"makequeue-backend/internal/store"
)

// Service maintains printer course records.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(s store.Store) *Service {
	return &Service{store: s, logger: logger.WithComponent("course")}
}

// Input carries the editable fields of a course.
type Input struct {
	Username    string
	Name        string
	DateTaken   time.Time
	CardNumber  string
	Permissions []string
}

func (s *Service) Create(ctx context.Context, in Input) (*model.Printer3DCourse, error) {
	c := &model.Printer3DCourse{}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := apply(ctx, tx, c, in); err != nil {
			return err
		}
		return tx.CreateCourse(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("course registered", "course_id", c.ID, "username", c.Username, "linked", c.UserID != nil)
	return c, nil
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (*model.Printer3DCourse, error) {
	var c *model.Printer3DCourse
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		c, err = tx.GetCourse(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(ctx, tx, c, in); err != nil {
			return err
		}
		return tx.SaveCourse(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// apply copies in onto c. When a user with the course's username exists the course is
// linked to it and the card number is stored on the user instead.
func apply(ctx context.Context, tx store.Store, c *model.Printer3DCourse, in Input) error {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return apperr.New(apperr.KindValidation, "This field is required.").OnField("username")
	}
	if in.DateTaken.IsZero() {
		return apperr.New(apperr.KindValidation, "This field is required.").OnField("date")
	}

	card, err := parse.NormalizeCardNumber(in.CardNumber)
	if err != nil {
		return apperr.New(apperr.KindInvalidCardNumber, err.Error())
	}

	permissions, err := tx.ListCoursePermissions(ctx, in.Permissions)
	if err != nil {
		return err
	}
	if len(in.Permissions) > 0 && len(permissions) != len(in.Permissions) {
		return apperr.New(apperr.KindValidation, "Unknown course permission.").OnField("permissions")
	}
	if len(in.Permissions) == 0 {
		permissions = nil
	}

	var user *model.User
	if c.UserID != nil && c.Username == username {
		user, err = tx.GetUser(ctx, *c.UserID)
	} else {
		user, err = tx.GetUserByUsername(ctx, username)
	}
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return err
	}

	if card != "" {
		var exceptUser int64
		if user != nil {
			exceptUser = user.ID
		}
		inUse, err := tx.CardNumberInUse(ctx, card, exceptUser, c.ID)
		if err != nil {
			return err
		}
		if inUse {
			return apperr.New(apperr.KindInvalidCardNumber, "Card number is already in use.")
		}
	}

	c.Username = username
	c.Name = strings.TrimSpace(in.Name)
	c.DateTaken = in.DateTaken
	c.CoursePermissions = permissions
	c.CardNumber = nil
	c.UserID = nil
	c.User = nil

	if user == nil {
		if card != "" {
			c.CardNumber = &card
		}
		return nil
	}

	c.UserID = &user.ID
	c.User = user
	if card != "" {
		user.CardNumber = &card
		return tx.SaveUser(ctx, user)
	}
	return nil
}
