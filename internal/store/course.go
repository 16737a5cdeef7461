package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/model"
)

func (s *gormStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "User")
	}
	return &user, nil
}

func (s *gormStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err, "User")
	}
	return &user, nil
}

func (s *gormStore) SaveUser(ctx context.Context, user *model.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		if apperr.IsDuplicate(err) {
			return apperr.New(apperr.KindInvalidCardNumber, "Card number already in use.")
		}
		return fmt.Errorf("failed to save user %d: %w", user.ID, err)
	}
	return nil
}

// CardNumberInUse reports whether card is stored on any user or course other than the given ones.
func (s *gormStore) CardNumberInUse(ctx context.Context, card string, exceptUserID, exceptCourseID int64) (bool, error) {
	var users int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("card_number = ? AND id <> ?", card, exceptUserID).
		Count(&users).Error; err != nil {
		return false, fmt.Errorf("failed to check card number on users: %w", err)
	}
	if users > 0 {
		return true, nil
	}

	var courses int64
	if err := s.db.WithContext(ctx).Model(&model.Printer3DCourse{}).
		Where("card_number = ? AND id <> ?", card, exceptCourseID).
		Count(&courses).Error; err != nil {
		return false, fmt.Errorf("failed to check card number on courses: %w", err)
	}
	return courses > 0, nil
}

func (s *gormStore) GetCoursePermission(ctx context.Context, shortName string) (*model.CoursePermission, error) {
	var permission model.CoursePermission
	if err := s.db.WithContext(ctx).Where("short_name = ?", shortName).First(&permission).Error; err != nil {
		return nil, notFound(err, "Course permission")
	}
	return &permission, nil
}

func (s *gormStore) ListCoursePermissions(ctx context.Context, shortNames []string) ([]model.CoursePermission, error) {
	var permissions []model.CoursePermission
	query := s.db.WithContext(ctx).Order("short_name")
	if len(shortNames) > 0 {
		query = query.Where("short_name IN ?", shortNames)
	}
	if err := query.Find(&permissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list course permissions: %w", err)
	}
	return permissions, nil
}

// UpsertCoursePermission inserts the permission or renames the existing one with the same short name.
func (s *gormStore) UpsertCoursePermission(ctx context.Context, permission *model.CoursePermission) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "short_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(permission).Error
	if err != nil {
		return fmt.Errorf("failed to upsert course permission %s: %w", permission.ShortName, err)
	}
	if permission.ID == 0 {
		stored, err := s.GetCoursePermission(ctx, permission.ShortName)
		if err != nil {
			return err
		}
		permission.ID = stored.ID
	}
	return nil
}

func (s *gormStore) GetCourse(ctx context.Context, id int64) (*model.Printer3DCourse, error) {
	var course model.Printer3DCourse
	if err := s.db.WithContext(ctx).Preload("User").Preload("CoursePermissions").First(&course, id).Error; err != nil {
		return nil, notFound(err, "Course")
	}
	return &course, nil
}

// FindCourseForUser returns the course linked to userID, or nil.
func (s *gormStore) FindCourseForUser(ctx context.Context, userID int64) (*model.Printer3DCourse, error) {
	return s.findCourse(ctx, "user_id = ?", userID)
}

// FindCourseByUsername returns the course registered under username, or nil.
func (s *gormStore) FindCourseByUsername(ctx context.Context, username string) (*model.Printer3DCourse, error) {
	return s.findCourse(ctx, "username = ?", username)
}

func (s *gormStore) findCourse(ctx context.Context, cond string, arg any) (*model.Printer3DCourse, error) {
	var course model.Printer3DCourse
	err := s.db.WithContext(ctx).Preload("User").Preload("CoursePermissions").Where(cond, arg).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course: %w", err)
	}
	return &course, nil
}

func (s *gormStore) CreateCourse(ctx context.Context, course *model.Printer3DCourse) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(course).Error; err != nil {
			return courseError(err)
		}
		return replaceCoursePermissions(tx, course)
	})
}

func (s *gormStore) SaveCourse(ctx context.Context, course *model.Printer3DCourse) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(course).Error; err != nil {
			return courseError(err)
		}
		return replaceCoursePermissions(tx, course)
	})
}

func replaceCoursePermissions(tx *gorm.DB, course *model.Printer3DCourse) error {
	association := tx.Model(course).Association("CoursePermissions")
	var err error
	if len(course.CoursePermissions) == 0 {
		err = association.Clear()
	} else {
		err = association.Replace(course.CoursePermissions)
	}
	if err != nil {
		return fmt.Errorf("failed to set permissions of course %d: %w", course.ID, err)
	}
	return nil
}

func courseError(err error) error {
	if apperr.IsDuplicate(err) {
		return apperr.New(apperr.KindValidation, "A course with this username or card number already exists.").OnField("username")
	}
	return fmt.Errorf("failed to save course: %w", err)
}
