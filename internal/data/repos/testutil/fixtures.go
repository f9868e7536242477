package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/domain/user"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, role user.Role) *user.User {
	tb.Helper()
	id := uuid.New()
	u := &user.User{
		ID:       id,
		Email:    fmt.Sprintf("%s-%s@example.com", role, id.String()[:8]),
		Password: "pw",
		FullName: "Test " + string(role),
		Role:     role,
		IsActive: true,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, creatorID uuid.UUID, status training.Status) *training.Course {
	tb.Helper()
	c := &training.Course{
		ID:        uuid.New(),
		Title:     "course",
		Status:    status,
		CreatorID: creatorID,
	}
	if status != training.StatusNotStarted {
		now := time.Now().UTC()
		c.StartDate = &now
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedSubject(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, order int, status training.Status) *training.Subject {
	tb.Helper()
	s := &training.Subject{
		ID:       uuid.New(),
		CourseID: courseID,
		Title:    fmt.Sprintf("subject %d", order),
		Status:   status,
		Order:    order,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed subject: %v", err)
	}
	return s
}

func SeedTask(tb testing.TB, ctx context.Context, tx *gorm.DB, subjectID uuid.UUID, order int, due *time.Time) *training.Task {
	tb.Helper()
	t := &training.Task{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Title:     fmt.Sprintf("task %d", order),
		Order:     order,
		DueDate:   due,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed task: %v", err)
	}
	return t
}
