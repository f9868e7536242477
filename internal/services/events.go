package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/trainhub-backend/internal/data/repos"
	"github.com/yungbote/trainhub-backend/internal/domain/jobs"
	"github.com/yungbote/trainhub-backend/internal/domain/notify"
	"github.com/yungbote/trainhub-backend/internal/domain/training"
	"github.com/yungbote/trainhub-backend/internal/platform/dbctx"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
	"github.com/yungbote/trainhub-backend/internal/realtime"
	"github.com/yungbote/trainhub-backend/internal/realtime/bus"
)

// Announcement is one post-commit fan-out: a notification per recipient and, when
// EmailKind is set, a queued email per recipient.
type Announcement struct {
	UserIDs   []uuid.UUID
	Type      string
	Title     string
	Message   string
	LinkTo    string
	Metadata  map[string]any
	EmailKind string
}

// Announcer runs side effects after a transition has committed.
// Nothing it does can fail the caller; problems are logged.
type Announcer struct {
	log           *logger.Logger
	users         repos.UserRepo
	notifications NotificationService
	emails        EmailQueue
	bus           bus.Bus
	frontendURL   string
}

func NewAnnouncer(log *logger.Logger, users repos.UserRepo, notifications NotificationService, emails EmailQueue, b bus.Bus, frontendURL string) *Announcer {
	return &Announcer{
		log:           log.With("service", "Announcer"),
		users:         users,
		notifications: notifications,
		emails:        emails,
		bus:           b,
		frontendURL:   strings.TrimRight(frontendURL, "/"),
	}
}

func (a *Announcer) Announce(ctx context.Context, ann Announcement) {
	if a == nil || len(ann.UserIDs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	ids := dedupeIDs(ann.UserIDs)

	if a.notifications != nil {
		inputs := make([]NotificationInput, 0, len(ids))
		for _, id := range ids {
			inputs = append(inputs, NotificationInput{
				UserID:   id,
				Type:     ann.Type,
				Title:    ann.Title,
				Message:  ann.Message,
				LinkTo:   ann.LinkTo,
				Metadata: ann.Metadata,
			})
		}
		if _, err := a.notifications.Create(ctx, inputs...); err != nil {
			a.log.Warn("notification fan-out failed", "type", ann.Type, "recipients", len(ids), "error", err)
		}
	}

	if ann.EmailKind == "" || a.emails == nil || a.users == nil {
		return
	}
	users, err := a.users.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		a.log.Warn("email recipients lookup failed", "kind", ann.EmailKind, "error", err)
		return
	}
	payloads := make([]jobs.EmailPayload, 0, len(users))
	for _, u := range users {
		if u == nil || !u.IsActive {
			continue
		}
		payloads = append(payloads, jobs.EmailPayload{
			To:      u.Email,
			ToName:  u.FullName,
			Subject: ann.Title,
			Text:    a.emailText(u.FullName, ann),
		})
	}
	if _, err := a.emails.Enqueue(ctx, ann.EmailKind, payloads...); err != nil {
		a.log.Warn("email enqueue failed", "kind", ann.EmailKind, "error", err)
	}
}

// Publish pushes a realtime event without persisting anything.
func (a *Announcer) Publish(ctx context.Context, channel string, event realtime.SSEEvent, data any) {
	if a == nil || a.bus == nil {
		return
	}
	msg := realtime.SSEMessage{Channel: channel, Event: event, Data: data}
	if err := a.bus.Publish(context.WithoutCancel(ctx), msg); err != nil {
		a.log.Warn("realtime publish failed", "channel", channel, "event", event, "error", err)
	}
}

func (a *Announcer) CourseFinished(ctx context.Context, c *training.Course, traineeIDs []uuid.UUID) {
	a.Announce(ctx, Announcement{
		UserIDs:   traineeIDs,
		Type:      notify.TypeCourseFinished,
		Title:     "Course finished",
		Message:   fmt.Sprintf("The course %q is finished.", c.Title),
		LinkTo:    courseLink(c.ID),
		EmailKind: EmailKindCourseFinish,
	})
	a.Publish(ctx, realtime.CourseChannel(c.ID), realtime.SSEEventCourseUpdated, map[string]any{
		"courseId": c.ID, "status": training.StatusFinished,
	})
}

func (a *Announcer) SubjectFinished(ctx context.Context, s *training.Subject, traineeIDs []uuid.UUID) {
	a.Announce(ctx, Announcement{
		UserIDs: traineeIDs,
		Type:    notify.TypeSubjectFinished,
		Title:   "Subject finished",
		Message: fmt.Sprintf("The subject %q is finished.", s.Title),
		LinkTo:  subjectLink(s.CourseID, s.ID),
	})
	a.Publish(ctx, realtime.CourseChannel(s.CourseID), realtime.SSEEventSubjectUpdated, map[string]any{
		"courseId": s.CourseID, "subjectId": s.ID, "status": training.StatusFinished,
	})
}

func (a *Announcer) emailText(name string, ann Announcement) string {
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", name)
	}
	b.WriteString(ann.Message)
	if ann.LinkTo != "" && a.frontendURL != "" {
		fmt.Fprintf(&b, "\n\n%s%s", a.frontendURL, ann.LinkTo)
	}
	return b.String()
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func courseLink(id uuid.UUID) string { return "/courses/" + id.String() }
func subjectLink(courseID, subjectID uuid.UUID) string {
	return "/courses/" + courseID.String() + "/subjects/" + subjectID.String()
}
