package realtime

import "github.com/google/uuid"

type SSEEvent string

const (
	SSEEventNotification   SSEEvent = "notification"
	SSEEventCourseUpdated  SSEEvent = "course_updated"
	SSEEventSubjectUpdated SSEEvent = "subject_updated"
	SSEEventProgress       SSEEvent = "progress_updated"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// UserChannel is the channel every stream of that user is subscribed to.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

func CourseChannel(courseID uuid.UUID) string {
	return "course:" + courseID.String()
}
