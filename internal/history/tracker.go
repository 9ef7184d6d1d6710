// Package history computes the audit records written alongside every task
// update.
package history

import (
	"strconv"
	"strings"
	"time"

	"taskmanager/internal/models"
)

const none = "None"

// Track compares the tracked fields of the stored task and its updated
// state and returns one record per field whose string form changed. The
// actor may be nil when the acting user is unknown.
func Track(old, updated models.Task, actor *models.User, now time.Time) []models.TaskHistory {
	before := Values(old)
	after := Values(updated)

	var userID *int64
	var userEmail string
	if actor != nil {
		id := actor.ID
		userID = &id
		userEmail = actor.Email
	}

	var records []models.TaskHistory
	for _, field := range models.TrackedFields {
		if before[field] == after[field] {
			continue
		}
		records = append(records, models.TaskHistory{
			TaskID:    updated.ID,
			UserID:    userID,
			UserEmail: userEmail,
			Field:     field,
			OldValue:  before[field],
			NewValue:  after[field],
			Timestamp: now,
		})
	}
	return records
}

// Values returns the string form of every tracked field of t.
func Values(t models.Task) map[string]string {
	return map[string]string{
		models.FieldTitle:          t.Title,
		models.FieldDescription:    t.Description,
		models.FieldStatus:         ref(t.StatusID, t.StatusName),
		models.FieldPriority:       string(t.Priority),
		models.FieldAssignedTo:     ref(t.AssignedToID, t.AssigneeEmail),
		models.FieldDeadline:       formatDeadline(t.Deadline),
		models.FieldEstimatedHours: formatFloat(t.EstimatedHours),
		models.FieldActualHours:    formatFloat(t.ActualHours),
		models.FieldSprint:         ref(t.SprintID, t.SprintName),
		models.FieldStoryPoints:    formatInt(t.StoryPoints),
	}
}

func ref(id *int64, display string) string {
	if id == nil {
		return none
	}
	return display
}

func formatDeadline(t *time.Time) string {
	if t == nil {
		return none
	}
	u := t.UTC()
	if u.Nanosecond()/int(time.Microsecond) == 0 {
		return u.Format("2006-01-02 15:04:05-07:00")
	}
	return u.Format("2006-01-02 15:04:05.000000-07:00")
}

// formatFloat renders the shortest decimal form, keeping a ".0" on
// integral values.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

func formatInt(v *int64) string {
	if v == nil {
		return none
	}
	return strconv.FormatInt(*v, 10)
}
