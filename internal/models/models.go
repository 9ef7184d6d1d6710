package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// User is an account that can own projects and work on tasks.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PhoneNumber  string    `json:"phone_number"`
	PasswordHash string    `json:"-"`
	IsStaff      bool      `json:"is_staff"`
	CreatedAt    time.Time `json:"created_at"`
}

// String returns the user's email, which identifies the user everywhere
// a human readable value is needed (history records, notifications).
func (u User) String() string {
	return u.Email
}

// Profile holds the free-form details a user keeps about themselves. Every
// user has exactly one.
type Profile struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"-"`
	User   User   `json:"user"`
	Bio    string `json:"bio"`
	Skills string `json:"skills"`
}

// Project groups tasks under a single owner and a set of members.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     int64     `json:"owner_id"`
	Members     []User    `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasMember reports whether the user belongs to the project's member set.
// The owner is not implicitly a member.
func (p Project) HasMember(userID int64) bool {
	for _, m := range p.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// TaskStatus is a per-project Kanban column.
type TaskStatus struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Order     int64  `json:"order"`
}

// Sprint is a named period of work inside a project.
type Sprint struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities enumerates the priorities accepted for a task.
var ValidPriorities = map[Priority]struct{}{
	PriorityLow:    {},
	PriorityMedium: {},
	PriorityHigh:   {},
}

// Task is a unit of work inside a project.
//
// StatusName, SprintName and AssigneeEmail are resolved from their
// references by the store and are what history records compare.
type Task struct {
	ID             int64      `json:"id"`
	ProjectID      int64      `json:"project_id"`
	ParentTaskID   *int64     `json:"parent_task_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	StatusID       *int64     `json:"status_id"`
	StatusName     string     `json:"status,omitempty"`
	Priority       Priority   `json:"priority"`
	CreatedByID    int64      `json:"created_by_id"`
	AssignedToID   *int64     `json:"assigned_to_id"`
	AssigneeEmail  string     `json:"assigned_to,omitempty"`
	Deadline       *time.Time `json:"deadline"`
	EstimatedHours float64    `json:"estimated_hours"`
	ActualHours    float64    `json:"actual_hours"`
	SprintID       *int64     `json:"sprint_id"`
	SprintName     string     `json:"sprint,omitempty"`
	StoryPoints    *int64     `json:"story_points"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TaskDetail is a task together with the name of its project, used when
// composing notifications.
type TaskDetail struct {
	Task
	ProjectName string `json:"project_name"`
}

// Fields whose changes are recorded in the task history.
const (
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldStatus         = "status"
	FieldPriority       = "priority"
	FieldAssignedTo     = "assigned_to"
	FieldDeadline       = "deadline"
	FieldEstimatedHours = "estimated_hours"
	FieldActualHours    = "actual_hours"
	FieldSprint         = "sprint"
	FieldStoryPoints    = "story_points"
)

// TrackedFields lists the history-tracked fields in comparison order.
var TrackedFields = []string{
	FieldTitle,
	FieldDescription,
	FieldStatus,
	FieldPriority,
	FieldAssignedTo,
	FieldDeadline,
	FieldEstimatedHours,
	FieldActualHours,
	FieldSprint,
	FieldStoryPoints,
}

// TaskHistory is an immutable record of one field change on a task.
type TaskHistory struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    *int64    `json:"user_id"`
	UserEmail string    `json:"user,omitempty"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Timestamp time.Time `json:"timestamp"`
}

// Comment is a note left on a task.
type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	AuthorID  int64     `json:"author_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment describes a file linked to a task. The file itself lives
// outside the store; only its metadata is kept.
type Attachment struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"task_id"`
	UploadedBy  int64     `json:"uploaded_by_id"`
	Uploader    string    `json:"uploaded_by"`
	FileName    string    `json:"file_name"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Field is an optional, nullable patch value. Set is true when the key was
// present in the request; Value is nil when it was explicitly null.
type Field[T any] struct {
	Set   bool
	Value *T
}

// Some returns a set field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// Null returns a set field holding null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

// UnmarshalJSON marks the field as set and decodes the value, keeping nil for null.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// TaskPatch carries a partial update. Nil pointers and unset fields keep
// the stored value.
type TaskPatch struct {
	Title          *string
	Description    *string
	Priority       *Priority
	StatusID       Field[int64]
	AssignedToID   Field[int64]
	ParentTaskID   Field[int64]
	Deadline       Field[time.Time]
	EstimatedHours *float64
	ActualHours    *float64
	SprintID       Field[int64]
	StoryPoints    Field[int64]
}

// Apply returns a copy of t with the patch applied. Resolved display
// values of changed references are cleared for the store to fill in.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.StatusID.Set {
		t.StatusID = p.StatusID.Value
		t.StatusName = ""
	}
	if p.AssignedToID.Set {
		t.AssignedToID = p.AssignedToID.Value
		t.AssigneeEmail = ""
	}
	if p.ParentTaskID.Set {
		t.ParentTaskID = p.ParentTaskID.Value
	}
	if p.Deadline.Set {
		t.Deadline = p.Deadline.Value
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = *p.EstimatedHours
	}
	if p.ActualHours != nil {
		t.ActualHours = *p.ActualHours
	}
	if p.SprintID.Set {
		t.SprintID = p.SprintID.Value
		t.SprintName = ""
	}
	if p.StoryPoints.Set {
		t.StoryPoints = p.StoryPoints.Value
	}
	return t
}
