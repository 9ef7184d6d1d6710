// Package permissions holds the authorization predicates for projects,
// tasks and accounts. Every function is pure: it only looks at the actor
// and the already loaded target.
package permissions

import (
	"net/http"

	"taskmanager/internal/models"
)

// Method is the class of an HTTP method for authorization purposes.
type Method int

const (
	// Read covers GET, HEAD and OPTIONS.
	Read Method = iota
	// Write covers every mutating method.
	Write
)

// MethodOf classifies an HTTP method.
func MethodOf(httpMethod string) Method {
	switch httpMethod {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return Read
	default:
		return Write
	}
}

// Project allows reads to members and staff, writes to the owner and staff.
func Project(actor *models.User, m Method, p models.Project) bool {
	if actor == nil {
		return false
	}
	if actor.IsStaff {
		return true
	}
	if m == Read {
		return p.HasMember(actor.ID)
	}
	return p.OwnerID == actor.ID
}

// Task allows reads to the creator, the project owner, project members and
// staff. Writes are limited to the creator, the project owner and staff, so
// a plain member can see a task but not change it.
func Task(actor *models.User, m Method, t models.Task, p models.Project) bool {
	if actor == nil {
		return false
	}
	if actor.IsStaff || t.CreatedByID == actor.ID || p.OwnerID == actor.ID {
		return true
	}
	if m == Read {
		return p.HasMember(actor.ID)
	}
	return false
}

// CreateTask allows anyone collaborating on the project to add tasks: the
// owner, staff and every member, not only those with write access to
// existing tasks. Project membership is the whole check; no per-task rule
// applies on create. The member becomes the creator and may then edit the
// new task.
func CreateTask(actor *models.User, p models.Project) bool {
	if actor == nil {
		return false
	}
	return actor.IsStaff || p.OwnerID == actor.ID || p.HasMember(actor.ID)
}

// ManageProjectSettings gates statuses and sprints.
func ManageProjectSettings(actor *models.User, p models.Project) bool {
	if actor == nil {
		return false
	}
	return actor.IsStaff || p.OwnerID == actor.ID
}

// DeleteComment allows the author and staff.
func DeleteComment(actor *models.User, c models.Comment) bool {
	if actor == nil {
		return false
	}
	return actor.IsStaff || c.AuthorID == actor.ID
}

// ListUsers is restricted to staff.
func ListUsers(actor *models.User) bool {
	return actor != nil && actor.IsStaff
}

// ViewProfile allows a user to see their own profile. Staff see all.
func ViewProfile(actor *models.User, p models.Profile) bool {
	if actor == nil {
		return false
	}
	return actor.IsStaff || p.UserID == actor.ID
}

// EditProfile is limited to the profile's owner. Staff may read other
// profiles but not change them.
func EditProfile(actor *models.User, p models.Profile) bool {
	return actor != nil && p.UserID == actor.ID
}
