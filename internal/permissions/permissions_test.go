package permissions

import (
	"net/http"
	"testing"

	"taskmanager/internal/models"
)

var (
	owner    = &models.User{ID: 1, Email: "owner@x.com"}
	member   = &models.User{ID: 2, Email: "member@x.com"}
	creator  = &models.User{ID: 3, Email: "creator@x.com"}
	stranger = &models.User{ID: 4, Email: "stranger@x.com"}
	staff    = &models.User{ID: 5, Email: "staff@x.com", IsStaff: true}

	project = models.Project{ID: 10, OwnerID: owner.ID, Members: []models.User{*member}}
	task    = models.Task{ID: 20, ProjectID: project.ID, CreatedByID: creator.ID}
)

func TestMethodOf(t *testing.T) {
	cases := map[string]Method{
		http.MethodGet:     Read,
		http.MethodHead:    Read,
		http.MethodOptions: Read,
		http.MethodPost:    Write,
		http.MethodPut:     Write,
		http.MethodPatch:   Write,
		http.MethodDelete:  Write,
	}
	for method, want := range cases {
		if got := MethodOf(method); got != want {
			t.Fatalf("MethodOf(%s): got %v want %v", method, got, want)
		}
	}
}

func TestProject(t *testing.T) {
	cases := []struct {
		name  string
		actor *models.User
		read  bool
		write bool
	}{
		{"owner not in member set", owner, false, true},
		{"member", member, true, false},
		{"stranger", stranger, false, false},
		{"staff", staff, true, true},
		{"anonymous", nil, false, false},
	}
	for _, tc := range cases {
		if got := Project(tc.actor, Read, project); got != tc.read {
			t.Fatalf("%s read: got %v want %v", tc.name, got, tc.read)
		}
		if got := Project(tc.actor, Write, project); got != tc.write {
			t.Fatalf("%s write: got %v want %v", tc.name, got, tc.write)
		}
	}
}

func TestTask_MemberCanReadButNotWrite(t *testing.T) {
	if !Task(member, Read, task, project) {
		t.Fatalf("member should read task")
	}
	if Task(member, Write, task, project) {
		t.Fatalf("member must not write task")
	}
}

func TestTask(t *testing.T) {
	cases := []struct {
		name  string
		actor *models.User
		read  bool
		write bool
	}{
		{"creator", creator, true, true},
		{"project owner", owner, true, true},
		{"staff", staff, true, true},
		{"stranger", stranger, false, false},
		{"anonymous", nil, false, false},
	}
	for _, tc := range cases {
		if got := Task(tc.actor, Read, task, project); got != tc.read {
			t.Fatalf("%s read: got %v want %v", tc.name, got, tc.read)
		}
		if got := Task(tc.actor, Write, task, project); got != tc.write {
			t.Fatalf("%s write: got %v want %v", tc.name, got, tc.write)
		}
	}
}

func TestCreateTaskAndSettings(t *testing.T) {
	if !CreateTask(member, project) || !CreateTask(owner, project) || !CreateTask(staff, project) {
		t.Fatalf("collaborators should create tasks")
	}
	if CreateTask(stranger, project) {
		t.Fatalf("stranger must not create tasks")
	}
	if ManageProjectSettings(member, project) {
		t.Fatalf("member must not manage statuses or sprints")
	}
	if !ManageProjectSettings(owner, project) || !ManageProjectSettings(staff, project) {
		t.Fatalf("owner and staff manage statuses and sprints")
	}
}

func TestDeleteCommentAndListUsers(t *testing.T) {
	c := models.Comment{ID: 1, AuthorID: member.ID}
	if !DeleteComment(member, c) || !DeleteComment(staff, c) {
		t.Fatalf("author and staff delete comments")
	}
	if DeleteComment(owner, c) {
		t.Fatalf("owner must not delete someone else's comment")
	}
	if ListUsers(owner) || ListUsers(nil) {
		t.Fatalf("only staff list users")
	}
	if !ListUsers(staff) {
		t.Fatalf("staff list users")
	}
}

func TestCreateTask_MemberWithoutWriteAccessMayCreate(t *testing.T) {
	if Task(member, Write, task, project) {
		t.Fatalf("member must not edit another user's task")
	}
	if !CreateTask(member, project) {
		t.Fatalf("member should still create tasks")
	}
	own := models.Task{ID: 21, ProjectID: project.ID, CreatedByID: member.ID}
	if !Task(member, Write, own, project) {
		t.Fatalf("member should edit the task they created")
	}
}

func TestProfiles(t *testing.T) {
	p := models.Profile{ID: 7, UserID: member.ID}
	cases := []struct {
		name       string
		actor      *models.User
		view, edit bool
	}{
		{"owner of profile", member, true, true},
		{"staff", staff, true, false},
		{"other user", stranger, false, false},
		{"anonymous", nil, false, false},
	}
	for _, tc := range cases {
		if got := ViewProfile(tc.actor, p); got != tc.view {
			t.Fatalf("%s view: got %v want %v", tc.name, got, tc.view)
		}
		if got := EditProfile(tc.actor, p); got != tc.edit {
			t.Fatalf("%s edit: got %v want %v", tc.name, got, tc.edit)
		}
	}
}
