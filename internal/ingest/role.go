package ingest

import "strings"

// Role is the part a photo plays in a site's assessment.
type Role string

const (
	RoleDamage       Role = "damage"
	RolePrecondition Role = "precondition"
	RoleCompletion   Role = "completion"
)

// Title is the label used for the role in map popups and reports.
func (r Role) Title() string {
	switch r {
	case RolePrecondition:
		return "Precondition"
	case RoleCompletion:
		return "Completion"
	default:
		return "Damage"
	}
}

type roleRule struct {
	keyword string
	role    Role
}

// roleRules are evaluated top-down; the first keyword contained in the
// folder name decides the role, regardless of where it appears in the name.
var roleRules = []roleRule{
	{"damage", RoleDamage},
	{"precondition", RolePrecondition},
	{"before", RolePrecondition},
	{"completion", RoleCompletion},
	{"after", RoleCompletion},
}

const defaultRole = RoleDamage

// Classify maps a role folder name to a Role, case-insensitively.
func Classify(folder string) Role {
	name := strings.ToLower(folder)
	for _, rule := range roleRules {
		if strings.Contains(name, rule.keyword) {
			return rule.role
		}
	}
	return defaultRole
}
