package rbac

const (
	RoleParticipant = "participant"
	RoleAdmin       = "admin"
)

// RolePermissions is the default permission table. Participants get the
// study-taking surface; admins get everything.
var RolePermissions = map[string][]string{
	RoleParticipant: {
		"attempt:*",
		"chat:send",
		"demographics:write",
	},
	RoleAdmin: {"*"},
}
