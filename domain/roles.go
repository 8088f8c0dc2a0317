package domain

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
	// RoleUser is assigned to federated identities without an explicit role.
	RoleUser = "user"
)
