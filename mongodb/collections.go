package mongodb

const (
	UsersCollection             = "users"
	PortalAccountsCollection    = "portal_accounts"
	PortalPermissionsCollection = "portal_permissions"
	LoginHistoryCollection      = "portal_login_history" // best-effort audit of directory logins
)
