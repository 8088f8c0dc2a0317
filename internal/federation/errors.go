package federation

import "errors"

var (
	ErrBridgeDisabled         = errors.New("portal bridge is disabled")
	ErrPortalUnavailable      = errors.New("portal could not be reached")
	ErrPortalRejected         = errors.New("portal rejected the session token")
	ErrProvisioningDisabled   = errors.New("automatic provisioning of federated users is disabled")
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrDirectoryMisconfigured = errors.New("ldap directory is not configured")
)
