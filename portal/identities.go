package portal

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"

	"github.com/pilab-dev/planauth/clock"
	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/internal/federation"
	"github.com/rs/zerolog/log"
)

const (
	SourceDirectory = "ldap"
	SourceAccount   = "local"

	historyDateLayout = "02-01-2006"
	unknownHostIP     = "0.0.0.0"
)

// ErrInvalidCredentials is returned when neither the directory nor the
// fallback accounts accept the login.
var ErrInvalidCredentials = errors.New("invalid user credentials")

// Identity is a portal user after a successful login.
type Identity struct {
	Email       string
	Username    string
	DisplayName string
	Role        string
	// AssignedRole is the role found in the permission table, "" when the
	// default applied.
	AssignedRole string
	Login        string
	Source       string
}

// DirectoryAuthenticator verifies credentials against the directory.
type DirectoryAuthenticator interface {
	Authenticate(login, password string) (*federation.DirectoryEntry, error)
}

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Verify(hashedPassword, password string) error
}

// IdentityOptions tune how logins are turned into identities.
type IdentityOptions struct {
	// SpecialUsers maps lowercased login names to fixed canonical emails.
	SpecialUsers  map[string]string
	DefaultDomain string
	Clock         clock.Clock
	// HostIP reports the address written to login history. Defaults to the
	// first address of the local hostname.
	HostIP func() string
}

// Identities authenticates portal logins, directory first and fallback
// accounts second.
type Identities struct {
	directory   DirectoryAuthenticator
	accounts    domain.PortalAccountRepository
	permissions domain.PermissionRepository
	history     domain.LoginHistoryRepository
	verifier    PasswordVerifier
	opts        IdentityOptions
}

// NewIdentities wires the identity chain. directory and history may be nil.
func NewIdentities(
	directory DirectoryAuthenticator,
	accounts domain.PortalAccountRepository,
	permissions domain.PermissionRepository,
	history domain.LoginHistoryRepository,
	verifier PasswordVerifier,
	opts IdentityOptions,
) *Identities {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.HostIP == nil {
		opts.HostIP = localHostIP
	}
	if opts.SpecialUsers == nil {
		opts.SpecialUsers = map[string]string{}
	}
	opts.DefaultDomain = strings.TrimPrefix(strings.TrimSpace(opts.DefaultDomain), "@")

	return &Identities{
		directory:   directory,
		accounts:    accounts,
		permissions: permissions,
		history:     history,
		verifier:    verifier,
		opts:        opts,
	}
}

// Authenticate resolves login and password to an identity or returns
// ErrInvalidCredentials.
func (i *Identities) Authenticate(ctx context.Context, login, password string) (*Identity, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	mail, source, err := i.verify(ctx, login, password)
	if err != nil {
		return nil, err
	}

	email := i.canonicalEmail(login, mail)
	localPart := strings.SplitN(email, "@", 2)[0]
	assigned := i.lookupRole(ctx, login)

	identity := &Identity{
		Email:        email,
		Username:     localPart,
		DisplayName:  localPart,
		Role:         assigned,
		AssignedRole: assigned,
		Login:        login,
		Source:       source,
	}
	if identity.Role == "" {
		identity.Role = domain.RoleUser
	}

	log.Info().
		Str("login", login).
		Str("email", identity.Email).
		Str("source", source).
		Str("role", identity.Role).
		Msg("Portal login succeeded")

	return identity, nil
}

// verify returns the mail reported by whichever source accepted the
// credentials.
func (i *Identities) verify(ctx context.Context, login, password string) (string, string, error) {
	if i.directory != nil {
		entry, err := i.directory.Authenticate(login, password)
		if err == nil {
			i.recordLogin(ctx, login)
			return entry.Mail, SourceDirectory, nil
		}
		log.Debug().Err(err).Str("login", login).Msg("Directory login failed, trying portal accounts")
	}

	if i.accounts == nil {
		return "", "", ErrInvalidCredentials
	}

	account, err := i.accounts.GetAccount(ctx, login)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			log.Error().Err(err).Str("login", login).Msg("Failed to load portal account")
		}
		return "", "", ErrInvalidCredentials
	}
	if err := i.verifier.Verify(account.PasswordHash, password); err != nil {
		return "", "", ErrInvalidCredentials
	}

	return strings.ToLower(account.Username), SourceAccount, nil
}

func (i *Identities) canonicalEmail(login, mail string) string {
	if special, ok := i.opts.SpecialUsers[strings.ToLower(login)]; ok {
		return special
	}

	candidate := strings.ToLower(strings.TrimSpace(mail))
	if candidate == "" {
		candidate = strings.ToLower(login)
	}
	if !strings.Contains(candidate, "@") && i.opts.DefaultDomain != "" {
		candidate += "@" + i.opts.DefaultDomain
	}
	return candidate
}

func (i *Identities) lookupRole(ctx context.Context, login string) string {
	if i.permissions == nil {
		return ""
	}
	role, err := i.permissions.RoleFor(ctx, login)
	if err != nil {
		log.Warn().Err(err).Str("login", login).Msg("Role lookup failed, using default role")
		return ""
	}
	return role
}

// recordLogin writes a history row. Failures are logged and ignored.
func (i *Identities) recordLogin(ctx context.Context, login string) {
	if i.history == nil {
		return
	}
	now := i.opts.Clock.Now()
	record := &domain.LoginRecord{
		Username:  login,
		Date:      now.Format(historyDateLayout),
		Month:     int(now.Month()),
		IPAddress: i.opts.HostIP(),
		CreatedAt: now.UTC(),
	}
	if err := i.history.RecordLogin(ctx, record); err != nil {
		log.Warn().Err(err).Str("login", login).Msg("Failed to record login history")
	}
}

func localHostIP() string {
	hostname, err := os.Hostname()
	if err != nil {
		return unknownHostIP
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return unknownHostIP
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr
		}
	}
	return addrs[0]
}
