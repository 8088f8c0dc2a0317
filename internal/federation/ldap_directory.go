package federation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
)

const userSearchFilter = "(&(objectClass=user)(sAMAccountName=%s))"

var directoryAttributes = []string{"mail", "department"}

// DirectoryConfig locates an Active Directory style server.
type DirectoryConfig struct {
	URL    string
	BaseDN string
	// DefaultDomain is appended to logins without "@" to form the bind
	// principal.
	DefaultDomain string
	StartTLS      bool
	SkipTLSVerify bool
}

// DirectoryEntry is what a successful directory login yields.
type DirectoryEntry struct {
	Login      string
	DN         string
	Mail       string
	Department string
}

// Directory verifies credentials by binding as the user.
type Directory struct {
	cfg       DirectoryConfig
	newClient func() LDAPClient
}

// NewDirectory creates a directory. newClient is called once per login;
// nil means NewRealLDAPClient.
func NewDirectory(cfg DirectoryConfig, newClient func() LDAPClient) *Directory {
	if newClient == nil {
		newClient = NewRealLDAPClient
	}
	return &Directory{cfg: cfg, newClient: newClient}
}

// Configured reports whether a server URL is set.
func (d *Directory) Configured() bool {
	return d != nil && d.cfg.URL != ""
}

// Principal returns the bind name for login.
func (d *Directory) Principal(login string) string {
	if strings.Contains(login, "@") || d.cfg.DefaultDomain == "" {
		return login
	}
	return login + "@" + d.cfg.DefaultDomain
}

// Authenticate binds as login and looks up its mail attribute. A failed
// lookup after a successful bind still authenticates, with an empty Mail.
func (d *Directory) Authenticate(login, password string) (*DirectoryEntry, error) {
	if !d.Configured() {
		return nil, ErrDirectoryMisconfigured
	}
	// An empty password would be an unauthenticated bind, which most
	// servers accept.
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	client := d.newClient()
	if err := client.Connect(d.cfg.URL, d.cfg.StartTLS, d.cfg.SkipTLSVerify); err != nil {
		return nil, fmt.Errorf("ldap connection failed: %w", err)
	}
	defer client.Close()

	if err := client.Bind(d.Principal(login), password); err != nil {
		var ldapErr *ldap.Error
		if errors.As(err, &ldapErr) && ldapErr.ResultCode == ldap.LDAPResultInvalidCredentials {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("ldap bind for user [%s] failed: %w", login, err)
	}

	entry := &DirectoryEntry{Login: login}
	account := strings.SplitN(login, "@", 2)[0]
	found, err := client.SearchUser(d.cfg.BaseDN, fmt.Sprintf(userSearchFilter, ldap.EscapeFilter(account)), directoryAttributes)
	if err != nil {
		log.Warn().Err(err).Str("login", login).Msg("LDAP bind succeeded but user lookup failed")
		return entry, nil
	}

	entry.DN = found.DN
	entry.Mail = strings.ToLower(strings.TrimSpace(found.GetAttributeValue("mail")))
	entry.Department = found.GetAttributeValue("department")
	return entry, nil
}
