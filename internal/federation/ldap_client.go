package federation

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
)

const ldapDialTimeout = 10 * time.Second

//go:generate mockgen -source=ldap_client.go -destination=mock/mock_ldap_client.go -package=mock_federation

// LDAPClient is the subset of an LDAP connection the directory needs.
// A client holds one connection and is not safe for concurrent use.
type LDAPClient interface {
	Connect(url string, startTLS bool, skipTLSVerify bool) error
	Bind(username, password string) error
	SearchUser(baseDN, filter string, attributes []string) (*ldap.Entry, error)
	Close()
}

// RealLDAPClient talks to a directory server over go-ldap.
type RealLDAPClient struct {
	conn *ldap.Conn
}

func NewRealLDAPClient() LDAPClient {
	return &RealLDAPClient{}
}

func (r *RealLDAPClient) Connect(url string, startTLS bool, skipTLSVerify bool) error {
	conn, err := ldap.DialURL(url, ldap.DialWithDialer(&net.Dialer{Timeout: ldapDialTimeout}))
	if err != nil {
		return fmt.Errorf("ldap connection to %s failed: %w", url, err)
	}
	conn.SetTimeout(ldapDialTimeout)

	if startTLS {
		// #nosec G402 -- skip verify is an explicit operator setting
		tlsCfg := &tls.Config{InsecureSkipVerify: skipTLSVerify}
		if err := conn.StartTLS(tlsCfg); err != nil {
			conn.Close()
			return fmt.Errorf("ldap starttls for %s failed: %w", url, err)
		}
	}

	r.conn = conn
	return nil
}

func (r *RealLDAPClient) Bind(username, password string) error {
	if r.conn == nil {
		return fmt.Errorf("ldap connection not established for bind")
	}
	return r.conn.Bind(username, password)
}

// SearchUser returns the single entry matching filter, or ErrUserNotFound.
func (r *RealLDAPClient) SearchUser(baseDN, filter string, attributes []string) (*ldap.Entry, error) {
	if r.conn == nil {
		return nil, fmt.Errorf("ldap connection not established for search")
	}

	searchRequest := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		int(ldapDialTimeout/time.Second),
		false,
		filter,
		attributes,
		nil,
	)

	sr, err := r.conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("ldap search failed (filter: %s): %w", filter, err)
	}
	if len(sr.Entries) == 0 {
		return nil, ErrUserNotFound
	}
	if len(sr.Entries) > 1 {
		return nil, fmt.Errorf("ldap search returned %d entries for filter '%s', expected 1", len(sr.Entries), filter)
	}

	return sr.Entries[0], nil
}

func (r *RealLDAPClient) Close() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

var _ LDAPClient = (*RealLDAPClient)(nil)
