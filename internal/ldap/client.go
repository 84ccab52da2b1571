// Package ldap verifies operator credentials against the directory backing
// the VIM's operator accounts: bind as a service account, locate the user,
// bind as that user to prove the password, then re-bind to read group
// membership for the admin-group check.
package ldap

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	ldap "github.com/go-ldap/ldap/v3"
)

// Config holds the directory connection and search settings.
type Config struct {
	Enabled         bool   `json:"enabled"`
	Server          string `json:"server"`
	Port            int    `json:"port"`
	UseTLS          bool   `json:"use_tls"`
	BindDN          string `json:"bind_dn"`
	BindPassword    string `json:"bind_password"`
	BaseDN          string `json:"base_dn"`
	UserFilter      string `json:"user_filter"`
	UserIDAttribute string `json:"user_id_attribute"`
	GroupBaseDN     string `json:"group_base_dn"`
	GroupFilter     string `json:"group_filter"`
	// AdminGroup, when non-empty, is the directory group an operator must
	// belong to before the admin API accepts the request. Empty admits any
	// user the directory authenticates.
	AdminGroup string `json:"admin_group"`
	Timeout    int    `json:"timeout"` // seconds
}

// User is the directory entry of an authenticated operator.
type User struct {
	DN       string
	Username string
	Groups   []string
}

// MemberOf reports whether the user belongs to group (case-insensitive cn
// comparison, the convention the VIM's directories use).
func (u *User) MemberOf(group string) bool {
	for _, g := range u.Groups {
		if strings.EqualFold(g, group) {
			return true
		}
	}
	return false
}

// Client wraps one short-lived LDAP connection. A Client is created per
// authentication attempt; connections are not pooled.
type Client struct {
	config *Config
	conn   *ldap.Conn
}

// NewClient creates a client for config. No connection is made until
// Authenticate.
func NewClient(config *Config) (*Client, error) {
	return &Client{config: config}, nil
}

func (c *Client) connect() error {
	address := fmt.Sprintf("%s:%d", c.config.Server, c.config.Port)

	var conn *ldap.Conn
	var err error
	if c.config.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: c.config.Server,
			MinVersion: tls.VersionTLS12,
		}
		conn, err = ldap.DialTLS("tcp", address, tlsConfig)
	} else {
		conn, err = ldap.Dial("tcp", address)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	if c.config.Timeout > 0 {
		conn.SetTimeout(time.Duration(c.config.Timeout) * time.Second)
	}
	c.conn = conn
	return nil
}

func (c *Client) close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// bindService binds with the service account.
func (c *Client) bindService() error {
	if c.conn == nil {
		return fmt.Errorf("not connected to LDAP server")
	}
	if err := c.conn.Bind(c.config.BindDN, c.config.BindPassword); err != nil {
		return fmt.Errorf("bind failed: %w", err)
	}
	return nil
}

// Authenticate verifies username/password against the directory and returns
// the user with group membership populated.
func (c *Client) Authenticate(username, password string) (*User, error) {
	if err := c.connect(); err != nil {
		return nil, err
	}
	defer c.close()

	if err := c.bindService(); err != nil {
		return nil, err
	}

	user, err := c.searchUser(username)
	if err != nil {
		return nil, err
	}

	// Bind as the user to verify the password.
	if err := c.conn.Bind(user.DN, password); err != nil {
		return nil, fmt.Errorf("authentication failed: invalid credentials")
	}

	// Re-bind as the service account to read groups.
	if err := c.bindService(); err != nil {
		return nil, err
	}
	groups, err := c.userGroups(user.DN)
	if err != nil {
		return nil, err
	}
	user.Groups = groups
	return user, nil
}

func (c *Client) searchUser(username string) (*User, error) {
	filter := strings.ReplaceAll(c.config.UserFilter, "{username}", username)

	searchRequest := ldap.NewSearchRequest(
		c.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		filter,
		[]string{c.config.UserIDAttribute, "cn", "memberOf"},
		nil,
	)

	result, err := c.conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("user search failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("user not found: %s", username)
	}
	if len(result.Entries) > 1 {
		return nil, fmt.Errorf("multiple users found for: %s", username)
	}

	entry := result.Entries[0]
	user := &User{
		DN:       entry.DN,
		Username: entry.GetAttributeValue(c.config.UserIDAttribute),
	}
	if user.Username == "" {
		user.Username = username
	}
	return user, nil
}

// userGroups returns the cn of every group the user is a member of. An
// empty GroupBaseDN disables the lookup.
func (c *Client) userGroups(userDN string) ([]string, error) {
	if c.config.GroupBaseDN == "" {
		return []string{}, nil
	}

	filter := strings.ReplaceAll(c.config.GroupFilter, "{user_dn}", userDN)

	searchRequest := ldap.NewSearchRequest(
		c.config.GroupBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		filter,
		[]string{"cn"},
		nil,
	)

	result, err := c.conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("group search failed: %w", err)
	}

	var groups []string
	for _, entry := range result.Entries {
		if cn := entry.GetAttributeValue("cn"); cn != "" {
			groups = append(groups, cn)
		}
	}
	return groups, nil
}

// ValidateConfig checks a Config before the daemon starts serving with it.
func ValidateConfig(config *Config) error {
	if !config.Enabled {
		return nil
	}
	if config.Server == "" {
		return fmt.Errorf("LDAP server is required")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("invalid port number")
	}
	if config.BindDN == "" {
		return fmt.Errorf("bind DN is required")
	}
	if config.BindPassword == "" {
		return fmt.Errorf("bind password is required")
	}
	if config.BaseDN == "" {
		return fmt.Errorf("base DN is required")
	}
	if config.UserFilter == "" {
		return fmt.Errorf("user filter is required")
	}
	if !strings.Contains(config.UserFilter, "{username}") {
		return fmt.Errorf("user filter must contain {username} placeholder")
	}
	if config.AdminGroup != "" && config.GroupBaseDN == "" {
		return fmt.Errorf("group base DN is required when an admin group is set")
	}
	return nil
}
