// Package target models the databases a deployment runs against: a single
// addressable Target and the TargetGroup that shares parallelism limits
// across a set of them.
package target

import (
	"fmt"
	"strings"
)

// Target is an immutable handle to one addressable database. It is a
// comparable value used as a map key by the what-if overlay: two Targets
// built from the same connection string with the same (or no) Credential
// pointer are equal and share one key.
type Target struct {
	ConnectionString string
	Credential       *Credential

	serverName   string
	databaseName string
}

// Credential carries an out-of-band authentication secret. This module
// never persists or logs it.
type Credential struct {
	Username string
	Password string
}

// New parses a connection string into a Target, deriving display names
// when the string doesn't specify them.
func New(connectionString string, credential *Credential) (Target, error) {
	server, database, err := parseConnectionString(connectionString)
	if err != nil {
		return Target{}, fmt.Errorf("target: %w", err)
	}
	return Target{
		ConnectionString: connectionString,
		Credential:       credential,
		serverName:       server,
		databaseName:     database,
	}, nil
}

// ServerName is the display name of the server/host, defaulting to
// "(local)" when the connection string omits one.
func (t Target) ServerName() string {
	if t.serverName == "" {
		return "(local)"
	}
	return t.serverName
}

// DatabaseName is the display name of the database, defaulting to
// "(default)" when the connection string omits one.
func (t Target) DatabaseName() string {
	if t.databaseName == "" {
		return "(default)"
	}
	return t.databaseName
}

// DisplayName renders "server/database" for logs and console output.
func (t Target) DisplayName() string {
	return fmt.Sprintf("%s/%s", t.ServerName(), t.DatabaseName())
}

// parseConnectionString extracts a server and database display name from a
// "key=value;key=value" style connection string. Unknown keys are ignored;
// this is display-name extraction only, not the real SQL client parser.
func parseConnectionString(s string) (server, database string, err error) {
	if strings.TrimSpace(s) == "" {
		return "", "", fmt.Errorf("empty connection string")
	}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		value := strings.TrimSpace(kv[1])
		switch key {
		case "server", "host", "data source":
			server = value
		case "database", "initial catalog":
			database = value
		}
	}
	return server, database, nil
}

// Group is a set of targets sharing parallelism limits.
type Group struct {
	Name                    string
	Targets                 []Target
	MaxParallelism          int
	MaxParallelismPerTarget int
}

// Validate enforces the TargetGroup invariants: negative limits and null
// target elements are forbidden.
func (g Group) Validate() error {
	if g.MaxParallelism < 0 {
		return fmt.Errorf("target group %q: MaxParallelism must not be negative", g.Name)
	}
	if g.MaxParallelismPerTarget < 0 {
		return fmt.Errorf("target group %q: MaxParallelismPerTarget must not be negative", g.Name)
	}
	for i, t := range g.Targets {
		if t.ConnectionString == "" {
			return fmt.Errorf("target group %q: target at index %d is empty", g.Name, i)
		}
	}
	return nil
}
