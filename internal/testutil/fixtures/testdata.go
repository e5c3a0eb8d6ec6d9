// Package fixtures provides shared test data constants and factory
// functions for the neo-commons test suite.
//
// Using common constants for test identities prevents magic strings in
// tests and ensures consistency across packages.
package fixtures

// Standard identity values used in auth and permission tests.
const (
	// TestSubject is the default subject claim for test identities.
	TestSubject = "user-abc-123"

	// AltSubject is an alternative subject for tests requiring two users.
	AltSubject = "user-def-456"

	// TestRealm is the default Keycloak realm for test identities.
	TestRealm = "neo-test"

	// TestIssuer is the default issuer for test identities.
	TestIssuer = "https://auth.neoplatform.test/realms/neo-test"

	// TestAudience is the default audience for test identities.
	TestAudience = "neo-commons"

	// TestTenantID is the default tenant identifier for tenant-scoped
	// permission tests.
	TestTenantID = "tenant-001"

	// AltTenantID is an alternative tenant identifier for isolation tests.
	AltTenantID = "tenant-002"

	// TestRoleID is the default role identifier for role-based tests.
	TestRoleID = "role-admin"
)

// Standard configuration values used in config loader tests.
const (
	// TestEnvPrefix is the default environment variable prefix for config tests.
	TestEnvPrefix = "TESTAPP"

	// TestConfigYAML is a minimal valid YAML configuration for tests.
	TestConfigYAML = `host: localhost
port: 8080
database: testdb
`

	// TestConfigJSON is a minimal valid JSON configuration for tests.
	TestConfigJSON = `{
  "host": "localhost",
  "port": 8080,
  "database": "testdb"
}`
)

// Standard database configuration values used in postgres client tests.
const (
	// TestDBHost is the default database host for test configurations.
	TestDBHost = "localhost"

	// TestDBPort is the default database port for test configurations.
	TestDBPort = 5432

	// TestDBName is the default database name for test configurations.
	TestDBName = "testdb"

	// TestDBUser is the default database user for test configurations.
	TestDBUser = "testuser"

	// TestDBPassword is the default database password for test configurations.
	// This is a deliberately weak value suitable only for unit tests.
	TestDBPassword = "testpass"
)
