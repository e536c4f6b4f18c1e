package model

import "time"

// User roles.  The set is closed; every account carries exactly one.
const (
	RoleCustomer   = "CUSTOMER"
	RoleDriver     = "DRIVER"
	RoleDispatcher = "DISPATCHER"
	RoleAdmin      = "ADMIN"
)

// IsRole reports whether r names a known role.
func IsRole(r string) bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleDispatcher, RoleAdmin:
		return true
	}
	return false
}

// StaffRoles are the roles allowed to operate on fleet resources.
var StaffRoles = []string{RoleDriver, RoleDispatcher, RoleAdmin}

// User represents an application user record as stored in the `users`
// table.  The json tags are omitted because these structs are used
// internally by the repository layer; handlers define separate response
// types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – one of CUSTOMER, DRIVER, DISPATCHER, ADMIN.
//  PhoneNumber  – contact phone number.
//  Address      – delivery address for customers.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	PhoneNumber  string    // users.phone_number
	Address      string    // users.address
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and carries metadata for expiry and
// revocation.  The plain token is never stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (null if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
