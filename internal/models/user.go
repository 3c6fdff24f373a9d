package models

// User roles.
const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

// User is a platform operator account for the API itself (not a cloud account).
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}
