package domain

// ProviderIdentity is the validated identity behind a provider token.
type ProviderIdentity struct {
	UserID   string
	Email    string
	Name     string
	Role     string
	TenantID string
	Tenant   string
}

// HostRole is a workspace permission level in the host app.
type HostRole string

const (
	HostRoleAdmin  HostRole = "admin"
	HostRoleEditor HostRole = "editor"
	HostRoleViewer HostRole = "viewer"
)

// HostUser is a provisioned host account linked to a provider user.
type HostUser struct {
	PK             string
	SK             string
	ID             string
	ProviderUserID string
	Email          string
	Name           string
	CreatedAt      string
}

// Workspace is the host organization provisioned for a provider tenant.
type Workspace struct {
	PK        string
	SK        string
	ID        string
	TenantID  string
	Name      string
	CreatedAt string
}

// Membership links a host user to a workspace with a role.
type Membership struct {
	PK          string
	SK          string
	WorkspaceID string
	UserID      string
	Role        HostRole
	LastLogin   string
}
