package usecase

import (
	"strings"

	"assistant-bridge/internal/domain"
)

// MapRole translates a provider role into a host workspace role. Unknown
// roles get editor access.
func MapRole(providerRole string) domain.HostRole {
	switch strings.ToLower(strings.TrimSpace(providerRole)) {
	case "owner", "admin":
		return domain.HostRoleAdmin
	case "viewer":
		return domain.HostRoleViewer
	default:
		return domain.HostRoleEditor
	}
}
