package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleGateway is held by media gateways that deliver calls.
	RoleGateway = "gateway"
	// RoleOperator may read reports and call journals.
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// IsAdmin reports whether role bypasses role checks.
func IsAdmin(role string) bool { return role == RoleAdmin }

// IsKnownRole reports whether role may appear in a token.
func IsKnownRole(role string) bool {
	switch role {
	case RoleGateway, RoleOperator, RoleAdmin:
		return true
	default:
		return false
	}
}
