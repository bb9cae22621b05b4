package shared

// Core element codes protected by the permission matrix itself. The matrix is
// self-hosting: administering roles and rules requires grants on these codes.
const (
	ElementUser            = "user"
	ElementRole            = "role"
	ElementBusinessElement = "business_element"
	ElementAccessRule      = "access_rule"
)

// CoreElements lists the element codes the core registers at bootstrap.
func CoreElements() []string {
	return []string{
		ElementUser,
		ElementRole,
		ElementBusinessElement,
		ElementAccessRule,
	}
}
