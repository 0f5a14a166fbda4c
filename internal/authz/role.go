package authz

// Role is the project-level role held by an account. Roles form a total
// order: holding a higher role implies everything a lower role permits.
type Role string

const (
	RoleMember Role = "member"
	RoleUpdate Role = "update"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// roleRank fixes the total order explicitly so that declaration order in
// this file can never silently change authorization semantics.
var roleRank = map[Role]int{
	RoleMember: 1,
	RoleUpdate: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants everything required permits.
func (r Role) AtLeast(required Role) bool {
	return roleRank[r] >= roleRank[required]
}

func (r Role) String() string { return string(r) }
