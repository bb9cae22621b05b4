package shared

// AccessRule is one edge of the permission matrix. At most one rule exists per
// (role, element) pair; it is the sole source of truth for that combination.
// The *All grants cover records owned by other users; the plain grants cover
// the actor's own records. Create has no all-variant since ownership is not
// established yet.
type AccessRule struct {
	ID        int64
	RoleID    int64
	ElementID int64

	CanRead      bool
	CanReadAll   bool
	CanCreate    bool
	CanUpdate    bool
	CanUpdateAll bool
	CanDelete    bool
	CanDeleteAll bool
}
