package perm

// Capability predicates. They are pure; callers recompute them from the current
// principal on every render instead of caching them.
//
// Client-side gating only hides controls. The backend remains the enforcement point.

func CanView(r Role) bool { return r >= RoleUser }

// CanModify covers create and edit.
func CanModify(r Role) bool { return r >= RoleManager }

func CanDelete(r Role) bool { return r == RoleAdmin }

// CanToggleCompletion covers task status flips, which any signed-in role may do.
func CanToggleCompletion(r Role) bool { return r >= RoleUser }

func CanManageUsers(r Role) bool { return r == RoleAdmin }

type Capabilities struct {
	View             bool `json:"view"`
	Modify           bool `json:"modify"`
	Delete           bool `json:"delete"`
	ToggleCompletion bool `json:"toggleCompletion"`
	ManageUsers      bool `json:"manageUsers"`
}

func For(r Role) Capabilities {
	return Capabilities{
		View:             CanView(r),
		Modify:           CanModify(r),
		Delete:           CanDelete(r),
		ToggleCompletion: CanToggleCompletion(r),
		ManageUsers:      CanManageUsers(r),
	}
}
