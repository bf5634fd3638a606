package models

import "fmt"

// RoleKind distinguishes the hub from the spokes of a cylinder.
type RoleKind string

const (
	// RoleHub is the single coordinating role of a cylinder.
	RoleHub RoleKind = "hub"
	// RoleSpoke is an auxiliary role attached to the hub.
	RoleSpoke RoleKind = "spoke"
)

// Valid returns true if the kind is a known value.
func (k RoleKind) Valid() bool {
	switch k {
	case RoleHub, RoleSpoke:
		return true
	default:
		return false
	}
}

// Role identifies what a rank does inside its cylinder.
// Spoke is 1-based and only meaningful when Kind is RoleSpoke.
type Role struct {
	Kind  RoleKind
	Spoke int
}

// HubRole returns the hub role.
func HubRole() Role {
	return Role{Kind: RoleHub}
}

// SpokeRole returns the role of spoke k (1-based).
func SpokeRole(k int) Role {
	return Role{Kind: RoleSpoke, Spoke: k}
}

// RoleFromRank derives the role of a global rank for cylinders of groupSize
// members. Position 0 of every cylinder is the hub.
func RoleFromRank(globalRank, groupSize int) Role {
	if groupSize <= 0 {
		panic(fmt.Sprintf("models: invalid group size %d", groupSize))
	}
	r := globalRank % groupSize
	if r == 0 {
		return HubRole()
	}
	return SpokeRole(r)
}

// IsHub reports whether the role is the hub.
func (r Role) IsHub() bool {
	return r.Kind == RoleHub
}

// Index returns the position of the role within its cylinder:
// 0 for the hub, k for spoke k.
func (r Role) Index() int {
	if r.IsHub() {
		return 0
	}
	return r.Spoke
}

// String renders the role as "hub" or "spoke-<k>".
func (r Role) String() string {
	if r.IsHub() {
		return string(RoleHub)
	}
	return fmt.Sprintf("%s-%d", RoleSpoke, r.Spoke)
}
