package domain

import "time"

// Actor is a resolved caller from the actor directory: a front-line agent,
// an operator or an administrator.
type Actor struct {
	ID        int64
	Name      string
	Email     string
	RoleID    int64
	AreaID    *int64
	Active    bool
	CreatedAt time.Time
}

// InArea reports whether the actor belongs to the given area's staff.
func (a *Actor) InArea(areaID int64) bool {
	return a != nil && a.AreaID != nil && *a.AreaID == areaID
}
