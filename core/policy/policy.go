// Package policy holds the role policy table: the single source of truth for what each role may see and do.
// Callers never compare role names; they ask the table for capabilities.
package policy

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/yles/portal/core"
)

// Role is attached to the identity making a request.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEvents   Role = "events"
	RoleFnR      Role = "fnr" // finance & recovery
	RoleDC       Role = "dc"  // discipline committee
	RoleDelegate Role = "delegate"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleEvents, RoleFnR, RoleDC, RoleDelegate}

// ParseRole normalises s. Unknown values are kept as-is and get no capabilities.
func ParseRole(s string) Role {
	return Role(core.CleanString(s, true /* lower */))
}

// Capability is a single permitted action.
type Capability uint8

const (
	ViewBalance Capability = 1 << iota
	ManageModules
	ViewFines
	AddFine
	DeleteFine
)

// Capabilities lists every capability in display order.
var Capabilities = []Capability{ViewBalance, ManageModules, ViewFines, AddFine, DeleteFine}

var capabilityNames = map[Capability]string{
	ViewBalance:   "view_balance",
	ManageModules: "manage_modules",
	ViewFines:     "view_fines",
	AddFine:       "add_fine",
	DeleteFine:    "delete_fine",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "unknown"
}

func (c Capability) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// ParseCapability maps a capability name back to its Capability.
func ParseCapability(s string) (Capability, bool) {
	s = core.CleanString(s, true /* lower */)
	for c, name := range capabilityNames {
		if name == s {
			return c, true
		}
	}
	return 0, false
}

// CapabilitySet is a bit set of capabilities.
type CapabilitySet uint8

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var set CapabilitySet
	for _, c := range caps {
		set |= CapabilitySet(c)
	}
	return set
}

func (s CapabilitySet) Has(c Capability) bool {
	return c != 0 && s&CapabilitySet(c) == CapabilitySet(c)
}

func (s CapabilitySet) IsEmpty() bool { return s == 0 }

// List returns the capabilities in s, in display order.
func (s CapabilitySet) List() []Capability {
	caps := make([]Capability, 0, len(Capabilities))
	for _, c := range Capabilities {
		if s.Has(c) {
			caps = append(caps, c)
		}
	}
	return caps
}

func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

type grant struct {
	caps CapabilitySet
	// selfOnly limits team-scoped capabilities to the actor's own team.
	selfOnly bool
}

var table = map[Role]grant{
	RoleAdmin:    {caps: NewCapabilitySet(ViewBalance, ManageModules, ViewFines, AddFine, DeleteFine)},
	RoleEvents:   {caps: NewCapabilitySet(ManageModules)},
	RoleFnR:      {caps: NewCapabilitySet(ViewBalance, ViewFines, AddFine, DeleteFine)},
	RoleDC:       {caps: NewCapabilitySet(ViewBalance, ViewFines, AddFine)}, // may flag fines, not reverse them
	RoleDelegate: {caps: NewCapabilitySet(ViewBalance, ViewFines), selfOnly: true},
}

// CapabilitiesFor returns the capability set of role. Unknown roles get the empty set.
func CapabilitiesFor(role Role) CapabilitySet {
	return table[role].caps
}

// IsKnown reports whether role is in the table.
func IsKnown(role Role) bool {
	_, ok := table[role]
	return ok
}

// SelfScoped reports whether role's capabilities only apply to its own team.
func SelfScoped(role Role) bool {
	return table[role].selfOnly
}

// IsStaff reports whether role acts on every team (as opposed to a delegate acting on its own).
func IsStaff(role Role) bool {
	return IsKnown(role) && !SelfScoped(role)
}

// Actor is the identity behind a request.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Owns reports whether the actor is the delegate account of teamID.
func (a Actor) Owns(teamID string) bool {
	return SelfScoped(a.Role) && teamID != "" && a.ID == teamID
}

// Allowed reports whether the actor holds c for teamID.
// teamID may be empty for actions that are not scoped to a team.
func (a Actor) Allowed(c Capability, teamID string) bool {
	if !CapabilitiesFor(a.Role).Has(c) {
		return false
	}
	if SelfScoped(a.Role) {
		return a.Owns(teamID)
	}
	return true
}

// Check returns core.ErrForbidden unless the actor holds c for teamID.
func Check(a Actor, c Capability, teamID string) error {
	if a.Allowed(c, teamID) {
		return nil
	}
	return errors.Wrapf(core.ErrForbidden, "%s cannot %s", roleLabel(a.Role), c)
}

// CheckAny returns core.ErrForbidden unless the actor holds at least one of caps for teamID.
func CheckAny(a Actor, teamID string, caps ...Capability) error {
	for _, c := range caps {
		if a.Allowed(c, teamID) {
			return nil
		}
	}
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, c.String())
	}
	return errors.Wrapf(core.ErrForbidden, "%s cannot %s", roleLabel(a.Role), strings.Join(names, " or "))
}

func roleLabel(r Role) string {
	if r == "" {
		return "anonymous"
	}
	return string(r)
}
