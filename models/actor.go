package models

// Role is the role an actor acted under when making a change
type Role string

const (
	RoleMarketer Role = "marketer"
	RoleLegal    Role = "legal"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Actor identifies who performed a mutation
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemActor is used for changes nobody asked for, such as expiry reconciliation
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// EditKind is the part of a campaign an edit targets
type EditKind string

const (
	EditKindGeneral  EditKind = "General"
	EditKindAudience EditKind = "Audience"
	EditKindAction   EditKind = "Action"
	EditKindBenefit  EditKind = "Benefit"
	EditKindComms    EditKind = "Comms"
)

// SubConfigKinds are the edit kinds backed by a per-version sub-config
func SubConfigKinds() []EditKind {
	return []EditKind{EditKindAudience, EditKindAction, EditKindBenefit, EditKindComms}
}

func (k EditKind) Valid() bool {
	switch k {
	case EditKindGeneral, EditKindAudience, EditKindAction, EditKindBenefit, EditKindComms:
		return true
	}
	return false
}
