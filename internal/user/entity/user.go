package entity

// Role is the system role of a user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// LocationType distinguishes the two kinds of authorized work locations.
type LocationType string

const (
	LocationOffice LocationType = "OFFICE"
	LocationHome   LocationType = "HOME"
)

// LocationConfig is an authorized work location. RadiusMeters is meaningful
// only for OFFICE entries; a HOME entry authorizes remote work by its
// presence alone and carries no geofence.
type LocationConfig struct {
	Type         LocationType `json:"type"`
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	RadiusMeters float64      `json:"radiusMeters"`
}

// User is an employee account. The JSON field names match the cloud sync
// wire format, which the remote store persists and echoes verbatim.
type User struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employeeId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password,omitempty"`
	Role         Role   `json:"role"`
	Department   string `json:"department"`
	Position     string `json:"position"`
	Gender       string `json:"gender"`
	JoinedDate   string `json:"joinedDate"`
	// At most one entry per LocationType.
	AllowedLocations []LocationConfig `json:"allowedLocations"`
}

// Location returns the allowed location of the given type, or nil.
func (u *User) Location(t LocationType) *LocationConfig {
	for i := range u.AllowedLocations {
		if u.AllowedLocations[i].Type == t {
			return &u.AllowedLocations[i]
		}
	}
	return nil
}

// IsAdmin reports whether the user holds the ADMIN role. Admins are excluded
// from attendance-eligible counts and do not check in.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
