package partner

// Partner is a subcontractor that installs or removes equipment.
type Partner struct {
	ID          int64  `json:"id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	ContactInfo string `json:"contact_info"`
}
