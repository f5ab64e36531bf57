package domain

// Technician is a candidate assignee.
type Technician struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
