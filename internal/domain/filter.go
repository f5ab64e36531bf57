package domain

// UnassignedFilter selects tickets without an assignee.
const UnassignedFilter = "__unassigned__"

// FilterSet is the client-side narrowing applied to the loaded page.
type FilterSet struct {
	Search     string `json:"search,omitempty"`
	Status     string `json:"status,omitempty"`
	Priority   string `json:"priority,omitempty"`
	Technician string `json:"technician,omitempty"`
}

// Empty reports whether no filter is active.
func (f FilterSet) Empty() bool {
	return f == FilterSet{}
}
