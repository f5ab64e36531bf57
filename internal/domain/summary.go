package domain

// Summary aggregates counts over the loaded tickets.
type Summary struct {
	Total              int                    `json:"total"`
	Active             int                    `json:"active"`
	Open               int                    `json:"open"`
	InProgress         int                    `json:"in_progress"`
	Closed             int                    `json:"closed"`
	ByPriority         map[TicketPriority]int `json:"by_priority"`
	AvgResolutionHours *float64               `json:"avg_resolution_hours,omitempty"`
}
