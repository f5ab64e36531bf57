package worker

import (
	"github.com/spec-kit/ticketdesk/internal/service"
)

// StartActivityWorker registers activity handlers.
func StartActivityWorker(activity *service.ActivityService) {
	if activity == nil {
		return
	}
	activity.RegisterHandlers()
}
