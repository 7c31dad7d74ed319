package ports

import "time"

type SchedulerService interface {
	Start()
	Stop()
	ScheduleTaskRecurring(interval time.Duration, task func()) error
}
