package ports

import "time"

type SchedulerService interface {
	Start()
	Stop()
	// ScheduleTaskRepeated runs task every interval until the scheduler stops.
	ScheduleTaskRepeated(interval time.Duration, task func()) error
}
