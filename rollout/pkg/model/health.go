package model

import (
	"time"
)

type MonitorSpec struct {
	WorkloadName string
	URL          string
	Interval     time.Duration
	ProbeTimeout time.Duration
}
