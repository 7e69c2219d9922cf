package model

import "time"

// BuildRecord is the stored history of one worker run.
type BuildRecord struct {
	RunID       string     `bson:"runID"`
	ServiceName string     `bson:"serviceName"`
	Version     string     `bson:"version"`
	Environment string     `bson:"environment"`
	Image       string     `bson:"image"`
	State       BuildState `bson:"state"`
	Message     string     `bson:"message,omitempty"`
	StartedAt   time.Time  `bson:"startedAt"`
	UpdatedAt   time.Time  `bson:"updatedAt"`
}
