package models

import "time"

// BucketRecord maps a logical instance to its physical bucket.
type BucketRecord struct {
	InstanceName string
	BucketName   string
	Region       string
	CreatedAt    time.Time
}
