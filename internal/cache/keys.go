package cache

import "fmt"

// TaskMetaKey is the result store key of one task record.
func TaskMetaKey(taskID string) string {
	return fmt.Sprintf("task:meta:%s", taskID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
