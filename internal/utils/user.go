package utils

import (
	"time"
)

// DaysSince 计算注册至今的天数
func DaysSince(createdAt time.Time) int {
	if createdAt.IsZero() {
		return 0
	}
	return int(time.Since(createdAt).Hours() / 24)
}
