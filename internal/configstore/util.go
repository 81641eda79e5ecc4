package configstore

import (
	"time"

	"github.com/deepaucksharma/pidctl/internal/method"
)

func parseISOTimestamp(s string) (time.Time, error) {
	return time.Parse(method.TimeLayout, s)
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
