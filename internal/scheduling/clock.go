package scheduling

import "time"

// Clock trừu tượng hóa nguồn thời gian để logic scheduling test được deterministic.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// NewRealClock trả về Clock dùng thời gian hệ thống
func NewRealClock() Clock {
	return realClock{}
}

// FixedClock là Clock trả về thời điểm cố định, dùng cho test.
type FixedClock struct {
	T time.Time
}

// Now trả về thời điểm cố định
func (c FixedClock) Now() time.Time {
	return c.T
}
