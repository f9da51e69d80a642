package model

import (
	"fmt"
	"time"
)

// LocalTime 以 "YYYY-MM-DD HH:MM:SS" 格式序列化时间。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// NewLocalTime 返回 t 的 LocalTime 指针，零值时间返回 nil。
func NewLocalTime(t time.Time) *LocalTime {
	if t.IsZero() {
		return nil
	}
	lt := LocalTime(t)
	return &lt
}

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Time(t).Format(timeFormat))), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *LocalTime) UnmarshalJSON(b []byte) error {
	parsed, err := time.ParseInLocation(`"`+timeFormat+`"`, string(b), time.Local)
	if err != nil {
		return err
	}
	*t = LocalTime(parsed)
	return nil
}
