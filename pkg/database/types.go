package database

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ProcessStatus 表示处理状态
type ProcessStatus string

const (
	StatusPending    ProcessStatus = "pending"    // 待处理
	StatusProcessing ProcessStatus = "processing" // 处理中
	StatusCompleted  ProcessStatus = "completed"  // 已完成
	StatusFailed     ProcessStatus = "failed"     // 失败
	StatusSkipped    ProcessStatus = "skipped"    // 跳过
)

// Done 是否已结束
func (s ProcessStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

const timeLayout = "2006-01-02 15:04:05"

// MyTime 自定义时间类型，JSON 输出为本地可读格式
type MyTime struct {
	time.Time
}

// Now 当前时间
func Now() MyTime {
	return MyTime{time.Now()}
}

// GormDataType GORM数据类型
func (MyTime) GormDataType() string {
	return "timestamp"
}

// Scan 实现scanner接口
func (t *MyTime) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("can't parse %v to MyTime", value)
	}
}

func (t *MyTime) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", timeLayout} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("can't parse %s to MyTime", s)
}

// Value 实现valuer接口，零值存为 NULL
func (t MyTime) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time, nil
}

// MarshalJSON 实现json序列化
func (t MyTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf(`"%s"`, t.Time.Format(timeLayout))), nil
}

// UnmarshalJSON 实现json反序列化
func (t *MyTime) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), "\"")
	if str == "null" || str == "" {
		return nil
	}

	parsedTime, err := time.ParseInLocation(timeLayout, str, time.Local)
	if err != nil {
		return err
	}
	t.Time = parsedTime
	return nil
}
