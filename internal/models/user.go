package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is stored as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	switch s := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(s), l)
	case []byte:
		return json.Unmarshal(s, l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
}

// User is a job-board account. Only jobseeker fields are read here.
type User struct {
	UserID      string `gorm:"primaryKey;column:user_id;size:64" json:"user_id"`
	Name        string `gorm:"size:200;not null" json:"name"`
	Email       string `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Description string `gorm:"type:text" json:"description"`
	Role        string `gorm:"size:20;default:jobseeker" json:"role"`
	ResumeURL   string `gorm:"column:resume_url;size:1024" json:"resume_url"`

	PreferredRoles     StringList `gorm:"column:preferred_roles;type:text" json:"preferred_roles"`
	SalaryExpectation  *float64   `gorm:"column:salary_expectation" json:"salary_expectation"`
	LocationPreference string     `gorm:"column:location_preference;size:200" json:"location_preference"`
	RemotePreferred    *bool      `gorm:"column:remote_preferred" json:"remote_preferred"`
	NoticePeriod       string     `gorm:"column:notice_period;size:50" json:"notice_period"`

	CreateTime time.Time `gorm:"column:create_time" json:"create_time"`
	UpdateTime time.Time `gorm:"column:update_time" json:"update_time"`
}

func (User) TableName() string {
	return "users"
}
