package models

import "time"

// JobPost is a recruiter's published position.
type JobPost struct {
	JobPostID      string     `gorm:"primaryKey;column:job_post_id;size:64" json:"job_post_id"`
	RecruiterID    string     `gorm:"column:recruiter_id;size:64;not null;index" json:"recruiter_id"`
	Title          string     `gorm:"size:300;not null" json:"title"`
	Description    string     `gorm:"type:text;not null" json:"description"` // plain text
	Location       string     `gorm:"size:200;not null" json:"location"`
	JobType        string     `gorm:"column:job_type;size:20;default:full-time" json:"job_type"`
	SalaryMin      *float64   `gorm:"column:salary_min" json:"salary_min"`
	SalaryMax      *float64   `gorm:"column:salary_max" json:"salary_max"`
	ExperienceMin  *int       `gorm:"column:experience_min" json:"experience_min"`
	ExperienceMax  *int       `gorm:"column:experience_max" json:"experience_max"`
	RequiredSkills StringList `gorm:"column:required_skills;type:text" json:"required_skills"`
	IsPublished    bool       `gorm:"column:is_published;default:true" json:"is_published"`
	CreateTime     time.Time  `gorm:"column:create_time" json:"create_time"`
	UpdateTime     time.Time  `gorm:"column:update_time" json:"update_time"`
}

func (JobPost) TableName() string {
	return "job_posts"
}

// Application links a candidate to a job post.
type Application struct {
	ApplicationID string    `gorm:"primaryKey;column:application_id;size:64" json:"application_id"`
	JobPostID     string    `gorm:"column:job_post_id;size:64;not null;index" json:"job_post_id"`
	CandidateID   string    `gorm:"column:candidate_id;size:64;not null;index" json:"candidate_id"`
	Status        string    `gorm:"size:20;default:applied" json:"status"`
	AIFitScore    *int      `gorm:"column:ai_fit_score" json:"ai_fit_score"`
	CreateTime    time.Time `gorm:"column:create_time" json:"create_time"`
	UpdateTime    time.Time `gorm:"column:update_time" json:"update_time"`
}

func (Application) TableName() string {
	return "applications"
}
