package repository

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/aihub/jobboard-ai/internal/database"
	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/models"
)

// EntityLookup reads job-board records owned by the main backend.
type EntityLookup struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewEntityLookup returns a read-only view over users, job posts and applications.
func NewEntityLookup(db *gorm.DB, timeout time.Duration) *EntityLookup {
	return &EntityLookup{db: db, timeout: timeout}
}

func (r *EntityLookup) GetDB() *gorm.DB {
	return r.db
}

func (r *EntityLookup) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := r.first(ctx, "users", &user, "user_id = ?", userID); err != nil {
		return nil, r.translate(err, "user "+userID)
	}
	return &user, nil
}

func (r *EntityLookup) GetJobPost(ctx context.Context, jobPostID string) (*models.JobPost, error) {
	var job models.JobPost
	if err := r.first(ctx, "job_posts", &job, "job_post_id = ?", jobPostID); err != nil {
		return nil, r.translate(err, "job post "+jobPostID)
	}
	return &job, nil
}

func (r *EntityLookup) GetApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	var app models.Application
	if err := r.first(ctx, "applications", &app, "application_id = ?", applicationID); err != nil {
		return nil, r.translate(err, "application "+applicationID)
	}
	return &app, nil
}

// ListApplicationIDs returns the applications of a job post, oldest first.
func (r *EntityLookup) ListApplicationIDs(ctx context.Context, jobPostID string) ([]string, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var ids []string
	started := time.Now()
	err := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("job_post_id = ?", jobPostID).
		Order("create_time ASC").
		Pluck("application_id", &ids).Error
	database.RecordQuery("select", "applications", time.Since(started), err)
	if err != nil {
		return nil, errors.NewStoreUnavailableError().WithCause(err)
	}
	return ids, nil
}

func (r *EntityLookup) first(ctx context.Context, table string, dest interface{}, query string, args ...interface{}) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	err := r.db.WithContext(ctx).Where(query, args...).First(dest).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		database.RecordQuery("select", table, time.Since(started), nil)
	} else {
		database.RecordQuery("select", table, time.Since(started), err)
	}
	return err
}

func (r *EntityLookup) translate(err error, resource string) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NewNotFoundError(resource)
	}
	return errors.NewStoreUnavailableError().WithCause(err)
}
