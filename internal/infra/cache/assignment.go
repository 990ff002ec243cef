package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bryanwahyu/cerviscan/internal/domain/assignment"
)

const DefaultAssignmentTTL = 5 * time.Minute

// AssignmentChecker caches IsAssigned answers from the underlying repository.
// Redis errors fall through to the repository.
type AssignmentChecker struct {
	Next   assignment.Repository
	Redis  *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func NewAssignmentChecker(next assignment.Repository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *AssignmentChecker {
	if ttl <= 0 {
		ttl = DefaultAssignmentTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentChecker{Next: next, Redis: rdb, TTL: ttl, Logger: logger}
}

func assignmentKey(doctorID, patientID string) string {
	return "assign:" + doctorID + ":" + patientID
}

func (c *AssignmentChecker) IsAssigned(ctx context.Context, doctorID, patientID string) (bool, error) {
	key := assignmentKey(doctorID, patientID)
	v, err := c.Redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		return v == "1", nil
	case !errors.Is(err, redis.Nil):
		c.Logger.Warn("assignment cache read failed", zap.String("key", key), zap.Error(err))
	}

	ok, err := c.Next.IsAssigned(ctx, doctorID, patientID)
	if err != nil {
		return false, err
	}
	val := "0"
	if ok {
		val = "1"
	}
	if err := c.Redis.Set(ctx, key, val, c.TTL).Err(); err != nil {
		c.Logger.Warn("assignment cache write failed", zap.String("key", key), zap.Error(err))
	}
	return ok, nil
}

// Assign writes through and drops any cached negative answer.
func (c *AssignmentChecker) Assign(ctx context.Context, a *assignment.Assignment) error {
	if err := c.Next.Assign(ctx, a); err != nil {
		return err
	}
	if err := c.Redis.Del(ctx, assignmentKey(a.DoctorID, a.PatientID)).Err(); err != nil {
		c.Logger.Warn("assignment cache invalidate failed", zap.Error(err))
	}
	return nil
}

func (c *AssignmentChecker) ListPatients(ctx context.Context, doctorID string) ([]string, error) {
	return c.Next.ListPatients(ctx, doctorID)
}
