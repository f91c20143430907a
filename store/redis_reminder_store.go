package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rocketwin/funnel-bot/types"
)

// RedisReminderStore keeps one-shot reminder jobs as JSON payloads plus a
// sorted set indexed by fire time. Jobs survive restarts until claimed.
type RedisReminderStore struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisReminderStore(redisClient *RedisClient, ttlHours int) *RedisReminderStore {
	ttl := time.Duration(ttlHours) * time.Hour
	if ttlHours <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisReminderStore{
		client: redisClient,
		ttl:    ttl,
	}
}

func (s *RedisReminderStore) Schedule(ctx context.Context, job *types.ReminderJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	jobKey := s.client.generateKey("reminder", job.ID)
	if err := s.client.Set(ctx, jobKey, job, s.ttl); err != nil {
		return err
	}

	dueKey := s.client.generateKey("reminder_due")
	if err := s.client.ZAdd(ctx, dueKey, float64(job.FireAt.Unix()), job.ID); err != nil {
		_ = s.client.Del(ctx, jobKey)
		return err
	}

	return nil
}

func (s *RedisReminderStore) ClaimDue(ctx context.Context, now time.Time) ([]*types.ReminderJob, error) {
	dueKey := s.client.generateKey("reminder_due")
	ids, err := s.client.ZRangeByScore(ctx, dueKey, float64(now.Unix()))
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}

	jobs := make([]*types.ReminderJob, 0, len(ids))
	for _, id := range ids {
		claimed, err := s.client.ZRem(ctx, dueKey, id)
		if err != nil {
			return jobs, err
		}
		if !claimed {
			continue
		}

		jobKey := s.client.generateKey("reminder", id)
		var job types.ReminderJob
		if err := s.client.Get(ctx, jobKey, &job); err != nil {
			log.Printf("Reminder %s claimed but payload missing: %v", id, err)
			continue
		}
		_ = s.client.Del(ctx, jobKey)
		jobs = append(jobs, &job)
	}

	return jobs, nil
}
