package videostore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediaqos/mediaqos/internal/model"
)

// keyPrefix namespaces record hashes so ScanAll can match them without
// touching the queue's keys living in the same Redis.
const keyPrefix = "video:"

// RedisStore persists each record as a hash under video:<videoId>. The views
// field is bumped with HINCRBY, which is atomic on the server, so concurrent
// trackers never lose an increment.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client. The caller owns the client's
// lifecycle; the worker shares it with the asynq connection pool config.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %s", ErrUnavailable, err)
	}
	return nil
}

func recordKey(videoID string) string {
	return keyPrefix + videoID
}

func (s *RedisStore) Create(ctx context.Context, rec *model.VideoRecord) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	key := recordKey(rec.VideoID)
	// HSETNX on the id field claims the hash; a second Create for the same
	// id sees the field already set and reports the collision.
	claimed, err := s.client.HSetNX(ctx, key, "videoId", rec.VideoID).Result()
	if err != nil {
		return fmt.Errorf("%w: hsetnx %s: %s", ErrUnavailable, key, err)
	}
	if !claimed {
		return ErrAlreadyExists
	}
	if err := s.client.HSet(ctx, key, encodeRecord(rec)).Err(); err != nil {
		return fmt.Errorf("%w: hset %s: %s", ErrUnavailable, key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, recordKey(videoID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: hgetall %s: %s", ErrUnavailable, videoID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeRecord(fields)
}

func (s *RedisStore) UpdateStatus(ctx context.Context, videoID string, status model.VideoStatus, fields Fields) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := recordKey(videoID)
	exists, err := s.client.HExists(ctx, key, "videoId").Result()
	if err != nil {
		return fmt.Errorf("%w: hexists %s: %s", ErrUnavailable, videoID, err)
	}
	if !exists {
		return ErrNotFound
	}

	update := map[string]any{
		"status":    string(status),
		"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if fields.S3Key != nil {
		update["s3Key"] = *fields.S3Key
	}
	if fields.S3Bucket != nil {
		update["s3Bucket"] = *fields.S3Bucket
	}
	if fields.FileSize != nil {
		update["fileSize"] = strconv.FormatInt(*fields.FileSize, 10)
	}
	if fields.ProcessedAt != nil {
		update["processedAt"] = fields.ProcessedAt.UTC().Format(time.RFC3339Nano)
	}
	if fields.VideoURL != nil {
		update["videoUrl"] = *fields.VideoURL
	}
	if fields.ErrorMessage != nil {
		update["errorMessage"] = *fields.ErrorMessage
	}
	if err := s.client.HSet(ctx, key, update).Err(); err != nil {
		return fmt.Errorf("%w: hset %s: %s", ErrUnavailable, videoID, err)
	}
	return nil
}

func (s *RedisStore) IncrementViews(ctx context.Context, videoID string, delta int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := recordKey(videoID)
	exists, err := s.client.HExists(ctx, key, "videoId").Result()
	if err != nil {
		return fmt.Errorf("%w: hexists %s: %s", ErrUnavailable, videoID, err)
	}
	if !exists {
		return ErrNotFound
	}
	// HINCRBY initializes the field to 0 when absent before adding.
	if err := s.client.HIncrBy(ctx, key, "views", delta).Err(); err != nil {
		return fmt.Errorf("%w: hincrby %s: %s", ErrUnavailable, videoID, err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, key, "updatedAt", stamp).Err(); err != nil {
		return fmt.Errorf("%w: hset %s: %s", ErrUnavailable, videoID, err)
	}
	return nil
}

func (s *RedisStore) ScanAll(ctx context.Context) ([]*model.VideoRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var out []*model.VideoRecord
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		fields, err := s.client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: hgetall %s: %s", ErrUnavailable, iter.Val(), err)
		}
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeRecord(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan: %s", ErrUnavailable, err)
	}
	return out, nil
}

func encodeRecord(rec *model.VideoRecord) map[string]any {
	fields := map[string]any{
		"videoId":   rec.VideoID,
		"filename":  rec.Filename,
		"status":    string(rec.Status),
		"views":     strconv.FormatInt(rec.Views, 10),
		"createdAt": rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updatedAt": rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if rec.ContentType != "" {
		fields["contentType"] = rec.ContentType
	}
	return fields
}

func decodeRecord(fields map[string]string) (*model.VideoRecord, error) {
	rec := &model.VideoRecord{
		VideoID:      fields["videoId"],
		Filename:     fields["filename"],
		ContentType:  fields["contentType"],
		Status:       model.VideoStatus(fields["status"]),
		S3Key:        fields["s3Key"],
		S3Bucket:     fields["s3Bucket"],
		VideoURL:     fields["videoUrl"],
		ErrorMessage: fields["errorMessage"],
	}
	if v, ok := fields["views"]; ok {
		views, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode record %s: views: %w", rec.VideoID, err)
		}
		rec.Views = views
	}
	if v, ok := fields["fileSize"]; ok {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode record %s: fileSize: %w", rec.VideoID, err)
		}
		rec.FileSize = size
	}
	var err error
	if rec.CreatedAt, err = parseStamp(fields["createdAt"]); err != nil {
		return nil, fmt.Errorf("decode record %s: createdAt: %w", rec.VideoID, err)
	}
	if rec.UpdatedAt, err = parseStamp(fields["updatedAt"]); err != nil {
		return nil, fmt.Errorf("decode record %s: updatedAt: %w", rec.VideoID, err)
	}
	if v, ok := fields["processedAt"]; ok && v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("decode record %s: processedAt: %w", rec.VideoID, err)
		}
		rec.ProcessedAt = &t
	}
	return rec, nil
}

func parseStamp(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
