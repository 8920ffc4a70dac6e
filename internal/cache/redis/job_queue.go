package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/redis/go-redis/v9"
)

// promoteLua moves due members of the delayed set back onto the stream. The
// ZREM guard keeps two promoters from duplicating a job.
const promoteLua = `
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, m in ipairs(due) do
    if redis.call('ZREM', KEYS[1], m) == 1 then
        redis.call('XADD', KEYS[2], '*', 'payload', m)
    end
end
return #due
`

const (
	defaultQueuePrefix   = "jobs"
	consumerGroup        = "signal-workers"
	enqueueDedupeTTL     = 24 * time.Hour
	promoteBatch         = 100
	failedListMax        = 10000
	defaultVisibilityTTL = 5 * time.Minute
)

// JobQueueOptions configures a JobQueue.
type JobQueueOptions struct {
	Prefix            string
	MaxLen            int64
	VisibilityTimeout time.Duration
}

// JobQueue implements domain.JobQueue on a Redis stream with a consumer
// group. Retries wait in a sorted set until due; exhausted jobs land on a
// list.
//
// Key schema:
//
//	{prefix}:stream     - stream of pending jobs, field "payload"
//	{prefix}:delayed    - zset of job JSON scored by due time (unix ms)
//	{prefix}:failed     - list of failed job records
//	{prefix}:seen:{id}  - enqueue dedupe marker
type JobQueue struct {
	rdb        *redis.Client
	prefix     string
	maxLen     int64
	visibility time.Duration
	promote    *redis.Script
}

// NewJobQueue creates the queue and its consumer group.
func NewJobQueue(ctx context.Context, c *Client, opts JobQueueOptions) (*JobQueue, error) {
	q := &JobQueue{
		rdb:        c.Underlying(),
		prefix:     opts.Prefix,
		maxLen:     opts.MaxLen,
		visibility: opts.VisibilityTimeout,
		promote:    redis.NewScript(promoteLua),
	}
	if q.prefix == "" {
		q.prefix = defaultQueuePrefix
	}
	if q.maxLen <= 0 {
		q.maxLen = defaultStreamMaxLen
	}
	if q.visibility <= 0 {
		q.visibility = defaultVisibilityTTL
	}

	err := q.rdb.XGroupCreateMkStream(ctx, q.streamKey(), consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("redis: create consumer group: %w", err)
	}
	return q, nil
}

func (q *JobQueue) streamKey() string        { return q.prefix + ":stream" }
func (q *JobQueue) delayedKey() string       { return q.prefix + ":delayed" }
func (q *JobQueue) failedKey() string        { return q.prefix + ":failed" }
func (q *JobQueue) seenKey(id string) string { return q.prefix + ":seen:" + id }

// Enqueue adds job to the stream. It returns false without enqueueing when a
// job with the same ID was enqueued within the last 24 hours.
func (q *JobQueue) Enqueue(ctx context.Context, job domain.Job) (bool, error) {
	if job.ID == "" {
		job.ID = domain.JobID(job.EventID, job.DeploymentID, job.Token)
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	fresh, err := q.rdb.SetNX(ctx, q.seenKey(job.ID), 1, enqueueDedupeTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: enqueue %s: %w", job.ID, err)
	}
	if !fresh {
		return false, nil
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("redis: marshal job %s: %w", job.ID, err)
	}
	args := &redis.XAddArgs{
		Stream: q.streamKey(),
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{payloadField: payload},
	}
	if err := q.rdb.XAdd(ctx, args).Err(); err != nil {
		// Let a later scan retry this combination.
		_ = q.rdb.Del(ctx, q.seenKey(job.ID)).Err()
		return false, fmt.Errorf("redis: enqueue %s: %w", job.ID, err)
	}
	return true, nil
}

// Dequeue hands the next job to consumer. Due retries are promoted first, then
// deliveries abandoned by crashed consumers are reclaimed, then new entries
// are read, blocking up to block. It returns nil when nothing arrived.
//
// Every abandoned delivery of a reclaimed entry counts as a failed attempt,
// so a job that keeps killing its worker still reaches the attempt limit.
func (q *JobQueue) Dequeue(ctx context.Context, consumer string, block time.Duration) (*domain.Delivery, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := q.promote.Run(ctx, q.rdb, []string{q.delayedKey(), q.streamKey()}, now, promoteBatch).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: promote delayed jobs: %w", err)
	}

	claimed, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.streamKey(),
		Group:    consumerGroup,
		Consumer: consumer,
		MinIdle:  q.visibility,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: reclaim jobs: %w", err)
	}
	if d, ok := q.decode(ctx, claimed); ok {
		d.Job.Attempts += q.abandoned(ctx, d.Receipt)
		return d, nil
	}

	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: consumer,
		Streams:  []string{q.streamKey(), ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: read jobs: %w", err)
	}
	for _, s := range streams {
		if d, ok := q.decode(ctx, s.Messages); ok {
			return d, nil
		}
	}
	return nil, nil
}

// abandoned returns how many earlier deliveries of the reclaimed entry id were
// never settled. XAUTOCLAIM has already counted the current delivery.
func (q *JobQueue) abandoned(ctx context.Context, id string) int {
	pending, err := q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.streamKey(),
		Group:  consumerGroup,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 1
	}
	return max(int(pending[0].RetryCount)-1, 1)
}

// decode returns the first decodable message. Undecodable entries are moved
// to the failed list so they are not redelivered forever.
func (q *JobQueue) decode(ctx context.Context, msgs []redis.XMessage) (*domain.Delivery, bool) {
	for _, msg := range msgs {
		data, ok := payloadBytes(msg.Values[payloadField])
		if !ok {
			_ = q.ackDelete(ctx, q.rdb, msg.ID)
			continue
		}

		var job domain.Job
		if err := json.Unmarshal(data, &job); err != nil {
			pipe := q.rdb.TxPipeline()
			pipe.LPush(ctx, q.failedKey(), data)
			pipe.LTrim(ctx, q.failedKey(), 0, failedListMax-1)
			_ = q.ackDelete(ctx, pipe, msg.ID)
			_, _ = pipe.Exec(ctx)
			continue
		}
		return &domain.Delivery{Receipt: msg.ID, Job: job}, true
	}
	return nil, false
}

func (q *JobQueue) ackDelete(ctx context.Context, c redis.Cmdable, id string) error {
	if err := c.XAck(ctx, q.streamKey(), consumerGroup, id).Err(); err != nil {
		return err
	}
	return c.XDel(ctx, q.streamKey(), id).Err()
}

// Ack marks a delivery complete and removes it from the stream.
func (q *JobQueue) Ack(ctx context.Context, d domain.Delivery) error {
	pipe := q.rdb.TxPipeline()
	_ = q.ackDelete(ctx, pipe, d.Receipt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: ack %s: %w", d.Job.ID, err)
	}
	return nil
}

// Retry schedules the job to run again after delay with its attempt count
// incremented, and removes the current delivery.
func (q *JobQueue) Retry(ctx context.Context, d domain.Delivery, delay time.Duration) error {
	job := d.Job
	job.Attempts++
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redis: marshal job %s: %w", job.ID, err)
	}

	due := float64(time.Now().Add(delay).UnixMilli())
	pipe := q.rdb.TxPipeline()
	pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: due, Member: payload})
	_ = q.ackDelete(ctx, pipe, d.Receipt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: retry %s: %w", job.ID, err)
	}
	return nil
}

type failedRecord struct {
	Job      domain.Job `json:"job"`
	Reason   string     `json:"reason"`
	FailedAt time.Time  `json:"failedAt"`
}

// Fail moves the job to the failed list.
func (q *JobQueue) Fail(ctx context.Context, d domain.Delivery, reason string) error {
	payload, err := json.Marshal(failedRecord{Job: d.Job, Reason: reason, FailedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("redis: marshal failed job %s: %w", d.Job.ID, err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.LPush(ctx, q.failedKey(), payload)
	pipe.LTrim(ctx, q.failedKey(), 0, failedListMax-1)
	_ = q.ackDelete(ctx, pipe, d.Receipt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: fail %s: %w", d.Job.ID, err)
	}
	return nil
}

// Stats returns queue depth counters. Acked entries are deleted from the
// stream, so its length is waiting plus in-flight.
func (q *JobQueue) Stats(ctx context.Context) (domain.QueueStats, error) {
	pipe := q.rdb.Pipeline()
	xlen := pipe.XLen(ctx, q.streamKey())
	pending := pipe.XPending(ctx, q.streamKey(), consumerGroup)
	delayed := pipe.ZCard(ctx, q.delayedKey())
	failed := pipe.LLen(ctx, q.failedKey())
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.QueueStats{}, fmt.Errorf("redis: queue stats: %w", err)
	}

	var active int64
	if p, err := pending.Result(); err == nil && p != nil {
		active = p.Count
	}
	waiting := xlen.Val() - active
	if waiting < 0 {
		waiting = 0
	}
	return domain.QueueStats{
		Waiting: waiting,
		Active:  active,
		Delayed: delayed.Val(),
		Failed:  failed.Val(),
	}, nil
}

// Compile-time interface check.
var _ domain.JobQueue = (*JobQueue)(nil)
