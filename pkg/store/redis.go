package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// Constants for Redis keys
const (
	redisDeploymentsKey        string = "deployments"
	redisCleanupReportsKey     string = "cleanupReports"
	redisSmokeTestReportsKey   string = "smokeTestReports"
	redisTaskKey               string = "task"
	redisTasksExecutedCountKey string = "tasksExecutedCount"
	redisKeepaliveKey          string = "keepalive"
)

// Redis represents a Redis client wrapper.
type Redis struct {
	*redis.Client
}

// SetDeployment stores a deployment in Redis.
func (r *Redis) SetDeployment(ctx context.Context, d schemas.DeploymentResult) error {
	marshalledDeployment, err := msgpack.Marshal(d)
	if err != nil {
		return err
	}

	_, err = r.HSet(ctx, redisDeploymentsKey, string(d.Key()), marshalledDeployment).Result()

	return err
}

// DelDeployment deletes a deployment from Redis.
func (r *Redis) DelDeployment(ctx context.Context, dk schemas.DeploymentKey) error {
	_, err := r.HDel(ctx, redisDeploymentsKey, string(dk)).Result()

	return err
}

// GetDeployment retrieves a deployment from Redis.
func (r *Redis) GetDeployment(ctx context.Context, d *schemas.DeploymentResult) error {
	exists, err := r.DeploymentExists(ctx, d.Key())
	if err != nil {
		return err
	}

	if exists {
		k := d.Key()

		marshalledDeployment, err := r.HGet(ctx, redisDeploymentsKey, string(k)).Result()
		if err != nil {
			return err
		}

		if err = msgpack.Unmarshal([]byte(marshalledDeployment), d); err != nil {
			return err
		}
	}

	return nil
}

// DeploymentExists checks if a deployment exists in Redis.
func (r *Redis) DeploymentExists(ctx context.Context, dk schemas.DeploymentKey) (bool, error) {
	return r.HExists(ctx, redisDeploymentsKey, string(dk)).Result()
}

// Deployments retrieves all deployments from Redis.
func (r *Redis) Deployments(ctx context.Context) (schemas.Deployments, error) {
	deployments := make(schemas.Deployments)

	marshalledDeployments, err := r.HGetAll(ctx, redisDeploymentsKey).Result()
	if err != nil {
		return deployments, err
	}

	for stringDeploymentKey, marshalledDeployment := range marshalledDeployments {
		d := schemas.DeploymentResult{}

		if err = msgpack.Unmarshal([]byte(marshalledDeployment), &d); err != nil {
			return deployments, err
		}

		deployments[schemas.DeploymentKey(stringDeploymentKey)] = d
	}

	return deployments, nil
}

// DeploymentsCount returns the count of deployments in Redis.
func (r *Redis) DeploymentsCount(ctx context.Context) (int64, error) {
	return r.HLen(ctx, redisDeploymentsKey).Result()
}

// SetCleanupReport stores a cleanup report in Redis.
func (r *Redis) SetCleanupReport(ctx context.Context, cr schemas.CleanupReport) error {
	marshalledReport, err := msgpack.Marshal(cr)
	if err != nil {
		return err
	}

	_, err = r.HSet(ctx, redisCleanupReportsKey, string(cr.Key()), marshalledReport).Result()

	return err
}

// CleanupReports retrieves all cleanup reports from Redis.
func (r *Redis) CleanupReports(ctx context.Context) (schemas.CleanupReports, error) {
	reports := make(schemas.CleanupReports)

	marshalledReports, err := r.HGetAll(ctx, redisCleanupReportsKey).Result()
	if err != nil {
		return reports, err
	}

	for stringReportKey, marshalledReport := range marshalledReports {
		cr := schemas.CleanupReport{}

		if err = msgpack.Unmarshal([]byte(marshalledReport), &cr); err != nil {
			return reports, err
		}

		reports[schemas.CleanupReportKey(stringReportKey)] = cr
	}

	return reports, nil
}

// CleanupReportsCount returns the count of cleanup reports in Redis.
func (r *Redis) CleanupReportsCount(ctx context.Context) (int64, error) {
	return r.HLen(ctx, redisCleanupReportsKey).Result()
}

// SetSmokeTestReport stores a smoke-test report in Redis.
func (r *Redis) SetSmokeTestReport(ctx context.Context, str schemas.SmokeTestReport) error {
	marshalledReport, err := msgpack.Marshal(str)
	if err != nil {
		return err
	}

	_, err = r.HSet(ctx, redisSmokeTestReportsKey, string(str.Key()), marshalledReport).Result()

	return err
}

// SmokeTestReports retrieves all smoke-test reports from Redis.
func (r *Redis) SmokeTestReports(ctx context.Context) (schemas.SmokeTestReports, error) {
	reports := make(schemas.SmokeTestReports)

	marshalledReports, err := r.HGetAll(ctx, redisSmokeTestReportsKey).Result()
	if err != nil {
		return reports, err
	}

	for stringReportKey, marshalledReport := range marshalledReports {
		str := schemas.SmokeTestReport{}

		if err = msgpack.Unmarshal([]byte(marshalledReport), &str); err != nil {
			return reports, err
		}

		reports[schemas.SmokeTestReportKey(stringReportKey)] = str
	}

	return reports, nil
}

// SmokeTestReportsCount returns the count of smoke-test reports in Redis.
func (r *Redis) SmokeTestReportsCount(ctx context.Context) (int64, error) {
	return r.HLen(ctx, redisSmokeTestReportsKey).Result()
}

// SetKeepalive sets a key with a UUID corresponding to the currently running process.
func (r *Redis) SetKeepalive(ctx context.Context, uuid string, ttl time.Duration) (bool, error) {
	return r.SetNX(ctx, fmt.Sprintf("%s:%s", redisKeepaliveKey, uuid), nil, ttl).Result()
}

// KeepaliveExists returns whether a keepalive exists or not for a particular UUID.
func (r *Redis) KeepaliveExists(ctx context.Context, uuid string) (bool, error) {
	exists, err := r.Exists(ctx, fmt.Sprintf("%s:%s", redisKeepaliveKey, uuid)).Result()

	return exists == 1, err
}

// getRedisQueueKey generates a Redis key for a task.
func getRedisQueueKey(tt schemas.TaskType, taskUUID string) string {
	return fmt.Sprintf("%s:%v:%s", redisTaskKey, tt, taskUUID)
}

// QueueTask registers that we are queueing the task.
// It returns true if it managed to schedule it, false if it was already scheduled.
func (r *Redis) QueueTask(ctx context.Context, tt schemas.TaskType, taskUUID, processUUID string) (set bool, err error) {
	k := getRedisQueueKey(tt, taskUUID)

	// Attempt to set the key, if it already exists, do not overwrite it
	set, err = r.SetNX(ctx, k, processUUID, 0).Result()
	if err != nil || set {
		return
	}

	// The key already exists, check if the associated process UUID is the
	// same as the current one
	var tpuuid string
	if tpuuid, err = r.Get(ctx, k).Result(); err != nil {
		return
	}

	// If the process UUID is different, check if the associated process is
	// still alive and take over the task when it is not
	if tpuuid != processUUID {
		var uuidIsAlive bool
		if uuidIsAlive, err = r.KeepaliveExists(ctx, tpuuid); err != nil {
			return
		}

		if !uuidIsAlive {
			if _, err = r.Set(ctx, k, processUUID, 0).Result(); err != nil {
				return
			}

			return true, nil
		}
	}

	return
}

// UnqueueTask removes the task from the tracker.
func (r *Redis) UnqueueTask(ctx context.Context, tt schemas.TaskType, taskUUID string) (err error) {
	var matched int64

	matched, err = r.Del(ctx, getRedisQueueKey(tt, taskUUID)).Result()
	if err != nil {
		return
	}

	// Increment the count of executed tasks
	if matched > 0 {
		_, err = r.Incr(ctx, redisTasksExecutedCountKey).Result()
	}

	return
}

// CurrentlyQueuedTasksCount returns the count of currently queued tasks.
func (r *Redis) CurrentlyQueuedTasksCount(ctx context.Context) (count uint64, err error) {
	iter := r.Scan(ctx, 0, fmt.Sprintf("%s:*", redisTaskKey), 0).Iterator()
	for iter.Next(ctx) {
		count++
	}

	err = iter.Err()

	return
}

// ExecutedTasksCount returns the count of executed tasks.
func (r *Redis) ExecutedTasksCount(ctx context.Context) (uint64, error) {
	countString, err := r.Get(ctx, redisTasksExecutedCountKey).Result()
	if err != nil {
		return 0, err
	}

	c, err := strconv.Atoi(countString)

	return uint64(c), err
}
