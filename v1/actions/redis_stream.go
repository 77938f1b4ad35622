package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
)

// RedisStreamHandle identifies the stream publishing action
const RedisStreamHandle = "redis_stream"

var streamNamePattern = regexp.MustCompile(`^[A-Za-z0-9:_.\-]+$`)

// Publisher appends an entry to a stream
type Publisher interface {
	Publish(ctx context.Context, stream string, values map[string]any) (string, error)
}

type redisStreamConfig struct {
	Stream string `json:"stream"`
}

// RedisStreamAction publishes each clean submission to a redis stream
type RedisStreamAction struct {
	publisher     Publisher
	defaultStream string
}

func NewRedisStreamAction(publisher Publisher, defaultStream string) *RedisStreamAction {
	return &RedisStreamAction{publisher: publisher, defaultStream: defaultStream}
}

func (a *RedisStreamAction) Handle() string { return RedisStreamHandle }
func (a *RedisStreamAction) Name() string   { return "Publish to Redis Stream" }

func (a *RedisStreamAction) streamName(input RawInput) string {
	if s := input.String("stream"); s != "" {
		return s
	}
	return a.defaultStream
}

func (a *RedisStreamAction) ValidateForm(input RawInput, existingActionID string) error {
	name := a.streamName(input)
	if name == "" {
		return fmt.Errorf("%w: stream is required", models.ErrInvalidActionConfig)
	}
	if !streamNamePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid stream name %q", models.ErrInvalidActionConfig, name)
	}
	return nil
}

func (a *RedisStreamAction) ParseConfiguration(input RawInput, existingActionID string) ([]byte, error) {
	if err := a.ValidateForm(input, existingActionID); err != nil {
		return nil, err
	}
	return json.Marshal(redisStreamConfig{Stream: a.streamName(input)})
}

func (a *RedisStreamAction) Execute(ctx context.Context, config []byte, sub SubmissionView, ectx ExecutionContext) error {
	if a.publisher == nil {
		return errors.New("redis is not configured")
	}
	var cfg redisStreamConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidActionConfig, err)
	}
	values, err := json.Marshal(sub.Values())
	if err != nil {
		return err
	}
	_, err = a.publisher.Publish(ctx, cfg.Stream, map[string]any{
		"event":        models.BusinessEventSubmission,
		"submissionId": sub.ID,
		"formTypeId":   sub.FormTypeID,
		"formName":     sub.FormName,
		"instanceId":   sub.InstanceID,
		"createdAt":    sub.CreatedAt.UTC().Format(time.RFC3339),
		"values":       string(values),
	})
	return err
}
