package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stwalsh4118/vigil/internal/logger"
)

const (
	defaultNamespace        = "vigil"
	defaultFailureThreshold = 3
	defaultResetTimeout     = 30 * time.Second
	defaultOpTimeout        = 3 * time.Second
	defaultLogCap           = 1000
)

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string

	// Circuit breaker
	FailureThreshold int
	ResetTimeout     time.Duration

	// OpTimeout bounds every individual remote call
	OpTimeout time.Duration

	// LogCap is the number of remote log entries kept
	LogCap int64
}

// changeMessage is published on a key's change channel
type changeMessage struct {
	Origin string          `json:"origin"`
	Value  json.RawMessage `json:"value"`
}

// Redis mirrors state into a single Redis hash and announces each write on
// a per-key pub/sub channel so other viewers learn about it without polling
type Redis struct {
	client  *redis.Client
	cfg     RedisConfig
	nodeID  string
	breaker *CircuitBreaker

	mu          sync.RWMutex
	handlers    map[string][]Handler
	pubsub      *redis.PubSub
	initialized bool
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedis creates a Redis-backed mirror. No connection is made until Init.
func NewRedis(cfg RedisConfig) *Redis {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	if cfg.LogCap <= 0 {
		cfg.LogCap = defaultLogCap
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.OpTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &Redis{
		client:   client,
		cfg:      cfg,
		nodeID:   uuid.NewString(),
		breaker:  NewCircuitBreaker(cfg.FailureThreshold, cfg.ResetTimeout),
		handlers: make(map[string][]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// NodeID returns the id this mirror stamps on its own change messages
func (r *Redis) NodeID() string {
	return r.nodeID
}

// Init implements Mirror
func (r *Redis) Init(ctx context.Context) error {
	err := r.call(ctx, func(ctx context.Context) error {
		return r.client.Ping(ctx).Err()
	})

	r.mu.Lock()
	r.initialized = err == nil
	r.mu.Unlock()

	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("addr", r.cfg.Addr).
			Msg("Remote mirror unreachable, continuing with local state only")
		return fmt.Errorf("failed to connect to mirror: %w", err)
	}

	logger.Log.Info().
		Str("addr", r.cfg.Addr).
		Str("namespace", r.cfg.Namespace).
		Str("node_id", r.nodeID).
		Msg("Remote mirror connected")
	return nil
}

// Enabled implements Mirror
func (r *Redis) Enabled() bool {
	return true
}

// Get implements Mirror
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	found := false

	err := r.call(ctx, func(ctx context.Context) error {
		v, err := r.client.HGet(ctx, r.stateKey(), key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		value = v
		found = true
		return nil
	})
	if err != nil {
		r.logFailure(err, "get", key)
		return nil, false
	}
	return value, found
}

// Set implements Mirror
func (r *Redis) Set(ctx context.Context, key string, value []byte) bool {
	if !json.Valid(value) {
		logger.Log.Warn().Str("key", key).Msg("Refusing to mirror non-JSON value")
		return false
	}

	payload, err := json.Marshal(changeMessage{Origin: r.nodeID, Value: value})
	if err != nil {
		return false
	}

	err = r.call(ctx, func(ctx context.Context) error {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.stateKey(), key, value)
			pipe.Publish(ctx, r.changeChannel(key), payload)
			return nil
		})
		return err
	})
	if err != nil {
		r.logFailure(err, "set", key)
		return false
	}
	return true
}

// Subscribe implements Mirror. Changes published by this mirror are not
// delivered back to it.
func (r *Redis) Subscribe(key string, fn Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	r.handlers[key] = append(r.handlers[key], fn)
	if r.pubsub != nil {
		return nil
	}

	// One pattern subscription covers every key; handlers are looked up per message
	r.pubsub = r.client.PSubscribe(r.ctx, r.changeChannel("*"))

	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.OpTimeout)
	defer cancel()
	if _, err := r.pubsub.Receive(ctx); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("key", key).
			Msg("Mirror subscription not confirmed, will retry on reconnect")
	}

	r.wg.Add(1)
	go r.receive(r.pubsub)
	return nil
}

// receive delivers pub/sub messages to the registered handlers
func (r *Redis) receive(pubsub *redis.PubSub) {
	defer r.wg.Done()

	ch := pubsub.Channel()
	prefix := r.cfg.Namespace + ":changes:"

	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var change changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				logger.Log.Warn().
					Err(err).
					Str("channel", msg.Channel).
					Msg("Dropping malformed mirror change message")
				continue
			}
			if change.Origin == r.nodeID {
				continue
			}

			key := strings.TrimPrefix(msg.Channel, prefix)
			r.mu.RLock()
			handlers := append([]Handler(nil), r.handlers[key]...)
			r.mu.RUnlock()

			for _, h := range handlers {
				h([]byte(change.Value))
			}
		}
	}
}

// Log implements Mirror
func (r *Redis) Log(ctx context.Context, entry LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Origin == "" {
		entry.Origin = r.nodeID
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}

	err = r.call(ctx, func(ctx context.Context) error {
		_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, r.logKey(), payload)
			pipe.LTrim(ctx, r.logKey(), -r.cfg.LogCap, -1)
			return nil
		})
		return err
	})
	if err != nil {
		logger.Log.Debug().Err(err).Msg("Failed to append remote log entry")
	}
}

// Status implements Mirror
func (r *Redis) Status() Status {
	r.mu.RLock()
	closed, initialized := r.closed, r.initialized
	r.mu.RUnlock()

	if closed {
		return StatusUnavailable
	}

	lastErr := r.breaker.LastError()
	if lastErr != nil && isAuthError(lastErr) {
		return StatusUnauthorized
	}

	switch {
	case r.breaker.IsOpen():
		return StatusUnavailable
	case r.breaker.GetFailures() > 0:
		return StatusDegraded
	case !initialized:
		return StatusConnecting
	default:
		return StatusConnected
	}
}

// Close implements Mirror
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pubsub := r.pubsub
	r.mu.Unlock()

	r.cancel()
	if pubsub != nil {
		_ = pubsub.Close()
	}
	r.wg.Wait()

	return r.client.Close()
}

// call runs fn through the circuit breaker with the per-operation timeout
func (r *Redis) call(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	err := r.breaker.Call(func() error {
		opCtx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
		defer cancel()
		return fn(opCtx)
	})
	if err == nil {
		r.mu.Lock()
		r.initialized = true
		r.mu.Unlock()
	}
	return err
}

func (r *Redis) logFailure(err error, op, key string) {
	if IsCircuitOpen(err) || errors.Is(err, ErrClosed) {
		return
	}
	logger.Log.Warn().
		Err(err).
		Str("op", op).
		Str("key", key).
		Msg("Mirror operation failed")
}

func (r *Redis) stateKey() string {
	return r.cfg.Namespace + ":state"
}

func (r *Redis) changeChannel(key string) string {
	return r.cfg.Namespace + ":changes:" + key
}

func (r *Redis) logKey() string {
	return r.cfg.Namespace + ":system_logs"
}

func isAuthError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"NOAUTH", "WRONGPASS", "NOPERM", "invalid password", "invalid username-password"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
