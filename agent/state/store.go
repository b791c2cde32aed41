package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNilSession      = errors.New("session is nil")
)

const (
	defaultStoreKeyPrefix = "travel:session:"
	defaultStoreTTL       = 7 * 24 * time.Hour
	maxResponseSizeBytes  = 2 << 20
)

// Store is the session persistence contract used by the router.
type Store interface {
	Read(ctx context.Context, key Key) (*Session, error)
	Upsert(ctx context.Context, s *Session) error
	PatchActiveWorker(ctx context.Context, key Key, worker string) error
}

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore persists sessions in Upstash Redis via REST. Expiry is
// the abandonment path; the router never deletes sessions.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" split_words:"true" default:"168h"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultStoreTTL
	}

	store := &UpstashRedisStore{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       ttl,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashRedisStore) Read(ctx context.Context, key Key) (*Session, error) {
	redisKey, err := s.redisKey(key)
	if err != nil {
		return nil, err
	}

	result, err := s.do(ctx, "GET", redisKey)
	if err != nil {
		return nil, err
	}
	// GET answers with a JSON string holding the session document, or null.
	var payload *string
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("decode GET %s: %w", redisKey, err)
	}
	if payload == nil {
		return nil, ErrSessionNotFound
	}

	sess := new(Session)
	if err := json.Unmarshal([]byte(*payload), sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", redisKey, err)
	}
	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("stored session %s: %w", redisKey, err)
	}
	return sess, nil
}

// Upsert writes the whole document and restarts its expiry.
func (s *UpstashRedisStore) Upsert(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if err := sess.Validate(); err != nil {
		return err
	}
	redisKey, err := s.redisKey(sess.Key())
	if err != nil {
		return err
	}
	if sess.LastActivityAt.IsZero() {
		sess.LastActivityAt = time.Now().UTC()
	}

	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", redisKey, err)
	}
	args := []any{"SET", redisKey, string(doc)}
	if s.ttl > 0 {
		args = append(args, "EX", ttlSeconds(s.ttl))
	}
	_, err = s.do(ctx, args...)
	return err
}

// PatchActiveWorker is a read-modify-write; callers serialize per session.
func (s *UpstashRedisStore) PatchActiveWorker(ctx context.Context, key Key, worker string) error {
	sess, err := s.Read(ctx, key)
	if err != nil {
		return err
	}
	sess.ActiveWorker = strings.TrimSpace(worker)
	return s.Upsert(ctx, sess)
}

func (s *UpstashRedisStore) redisKey(key Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	return strings.Join([]string{strings.TrimSpace(s.keyPrefix) + key.TenantID, key.UserID, key.SessionID}, ":"), nil
}

// do sends one command as a JSON array to the REST endpoint and returns the
// raw result field.
func (s *UpstashRedisStore) do(ctx context.Context, args ...any) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, errors.New("empty redis command")
	}
	name := fmt.Sprint(args[0])

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", name, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstash %s: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", name, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("upstash %s: status=%d body=%s", name, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var out redisRESTResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", name, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("upstash %s: %s", name, out.Error)
	}
	if len(out.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return out.Result, nil
}

// ttlSeconds rounds ttl up to whole seconds, at least one.
func ttlSeconds(ttl time.Duration) int64 {
	secs := int64((ttl + time.Second - 1) / time.Second)
	return max(secs, 1)
}
