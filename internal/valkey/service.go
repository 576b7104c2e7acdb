package valkey

import (
	"context"
	"strings"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/valkey-io/valkey-go"
)

const (
	defaultKeyPrefix = "hiatus"
	connectTimeout   = 5 * time.Second
)

// Service owns the Valkey client and the key namespace every Hiatus key lives
// under, so several deployments can share one Valkey database.
type Service struct {
	client valkey.Client
	prefix string
}

func NewService(cfg domain.ValkeyConfig) (*Service, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create valkey client for %s", cfg.Address)
	}

	s := newService(client, cfg.KeyPrefix)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "valkey at %s did not answer", cfg.Address)
	}

	return s, nil
}

func newService(client valkey.Client, prefix string) *Service {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Service{client: client, prefix: prefix}
}

// Key joins parts below the configured prefix: Key("restore", "pending")
// gives "hiatus:restore:pending".
func (s *Service) Key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *Service) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *Service) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *Service) GetClient() valkey.Client {
	return s.client
}
