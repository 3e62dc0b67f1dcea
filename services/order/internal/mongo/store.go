// Package mongo persists orders in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aquamarinepk/aqm"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultURL     = "mongodb://localhost:27017"
	defaultName    = "hotelma_order"
	defaultTimeout = 10 * time.Second
)

// Store owns the client connection of the order database.
type Store struct {
	url     string
	name    string
	timeout time.Duration
	logger  aqm.Logger

	client *mongo.Client
	db     *mongo.Database
}

func NewStore(config *aqm.Config, logger aqm.Logger) *Store {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	timeout := defaultTimeout
	if raw := config.GetStringOrDef("db.mongo.timeout", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			timeout = d
		} else {
			logger.Info("invalid db.mongo.timeout, using default", "value", raw, "default", defaultTimeout)
		}
	}

	return &Store{
		url:     config.GetStringOrDef("db.mongo.url", defaultURL),
		name:    config.GetStringOrDef("db.mongo.name", defaultName),
		timeout: timeout,
		logger:  logger,
	}
}

// Start connects and pings. Orders cannot be served without the database so
// a failure here is fatal to the service.
func (s *Store) Start(ctx context.Context) error {
	opts := options.Client().ApplyURI(s.url).
		SetConnectTimeout(s.timeout).
		SetServerSelectionTimeout(s.timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	s.client = client
	s.db = client.Database(s.name)

	s.logger.Info("connected to MongoDB", "url", redact(s.url), "database", s.name)
	return nil
}

func (s *Store) Stop(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
	}
	s.client = nil
	s.logger.Info("disconnected from MongoDB")
	return nil
}

// Database is nil until Start succeeds.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// Orders opens the order repository and makes sure its indexes exist.
func (s *Store) Orders(ctx context.Context) (*OrderRepo, error) {
	if s.db == nil {
		return nil, errors.New("store is not started")
	}
	repo := NewOrderRepo(s.db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// redact hides the password of a connection string before it is logged.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid url"
	}
	return u.Redacted()
}
