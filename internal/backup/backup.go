// Package backup snapshots the SQLite database and uploads it to
// S3-compatible storage, optionally sealed with a passphrase.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dukerupert/hearthquest/internal/model"
	"github.com/dukerupert/hearthquest/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3         S3Config
	DBPath     string
	Passphrase string
	Interval   time.Duration
}

// Enabled reports whether the configuration is complete enough to run.
func (c Config) Enabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != ""
}

// Manager runs scheduled database snapshots to S3-compatible storage.
type Manager struct {
	mu     gosync.Mutex
	cfg    Config
	db     *sql.DB
	store  *store.BackupStore
	client s3Client
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. The S3 client is built lazily so a
// disabled configuration costs nothing.
func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, logger *slog.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Manager{cfg: cfg, db: db, store: bs, logger: logger}
}

func (m *Manager) s3client() s3Client {
	if m.client != nil {
		return m.client
	}

	creds := credentials.NewStaticCredentialsProvider(m.cfg.S3.AccessKey, m.cfg.S3.SecretKey, "")
	m.client = s3.New(s3.Options{
		Region:       m.cfg.S3.Region,
		Credentials:  creds,
		BaseEndpoint: optionalEndpoint(m.cfg.S3.Endpoint),
		UsePathStyle: m.cfg.S3.Endpoint != "",
	})
	return m.client
}

func optionalEndpoint(endpoint string) *string {
	if endpoint == "" {
		return nil
	}
	return aws.String(endpoint)
}

// Start launches the scheduled backup loop. No-op when disabled.
func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.Enabled() {
		m.logger.Info("backups disabled")
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.BackupNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the backup loop and waits for it to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// BackupNow snapshots the database, seals it if a passphrase is configured,
// uploads it, and records the result.
func (m *Manager) BackupNow(ctx context.Context) (*model.BackupRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.Enabled() {
		return nil, fmt.Errorf("backups are not configured")
	}

	data, err := m.snapshot()
	if err != nil {
		return nil, err
	}

	encrypted := m.cfg.Passphrase != ""
	if encrypted {
		data, err = Encrypt(data, m.cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("encrypt snapshot: %w", err)
		}
	}

	key := fmt.Sprintf("hearthquest/%s-%s.db", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
	_, err = m.s3client().PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	record, err := m.store.Create(key, int64(len(data)), encrypted)
	if err != nil {
		return nil, fmt.Errorf("record backup: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "size", humanize.Bytes(uint64(len(data))), "encrypted", encrypted)
	return record, nil
}

// snapshot produces a consistent copy of the live database using VACUUM INTO,
// which works while WAL-mode writers are active.
func (m *Manager) snapshot() ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("hearthquest-snapshot-%s.db", uuid.NewString()[:8]))
	defer os.Remove(tmp)

	if _, err := m.db.Exec(`VACUUM INTO ?`, tmp); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}

	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Fetch downloads a backup object and unseals it when a passphrase is set.
// Used by the restore flow.
func (m *Manager) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := m.s3client().GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download snapshot: %w", err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}

	data := buf.Bytes()
	if m.cfg.Passphrase != "" {
		data, err = Decrypt(data, m.cfg.Passphrase)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}
