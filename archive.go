package driftwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"
)

// ArchiveConfig configures export of journal batches to S3-compatible
// storage.
type ArchiveConfig struct {
	// Enabled turns on archiving.
	Enabled bool `yaml:"enabled"`

	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint,omitempty"` // For S3-compatible services (MinIO, etc.)
	// AccessKeyID for authentication. Prefer IAM roles or environment
	// variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY) instead of
	// setting these directly. DO NOT commit credentials to source control.
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"` // Key prefix for all objects
	UsePathStyle    bool   `yaml:"use_path_style"`

	// Interval between export runs. Default: 5 minutes.
	Interval Duration `yaml:"interval"`

	// BatchLimit is the maximum entries per exported object.
	// Default: 1000.
	BatchLimit int `yaml:"batch_limit"`

	// EncryptionPassword, when set, seals each batch with AES-GCM using a
	// PBKDF2-derived key before upload.
	EncryptionPassword string `yaml:"encryption_password,omitempty"`
}

// objectUploader abstracts the object store so the archiver can be tested
// without S3.
type objectUploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func (u *s3Uploader) Upload(ctx context.Context, key string, body []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("S3 put object failed: %w", err)
	}
	return nil
}

// Archiver periodically exports journal entries to an object store. Batches
// are JSON encoded, snappy compressed, and optionally sealed.
type Archiver struct {
	cfg     ArchiveConfig
	journal *Journal
	up      objectUploader
	enc     *batchEncryptor

	mu     sync.Mutex
	lastID int64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewArchiver creates an archiver backed by S3.
func NewArchiver(journal *Journal, cfg ArchiveConfig) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, newParameterError("archive.bucket", cfg.Bucket, "required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	up := &s3Uploader{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
	}
	return newArchiver(journal, cfg, up)
}

func newArchiver(journal *Journal, cfg ArchiveConfig, up objectUploader) (*Archiver, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = Duration(5 * time.Minute)
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 1000
	}

	var enc *batchEncryptor
	if cfg.EncryptionPassword != "" {
		var err error
		enc, err = newBatchEncryptor(nil, cfg.EncryptionPassword)
		if err != nil {
			return nil, err
		}
	}

	return &Archiver{
		cfg:     cfg,
		journal: journal,
		up:      up,
		enc:     enc,
	}, nil
}

// Start begins the background export loop.
func (a *Archiver) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.cfg.Interval.Duration())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.runOnce(ctx); err != nil {
					log.Printf("driftwatch: archive export failed: %v", err)
				}
			}
		}
	}()
}

// Stop cancels the export loop and waits for it to finish.
func (a *Archiver) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
}

// runOnce exports all journal entries recorded since the previous run, in
// batches of at most BatchLimit.
func (a *Archiver) runOnce(ctx context.Context) error {
	for {
		a.mu.Lock()
		lastID := a.lastID
		a.mu.Unlock()

		entries, err := a.journal.After(lastID, a.cfg.BatchLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		body, key, err := a.encodeBatch(entries)
		if err != nil {
			return err
		}
		if err := a.up.Upload(ctx, key, body); err != nil {
			return err
		}

		a.mu.Lock()
		a.lastID = entries[len(entries)-1].ID
		a.mu.Unlock()
	}
}

// encodeBatch serializes a batch and derives its object key from the batch
// time span and row range.
func (a *Archiver) encodeBatch(entries []JournalEntry) ([]byte, string, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, "", fmt.Errorf("encode archive batch: %w", err)
	}

	body := snappy.Encode(nil, raw)
	ext := "json.snappy"
	if a.enc != nil {
		body, err = a.enc.Seal(body)
		if err != nil {
			return nil, "", fmt.Errorf("seal archive batch: %w", err)
		}
		ext = "json.snappy.sealed"
	}

	first, last := entries[0], entries[len(entries)-1]
	key := fmt.Sprintf("%sanomalies/%s/%d-%d.%s",
		a.cfg.Prefix,
		time.Unix(0, first.Timestamp).UTC().Format("2006/01/02"),
		first.ID, last.ID, ext)
	return body, key, nil
}

// decodeBatch reverses encodeBatch; used when reading archives back.
func decodeBatch(body []byte, enc *batchEncryptor) ([]JournalEntry, error) {
	var err error
	if enc != nil {
		body, err = enc.Open(body)
		if err != nil {
			return nil, fmt.Errorf("open archive batch: %w", err)
		}
	}
	raw, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, fmt.Errorf("decompress archive batch: %w", err)
	}
	var entries []JournalEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode archive batch: %w", err)
	}
	return entries, nil
}
