package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pairvault/pairvault/internal/blob"
	"github.com/pairvault/pairvault/internal/crypto"
	"github.com/pairvault/pairvault/internal/logging"
	"github.com/pairvault/pairvault/internal/metrics"
	"github.com/pairvault/pairvault/internal/notification"
	"github.com/pairvault/pairvault/internal/pairing"
	"github.com/pairvault/pairvault/internal/payload"
)

// DefaultMaxImageBytes bounds the photo carried by one memory.
const DefaultMaxImageBytes = 10 << 20

// PairLookup resolves a pair id to its current state.
type PairLookup interface {
	Get(ctx context.Context, id string) (pairing.Pair, error)
}

// Service seals memories under a pair's tokens and persists them.
//
// Lock and Open hold both raw tokens and run on the device that scanned
// them. Store and Fetch only ever see the sealed form and are what the HTTP
// API exposes.
type Service struct {
	pairs         PairLookup
	records       Repository
	blobs         blob.Store
	schemaVersion int
	maxImageBytes int
	now           func() time.Time
	notifier      notification.Notifier
	metrics       metrics.Recorder
	logger        *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithSchemaVersion selects the suite used for new memories.
func WithSchemaVersion(version int) Option {
	return func(s *Service) { s.schemaVersion = version }
}

// WithMaxImageBytes overrides DefaultMaxImageBytes. Zero leaves only the
// payload.MaxFieldLength bound.
func WithMaxImageBytes(n int) Option {
	return func(s *Service) { s.maxImageBytes = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(n notification.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService constructs a vault service. It fails if the configured schema
// version has no registered suite or the image limit is larger than the
// payload codec can read back.
func NewService(pairs PairLookup, records Repository, blobs blob.Store, opts ...Option) (*Service, error) {
	s := &Service{
		pairs:         pairs,
		records:       records,
		blobs:         blobs,
		schemaVersion: crypto.CurrentSchema,
		maxImageBytes: DefaultMaxImageBytes,
		now:           func() time.Time { return time.Now().UTC() },
		metrics:       metrics.Nop{},
		logger:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := crypto.SuiteFor(s.schemaVersion); err != nil {
		return nil, err
	}
	if _, err := payload.ForSchema(s.schemaVersion); err != nil {
		return nil, err
	}
	if s.maxImageBytes > payload.MaxFieldLength {
		return nil, fmt.Errorf("%w: image limit %d exceeds the payload field limit %d", ErrInvalidInput, s.maxImageBytes, payload.MaxFieldLength)
	}
	return s, nil
}

// Lock encrypts contents under the pair's two tokens and stores the result.
// The ciphertext is written before the metadata record, so an interrupted
// lock leaves no record and Open keeps reporting ErrNotFound.
func (s *Service) Lock(ctx context.Context, pair pairing.Pair, contents payload.Contents) (MemoryRef, error) {
	if !pair.IsComplete() {
		return MemoryRef{}, ErrNotPaired
	}
	if err := s.validate(contents); err != nil {
		return MemoryRef{}, err
	}
	if contents.Timestamp.IsZero() {
		contents.Timestamp = s.now()
	}

	suite, err := crypto.SuiteFor(s.schemaVersion)
	if err != nil {
		return MemoryRef{}, err
	}
	codec, err := payload.ForSchema(s.schemaVersion)
	if err != nil {
		return MemoryRef{}, err
	}

	plaintext, err := codec.Encode(contents)
	if err != nil {
		return MemoryRef{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	defer crypto.Wipe(plaintext)

	salt, err := suite.NewSalt()
	if err != nil {
		return MemoryRef{}, err
	}
	key, err := suite.DeriveKey([]byte(pair.FirstToken), []byte(pair.SecondToken), salt)
	if err != nil {
		return MemoryRef{}, err
	}
	defer crypto.Wipe(key)

	nonce, ciphertext, err := suite.Seal(key, plaintext)
	if err != nil {
		return MemoryRef{}, err
	}

	recordID := uuid.NewString()
	record := Record{
		ID:            recordID,
		PairID:        pair.ID,
		BlobKey:       blobKey(pair.ID, recordID),
		Nonce:         nonce,
		Salt:          salt,
		SchemaVersion: suite.Version,
		CreatedAt:     s.now(),
	}
	if err := s.persist(ctx, Sealed{Record: record, Ciphertext: ciphertext}); err != nil {
		return MemoryRef{}, err
	}
	return record.ref(), nil
}

// Open decrypts the pair's latest memory.
func (s *Service) Open(ctx context.Context, pair pairing.Pair) (payload.Contents, error) {
	if !pair.IsComplete() {
		return payload.Contents{}, ErrNotPaired
	}

	sealed, err := s.load(ctx, pair.ID)
	if err != nil {
		return payload.Contents{}, err
	}
	rec := sealed.Record

	suite, err := crypto.SuiteFor(rec.SchemaVersion)
	if err != nil {
		return payload.Contents{}, err
	}
	codec, err := payload.ForSchema(rec.SchemaVersion)
	if err != nil {
		return payload.Contents{}, err
	}

	key, err := suite.DeriveKey([]byte(pair.FirstToken), []byte(pair.SecondToken), rec.Salt)
	if err != nil {
		s.metrics.RecordOpenFailure("derive")
		return payload.Contents{}, err
	}
	defer crypto.Wipe(key)

	plaintext, err := suite.Open(key, rec.Nonce, sealed.Ciphertext)
	if err != nil {
		s.metrics.RecordOpenFailure("authentication")
		return payload.Contents{}, err
	}
	defer crypto.Wipe(plaintext)

	contents, err := codec.Decode(plaintext)
	if err != nil {
		s.metrics.RecordOpenFailure("decode")
		return payload.Contents{}, err
	}
	s.metrics.RecordMemoryOpened()
	return contents, nil
}

// Store persists a memory sealed elsewhere. The pair must be complete and
// the record's nonce and salt must fit its schema version.
func (s *Service) Store(ctx context.Context, sealed Sealed) (MemoryRef, error) {
	rec := sealed.Record
	if rec.PairID == "" || len(sealed.Ciphertext) == 0 {
		return MemoryRef{}, ErrInvalidInput
	}

	pair, err := s.pairs.Get(ctx, rec.PairID)
	if err != nil {
		if errors.Is(err, pairing.ErrNotFound) {
			return MemoryRef{}, ErrNotPaired
		}
		return MemoryRef{}, err
	}
	if !pair.IsComplete() {
		return MemoryRef{}, ErrNotPaired
	}

	suite, err := crypto.SuiteFor(rec.SchemaVersion)
	if err != nil {
		return MemoryRef{}, err
	}
	if len(rec.Nonce) != suite.NonceLength || len(rec.Salt) != suite.SaltLength {
		return MemoryRef{}, fmt.Errorf("%w: nonce or salt length does not match schema %d", ErrInvalidInput, rec.SchemaVersion)
	}
	if len(sealed.Ciphertext) < suite.TagLength {
		return MemoryRef{}, fmt.Errorf("%w: ciphertext shorter than tag", ErrInvalidInput)
	}

	rec.ID = uuid.NewString()
	rec.PairID = pair.ID
	rec.BlobKey = blobKey(pair.ID, rec.ID)
	rec.CreatedAt = s.now()
	if err := s.persist(ctx, Sealed{Record: rec, Ciphertext: sealed.Ciphertext}); err != nil {
		return MemoryRef{}, err
	}
	return rec.ref(), nil
}

// Fetch returns the pair's latest memory in sealed form.
func (s *Service) Fetch(ctx context.Context, pairID string) (Sealed, error) {
	pair, err := s.pairs.Get(ctx, pairID)
	if err != nil {
		if errors.Is(err, pairing.ErrNotFound) {
			return Sealed{}, ErrNotPaired
		}
		return Sealed{}, err
	}
	if !pair.IsComplete() {
		return Sealed{}, ErrNotPaired
	}
	return s.load(ctx, pair.ID)
}

func (s *Service) persist(ctx context.Context, sealed Sealed) error {
	rec := sealed.Record
	if err := s.blobs.Put(ctx, rec.BlobKey, sealed.Ciphertext); err != nil {
		return fmt.Errorf("put memory blob: %w", err)
	}
	if err := s.records.Create(ctx, rec); err != nil {
		if delErr := s.blobs.Delete(ctx, rec.BlobKey); delErr != nil {
			s.logger.Warn("orphaned memory blob", "pair_id", rec.PairID, "record_id", rec.ID, "error", delErr)
		}
		return fmt.Errorf("create memory record: %w", err)
	}

	s.metrics.RecordMemoryStored()
	s.logger.Info("memory stored", "pair_id", rec.PairID, "record_id", rec.ID, "schema_version", rec.SchemaVersion)
	if s.notifier != nil {
		msg := notification.Message{Kind: notification.KindMemoryStored, Destination: rec.PairID, Body: rec.ID}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("memory notification failed", "pair_id", rec.PairID, "error", err)
		}
	}
	return nil
}

// load reads the latest record and its ciphertext. A record whose blob is
// missing is treated as not yet written.
func (s *Service) load(ctx context.Context, pairID string) (Sealed, error) {
	rec, err := s.records.Latest(ctx, pairID)
	if err != nil {
		return Sealed{}, err
	}
	ciphertext, err := s.blobs.Get(ctx, rec.BlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return Sealed{}, ErrNotFound
		}
		return Sealed{}, err
	}
	return Sealed{Record: rec, Ciphertext: ciphertext}, nil
}

func (s *Service) validate(c payload.Contents) error {
	switch {
	case strings.TrimSpace(c.Note) == "":
		return fmt.Errorf("%w: note is required", ErrInvalidInput)
	case len(c.Image) == 0:
		return fmt.Errorf("%w: image is required", ErrInvalidInput)
	case s.maxImageBytes > 0 && len(c.Image) > s.maxImageBytes:
		return fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidInput, s.maxImageBytes)
	}
	return nil
}
