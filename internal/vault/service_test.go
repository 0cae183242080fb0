package vault

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pairvault/pairvault/internal/blob"
	"github.com/pairvault/pairvault/internal/crypto"
	"github.com/pairvault/pairvault/internal/notification"
	"github.com/pairvault/pairvault/internal/pairing"
	"github.com/pairvault/pairvault/internal/payload"
)

var testImage = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x01, 0x02}

type fixture struct {
	pairs   pairing.Repository
	records Repository
	blobs   blob.Store
	svc     *Service
	pair    pairing.Pair
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		pairs:   pairing.NewMemoryRepository(),
		records: NewMemoryRepository(),
		blobs:   blob.NewMemoryStore(),
	}
	f.pair = pairing.SeedPair(t, f.pairs, "T1", "T2")
	svc, err := NewService(f.pairs, f.records, f.blobs, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

// steppingClock returns a strictly increasing time on every call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		next = next.Add(time.Second)
		return next
	}
}

func TestOpenBeforeLockReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Open(context.Background(), f.pair); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLockThenOpenRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2024, 2, 14, 19, 30, 0, 123456789, time.UTC)

	ref, err := f.svc.Lock(ctx, f.pair, payload.Contents{Note: "hello", Timestamp: at, Image: testImage, ImageMIME: "image/png"})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if ref.PairID != f.pair.ID || ref.SchemaVersion != crypto.CurrentSchema {
		t.Fatalf("unexpected ref %+v", ref)
	}
	if ref.BlobKey != "memories/"+f.pair.ID+"/"+ref.RecordID {
		t.Fatalf("unexpected blob key %q", ref.BlobKey)
	}

	got, err := f.svc.Open(ctx, f.pair)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.Note != "hello" || !got.Timestamp.Equal(at) || !bytes.Equal(got.Image, testImage) || got.ImageMIME != "image/png" {
		t.Fatalf("unexpected contents %+v", got)
	}

	stored, err := f.blobs.Get(ctx, ref.BlobKey)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	if bytes.Contains(stored, []byte("hello")) || bytes.Contains(stored, testImage) {
		t.Fatalf("blob holds plaintext")
	}
}

func TestOpenWithDifferentSecondTokenFailsAuthentication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Lock(ctx, f.pair, payload.Contents{Note: "hello", Image: testImage}); err != nil {
		t.Fatalf("lock: %v", err)
	}

	impostor := f.pair
	impostor.SecondToken = "T3"
	if _, err := f.svc.Open(ctx, impostor); !errors.Is(err, crypto.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}

	swapped := f.pair
	swapped.FirstToken, swapped.SecondToken = f.pair.SecondToken, f.pair.FirstToken
	if _, err := f.svc.Open(ctx, swapped); !errors.Is(err, crypto.ErrAuthenticationFailed) {
		t.Fatalf("expected token order to matter, got %v", err)
	}
}

func TestLockAndOpenRequireCompletePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := pairing.SeedPair(t, f.pairs, "T9", "")

	if _, err := f.svc.Lock(ctx, open, payload.Contents{Note: "hello", Image: testImage}); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("expected ErrNotPaired from Lock, got %v", err)
	}
	if _, err := f.svc.Open(ctx, open); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("expected ErrNotPaired from Open, got %v", err)
	}
}

func TestLockValidatesContents(t *testing.T) {
	f := newFixture(t, WithMaxImageBytes(len(testImage)))
	ctx := context.Background()

	cases := map[string]payload.Contents{
		"blank note":   {Note: "  ", Image: testImage},
		"no image":     {Note: "hello"},
		"large image":  {Note: "hello", Image: append(append([]byte(nil), testImage...), 0xff)},
		"invalid utf8": {Note: "\xff\xfe", Image: testImage},
	}
	for name, c := range cases {
		if _, err := f.svc.Lock(ctx, f.pair, c); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestImageLimitCannotExceedPayloadField(t *testing.T) {
	_, err := NewService(pairing.NewMemoryRepository(), NewMemoryRepository(), blob.NewMemoryStore(), WithMaxImageBytes(payload.MaxFieldLength+1))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLockRefusesImageTheCodecCannotReadBack(t *testing.T) {
	f := newFixture(t, WithMaxImageBytes(0))
	ctx := context.Background()

	huge := payload.Contents{Note: "hello", Image: make([]byte, payload.MaxFieldLength+1)}
	if _, err := f.svc.Lock(ctx, f.pair, huge); !errors.Is(err, ErrInvalidInput) || !errors.Is(err, payload.ErrInvalidContents) {
		t.Fatalf("expected ErrInvalidInput wrapping ErrInvalidContents, got %v", err)
	}
	if _, err := f.svc.Open(ctx, f.pair); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}

func TestLockOpenKeepsDistantTimestamps(t *testing.T) {
	for _, at := range []time.Time{
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1600, 6, 1, 0, 0, 0, 0, time.UTC),
	} {
		f := newFixture(t)
		ctx := context.Background()

		if _, err := f.svc.Lock(ctx, f.pair, payload.Contents{Note: "hello", Timestamp: at, Image: testImage}); err != nil {
			t.Fatalf("lock %v: %v", at, err)
		}
		got, err := f.svc.Open(ctx, f.pair)
		if err != nil {
			t.Fatalf("open %v: %v", at, err)
		}
		if !got.Timestamp.Equal(at) {
			t.Fatalf("timestamp: want %v got %v", at, got.Timestamp)
		}
	}
}

func TestLockDefaultsTimestamp(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(steppingClock(start)))
	ctx := context.Background()

	if _, err := f.svc.Lock(ctx, f.pair, payload.Contents{Note: "hello", Image: testImage}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	got, err := f.svc.Open(ctx, f.pair)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !got.Timestamp.After(start) {
		t.Fatalf("expected timestamp from clock, got %v", got.Timestamp)
	}
}

func TestLatestMemoryWins(t *testing.T) {
	f := newFixture(t, WithClock(steppingClock(time.Now().UTC())))
	ctx := context.Background()

	for _, note := range []string{"first", "second"} {
		if _, err := f.svc.Lock(ctx, f.pair, payload.Contents{Note: note, Image: testImage}); err != nil {
			t.Fatalf("lock %s: %v", note, err)
		}
	}
	got, err := f.svc.Open(ctx, f.pair)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.Note != "second" {
		t.Fatalf("expected latest note, got %q", got.Note)
	}
}

func TestSchemaVersionsStayReadable(t *testing.T) {
	for _, version := range []int{crypto.SchemaLegacySHA256, crypto.SchemaArgon2XChaCha} {
		f := newFixture(t, WithSchemaVersion(version))
		ctx := context.Background()

		ref, err := f.svc.Lock(ctx, f.pair, payload.Contents{Note: "hello", Image: testImage, ImageMIME: "image/png"})
		if err != nil {
			t.Fatalf("schema %d lock: %v", version, err)
		}
		if ref.SchemaVersion != version {
			t.Fatalf("expected schema %d, got %d", version, ref.SchemaVersion)
		}

		reader, err := NewService(f.pairs, f.records, f.blobs)
		if err != nil {
			t.Fatalf("new reader: %v", err)
		}
		got, err := reader.Open(ctx, f.pair)
		if err != nil {
			t.Fatalf("schema %d open: %v", version, err)
		}
		if got.Note != "hello" || !bytes.Equal(got.Image, testImage) {
			t.Fatalf("schema %d: unexpected contents %+v", version, got)
		}
	}
}

func TestNewServiceRejectsUnknownSchema(t *testing.T) {
	_, err := NewService(pairing.NewMemoryRepository(), NewMemoryRepository(), blob.NewMemoryStore(), WithSchemaVersion(42))
	if !errors.Is(err, crypto.ErrUnsupportedSchema) {
		t.Fatalf("expected ErrUnsupportedSchema, got %v", err)
	}
}

type failingRecords struct {
	Repository
}

func (failingRecords) Create(context.Context, Record) error {
	return errors.New("database unavailable")
}

type recordingBlobs struct {
	blob.Store
	mu   sync.Mutex
	puts []string
}

func (b *recordingBlobs) Put(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	b.puts = append(b.puts, key)
	b.mu.Unlock()
	return b.Store.Put(ctx, key, data)
}

func TestFailedMetadataWriteLeavesNoMemory(t *testing.T) {
	pairs := pairing.NewMemoryRepository()
	pair := pairing.SeedPair(t, pairs, "T1", "T2")
	records := NewMemoryRepository()
	blobs := &recordingBlobs{Store: blob.NewMemoryStore()}

	failing, err := NewService(pairs, failingRecords{records}, blobs)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	if _, err := failing.Lock(ctx, pair, payload.Contents{Note: "hello", Image: testImage}); err == nil {
		t.Fatalf("expected lock to fail")
	}
	if len(blobs.puts) != 1 {
		t.Fatalf("expected ciphertext to be written first, got %v", blobs.puts)
	}
	if _, err := blobs.Get(ctx, blobs.puts[0]); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected orphaned blob to be removed, got %v", err)
	}

	reader, err := NewService(pairs, records, blobs)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := reader.Open(ctx, pair); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMissingBlobReadsAsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref, err := f.svc.Lock(ctx, f.pair, payload.Contents{Note: "hello", Image: testImage})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := f.blobs.Delete(ctx, ref.BlobKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Open(ctx, f.pair); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTamperedBlobFailsAuthentication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ref, err := f.svc.Lock(ctx, f.pair, payload.Contents{Note: "hello", Image: testImage})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	ct, err := f.blobs.Get(ctx, ref.BlobKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	ct[len(ct)/2] ^= 0x01
	if err := f.blobs.Put(ctx, ref.BlobKey, ct); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := f.svc.Open(ctx, f.pair); !errors.Is(err, crypto.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestStoreAcceptsDeviceSealedLegacyMemory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	suite, err := crypto.SuiteFor(crypto.SchemaLegacySHA256)
	if err != nil {
		t.Fatalf("suite: %v", err)
	}
	codec, err := payload.ForSchema(crypto.SchemaLegacySHA256)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	plaintext, err := codec.Encode(payload.Contents{Note: "legacy", Timestamp: at, Image: testImage, ImageMIME: "image/jpeg"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	key, err := suite.DeriveKey([]byte("T1"), []byte("T2"), nil)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	nonce, ct, err := suite.Seal(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	ref, err := f.svc.Store(ctx, Sealed{
		Record:     Record{PairID: f.pair.ID, Nonce: nonce, SchemaVersion: crypto.SchemaLegacySHA256},
		Ciphertext: ct,
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	fetched, err := f.svc.Fetch(ctx, f.pair.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if fetched.Record.ID != ref.RecordID || !bytes.Equal(fetched.Ciphertext, ct) || !bytes.Equal(fetched.Record.Nonce, nonce) {
		t.Fatalf("fetched memory does not match stored one: %+v", fetched.Record)
	}

	got, err := f.svc.Open(ctx, f.pair)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.Note != "legacy" || !got.Timestamp.Equal(at) || got.ImageMIME != "image/jpeg" {
		t.Fatalf("unexpected contents %+v", got)
	}
}

func TestStoreRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := pairing.SeedPair(t, f.pairs, "T9", "")
	nonce := make([]byte, 12)
	salt := make([]byte, 16)
	ct := make([]byte, 32)

	cases := map[string]struct {
		sealed Sealed
		want   error
	}{
		"unknown pair": {Sealed{Record: Record{PairID: "nope", Nonce: nonce, Salt: salt, SchemaVersion: 2}, Ciphertext: ct}, ErrNotPaired},
		"open pair":    {Sealed{Record: Record{PairID: open.ID, Nonce: nonce, Salt: salt, SchemaVersion: 2}, Ciphertext: ct}, ErrNotPaired},
		"bad nonce":    {Sealed{Record: Record{PairID: f.pair.ID, Nonce: nonce[:8], Salt: salt, SchemaVersion: 2}, Ciphertext: ct}, ErrInvalidInput},
		"missing salt": {Sealed{Record: Record{PairID: f.pair.ID, Nonce: nonce, SchemaVersion: 2}, Ciphertext: ct}, ErrInvalidInput},
		"short body":   {Sealed{Record: Record{PairID: f.pair.ID, Nonce: nonce, Salt: salt, SchemaVersion: 2}, Ciphertext: ct[:4]}, ErrInvalidInput},
		"no body":      {Sealed{Record: Record{PairID: f.pair.ID, Nonce: nonce, Salt: salt, SchemaVersion: 2}}, ErrInvalidInput},
		"schema":       {Sealed{Record: Record{PairID: f.pair.ID, Nonce: nonce, Salt: salt, SchemaVersion: 9}, Ciphertext: ct}, crypto.ErrUnsupportedSchema},
	}
	for name, tc := range cases {
		if _, err := f.svc.Store(ctx, tc.sealed); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, err)
		}
	}

	if _, err := f.svc.Fetch(ctx, open.ID); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("expected ErrNotPaired fetching an open pair, got %v", err)
	}
	if _, err := f.svc.Fetch(ctx, f.pair.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any store, got %v", err)
	}
}

type testNotifier struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func TestLockNotifiesWithoutSecrets(t *testing.T) {
	notifier := &testNotifier{}
	f := newFixture(t, WithNotifier(notifier))
	if _, err := f.svc.Lock(context.Background(), f.pair, payload.Contents{Note: "hello", Image: testImage}); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Kind != notification.KindMemoryStored || notifier.sent[0].Destination != f.pair.ID {
		t.Fatalf("unexpected notifications %+v", notifier.sent)
	}
	if bytes.Contains([]byte(notifier.sent[0].Body), []byte("hello")) {
		t.Fatalf("notification leaked the note")
	}
}
