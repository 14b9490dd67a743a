package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vaitul/partychat/internal/metrics"
	"github.com/vaitul/partychat/internal/session"
)

// ErrNoDatabase is returned by flushes on a Writer built without a database.
var ErrNoDatabase = errors.New("transcript database not configured")

// BatchSender sends a pgx batch. *pgxpool.Pool satisfies it.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int // queue limit before the oldest entry is dropped
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// WriterStats holds writer counters.
type WriterStats struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Dropped   int64
}

// entry is one queued message.
type entry struct {
	roomID     string
	msg        session.Message
	receivedAt time.Time
}

type row struct {
	ID         uuid.UUID
	RoomID     string
	MsgKey     string
	SenderID   string
	Nickname   string
	Body       string
	Icon       string
	IsSystem   bool
	SentAt     time.Time
	ReceivedAt time.Time
}

// Writer archives live messages in batches. It implements session.Archive.
// Rows of a failed batch are requeued and retried on the next flush. Stop
// returns the flush error if the database is still failing, and whatever is
// queued then is not archived.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *RingBuffer[entry]
	db    BatchSender

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	flushMu sync.Mutex // one flush at a time

	statsMu sync.Mutex
	stats   WriterStats
}

// NewWriter creates a Writer. Call Start to begin flushing.
func NewWriter(cfg WriterConfig, db BatchSender, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultWriterConfig().BufferSize
	}

	initial := cfg.BatchSize
	if initial > cfg.BufferSize {
		initial = cfg.BufferSize
	}

	return &Writer{
		cfg:    cfg,
		logger: logger.With("component", "transcript"),
		input:  NewRingBuffer[entry](initial, cfg.BufferSize),
		db:     db,
	}
}

// Archive queues a message. It never blocks.
func (w *Writer) Archive(roomID string, msg session.Message) {
	if !w.input.Send(entry{roomID: roomID, msg: msg, receivedAt: time.Now()}) {
		w.logger.Debug("transcript closed, message not archived", "room_id", roomID)
	}
}

// Start begins the flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("transcript writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"buffer_size", w.cfg.BufferSize,
	)
	return nil
}

// Stop stops the flush loop and writes what is still queued.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping transcript writer")

	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("transcript writer stop timed out")
		return ctx.Err()
	}

	// Final flush on the caller's context
	for w.input.Len() > 0 {
		if err := w.flush(ctx); err != nil {
			return err
		}
	}

	w.logger.Info("transcript writer stopped", "stats", w.Stats())
	return nil
}

// Stats returns current counters.
func (w *Writer) Stats() WriterStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	s := w.stats
	s.Dropped = w.input.Stats().Dropped
	return s
}

// flushLoop flushes when a batch fills up or the interval elapses. After a
// failed flush only the ticker retries, until a flush succeeds.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			failing = w.flush(w.ctx) != nil
		case <-w.input.Ready():
			if !failing && w.input.Len() >= w.cfg.BatchSize {
				failing = w.flush(w.ctx) != nil
			}
		}
	}
}

// flush writes up to one batch. A failed batch goes back to the head of the
// queue; rows past the buffer limit are dropped and counted then.
func (w *Writer) flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	entries := w.input.DrainTo(w.cfg.BatchSize)
	if len(entries) == 0 {
		return nil
	}

	rows := make([]row, len(entries))
	for i, e := range entries {
		rows[i] = transform(e)
	}

	start := time.Now()
	conflicts, err := w.batchInsert(ctx, rows)
	metrics.TranscriptFlushSeconds.Observe(time.Since(start).Seconds())

	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	if err != nil {
		w.input.Requeue(entries)
		w.stats.Errors++
		metrics.TranscriptRows.WithLabelValues("error").Add(float64(len(rows)))
		w.logger.Error("batch insert failed, requeued", "error", err, "count", len(rows))
		return err
	}

	inserted := len(rows) - conflicts
	w.stats.Inserts += int64(inserted)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	metrics.TranscriptRows.WithLabelValues("inserted").Add(float64(inserted))
	metrics.TranscriptRows.WithLabelValues("conflict").Add(float64(conflicts))

	w.logger.Debug("flushed transcript",
		"count", len(rows),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

// transform converts a queued entry to a row. The dedup key ignores the
// locally assigned message key so redelivered messages collide.
func transform(e entry) row {
	return row{
		ID:         uuid.New(),
		RoomID:     e.roomID,
		MsgKey:     fmt.Sprintf("%s-%d", e.msg.SenderID, e.msg.Timestamp.UnixMilli()),
		SenderID:   e.msg.SenderID,
		Nickname:   e.msg.Nickname,
		Body:       e.msg.Body,
		Icon:       e.msg.Icon,
		IsSystem:   e.msg.IsSystem,
		SentAt:     e.msg.Timestamp,
		ReceivedAt: e.receivedAt,
	}
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []row) (conflicts int, err error) {
	if w.db == nil {
		return 0, ErrNoDatabase
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertSQL,
			r.ID, r.RoomID, r.MsgKey, r.SenderID, r.Nickname,
			r.Body, r.Icon, r.IsSystem, r.SentAt, r.ReceivedAt,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
