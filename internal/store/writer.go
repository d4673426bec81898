package store

import (
	"context"
	"log/slog"
	"time"
)

const defaultWriterBuffer = 1024

// Writer buffers events from live sessions and flushes them to the archive
// on a fixed interval. Record never blocks a forwarding path; when the
// buffer is full the event is dropped and counted.
type Writer struct {
	archive  *Archive
	interval time.Duration
	buffer   chan Event
	log      *slog.Logger
}

func NewWriter(archive *Archive, interval time.Duration, bufferSize int, log *slog.Logger) *Writer {
	if bufferSize <= 0 {
		bufferSize = defaultWriterBuffer
	}
	return &Writer{
		archive:  archive,
		interval: interval,
		buffer:   make(chan Event, bufferSize),
		log:      log.With("component", "archive_writer"),
	}
}

// Record queues an event for archiving. Returns false if the buffer is full.
func (w *Writer) Record(ev Event) bool {
	select {
	case w.buffer <- ev:
		return true
	default:
		w.log.Warn("archive buffer full, dropping event", "vendor", ev.Vendor, "event_type", ev.EventType)
		return false
	}
}

// Start runs the flush loop until the context is cancelled. A final flush
// drains whatever is still buffered.
func (w *Writer) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("started archive writer", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.flush(context.Background())
			w.log.Info("archive writer stopped", "error", ctx.Err())
			return
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Writer) flush(ctx context.Context) {
	var batch []Event
	for {
		select {
		case ev := <-w.buffer:
			batch = append(batch, ev)
		default:
			if len(batch) == 0 {
				return
			}
			count, err := w.archive.InsertEvents(ctx, batch)
			if err != nil {
				w.log.Error("couldn't flush events", "error", err)
				return
			}
			w.log.Debug("flushed events", "rows", count)
			return
		}
	}
}
