package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelpath.ai/internal/pathing/behavior"
	"voxelpath.ai/internal/protocol"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	// onClose sees each segment once the writer lets go of it.
	onClose func(path string)

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

// OnSegmentClosed registers fn to run, under the writer's lock, with the path
// of every hourly segment the writer rotates away from or closes.
func (w *JSONLZstdWriter) OnSegmentClosed(fn func(path string)) {
	w.mu.Lock()
	w.onClose = fn
	w.mu.Unlock()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	closed := ""
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
		closed = w.pathForHour(w.curHour)
	}
	w.w = nil
	w.curHour = ""
	if closed != "" && w.onClose != nil {
		w.onClose(closed)
	}
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// CalcLogger writes one JSONL entry per finished calculation (compressed).
// It is a behavior.CalcListener; write errors go to the operational log.
type CalcLogger struct {
	w   *JSONLZstdWriter
	log *stdlog.Logger
}

func NewCalcLogger(dataDir string, logger *stdlog.Logger) *CalcLogger {
	return &CalcLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "calcs"), "calcs"), log: logger}
}

func (l *CalcLogger) WriteCalc(v protocol.CalcMsg) error { return l.w.Write(v) }
func (l *CalcLogger) Close() error                       { return l.w.Close() }
func (l *CalcLogger) Writer() *JSONLZstdWriter           { return l.w }

func (l *CalcLogger) OnCalcFinished(r behavior.CalcRecord) {
	if err := l.WriteCalc(protocol.NewCalc(r)); err != nil && l.log != nil {
		l.log.Printf("calc log: %v", err)
	}
}

// EventLogger writes path events as JSONL entries (compressed).
type EventLogger struct {
	w   *JSONLZstdWriter
	log *stdlog.Logger
}

func NewEventLogger(dataDir string, logger *stdlog.Logger) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "events"), "events"), log: logger}
}

func (l *EventLogger) WriteEvent(v protocol.PathEventMsg) error { return l.w.Write(v) }
func (l *EventLogger) Close() error                             { return l.w.Close() }
func (l *EventLogger) Writer() *JSONLZstdWriter                 { return l.w }

func (l *EventLogger) OnPathEvent(e behavior.Event) {
	if err := l.WriteEvent(protocol.NewPathEvent(e)); err != nil && l.log != nil {
		l.log.Printf("event log: %v", err)
	}
}
