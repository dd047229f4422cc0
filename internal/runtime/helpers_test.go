package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	arenapkg "github.com/drblury/diagflow/internal/runtime/arena"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	loggingpkg "github.com/drblury/diagflow/internal/runtime/logging"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

// configSchema is a 6 byte record: uint16 interval followed by uint32 threshold.
var configSchema = payload.MustSchema("config",
	payload.Uint16("interval"),
	payload.Uint32("threshold"),
)

func testEntity() *Entity {
	return &Entity{Name: "engine", Path: "components/engine"}
}

func configRecord(t *testing.T, interval uint16, threshold uint32) payload.Record {
	t.Helper()
	rec := configSchema.NewRecord()
	require.NoError(t, rec.Set("interval", interval))
	require.NoError(t, rec.Set("threshold", threshold))
	return rec
}

type releaseLog struct {
	mu    sync.Mutex
	order []string
}

func (l *releaseLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, name)
}

func (l *releaseLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// releasingReader is a legacy read handler that records its release and the
// arena it was bound to.
type releasingReader struct {
	name  string
	data  []byte
	log   *releaseLog
	arena *arenapkg.Arena
}

func (r *releasingReader) Read(context.Context) ([]byte, error) {
	return r.data, nil
}

func (r *releasingReader) Release() error {
	if r.log != nil {
		r.log.add(r.name)
	}
	return nil
}

func (r *releasingReader) BindArena(a *arenapkg.Arena) {
	r.arena = a
}

// configStore is a writable resource backed by a single record.
type configStore struct {
	mu   sync.Mutex
	rec  payload.Record
	puts int
	last handlerpkg.PutRequest
}

func (c *configStore) Get(context.Context) (payload.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec, nil
}

func (c *configStore) Put(_ context.Context, req handlerpkg.PutRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.last = req
	if req.Record != nil {
		c.rec = *req.Record
	}
	return nil
}

func (c *configStore) putCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

type recordedLog struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (l *recordingLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, recordedLog{level: level, msg: msg, err: err, fields: fields})
}

func (l *recordingLogger) With(loggingpkg.LogFields) loggingpkg.ServiceLogger { return l }
func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, nil, fields)
}
func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, nil, fields)
}
func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, err, fields)
}
func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, nil, fields)
}

func (l *recordingLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}

func mustBuild(t *testing.T, b *Builder) *Registry {
	t.Helper()
	reg, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return reg
}

func mustDispatcher(t *testing.T, reg *Registry, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(reg, opts...)
	require.NoError(t, err)
	return d
}
