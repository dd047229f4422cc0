package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/diagflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/diagflow/internal/runtime/metadata"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

func TestRequestContextAccessors(t *testing.T) {
	rc := RequestContext{
		Identifier: "0xF190",
		Action:     ActionRead,
		Metadata: metadatapkg.Metadata{
			MetadataKeyCorrelationID: "corr-1",
			"tester":                 "bench-3",
		},
	}

	assert.Equal(t, "corr-1", rc.CorrelationID())
	assert.Equal(t, "bench-3", rc.Get("tester"))
	assert.Empty(t, rc.Get("missing"))

	clone := rc.CloneMetadata()
	clone["tester"] = "changed"
	assert.Equal(t, "bench-3", rc.Get("tester"))
}

func TestRequestContextRoundTripsThroughContext(t *testing.T) {
	_, ok := RequestFromContext(context.Background())
	assert.False(t, ok)
	assert.NotNil(t, LoggerFromContext(context.Background()))

	var buf bytes.Buffer
	logger := loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := WithRequestContext(context.Background(), RequestContext{Identifier: "A/B", Action: ActionGet, Logger: logger})

	rc, ok := RequestFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "A/B", rc.Identifier)

	LoggerFromContext(ctx).Info("served", nil)
	assert.Contains(t, buf.String(), "served")
}

func TestActionValid(t *testing.T) {
	assert.True(t, ActionRoutineResults.Valid())
	assert.True(t, Action("execute").Valid())
	assert.False(t, Action("delete").Valid())
}

func TestRoutinesMissingSubFunctionIsUnsupported(t *testing.T) {
	r := Routines{OnStart: func(_ context.Context, req []byte) ([]byte, error) {
		return append([]byte{0x71}, req...), nil
	}}

	out, err := r.Start(context.Background(), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x71, 0x01}, out)

	_, err = r.Stop(context.Background(), nil)
	assert.ErrorIs(t, err, errspkg.ErrUnsupported)
	_, err = r.RequestResults(context.Background(), nil)
	assert.ErrorIs(t, err, errspkg.ErrUnsupported)
}

func TestResourceWithoutPutIsNotWritable(t *testing.T) {
	schema := payload.MustSchema("vin", payload.ASCII("vin", 17))
	res := Resource{OnGet: func(context.Context) (payload.Record, error) {
		return schema.NewRecord(), nil
	}}

	rec, err := res.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schema, rec.Schema())

	assert.ErrorIs(t, res.Put(context.Background(), PutRequest{}), errspkg.ErrNotWritable)
	_, err = Resource{}.Get(context.Background())
	assert.ErrorIs(t, err, errspkg.ErrUnsupported)
}

func TestFuncAdapters(t *testing.T) {
	var written []byte
	var r ReadHandler = ReadFunc(func(context.Context) ([]byte, error) { return []byte("VIN"), nil })
	var w WriteHandler = WriteFunc(func(_ context.Context, data []byte) error {
		written = data
		return nil
	})

	out, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("VIN"), out)
	require.NoError(t, w.Write(context.Background(), []byte{1}))
	assert.Equal(t, []byte{1}, written)
}
