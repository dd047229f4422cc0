package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arenapkg "github.com/drblury/diagflow/internal/runtime/arena"
	configpkg "github.com/drblury/diagflow/internal/runtime/config"
	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/diagflow/internal/runtime/handlers"
	"github.com/drblury/diagflow/internal/runtime/operation"
	"github.com/drblury/diagflow/internal/runtime/payload"
)

func noopOperation(context.Context, *operation.Execution) error { return nil }

func TestBuildRegistersExactIdentifiers(t *testing.T) {
	store := &configStore{rec: configRecord(t, 10, 20)}
	reg := mustBuild(t, NewBuilder(testEntity(), arenapkg.New(1024)).
		WithResource("A/B", store, ResourceOptions{Category: "identData"}).
		WithWritableResource("A/C", store, ResourceOptions{Schema: configSchema}).
		WithOperation("selftest", handlerpkg.OperationFunc(noopOperation), OperationOptions{}))

	assert.Equal(t, []string{"A/B", "A/C", "selftest"}, reg.Identifiers())
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, "engine", reg.Entity().Name)

	found, err := reg.Resolve("A/B")
	require.NoError(t, err)
	assert.Equal(t, KindResource, found.Kind)
	assert.Equal(t, "identData", found.Category)
	assert.Same(t, store, found.Handler())

	rt, err := reg.Operation("selftest")
	require.NoError(t, err)
	assert.Equal(t, operation.SynchronousInvocation, rt.Info().Policy)
	assert.Equal(t, "selftest", rt.Info().Name)
}

func TestResolveUnknownIdentifier(t *testing.T) {
	store := &configStore{rec: configRecord(t, 1, 2)}
	reg := mustBuild(t, NewBuilder(testEntity(), arenapkg.New(1024)).
		WithResource("A/B", store, ResourceOptions{}).
		WithResource("A/C", store, ResourceOptions{}))

	_, err := reg.Resolve("A/D")
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrNotFound)
	assert.Equal(t, errspkg.NotFound, errspkg.KindOf(err))
}

func TestBuildDuplicateReleasesEveryStagedHandler(t *testing.T) {
	log := &releaseLog{}
	_, err := NewLegacyBuilder(arenapkg.New(1024)).
		WithRead("0xF190", &releasingReader{name: "first", log: log}).
		WithRead("0xF191", &releasingReader{name: "second", log: log}).
		WithRead("0xF190", &releasingReader{name: "third", log: log}).
		Build()

	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrDuplicateIdentifier)
	assert.Equal(t, errspkg.DuplicateIdentifier, errspkg.KindOf(err))
	assert.Contains(t, err.Error(), `"0xF190"`)
	assert.Equal(t, []string{"third", "second", "first"}, log.names())
}

func TestBuildCollectsEveryProblem(t *testing.T) {
	log := &releaseLog{}
	var nilRead handlerpkg.ReadFunc
	_, err := NewLegacyBuilder(arenapkg.New(1024)).
		WithRead("", &releasingReader{name: "anonymous", log: log}).
		WithRead("0x0001", nilRead).
		WithResource("A/B", &configStore{}, ResourceOptions{}).
		WithSerializedRead("0x0002", nil, handlerpkg.RecordReadFunc(func(context.Context) (payload.Record, error) {
			return payload.Record{}, nil
		})).
		Build()

	require.Error(t, err)
	assert.Equal(t, errspkg.InvalidConfiguration, errspkg.KindOf(err))
	assert.ErrorIs(t, err, errspkg.ErrIdentifierRequired)
	assert.ErrorIs(t, err, errspkg.ErrHandlerRequired)
	assert.ErrorIs(t, err, errspkg.ErrEntityRequired)
	assert.ErrorIs(t, err, errspkg.ErrSchemaRequired)
	assert.Equal(t, []string{"anonymous"}, log.names())
}

func TestBuildRejectsInvalidPolicy(t *testing.T) {
	_, err := NewBuilder(testEntity(), arenapkg.New(1024)).
		WithOperation("selftest", handlerpkg.OperationFunc(noopOperation), OperationOptions{Policy: operation.Policy(9)}).
		Build()

	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrInvalidConfiguration)
}

func TestBuildRejectsUncompilableSchema(t *testing.T) {
	_, err := NewBuilder(testEntity(), arenapkg.New(1024)).
		WithWritableResource("A/B", &configStore{}, ResourceOptions{JSONSchema: []byte(`{"type": 12}`)}).
		Build()

	require.Error(t, err)
	assert.Equal(t, errspkg.InvalidConfiguration, errspkg.KindOf(err))
}

func TestBuildRequiresArena(t *testing.T) {
	_, err := NewLegacyBuilder(nil).
		WithRead("0xF190", &releasingReader{}).
		Build()

	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrArenaRequired)
}

func TestBuildAppliesIdentifierPattern(t *testing.T) {
	_, err := NewLegacyBuilder(arenapkg.New(1024), WithConfig(configpkg.Config{IdentifierPattern: configpkg.IdentifierPatternUDS})).
		WithRead("F190", &releasingReader{}).
		Build()

	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "hex data identifier")
}

func TestBuilderIsConsumedByBuild(t *testing.T) {
	b := NewLegacyBuilder(arenapkg.New(1024)).WithRead("0xF190", &releasingReader{})
	reg, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	_, err = b.Build()
	assert.ErrorIs(t, err, errspkg.ErrBuilderConsumed)
	assert.Equal(t, errspkg.InvalidConfiguration, errspkg.KindOf(err))

	b.WithRead("0xF191", &releasingReader{})
	_, err = b.Build()
	assert.ErrorIs(t, err, errspkg.ErrBuilderConsumed)
}

func TestBuilderReleasesHandlersAddedAfterBuild(t *testing.T) {
	log := &releaseLog{}
	b := NewLegacyBuilder(arenapkg.New(1024)).WithRead("0xF190", &releasingReader{name: "kept", log: log})
	reg, err := b.Build()
	require.NoError(t, err)

	b.WithRead("0xF191", &releasingReader{name: "late", log: log}).
		WithRead("0xF192", nil)
	assert.Equal(t, []string{"late"}, log.names())

	_, err = b.Build()
	assert.ErrorIs(t, err, errspkg.ErrBuilderConsumed)
	assert.Equal(t, []string{"late"}, log.names())

	require.NoError(t, reg.Close(context.Background()))
	assert.Equal(t, []string{"late", "kept"}, log.names())
}

func TestBuilderBindsArena(t *testing.T) {
	a := arenapkg.New(1024)
	reader := &releasingReader{}
	mustBuild(t, NewLegacyBuilder(a).WithRead("0xF190", reader))

	assert.Same(t, a, reader.arena)
}

func TestRegistryKindMismatch(t *testing.T) {
	reg := mustBuild(t, NewBuilder(testEntity(), arenapkg.New(1024)).
		WithResource("A/B", &configStore{}, ResourceOptions{}))

	_, err := reg.Operation("A/B")
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrKindMismatch)
	assert.Equal(t, errspkg.InvalidConfiguration, errspkg.KindOf(err))

	_, err = reg.Legacy("A/B")
	assert.ErrorIs(t, err, errspkg.ErrKindMismatch)

	_, err = reg.Resource("A/Z")
	assert.ErrorIs(t, err, errspkg.ErrNotFound)
}

func TestNewBuilderFromConfig(t *testing.T) {
	b, err := NewBuilderFromConfig(configpkg.Config{
		EntityName:        "engine",
		EntityPath:        "components/engine",
		ArenaSize:         2048,
		IdentifierPattern: configpkg.IdentifierPatternSOVD,
	})
	require.NoError(t, err)

	reg := mustBuild(t, b.WithResource("identData/vin", &configStore{rec: configRecord(t, 1, 2)}, ResourceOptions{}))
	assert.Equal(t, 2048, reg.Arena().Cap())
	assert.Equal(t, &Entity{Name: "engine", Path: "components/engine"}, reg.Entity())
	assert.Equal(t, configpkg.DefaultShutdownTimeout, reg.Config().ShutdownTimeout)
}

func TestNewBuilderFromConfigRejectsInvalidConfig(t *testing.T) {
	_, err := NewBuilderFromConfig(configpkg.Config{EntityPath: "orphan"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrInvalidConfiguration)
}

func TestNewBuilderFromConfigWithoutEntityIsLegacy(t *testing.T) {
	b, err := NewBuilderFromConfig(configpkg.Config{})
	require.NoError(t, err)

	_, err = b.WithResource("A/B", &configStore{}, ResourceOptions{}).Build()
	assert.ErrorIs(t, err, errspkg.ErrEntityRequired)
}

func TestBuildLogsRegistrations(t *testing.T) {
	logger := &recordingLogger{}
	mustBuild(t, NewLegacyBuilder(arenapkg.New(1024), WithLogger(logger)).
		WithRead("0xF190", &releasingReader{}))

	assert.Contains(t, logger.messages("debug"), "Handler staged")
	assert.Contains(t, logger.messages("info"), "Registry built")
}
