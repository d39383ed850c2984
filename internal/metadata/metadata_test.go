package metadata_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cyclus-sim/cyclus/internal/metadata"
	"github.com/cyclus-sim/cyclus/internal/recorder"
)

func TestRecordToEmitsOneDatumPerScalarTagInSortedKeyOrder(t *testing.T) {
	var tags metadata.Tags
	require.NoError(t, tags.Set("zeta", "last"))
	require.NoError(t, tags.Set("alpha", 7))

	rec := recorder.New(uuid.New(), 10000, zerolog.Nop())
	mem := recorder.NewMemoryBackend("mem")
	rec.AddBackend(mem)

	require.NoError(t, tags.RecordTo(rec, 3, 0))
	rec.Flush()

	rows := mem.ByTitle("Metadata")
	require.Len(t, rows, 2)
	require.Equal(t, "alpha", fieldString(rows[0], "keyword"))
	require.Equal(t, "int", fieldString(rows[0], "Type"))
	require.Equal(t, "zeta", fieldString(rows[1], "keyword"))
	require.Equal(t, "string", fieldString(rows[1], "Type"))
}

func TestSetUsageEmitsOneDatumPerRecognizedUsage(t *testing.T) {
	var tags metadata.Tags
	tags.SetUsage("power", metadata.UsageThroughput, 12.5)
	tags.SetUsage("power", metadata.UsageDeployment, 1)

	rec := recorder.New(uuid.New(), 10000, zerolog.Nop())
	mem := recorder.NewMemoryBackend("mem")
	rec.AddBackend(mem)

	require.NoError(t, tags.RecordTo(rec, 1, 0))
	rec.Flush()

	rows := mem.ByTitle("Metadata")
	require.Len(t, rows, 2)
	require.Equal(t, "deployment", fieldString(rows[0], "Type"))
	require.Equal(t, "throughput", fieldString(rows[1], "Type"))
}

func TestSetUsageDropsUnknownUsageKeyword(t *testing.T) {
	var tags metadata.Tags
	tags.SetUsage("power", metadata.Usage("bogus"), 1)

	rec := recorder.New(uuid.New(), 10000, zerolog.Nop())
	mem := recorder.NewMemoryBackend("mem")
	rec.AddBackend(mem)

	require.NoError(t, tags.RecordTo(rec, 1, 0))
	rec.Flush()

	require.Empty(t, mem.ByTitle("Metadata"))
}

func TestSetRejectsUnsupportedValueType(t *testing.T) {
	var tags metadata.Tags
	err := tags.Set("bad", struct{}{})
	require.Error(t, err)
}

func fieldString(d *recorder.Datum, name string) string {
	for _, f := range d.Fields {
		if f.Name == name {
			if s, ok := f.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}
