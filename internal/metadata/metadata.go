// Package metadata lets an agent attach free-form key/value tags that are
// recorded as "Metadata" Datums at entry time, ported from the upstream
// toolkit::Metadata (original_source/src/toolkit/metadata.{h,cc}).
package metadata

import (
	"sort"

	"github.com/cyclus-sim/cyclus/internal/cycluserr"
	"github.com/cyclus-sim/cyclus/internal/recorder"
)

// Usage is one of the closed set of usage keywords the upstream recognizes
// for numeric, per-usage tags.
type Usage string

const (
	UsageDecommission Usage = "decommission"
	UsageDeployment   Usage = "deployment"
	UsageTimestep     Usage = "timestep"
	UsageThroughput   Usage = "throughput"
)

func (u Usage) valid() bool {
	switch u {
	case UsageDecommission, UsageDeployment, UsageTimestep, UsageThroughput:
		return true
	default:
		return false
	}
}

type tag struct {
	typ   string
	value string
	usage map[Usage]float64 // non-nil only for SetUsage tags
}

// Tags accumulates an agent's metadata keys until RecordTo emits them.
// The zero value is ready to use.
type Tags struct {
	byKey map[string]tag
	order []string
}

func (t *Tags) ensure() {
	if t.byKey == nil {
		t.byKey = make(map[string]tag)
	}
}

// Set stores a scalar tag. value's Go type selects the recorded "Type"
// column the way the upstream's %s/%b/%i/%u/%d encoding does.
func (t *Tags) Set(key string, value any) error {
	t.ensure()
	var tg tag
	switch v := value.(type) {
	case string:
		tg = tag{typ: "string", value: v}
	case bool:
		tg = tag{typ: "bool", value: boolString(v)}
	case int:
		tg = tag{typ: "int", value: intString(int64(v))}
	case int64:
		tg = tag{typ: "int", value: intString(v)}
	case uint:
		tg = tag{typ: "uint", value: uintString(uint64(v))}
	case uint64:
		tg = tag{typ: "uint", value: uintString(v)}
	case float64:
		tg = tag{typ: "double", value: floatString(v)}
	default:
		return cycluserr.Newf(cycluserr.KindValueError, "metadata key %q: unsupported value type %T", key, value)
	}
	if _, exists := t.byKey[key]; !exists {
		t.order = append(t.order, key)
	}
	t.byKey[key] = tg
	return nil
}

// SetUsage stores a numeric tag under one of the recognized usage
// keywords. An unrecognized usage is silently dropped — "the value ...
// will not be written in the output file", per the upstream's LoadData
// warning — rather than returning an error, since this mirrors a warning,
// not a failure, in the original.
func (t *Tags) SetUsage(key string, usage Usage, value float64) {
	if !usage.valid() {
		return
	}
	t.ensure()
	existing, ok := t.byKey[key]
	if !ok || existing.usage == nil {
		existing = tag{usage: make(map[Usage]float64)}
		if !ok {
			t.order = append(t.order, key)
		}
	}
	existing.usage[usage] = value
	t.byKey[key] = existing
}

// RecordTo emits one "Metadata" Datum per tag (and, for usage tags, one
// Datum per recognized usage present), stamped with agentID and time.
// Keys are recorded in sorted order regardless of insertion order so the
// Datum stream stays byte-identical across runs with the same seed.
func (t *Tags) RecordTo(rec *recorder.Recorder, agentID int64, time int) error {
	if rec == nil || t.byKey == nil {
		return nil
	}
	keys := append([]string(nil), t.order...)
	sort.Strings(keys)

	for _, key := range keys {
		tg := t.byKey[key]
		if tg.usage != nil {
			usages := make([]string, 0, len(tg.usage))
			for u := range tg.usage {
				usages = append(usages, string(u))
			}
			sort.Strings(usages)
			for _, u := range usages {
				err := rec.NewDatum("Metadata").
					AddVal("AgentId", agentID).
					AddVal("keyword", key).
					AddVal("Type", u).
					AddVal("Value", floatString(tg.usage[Usage(u)])).
					Record()
				if err != nil {
					return err
				}
			}
			continue
		}
		err := rec.NewDatum("Metadata").
			AddVal("AgentId", agentID).
			AddVal("keyword", key).
			AddVal("Type", tg.typ).
			AddVal("Value", tg.value).
			Record()
		if err != nil {
			return err
		}
	}
	return nil
}
