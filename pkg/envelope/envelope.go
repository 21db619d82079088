// Package envelope defines the {data, gaps} contract returned by every source
// adapter and inspected by the gate.
package envelope

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Source is the provenance category justifying an item's available_at.
type Source string

const (
	SourceStoreWrite          Source = "store_write"
	SourceFilingAcceptance    Source = "filing_acceptance"
	SourceTimeSeriesTimestamp Source = "time_series_timestamp"
	SourceProviderMetadata    Source = "provider_metadata"
)

// Sources lists every accepted available_at_source value.
func Sources() []Source {
	return []Source{
		SourceStoreWrite,
		SourceFilingAcceptance,
		SourceTimeSeriesTimestamp,
		SourceProviderMetadata,
	}
}

// Valid reports whether s is a member of the closed source enum.
func (s Source) Valid() bool {
	switch s {
	case SourceStoreWrite, SourceFilingAcceptance, SourceTimeSeriesTimestamp, SourceProviderMetadata:
		return true
	}
	return false
}

// GapType classifies why expected data is absent.
type GapType string

const (
	GapConfig        GapType = "config"
	GapInputError    GapType = "input_error"
	GapUpstreamError GapType = "upstream_error"
	GapInternalError GapType = "internal_error"
	GapUnverifiable  GapType = "unverifiable"
	GapPITExcluded   GapType = "pit_excluded"
	GapNoData        GapType = "no_data"
	GapInvalidPIT    GapType = "invalid_pit"
)

// Gap is a typed, non-fatal diagnostic.
type Gap struct {
	Type   GapType `json:"type"`
	Reason string  `json:"reason"`
}

// Reserved item keys.
const (
	KeyAvailableAt       = "available_at"
	KeyAvailableAtSource = "available_at_source"
)

// Item is one provider record plus its availability metadata. Fields holds
// the provider payload; the two reserved keys are always written from
// AvailableAt and AvailableAtSource and override any payload keys of the
// same name.
type Item struct {
	Fields            map[string]any
	AvailableAt       string
	AvailableAtSource Source
}

// MarshalJSON flattens the payload and availability metadata into one object.
func (i Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Fields)+2)
	for k, v := range i.Fields {
		out[k] = v
	}
	out[KeyAvailableAt] = i.AvailableAt
	out[KeyAvailableAtSource] = i.AvailableAtSource
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object back into payload and metadata.
func (i *Item) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if v, ok := raw[KeyAvailableAt].(string); ok {
		i.AvailableAt = v
	}
	if v, ok := raw[KeyAvailableAtSource].(string); ok {
		i.AvailableAtSource = Source(v)
	}
	delete(raw, KeyAvailableAt)
	delete(raw, KeyAvailableAtSource)
	i.Fields = raw
	return nil
}

// Envelope is the sole data contract crossing the provider/agent boundary.
type Envelope struct {
	Data []Item `json:"data"`
	Gaps []Gap  `json:"gaps"`
}

// New returns an envelope with empty, non-nil data and gaps.
func New() Envelope {
	return Envelope{Data: []Item{}, Gaps: []Gap{}}
}

// WithGap returns an empty envelope carrying a single gap.
func WithGap(t GapType, format string, args ...any) Envelope {
	env := New()
	env.AddGap(t, format, args...)
	return env
}

// AddGap appends a gap.
func (e *Envelope) AddGap(t GapType, format string, args ...any) {
	e.Gaps = append(e.Gaps, Gap{Type: t, Reason: fmt.Sprintf(format, args...)})
}

// HasGap reports whether a gap of type t is present.
func (e Envelope) HasGap(t GapType) bool {
	for _, g := range e.Gaps {
		if g.Type == t {
			return true
		}
	}
	return false
}

// Normalize replaces nil slices so the wire form always carries both keys as arrays.
func (e *Envelope) Normalize() {
	if e.Data == nil {
		e.Data = []Item{}
	}
	if e.Gaps == nil {
		e.Gaps = []Gap{}
	}
}

// Marshal serializes the envelope. It never fails: a payload that cannot be
// encoded is replaced by an envelope carrying an internal_error gap.
func (e Envelope) Marshal() []byte {
	e.Normalize()
	b, err := json.Marshal(e)
	if err == nil {
		return b
	}
	fallback := WithGap(GapInternalError, "envelope encode failed: %v", err)
	b, _ = json.Marshal(fallback)
	return b
}

// GapTypes returns the distinct gap types present, sorted.
func (e Envelope) GapTypes() []GapType {
	seen := map[GapType]struct{}{}
	for _, g := range e.Gaps {
		seen[g.Type] = struct{}{}
	}
	out := make([]GapType, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
