// Package wire decodes performance timeline records relayed from a page.
//
// A record is a JSON object. Browser performance entries can be relayed as-is
// (camelCase keys such as entryType, startTime, hadRecentInput); snake_case
// keys are accepted as well. The record kind is taken from "kind" when present
// and otherwise inferred from the entry type:
//
//	{"entryType":"navigation","requestStart":12.5,"responseStart":80.1}
//	{"entryType":"paint","name":"first-contentful-paint","startTime":640}
//	{"kind":"load"}
//	{"entryType":"layout-shift","startTime":900,"value":0.02,"hadRecentInput":false}
//	{"kind":"unload"}
package wire

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/torosent/vitalscope/internal/vitals"
)

// Kind is the record kind.
type Kind string

const (
	KindNavigation Kind = "navigation"
	KindPaint      Kind = "paint"
	KindLoad       Kind = "load"
	KindUnload     Kind = "unload"
	KindEntry      Kind = "entry"
)

// FirstContentfulPaint is the paint entry name acquisition reads.
const FirstContentfulPaint = "first-contentful-paint"

// Paint is a paint timing entry.
type Paint struct {
	Name      string
	StartTime float64
}

// Record is one decoded timeline record.
type Record struct {
	Kind       Kind
	Navigation vitals.NavigationTiming
	Paint      Paint
	Entry      vitals.Entry
}

// Decode parses a single record. It returns false for anything that is not a
// well-formed record.
func Decode(data []byte) (Record, bool) {
	if !gjson.ValidBytes(data) {
		return Record{}, false
	}
	return decodeResult(gjson.ParseBytes(data))
}

// DecodeAll parses a record or a JSON array of records. Malformed elements
// are skipped and counted.
func DecodeAll(data []byte) (records []Record, malformed int) {
	if !gjson.ValidBytes(data) {
		return nil, 1
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		rec, ok := decodeResult(root)
		if !ok {
			return nil, 1
		}
		return []Record{rec}, 0
	}
	root.ForEach(func(_, value gjson.Result) bool {
		rec, ok := decodeResult(value)
		if ok {
			records = append(records, rec)
		} else {
			malformed++
		}
		return true
	})
	return records, malformed
}

func decodeResult(r gjson.Result) (Record, bool) {
	if !r.IsObject() {
		return Record{}, false
	}

	entryType := strings.TrimSpace(field(r, "entryType", "entry_type").String())
	kind := Kind(strings.ToLower(strings.TrimSpace(field(r, "kind").String())))
	if kind == "" {
		switch entryType {
		case "navigation":
			kind = KindNavigation
		case "paint":
			kind = KindPaint
		case "":
			return Record{}, false
		default:
			kind = KindEntry
		}
	}

	switch kind {
	case KindLoad, KindUnload:
		return Record{Kind: kind}, true
	case KindNavigation:
		reqStart := field(r, "requestStart", "request_start")
		respStart := field(r, "responseStart", "response_start")
		if !isNumber(reqStart) || !isNumber(respStart) {
			return Record{}, false
		}
		return Record{
			Kind: KindNavigation,
			Navigation: vitals.NavigationTiming{
				RequestStart:  reqStart.Float(),
				ResponseStart: respStart.Float(),
			},
		}, true
	case KindPaint:
		name := field(r, "name")
		start := field(r, "startTime", "start_time")
		if name.String() == "" || !isNumber(start) {
			return Record{}, false
		}
		return Record{Kind: KindPaint, Paint: Paint{Name: name.String(), StartTime: start.Float()}}, true
	case KindEntry:
		if entryType == "" {
			return Record{}, false
		}
		start := field(r, "startTime", "start_time")
		if start.Exists() && !isNumber(start) {
			return Record{}, false
		}
		processing := field(r, "processingStart", "processing_start")
		value := field(r, "value")
		switch vitals.EntryType(entryType) {
		case vitals.EntryFirstInput:
			// fid is set once, so a first input without a usable delay must
			// not reach the observer.
			if !isNumber(start) || !isNumber(processing) || processing.Float() < start.Float() {
				return Record{}, false
			}
		case vitals.EntryLayoutShift:
			if !isNumber(value) {
				return Record{}, false
			}
		}
		return Record{
			Kind: KindEntry,
			Entry: vitals.Entry{
				Type:            vitals.EntryType(entryType),
				Name:            field(r, "name").String(),
				StartTime:       start.Float(),
				ProcessingStart: processing.Float(),
				Value:           value.Float(),
				HadRecentInput:  field(r, "hadRecentInput", "had_recent_input").Bool(),
			},
		}, true
	default:
		return Record{}, false
	}
}

func field(r gjson.Result, names ...string) gjson.Result {
	for _, name := range names {
		if v := r.Get(name); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func isNumber(r gjson.Result) bool {
	return r.Type == gjson.Number
}

// Encode renders rec in the camelCase wire form Decode accepts. Adapters
// that synthesize records (HAR import, live probe) feed the page through the
// same path as relayed records.
func Encode(rec Record) ([]byte, error) {
	var (
		out = []byte(`{}`)
		err error
	)
	set := func(path string, value interface{}) {
		if err == nil {
			out, err = sjson.SetBytes(out, path, value)
		}
	}

	set("kind", string(rec.Kind))
	switch rec.Kind {
	case KindNavigation:
		set("requestStart", rec.Navigation.RequestStart)
		set("responseStart", rec.Navigation.ResponseStart)
	case KindPaint:
		set("name", rec.Paint.Name)
		set("startTime", rec.Paint.StartTime)
	case KindEntry:
		e := rec.Entry
		set("entryType", string(e.Type))
		if e.Name != "" {
			set("name", e.Name)
		}
		set("startTime", e.StartTime)
		switch e.Type {
		case vitals.EntryFirstInput:
			set("processingStart", e.ProcessingStart)
		case vitals.EntryLayoutShift:
			set("value", e.Value)
			set("hadRecentInput", e.HadRecentInput)
		}
	case KindLoad, KindUnload:
	default:
		return nil, fmt.Errorf("encode: unknown record kind %q", rec.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", rec.Kind, err)
	}
	return out, nil
}
