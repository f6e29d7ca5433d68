package wire

import (
	"testing"

	"github.com/torosent/vitalscope/internal/vitals"
)

func TestDecodeBrowserEntries(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Record
	}{
		{
			name:  "navigation camelCase",
			input: `{"entryType":"navigation","requestStart":12.5,"responseStart":80.5}`,
			want:  Record{Kind: KindNavigation, Navigation: vitals.NavigationTiming{RequestStart: 12.5, ResponseStart: 80.5}},
		},
		{
			name:  "navigation snake_case explicit kind",
			input: `{"kind":"navigation","request_start":1,"response_start":3}`,
			want:  Record{Kind: KindNavigation, Navigation: vitals.NavigationTiming{RequestStart: 1, ResponseStart: 3}},
		},
		{
			name:  "paint",
			input: `{"entryType":"paint","name":"first-contentful-paint","startTime":640}`,
			want:  Record{Kind: KindPaint, Paint: Paint{Name: FirstContentfulPaint, StartTime: 640}},
		},
		{
			name:  "load",
			input: `{"kind":"load"}`,
			want:  Record{Kind: KindLoad},
		},
		{
			name:  "unload",
			input: `{"kind":"unload"}`,
			want:  Record{Kind: KindUnload},
		},
		{
			name:  "layout shift",
			input: `{"entryType":"layout-shift","startTime":900,"value":0.02,"hadRecentInput":true}`,
			want: Record{Kind: KindEntry, Entry: vitals.Entry{
				Type: vitals.EntryLayoutShift, StartTime: 900, Value: 0.02, HadRecentInput: true,
			}},
		},
		{
			name:  "first input snake_case",
			input: `{"entry_type":"first-input","name":"pointerdown","start_time":100,"processing_start":140}`,
			want: Record{Kind: KindEntry, Entry: vitals.Entry{
				Type: vitals.EntryFirstInput, Name: "pointerdown", StartTime: 100, ProcessingStart: 140,
			}},
		},
		{
			name:  "unknown entry type still decodes",
			input: `{"entryType":"longtask","startTime":5}`,
			want:  Record{Kind: KindEntry, Entry: vitals.Entry{Type: "longtask", StartTime: 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decode([]byte(tt.input))
			if !ok {
				t.Fatalf("Decode(%s) failed", tt.input)
			}
			if got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	inputs := []string{
		``,
		`not json`,
		`[]`,
		`42`,
		`{}`,
		`{"kind":"navigation","requestStart":1}`,
		`{"entryType":"navigation","requestStart":"a","responseStart":2}`,
		`{"entryType":"paint","startTime":10}`,
		`{"kind":"entry"}`,
		`{"kind":"teleport"}`,
		`{"entryType":"layout-shift","startTime":"soon"}`,
		`{"entryType":"layout-shift","startTime":900}`,
		`{"entryType":"layout-shift","startTime":900,"value":"0.1"}`,
		`{"entryType":"first-input","startTime":500}`,
		`{"entryType":"first-input","processingStart":540}`,
		`{"entryType":"first-input","startTime":500,"processingStart":null}`,
		`{"entryType":"first-input","startTime":500,"processingStart":480}`,
	}
	for _, in := range inputs {
		if rec, ok := Decode([]byte(in)); ok {
			t.Errorf("Decode(%q) = %+v, want failure", in, rec)
		}
	}
}

func TestDecodeAll(t *testing.T) {
	records, malformed := DecodeAll([]byte(`[
		{"kind":"load"},
		{"bogus":true},
		{"entryType":"largest-contentful-paint","startTime":2600}
	]`))
	if malformed != 1 {
		t.Errorf("malformed = %d, want 1", malformed)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[1].Entry.Type != vitals.EntryLargestContentfulPaint || records[1].Entry.StartTime != 2600 {
		t.Errorf("unexpected record %+v", records[1])
	}

	single, malformed := DecodeAll([]byte(`{"kind":"load"}`))
	if len(single) != 1 || malformed != 0 {
		t.Errorf("single record: %d records, %d malformed", len(single), malformed)
	}

	if _, malformed := DecodeAll([]byte(`{`)); malformed != 1 {
		t.Errorf("invalid json should count as malformed")
	}
}

func TestEncodeFeedsDecode(t *testing.T) {
	records := []Record{
		{Kind: KindNavigation, Navigation: vitals.NavigationTiming{RequestStart: 10.5, ResponseStart: 92}},
		{Kind: KindPaint, Paint: Paint{Name: FirstContentfulPaint, StartTime: 640}},
		{Kind: KindLoad},
		{Kind: KindEntry, Entry: vitals.Entry{Type: vitals.EntryFirstInput, Name: "click", StartTime: 100, ProcessingStart: 130}},
		{Kind: KindEntry, Entry: vitals.Entry{Type: vitals.EntryLayoutShift, StartTime: 900, Value: 0.05, HadRecentInput: true}},
		{Kind: KindUnload},
	}
	for _, want := range records {
		data, err := Encode(want)
		if err != nil {
			t.Fatalf("Encode(%+v) error = %v", want, err)
		}
		got, ok := Decode(data)
		if !ok || got != want {
			t.Errorf("Decode(Encode(%+v)) = %+v, %v (wire %s)", want, got, ok, data)
		}
	}

	if _, err := Encode(Record{Kind: "bogus"}); err == nil {
		t.Error("Encode should reject an unknown kind")
	}
}

func TestDecodeIncompleteFirstInputDoesNotBlockFID(t *testing.T) {
	var snap vitals.Snapshot
	for _, in := range []string{
		`{"entryType":"first-input","startTime":500}`,
		`{"entryType":"first-input","startTime":600,"processingStart":640}`,
	} {
		rec, ok := Decode([]byte(in))
		if !ok {
			continue
		}
		snap, _ = vitals.Apply(snap, rec.Entry)
	}
	if snap.FID == nil || *snap.FID != 40 {
		t.Fatalf("FID = %v, want 40", snap.FID)
	}
}
