package har

// HAR is an HTTP Archive (HAR 1.2). Only the parts that describe page and
// request timing are decoded.
type HAR struct {
	Log *Log `json:"log"`
}

// Log contains the HTTP archive data
type Log struct {
	Version string   `json:"version"`
	Creator *Creator `json:"creator"`
	Browser *Browser `json:"browser,omitempty"`
	Pages   []*Page  `json:"pages,omitempty"`
	Entries []*Entry `json:"entries"`
}

// Creator describes the application that created the archive
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Browser describes the browser that created the archive (optional)
type Browser struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Page describes a page within the archive (optional)
type Page struct {
	ID              string       `json:"id"`
	StartedDateTime string       `json:"startedDateTime"`
	Title           string       `json:"title"`
	PageTimings     *PageTimings `json:"pageTimings"`
}

// PageTimings holds page milestones in milliseconds since the page started.
// -1 or an absent field means the milestone is unknown. Underscore fields
// are exporter extensions.
type PageTimings struct {
	OnContentLoad        *float64 `json:"onContentLoad,omitempty"`
	OnLoad               *float64 `json:"onLoad,omitempty"`
	FirstContentfulPaint *float64 `json:"_firstContentfulPaint,omitempty"`
}

// Entry describes a single HTTP request/response pair
type Entry struct {
	PageRef         string    `json:"pageref,omitempty"`
	StartedDateTime string    `json:"startedDateTime"`
	Time            float64   `json:"time"`
	Request         *Request  `json:"request"`
	Response        *Response `json:"response"`
	Timings         *Timings  `json:"timings"`
	ResourceType    string    `json:"_resourceType,omitempty"`
}

// Request describes an HTTP request
type Request struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// Response describes an HTTP response
type Response struct {
	Status  int      `json:"status"`
	Content *Content `json:"content"`
}

// Content describes the response body content
type Content struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
}

// Timings describes the phases of an entry in milliseconds. -1 marks a phase
// that does not apply. SSL time is included in Connect.
type Timings struct {
	Blocked float64 `json:"blocked,omitempty"`
	DNS     float64 `json:"dns,omitempty"`
	Connect float64 `json:"connect,omitempty"`
	Send    float64 `json:"send,omitempty"`
	Wait    float64 `json:"wait,omitempty"`
	Receive float64 `json:"receive,omitempty"`
	SSL     float64 `json:"ssl,omitempty"`
}
