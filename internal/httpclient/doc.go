// Package httpclient loads a live page over HTTP and turns the load into
// timeline records.
//
// A [Probe] issues one GET for the page document and observes it with
// net/http/httptrace. requestStart is the moment a connection was obtained
// and responseStart the first response byte, both measured from when the
// request was issued:
//
//	probe, err := httpclient.NewProbe(httpclient.Config{URL: "https://example.com"}, logger)
//	if err != nil {
//		return err
//	}
//	m, err := probe.Measure(ctx)
//
// As a runner.Source the probe feeds a navigation record and a load record
// to the page. It never produces paint or performance entries, so the page
// should be built without instrumentation.
//
// [NewClient] disables keep-alives so every load pays for DNS, connect and
// TLS like a first navigation.
package httpclient
