package driftwatch

import (
	"io"
	"net/http"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

// setupRemoteWriteRoute configures the Prometheus remote-write ingestion
// endpoint. Any remote-write capable scraper becomes a sample source:
// decoded samples flow through Submit like every other input.
func setupRemoteWriteRoute(mux *http.ServeMux, d *Detector, cfg HTTPConfig, wrap middlewareWrapper) {
	mux.HandleFunc("/prometheus/write", wrap(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.RemoteWriteEnabled {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var req prompb.WriteRequest
		if err := req.Unmarshal(decoded); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, s := range convertRemoteWrite(&req) {
			_ = d.Submit(s)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
}

// convertRemoteWrite flattens a remote-write request into ordered samples.
// The engine watches a single scalar stream, so labels are ignored.
func convertRemoteWrite(req *prompb.WriteRequest) []Sample {
	var samples []Sample
	for i := range req.Timeseries {
		ts := &req.Timeseries[i]
		for _, s := range ts.Samples {
			samples = append(samples, Sample{
				Timestamp: s.Timestamp * int64(time.Millisecond),
				Value:     s.Value,
			})
		}
	}
	return samples
}
