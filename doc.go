// Package driftwatch provides a streaming anomaly-detection engine: it
// scores each sample of a continuous numeric stream against a bounded
// recent window using O(1) work per sample, and flags values that deviate
// abnormally from recent behavior.
//
// # Basic Usage
//
// Create a detector and start it:
//
//	d, err := driftwatch.New(driftwatch.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//	d.Start()
//
// Submit samples:
//
//	err := d.Submit(driftwatch.Sample{
//	    Timestamp: time.Now().UnixNano(),
//	    Value:     21.5,
//	})
//
// Consume classified samples:
//
//	sub, _ := d.Subscribe()
//	for cs := range sub.C() {
//	    if cs.IsAnomaly {
//	        fmt.Printf("anomaly: %.2f (score %.2f)\n", cs.Sample.Value, cs.Score)
//	    }
//	}
//
// The operator surface is Start, Pause, Resume, Stop and SetSensitivity;
// all are safe to call while samples keep arriving. Pausing stops analysis
// without touching the window; stopping discards it.
//
// # Features
//
// Core Engine:
//   - Fixed sliding window or exponentially weighted (half-life) statistics
//   - Constant memory, single-pass, O(1) per sample
//   - Warm-up suppression of early false positives
//   - Runtime sensitivity tuning without resetting the model
//   - Bounded drop-oldest event channel, single-consumer or fan-out
//
// Collaborators (all optional):
//   - Synthetic stream simulator with seasonal pattern and spike anomalies
//   - HTTP control API, JSON ingestion, and WebSocket live feed
//   - Prometheus remote-write ingestion and /metrics exposition
//   - SQLite anomaly journal with S3 batch archiving (snappy, AES-GCM)
//   - Redis pub/sub sink with a capped recent-anomaly list
package driftwatch
