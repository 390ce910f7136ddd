package stats

import "github.com/influxdata/tdigest"

// LatencyDigest keeps a constant-memory sketch of a latency distribution so
// the console can report percentiles over the whole run, not just the
// in-history window.
type LatencyDigest struct {
	digest *tdigest.TDigest
	count  uint64
}

// NewLatencyDigest creates an empty digest.
// Compression 100 keeps the sketch around 10KB.
func NewLatencyDigest() *LatencyDigest {
	return &LatencyDigest{
		digest: tdigest.NewWithCompression(100),
	}
}

// Add records one latency sample in milliseconds.
func (d *LatencyDigest) Add(ms float64) {
	d.digest.Add(ms, 1)
	d.count++
}

// Count returns the number of samples recorded.
func (d *LatencyDigest) Count() uint64 { return d.count }

// Quantile returns the value at quantile q (0..1), or 0 when empty.
func (d *LatencyDigest) Quantile(q float64) float64 {
	if d.count == 0 {
		return 0
	}
	return d.digest.Quantile(q)
}

// P50 returns the median sample.
func (d *LatencyDigest) P50() float64 { return d.Quantile(0.50) }

// P95 returns the 95th percentile sample.
func (d *LatencyDigest) P95() float64 { return d.Quantile(0.95) }

// P99 returns the 99th percentile sample.
func (d *LatencyDigest) P99() float64 { return d.Quantile(0.99) }
