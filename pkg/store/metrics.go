package store

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "whisperboard",
	Subsystem: "store",
	Name:      "ops_total",
	Help:      "Count of store operations by kind.",
}, []string{"op"})

var dbSizeBytes = promauto.NewGaugeFunc(prometheus.GaugeOpts{
	Namespace: "whisperboard",
	Subsystem: "store",
	Name:      "db_size_bytes",
	Help:      "Best-effort on-disk size of the pebble database directory.",
}, func() float64 { return float64(diskUsage()) })

func observeOp(op string) {
	opsTotal.WithLabelValues(op).Inc()
}

// diskUsage walks the DB directory; best-effort, errors ignored.
func diskUsage() uint64 {
	if dbPath == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}
