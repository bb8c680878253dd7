package interop

import (
	"github.com/born-ml/gpustream/internal/native"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	streamInits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpustream_stream_init_total",
			Help: "Stream initializations by result status.",
		},
		[]string{"result"},
	)

	handleRebinds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpustream_handle_rebinds_total",
			Help: "Library handle stream rebinds by handle kind.",
		},
		[]string{"handle"},
	)

	interopTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpustream_interop_tasks_total",
			Help: "Interop task submissions by result status.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(streamInits)
	prometheus.MustRegister(handleRebinds)
	prometheus.MustRegister(interopTasks)

	for _, s := range []Status{Success, InvalidArguments, RuntimeError} {
		streamInits.WithLabelValues(s.String())
		interopTasks.WithLabelValues(s.String())
	}
	handleRebinds.WithLabelValues(native.BLAS.String())
	handleRebinds.WithLabelValues(native.DNN.String())
}
