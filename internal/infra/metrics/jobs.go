package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(batchJobsTotal, batchItemsTotal) }

var (
	batchJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_jobs_total",
			Help: "Batch job status transitions.",
		},
		[]string{"status"}, // 'pending', 'processing', 'completed', 'failed'
	)

	batchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_items_total",
			Help: "Processed batch items by result.",
		},
		[]string{"result"}, // 'completed', 'failed'
	)
)

func IncBatchJob(status string)  { batchJobsTotal.WithLabelValues(norm(status)).Inc() }
func IncBatchItem(result string) { batchItemsTotal.WithLabelValues(norm(result)).Inc() }
