package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeDeferred  = "deferred"
	OutcomeReverted  = "reverted"
)

var (
	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "coursegrader",
		Subsystem: "llm",
		Name:      "completion_duration_seconds",
		Help:      "Duration of LLM completion calls including retries",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
	}, []string{"provider"})

	completionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursegrader",
		Subsystem: "llm",
		Name:      "completion_failures_total",
		Help:      "Number of LLM completion calls that failed after retries",
	}, []string{"provider"})

	completionTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursegrader",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Tokens consumed by LLM calls",
	}, []string{"provider", "direction"})

	completionSpend = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursegrader",
		Subsystem: "llm",
		Name:      "spend_usd_total",
		Help:      "Estimated LLM spend in USD",
	}, []string{"provider"})

	indexingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursegrader",
		Subsystem: "indexing",
		Name:      "runs_total",
		Help:      "Indexing runs by outcome",
	}, []string{"outcome"})

	indexedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coursegrader",
		Subsystem: "indexing",
		Name:      "chunks_total",
		Help:      "Chunks written to the vector store",
	})

	gradingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursegrader",
		Subsystem: "grading",
		Name:      "runs_total",
		Help:      "Grading runs by outcome",
	}, []string{"outcome"})

	gradedAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coursegrader",
		Subsystem: "grading",
		Name:      "answers_total",
		Help:      "Open-ended answers processed by AI grading status",
	}, []string{"status"})
)

func ObserveCompletion(provider string, d time.Duration, err error) {
	completionDuration.WithLabelValues(provider).Observe(d.Seconds())
	if err != nil {
		completionFailures.WithLabelValues(provider).Inc()
	}
}

// RecordUsage accounts tokens and spend for one successful call.
func RecordUsage(provider string, inputTokens, outputTokens int, costUSD float64) {
	completionTokens.WithLabelValues(provider, "input").Add(float64(inputTokens))
	completionTokens.WithLabelValues(provider, "output").Add(float64(outputTokens))
	if costUSD > 0 {
		completionSpend.WithLabelValues(provider).Add(costUSD)
	}
}

func IndexingRun(outcome string) {
	indexingRuns.WithLabelValues(outcome).Inc()
}

func ChunksIndexed(n int) {
	indexedChunks.Add(float64(n))
}

func GradingRun(outcome string) {
	gradingRuns.WithLabelValues(outcome).Inc()
}

func AnswersGraded(status string, n int) {
	if n > 0 {
		gradedAnswers.WithLabelValues(status).Add(float64(n))
	}
}
