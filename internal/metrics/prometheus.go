// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the tavern API.
var (
	// HTTP.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_http_requests_total",
			Help: "Total HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "code"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tavern_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Quests.
	QuestsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_quests_created_total",
			Help: "Total number of quests created",
		},
		[]string{"difficulty"},
	)

	QuestTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_quest_transitions_total",
			Help: "Quest status change attempts",
		},
		[]string{"from", "to", "result"},
	)

	QuestCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_quest_completions_total",
			Help: "Total number of quests completed",
		},
		[]string{"difficulty"},
	)

	XPAwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tavern_xp_awarded_total",
			Help: "Total XP awarded to adventurers",
		},
	)

	RankUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_rank_ups_total",
			Help: "Total rank promotions by new rank",
		},
		[]string{"rank"},
	)

	CertificatesIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tavern_certificates_issued_total",
			Help: "Total Scrolls of Deed issued",
		},
	)

	CertificateArchiveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_certificate_archive_total",
			Help: "Certificate archive uploads by status",
		},
		[]string{"status"},
	)

	// Trust.
	TrustScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tavern_trust_score",
			Help:    "Distribution of computed organization trust scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
		},
	)

	// Notifications and realtime.
	NotificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_notifications_created_total",
			Help: "Total notifications created by type",
		},
		[]string{"type"},
	)

	NotificationsPushedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_notifications_pushed_total",
			Help: "Realtime events delivered to websocket clients",
		},
		[]string{"event"},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tavern_websocket_connections",
			Help: "Current number of open websocket connections",
		},
	)

	// Auth.
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tavern_scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tavern_scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tavern_scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"job"},
	)
)

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(route, method, code string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(route, method, code).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(route, method).Observe(seconds)
}

// RecordQuestCreated records a new quest.
func RecordQuestCreated(difficulty string) {
	QuestsCreatedTotal.WithLabelValues(difficulty).Inc()
}

// RecordQuestTransition records a status change attempt. Result is "ok" or "rejected".
func RecordQuestTransition(from, to, result string) {
	QuestTransitionsTotal.WithLabelValues(from, to, result).Inc()
}

// RecordQuestCompleted records a completion and the XP it awarded.
func RecordQuestCompleted(difficulty string, xp int64) {
	QuestCompletionsTotal.WithLabelValues(difficulty).Inc()
	XPAwardedTotal.Add(float64(xp))
}

// RecordRankUp records a rank promotion.
func RecordRankUp(rank string) {
	RankUpsTotal.WithLabelValues(rank).Inc()
}

// RecordCertificateIssued records a minted certificate.
func RecordCertificateIssued() {
	CertificatesIssuedTotal.Inc()
}

// RecordCertificateArchive records an archive upload outcome.
func RecordCertificateArchive(status string) {
	CertificateArchiveTotal.WithLabelValues(status).Inc()
}

// ObserveTrustScore observes a computed trust score.
func ObserveTrustScore(score int) {
	TrustScore.Observe(float64(score))
}

// RecordNotificationCreated records a stored notification.
func RecordNotificationCreated(notificationType string) {
	NotificationsCreatedTotal.WithLabelValues(notificationType).Inc()
}

// RecordNotificationPushed records a realtime event delivered to a client.
func RecordNotificationPushed(event string) {
	NotificationsPushedTotal.WithLabelValues(event).Inc()
}

// IncWebsocketConnections increments the open connection gauge.
func IncWebsocketConnections() {
	WebsocketConnections.Inc()
}

// DecWebsocketConnections decrements the open connection gauge.
func DecWebsocketConnections() {
	WebsocketConnections.Dec()
}

// RecordLoginAttempt records a login attempt. Result is "success", "failure" or "throttled".
func RecordLoginAttempt(result string) {
	LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run of a job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}
