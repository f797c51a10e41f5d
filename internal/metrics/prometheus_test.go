package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDurationSeconds.Reset()

	RecordHTTPRequest("/quests/me", "GET", "200", 0.01)
	RecordHTTPRequest("/quests/me", "GET", "200", 0.02)
	RecordHTTPRequest("/quests/me", "GET", "404", 0.01)

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/quests/me", "GET", "200"))
	if count != 2 {
		t.Errorf("Expected 200 count = 2, got %f", count)
	}

	if n := testutil.CollectAndCount(HTTPRequestDurationSeconds); n != 1 {
		t.Errorf("Expected 1 latency series, got %d", n)
	}
}

func TestRecordQuestTransition(t *testing.T) {
	QuestTransitionsTotal.Reset()

	RecordQuestTransition("DRAFT", "POSTED", "ok")
	RecordQuestTransition("COMPLETED", "DRAFT", "rejected")
	RecordQuestTransition("COMPLETED", "DRAFT", "rejected")

	count := testutil.ToFloat64(QuestTransitionsTotal.WithLabelValues("COMPLETED", "DRAFT", "rejected"))
	if count != 2 {
		t.Errorf("Expected rejected count = 2, got %f", count)
	}
}

func TestRecordQuestCompleted(t *testing.T) {
	QuestCompletionsTotal.Reset()
	before := testutil.ToFloat64(XPAwardedTotal)

	RecordQuestCompleted("HARD", 400)
	RecordQuestCompleted("EASY", 100)

	if got := testutil.ToFloat64(QuestCompletionsTotal.WithLabelValues("HARD")); got != 1 {
		t.Errorf("Expected HARD completions = 1, got %f", got)
	}
	if got := testutil.ToFloat64(XPAwardedTotal) - before; got != 500 {
		t.Errorf("Expected 500 XP awarded, got %f", got)
	}
}

func TestWebsocketConnections(t *testing.T) {
	WebsocketConnections.Set(0)

	IncWebsocketConnections()
	IncWebsocketConnections()
	DecWebsocketConnections()

	if got := testutil.ToFloat64(WebsocketConnections); got != 1 {
		t.Errorf("Expected 1 open connection, got %f", got)
	}
}

func TestRecordLoginAttempt(t *testing.T) {
	LoginAttemptsTotal.Reset()

	RecordLoginAttempt("failure")
	RecordLoginAttempt("throttled")
	RecordLoginAttempt("failure")

	if got := testutil.ToFloat64(LoginAttemptsTotal.WithLabelValues("failure")); got != 2 {
		t.Errorf("Expected 2 failures, got %f", got)
	}
}

func TestSchedulerMetrics(t *testing.T) {
	SchedulerJobsRunTotal.Reset()

	RecordSchedulerJobRun("trust_refresh", "success")
	SetSchedulerLastRun("trust_refresh")
	ObserveSchedulerJobDuration("trust_refresh", 0.5)

	if got := testutil.ToFloat64(SchedulerJobsRunTotal.WithLabelValues("trust_refresh", "success")); got != 1 {
		t.Errorf("Expected 1 run, got %f", got)
	}
	if got := testutil.ToFloat64(SchedulerLastRunTimestamp.WithLabelValues("trust_refresh")); got <= 0 {
		t.Errorf("Expected last run timestamp to be set, got %f", got)
	}
}
