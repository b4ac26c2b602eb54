package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilehub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "profilehub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilehub_registrations_total",
		Help: "Count of registration attempts by result",
	}, []string{"result"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilehub_logins_total",
		Help: "Count of login attempts by result",
	}, []string{"result"})

	passwordChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilehub_password_changes_total",
		Help: "Count of password change attempts by result",
	}, []string{"result"})

	profileUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilehub_profile_updates_total",
		Help: "Count of profile edits by result",
	}, []string{"result"})

	avatarUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilehub_avatar_uploads_total",
		Help: "Count of avatar uploads by result",
	}, []string{"result"})

	accountDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "profilehub_account_deletions_total",
		Help: "Count of account deletions by result",
	}, []string{"result"})

	liveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "profilehub_live_sessions",
		Help: "Number of live sessions observed by the sweeper",
	})

	sweptSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "profilehub_swept_sessions_total",
		Help: "Count of expired session index entries pruned",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveRegistration records a registration attempt
func ObserveRegistration(result string) {
	registrations.WithLabelValues(result).Inc()
}

// ObserveLogin records a login attempt
func ObserveLogin(result string) {
	logins.WithLabelValues(result).Inc()
}

// ObservePasswordChange records a password change attempt
func ObservePasswordChange(result string) {
	passwordChanges.WithLabelValues(result).Inc()
}

// ObserveProfileUpdate records a profile edit
func ObserveProfileUpdate(result string) {
	profileUpdates.WithLabelValues(result).Inc()
}

// ObserveAvatarUpload records an avatar upload
func ObserveAvatarUpload(result string) {
	avatarUploads.WithLabelValues(result).Inc()
}

// ObserveAccountDeletion records an account deletion
func ObserveAccountDeletion(result string) {
	accountDeletions.WithLabelValues(result).Inc()
}

// SetLiveSessions sets the live session gauge
func SetLiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	liveSessions.Set(float64(count))
}

// AddSweptSessions increments the swept-session counter
func AddSweptSessions(count int) {
	sweptSessions.Add(float64(count))
}
