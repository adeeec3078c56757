package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "botdash", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "botdash", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// ProvisionOutcomes counts provisioning attempts by the step they ended
	// at (authenticate, validate, insert, patch) and result (ok, error).
	ProvisionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "botdash", Name: "provision_outcomes_total", Help: "Provisioning attempts by terminal step and result."},
		[]string{"step", "result"},
	)
	UploadedFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "botdash", Name: "uploaded_files_total", Help: "Resource file uploads by result."},
		[]string{"result"},
	)
	IntakeRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "botdash", Name: "intake_rejections_total", Help: "Files rejected by the intake policy, by reason."},
		[]string{"reason"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(ProvisionOutcomes)
	reg.MustRegister(UploadedFiles)
	reg.MustRegister(IntakeRejections)
}
