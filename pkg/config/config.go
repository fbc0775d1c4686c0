package config

import (
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// validate is a global validator instance used to validate struct fields based on tags.
var validate *validator.Validate

// Config holds all the configuration parameters necessary for running the
// agent deployment pipeline. Fields are validated once at load time and never
// mutated during a pipeline run.
type Config struct {
	Global        Global        `yaml:",omitempty"`     // Global contains process-wide settings populated from CLI flags.
	Log           Log           `yaml:"log"`            // Log holds configuration related to logging.
	OpenTelemetry OpenTelemetry `yaml:"opentelemetry"`  // OpenTelemetry contains tracing integration settings.
	Server        Server        `yaml:"server"`         // Server holds the serve-mode HTTP server settings.
	Platform      Platform      `yaml:"platform"`       // Platform contains serving-platform connection settings.
	Redis         Redis         `yaml:"redis"`          // Redis holds parameters for connecting to Redis.
	Model         Model         `yaml:"model"`          // Model identifies the agent model to ship.
	Deployment    Deployment    `yaml:"deployment"`     // Deployment configures the serving endpoint.
	Monitoring    Monitoring    `yaml:"monitoring"`     // Monitoring configures scorer registration.
	Cleanup       Cleanup       `yaml:"cleanup"`        // Cleanup configures the retention cleanup engine.
	Validation    Validation    `yaml:"validation"`     // Validation configures pre-deployment canary queries.
	SmokeTest     SmokeTest     `yaml:"smoke_test"`     // SmokeTest configures post-deployment endpoint checks.
	Schedule      Schedule      `yaml:"schedule"`       // Schedule configures serve-mode periodic tasks.
}

// Log holds configuration settings related to runtime logging.
type Log struct {
	// Level sets the logging verbosity level.
	// Valid values: trace, debug, info, warning, error, fatal, panic.
	// Defaults to "info".
	Level string `default:"info" validate:"required,oneof=trace debug info warning error fatal panic"`

	// Format sets the output format of the logs.
	// Valid values: "text" or "json".
	// Defaults to "text".
	Format string `default:"text" validate:"oneof=text json"`
}

// OpenTelemetry holds configuration related to OpenTelemetry integration.
type OpenTelemetry struct {
	// GRPCEndpoint is the gRPC address of the OpenTelemetry collector to send traces to.
	GRPCEndpoint string `yaml:"grpc_endpoint"`
}

// Server holds the configuration for the serve-mode HTTP server.
type Server struct {
	// ListenAddress specifies the address and port the server will bind to.
	// Default is ":8080" (all interfaces on port 8080).
	ListenAddress string        `default:":8080" yaml:"listen_address"`
	EnablePprof   bool          `default:"false" yaml:"enable_pprof"` // EnablePprof enables profiling endpoints.
	Metrics       ServerMetrics `yaml:"metrics"`                      // Metrics configures the Prometheus endpoint.
	Webhook       ServerWebhook `yaml:"webhook"`                      // Webhook configures the deployment-trigger endpoint.
}

// ServerMetrics holds configuration for the metrics HTTP endpoint.
type ServerMetrics struct {
	// EnableOpenmetricsEncoding enables OpenMetrics content encoding in the Prometheus HTTP handler.
	EnableOpenmetricsEncoding bool `default:"false" yaml:"enable_openmetrics_encoding"`
	Enabled                   bool `default:"true" yaml:"enabled"` // Enabled controls whether the /metrics endpoint is exposed.
}

// ServerWebhook holds configuration for the webhook HTTP endpoint.
type ServerWebhook struct {
	// Enabled enables the /webhook endpoint through which deployments can be
	// triggered remotely (e.g. by the CI pipeline that registered the model).
	Enabled bool `default:"false" yaml:"enabled"`

	// SecretToken authenticates incoming webhook requests.
	// Required if the webhook endpoint is enabled.
	SecretToken string `validate:"required_if=Enabled true" yaml:"secret_token"`
}

// Platform holds the configuration needed to connect to the model serving
// platform (registry, serving endpoints and experiment tracker share one API
// host and one credential).
type Platform struct {
	// URL of the platform workspace API endpoint.
	URL string `validate:"required,url" yaml:"url"`

	// HealthURL is the URL used to check that the platform is reachable.
	// Defaults to <url>/api/2.0/serving-endpoints when left empty.
	HealthURL string `validate:"omitempty,url" yaml:"health_url"`

	Token                      string `validate:"required" yaml:"token"`                                  // Token is the API token used to authenticate against the platform.
	EnableHealthCheck          bool   `default:"true" yaml:"enable_health_check"`                         // EnableHealthCheck toggles readiness checks against HealthURL.
	EnableTLSVerify            bool   `default:"true" yaml:"enable_tls_verify"`                           // EnableTLSVerify toggles TLS certificate verification.
	MaximumRequestsPerSecond   int    `default:"5" validate:"gte=1" yaml:"maximum_requests_per_second"`   // MaximumRequestsPerSecond limits the platform API request rate.
	BurstableRequestsPerSecond int    `default:"5" validate:"gte=1" yaml:"burstable_requests_per_second"` // BurstableRequestsPerSecond allows short bursts above the normal rate.

	// MaximumJobsQueueSize limits the number of serve-mode tasks queued
	// internally before dropping new ones.
	MaximumJobsQueueSize int `default:"100" validate:"gte=10" yaml:"maximum_jobs_queue_size"`
}

// Redis holds the configuration for connecting to a Redis instance.
type Redis struct {
	// URL is the connection string used to connect to the Redis server.
	// Format example: redis[s]://[:password@]host[:port][/db-number][?option=value]
	URL string `yaml:"url"`
}

// Model identifies the agent model being shipped and the experiment its
// monitoring is attached to.
type Model struct {
	// Env is the environment this deployment belongs to. Always propagated to
	// the endpoint as an ENV environment variable and an `environment` tag.
	Env string `default:"dev" validate:"required" yaml:"env"`

	UCCatalog   string `default:"workspace" validate:"required" yaml:"uc_catalog"`  // UCCatalog is the catalog part of the full model name.
	AgentSchema string `default:"agent" validate:"required" yaml:"agent_schema"`    // AgentSchema is the schema part of the full model name.
	Name        string `validate:"required" yaml:"name"`                            // Name is the registered model name.

	// Version pins the model version to deploy. Zero means "resolve the
	// latest registered version".
	Version int `validate:"gte=0" yaml:"version"`

	// GitCommit identifies the commit the deployed artifact was built from.
	// Only tagged on the endpoint when non-empty.
	GitCommit string `yaml:"git_commit"`

	// ExperimentPath is the tracker experiment monitoring scorers attach to.
	// Defaults to /Shared/<name>/<env>/<env>_<name> when left empty.
	ExperimentPath string `yaml:"experiment_path"`
}

// FullName returns the three-level model identifier (catalog.schema.model).
func (m Model) FullName() string {
	return strings.Join([]string{m.UCCatalog, m.AgentSchema, m.Name}, ".")
}

// DefaultExperimentPath derives the experiment path used when none is configured.
func (m Model) DefaultExperimentPath() string {
	return fmt.Sprintf("/Shared/%s/%s/%s_%s", m.Name, m.Env, m.Env, m.Name)
}

// Permission grants one permission level to a list of users or groups on the
// serving endpoint, applied after the deployment succeeds.
type Permission struct {
	Users           []string `validate:"required,min=1" yaml:"users"`
	PermissionLevel string   `default:"CAN_QUERY" validate:"required" yaml:"permission_level"`
}

// Deployment configures the serving endpoint created or updated by the
// deployment executor.
type Deployment struct {
	// EndpointName is the name of the serving endpoint, the only cross-stage
	// shared handle of the pipeline.
	EndpointName string `validate:"required" yaml:"endpoint_name"`

	// WorkloadSize selects the serving capacity tier.
	WorkloadSize string `default:"Small" validate:"oneof=Small Medium Large" yaml:"workload_size"`

	ScaleToZeroEnabled bool `default:"true" yaml:"scale_to_zero_enabled"` // ScaleToZeroEnabled deallocates compute when the endpoint is idle.
	WaitForReady       bool `default:"true" yaml:"wait_for_ready"`        // WaitForReady blocks the pipeline until the endpoint reports ready.

	// ReadyTimeoutSeconds bounds the readiness wait.
	ReadyTimeoutSeconds int `default:"1200" validate:"gte=1" yaml:"ready_timeout_seconds"`

	// ReadyPollIntervalSeconds sets how often the readiness state is polled.
	ReadyPollIntervalSeconds int `default:"30" validate:"gte=1" yaml:"ready_poll_interval_seconds"`

	// EnvironmentVars are extra environment variables set on the endpoint,
	// merged with the always-present ENV=<model.env>.
	EnvironmentVars map[string]string `yaml:"environment_vars"`

	// BudgetPolicyID optionally attaches a platform budget policy. Optional.
	BudgetPolicyID string `yaml:"budget_policy_id"`

	// Instructions is free-text review guidance stored with the deployment
	// for human-in-the-loop evaluation. Optional.
	Instructions string `yaml:"instructions"`

	// Permissions grants access on the endpoint once the deployment succeeded.
	Permissions []Permission `validate:"dive" yaml:"permissions"`
}

// Monitoring configures scorer registration against the experiment.
type Monitoring struct {
	Enabled         bool `default:"false" yaml:"enabled"`          // Enabled gates the monitoring configurator stage.
	ReplaceExisting bool `default:"true" yaml:"replace_existing"`  // ReplaceExisting replaces (not merges) any previously registered scorer set.
	FailOnError     bool `default:"false" yaml:"fail_on_error"`    // FailOnError makes monitoring failures abort the pipeline.

	BuiltinScorers []schemas.ScorerSpec `validate:"dive" yaml:"builtin_scorers"` // BuiltinScorers are platform-provided scorers to attach.
	CustomScorers  []schemas.ScorerSpec `validate:"dive" yaml:"custom_scorers"`  // CustomScorers are project-defined scorers to attach.
}

// Cleanup configures the retention cleanup engine.
type Cleanup struct {
	Enabled bool `default:"false" yaml:"enabled"` // Enabled gates the retention cleanup stage.

	// KeepPreviousCount is how many predecessors of the current version are
	// retained in addition to the current version itself.
	KeepPreviousCount int `default:"2" validate:"gte=0" yaml:"keep_previous_count"`

	// MaxDeletionAttempts bounds the per-candidate deletion retries.
	MaxDeletionAttempts int `default:"3" validate:"gte=1" yaml:"max_deletion_attempts"`

	// WaitBetweenAttemptsSeconds is the fixed interval between failed
	// deletion attempts of the same candidate.
	WaitBetweenAttemptsSeconds int `default:"60" validate:"gte=0" yaml:"wait_between_attempts_seconds"`

	// WaitAfterDeletionSeconds is the settle delay after a successful
	// deletion, respecting eventual-consistency windows in the serving layer.
	WaitAfterDeletionSeconds int `default:"180" validate:"gte=0" yaml:"wait_after_deletion_seconds"`

	RaiseOnError bool `default:"false" yaml:"raise_on_error"` // RaiseOnError raises after the full enumeration when any candidate failed.
}

// Validation configures the pre-deployment canary queries.
type Validation struct {
	// CanaryQueries are run through the loaded model in-process before any
	// serving resource is committed. A sensible default set is applied when
	// none are configured.
	CanaryQueries []schemas.AgentQuery `validate:"dive" yaml:"canary_queries"`
}

// SmokeTest configures the post-deployment endpoint checks.
type SmokeTest struct {
	Enabled bool `default:"true" yaml:"enabled"` // Enabled gates the smoke-test stage.

	// Cases are issued against the live endpoint. A default set is applied
	// when none are configured.
	Cases []schemas.AgentQuery `validate:"dive" yaml:"cases"`
}

// SchedulerConfig holds the configuration for one serve-mode periodic task.
type SchedulerConfig struct {
	OnInit          bool `yaml:"on_init"`          // OnInit runs the task once at startup.
	Scheduled       bool `yaml:"scheduled"`        // Scheduled enables periodic runs.
	IntervalSeconds int  `yaml:"interval_seconds"` // IntervalSeconds between runs.
}

// Log returns the relevant fields of a SchedulerConfig for logging purposes.
func (sc SchedulerConfig) Log() log.Fields {
	onInit, scheduled := "no", "no"
	if sc.OnInit {
		onInit = "yes"
	}

	if sc.Scheduled {
		scheduled = fmt.Sprintf("every %vs", sc.IntervalSeconds)
	}

	return log.Fields{
		"on-init":   onInit,
		"scheduled": scheduled,
	}
}

// Schedule configures serve-mode periodic tasks.
type Schedule struct {
	// RetentionCleanup configures periodic retention cleanup runs. Defaults to
	// a run every 4 hours.
	RetentionCleanup SchedulerConfig `default:"{\"Scheduled\":true,\"IntervalSeconds\":14400}" yaml:"retention_cleanup"`

	// SmokeTest configures periodic endpoint smoke testing. Defaults to a run
	// at startup and then every 30 minutes.
	SmokeTest SchedulerConfig `default:"{\"OnInit\":true,\"Scheduled\":true,\"IntervalSeconds\":1800}" yaml:"smoke_test"`
}

// Validate checks if the Config struct's fields are valid according to the
// validation rules defined via struct tags. It returns an error if any
// validation rule fails.
func (c Config) Validate() error {
	if validate == nil {
		validate = validator.New()
	}

	return validate.Struct(c)
}

// New returns a new Config instance with default parameters set.
func New() (c Config) {
	defaults.MustSet(&c)
	return
}
