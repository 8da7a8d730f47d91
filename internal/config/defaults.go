package config

const (
	defaultConfigPath             = "~/.config/quill/config.toml"
	defaultDataDir                = "~/.local/share/quill"
	defaultLogDir                 = "~/.local/share/quill/logs"
	defaultAPIBind                = "127.0.0.1:7488"
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "google/gemini-3-flash-preview"
	defaultLLMReferer             = "https://github.com/quill/quill"
	defaultLLMTitle               = "Quill"
	defaultLLMTimeoutSeconds      = 120
	defaultWorkers                = 2
	defaultQueueCapacity          = 64
	defaultBackpressure           = BackpressureReject
	defaultMaxIterations          = 10
	defaultRecoverySchedule       = "@every 1m"
	defaultShutdownTimeout        = 30
	defaultNotifyRequestTimeout   = 10
	defaultNotifyEventBuffer      = 256
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultTracingServiceName     = "quill"
	defaultTracingEndpointEnvName = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// Backpressure policies applied when the scheduler queue is full.
const (
	BackpressureReject = "reject"
	BackpressureBlock  = "block"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Workflow: Workflow{
			Workers:          defaultWorkers,
			QueueCapacity:    defaultQueueCapacity,
			Backpressure:     defaultBackpressure,
			MaxIterations:    defaultMaxIterations,
			RecoverySchedule: defaultRecoverySchedule,
			ShutdownTimeout:  defaultShutdownTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			EventBuffer:    defaultNotifyEventBuffer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Tracing: Tracing{
			ServiceName: defaultTracingServiceName,
		},
	}
}
