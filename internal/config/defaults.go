package config

const (
	defaultWorkDir               = "~/.local/share/scribe/work"
	defaultLogDir                = "~/.local/share/scribe/logs"
	defaultBind                  = "127.0.0.1:8000"
	defaultMaxUploadMB           = 100
	defaultAdmissionRequests     = 10
	defaultAdmissionWindow       = 60
	defaultWorkers               = 1
	defaultInferenceInstances    = 1
	defaultJobTimeoutSeconds     = 1800
	defaultQueuePollInterval     = 5
	defaultRetentionMinutes      = 210
	defaultReaperIntervalSeconds = 300
	defaultWhisperXModel         = "base"
	defaultWhisperXVADMethod     = "silero"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

var defaultAllowedExtensions = []string{
	".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm", ".m4v",
	".mp3", ".wav", ".m4a", ".flac", ".ogg",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind:              defaultBind,
			MaxUploadMB:       defaultMaxUploadMB,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
			CORSOrigins:       []string{"*"},
		},
		Admission: Admission{
			Requests:      defaultAdmissionRequests,
			WindowSeconds: defaultAdmissionWindow,
		},
		Workflow: Workflow{
			Workers:                  defaultWorkers,
			InferenceInstances:       defaultInferenceInstances,
			JobTimeoutSeconds:        defaultJobTimeoutSeconds,
			QueuePollIntervalSeconds: defaultQueuePollInterval,
		},
		Retention: Retention{
			HorizonMinutes:        defaultRetentionMinutes,
			ReaperIntervalSeconds: defaultReaperIntervalSeconds,
		},
		WhisperX: WhisperX{
			Model:     defaultWhisperXModel,
			VADMethod: defaultWhisperXVADMethod,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
