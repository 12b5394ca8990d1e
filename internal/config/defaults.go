package config

const (
	defaultStateDir            = "~/.local/share/permavid"
	defaultLogDir              = "~/.local/share/permavid/logs"
	defaultDownloadDir         = "~/Downloads/PermaVid"
	defaultAPIBind             = "127.0.0.1:7799"
	defaultYtDLPBinary         = "yt-dlp"
	defaultFilemoonBaseURL     = "https://api.filemoon.sx/api"
	defaultFilesVCBaseURL      = "https://api.files.vc"
	defaultProviderTimeout     = 30
	defaultUploadTimeout       = 1800
	defaultIdlePollInterval    = 15
	defaultBusyPollInterval    = 5
	defaultMaxConcurrentChecks = 4
	defaultStopTimeout         = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 60
	defaultNotifyTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			DownloadDir: defaultDownloadDir,
			APIBind:     defaultAPIBind,
		},
		YtDLP: YtDLP{
			Binary: defaultYtDLPBinary,
		},
		Providers: Providers{
			FilemoonBaseURL: defaultFilemoonBaseURL,
			FilesVCBaseURL:  defaultFilesVCBaseURL,
			RequestTimeout:  defaultProviderTimeout,
			UploadTimeout:   defaultUploadTimeout,
		},
		Workflow: Workflow{
			IdlePollInterval:    defaultIdlePollInterval,
			BusyPollInterval:    defaultBusyPollInterval,
			MaxConcurrentChecks: defaultMaxConcurrentChecks,
			StopTimeout:         defaultStopTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Downloads:      true,
			Uploads:        true,
			Errors:         true,
		},
	}
}
