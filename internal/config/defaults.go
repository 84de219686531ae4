package config

const (
	defaultAssetsDir         = "~/.local/share/reelforge/assets"
	defaultRunsDir           = "~/.local/share/reelforge/runs"
	defaultOutputDir         = "~/.local/share/reelforge/outputs"
	defaultLogDir            = "~/.local/share/reelforge/logs"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultFPS               = 24
	defaultTargetDurationSec = 30
	defaultMaxSegmentSec     = 8.0
	defaultMaxSegments       = 4
	defaultMaxAttempts       = 3
	defaultMaxReworkRounds   = 2
	defaultRetryBackoffMS    = 500
	defaultMaxConcurrency    = 2
	defaultStepTimeoutSec    = 300
	defaultRunTimeoutMin     = 60
	defaultQwenBaseURL       = "https://dashscope.aliyuncs.com/api/v1"
	defaultQwenModel         = "qwen-vl-plus"
	defaultDeepSeekBaseURL   = "https://api.deepseek.com"
	defaultDeepSeekModel     = "deepseek-chat"
	defaultJimengBaseURL     = "https://visual.volcengineapi.com"
	defaultServiceTimeoutSec = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			AssetsDir: defaultAssetsDir,
			RunsDir:   defaultRunsDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Pipeline: Pipeline{
			FPS:               defaultFPS,
			TargetDurationSec: defaultTargetDurationSec,
			MaxSegmentSec:     defaultMaxSegmentSec,
			MaxSegments:       defaultMaxSegments,
		},
		Engine: Engine{
			MaxAttempts:      defaultMaxAttempts,
			MaxReworkRounds:  defaultMaxReworkRounds,
			RetryBackoffMS:   defaultRetryBackoffMS,
			MaxConcurrency:   defaultMaxConcurrency,
			StepTimeoutSec:   defaultStepTimeoutSec,
			ParallelDispatch: true,
			RunTimeoutMin:    defaultRunTimeoutMin,
		},
		Services: Services{
			MockGeneration: true,
			Qwen: Qwen{
				BaseURL:        defaultQwenBaseURL,
				Model:          defaultQwenModel,
				TimeoutSeconds: defaultServiceTimeoutSec,
			},
			DeepSeek: DeepSeek{
				BaseURL:        defaultDeepSeekBaseURL,
				Model:          defaultDeepSeekModel,
				TimeoutSeconds: defaultServiceTimeoutSec,
			},
			Jimeng: Jimeng{
				BaseURL:        defaultJimengBaseURL,
				TimeoutSeconds: defaultServiceTimeoutSec,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
