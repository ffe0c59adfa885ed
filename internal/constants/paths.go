package constants

// Log file settings. Retention is fixed: rotated files beyond these bounds are removed.
const (
	// CLILogFileName is the global CLI log file, located in ~/.herald/logs/herald.log
	CLILogFileName = "herald.log"

	// LogMaxSizeMB is the maximum size in megabytes before the log is rotated.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated log files kept.
	LogMaxBackups = 5

	// LogMaxAgeDays is the number of days rotated log files are kept.
	LogMaxAgeDays = 14

	// LogCompress gzips rotated log files.
	LogCompress = true
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the global configuration file in the herald home.
	GlobalConfigName = "config.yaml"

	// ProjectConfigDir is the project-level configuration directory.
	ProjectConfigDir = ".herald"

	// ProjectConfigName is the project-level configuration file inside ProjectConfigDir.
	ProjectConfigName = "config.yaml"

	// EnvPrefix prefixes every environment override (HERALD_PIPELINE_RESULTS_DIR).
	EnvPrefix = "HERALD"

	// HomeEnvVar overrides the herald home directory.
	HomeEnvVar = "HERALD_HOME"
)
