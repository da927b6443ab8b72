package config

import "time"

// Defaults
const (
	// DefaultVersionInfoExpires is the catalog cache TTL in seconds (24h)
	DefaultVersionInfoExpires int64 = 86400

	DefaultDownloadTimeout = 600 * time.Second // 10 minutes per artifact
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = 2 * time.Second

	// DefaultHomeDirName is the dev home directory created under the user home
	DefaultHomeDirName = ".dev"
)

// Environment Variable Names
const (
	EnvHome               = "DEV_HOME"
	EnvVerbose            = "DEV_VERBOSE"
	EnvNoColor            = "DEV_NO_COLOR"
	EnvVersionInfoExpires = "DEV_VERSION_INFO_EXPIRES"
	EnvDownloadTimeout    = "DEV_DOWNLOAD_TIMEOUT"
	EnvMaxRetries         = "DEV_MAX_RETRIES"
	EnvRetryDelay         = "DEV_RETRY_DELAY"
)

// Directory layout under the dev home
const (
	CacheFolder = "cache"
	EnvFolder   = "env"
	TempFolder  = "tmp"
)

// Configuration keys understood by Config.Get
const (
	KeyVersionInfoExpires = "cache.versionInfoExpires"
	KeyDownloadTimeout    = "download.timeout"
	KeyDownloadRetries    = "download.retries"
	KeyDownloadRetryDelay = "download.retryDelay"
	KeyVerifyChecksums    = "download.verifyChecksums"
	KeyRoot               = "paths.root"
	KeyCacheDir           = "paths.cache"
	KeyEnvDir             = "paths.env"
	KeyTempDir            = "paths.temp"
)
