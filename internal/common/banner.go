package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective runtime settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Yojana", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("provider", string(config.LLM.DefaultProvider)).
		Bool("ocr_enabled", config.OCR.Enabled).
		Bool("cache_enabled", config.Cache.Enabled).
		Msg("Yojana starting")
}
