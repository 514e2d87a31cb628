package httpapi

import (
	"net/http"
	"time"
)

// versionConfig configures the API-Version response header the daemon
// advertises on every request (spec §6 names "/api/v1" as the sole
// surface, so there is exactly one current version and no deprecations
// yet to announce).
type versionConfig struct {
	CurrentVersion     string
	DeprecatedVersions map[string]time.Time
}

func defaultVersionConfig() versionConfig {
	return versionConfig{
		CurrentVersion:     "1",
		DeprecatedVersions: make(map[string]time.Time),
	}
}

// version sets the API-Version response header, plus Deprecation/Sunset
// (RFC 8594) when the current version has been marked deprecated.
func version(cfg versionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("API-Version", cfg.CurrentVersion)
			if sunset, deprecated := cfg.DeprecatedVersions[cfg.CurrentVersion]; deprecated {
				w.Header().Set("Deprecation", "true")
				w.Header().Set("Sunset", sunset.Format(http.TimeFormat))
			}
			next.ServeHTTP(w, r)
		})
	}
}
