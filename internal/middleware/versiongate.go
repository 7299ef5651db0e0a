package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/aws-samples/bedrock-chat-router/internal/httperr"
	"github.com/aws-samples/bedrock-chat-router/internal/versionpolicy"
)

var versionGateBypassPrefixes = []string{"/health/", "/v1/update/"}

func versionGateBypass(path string) bool {
	if path == "/health" || path == "/ready" {
		return true
	}
	for _, p := range versionGateBypassPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// VersionGate rejects clients below the published minimum version, unless
// one of the bypass conditions in spec §4.1 applies.
func VersionGate(policy *versionpolicy.Cache, distributionDomain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if versionGateBypass(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			clientVersion := r.Header.Get("X-Client-Version")
			if clientVersion == "" || clientVersion == "dev" {
				next.ServeHTTP(w, r)
				return
			}

			minimum := policy.Minimum(r.Context())
			if minimum == "" {
				next.ServeHTTP(w, r)
				return
			}

			satisfies, ok := versionpolicy.Satisfies(clientVersion, minimum)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if satisfies {
				next.ServeHTTP(w, r)
				return
			}

			message := fmt.Sprintf("client version %s is below the minimum supported version %s", clientVersion, minimum)
			if distributionDomain != "" {
				message += fmt.Sprintf("; download the latest release from %s", distributionDomain)
			}

			httperr.Write(w, http.StatusUpgradeRequired, message, "version_error", "client_outdated", map[string]any{
				"minimum_version": minimum,
				"your_version":    clientVersion,
				"update_command":  "self-update",
			})
		})
	}
}
