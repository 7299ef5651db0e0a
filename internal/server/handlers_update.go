package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/aws-samples/bedrock-chat-router/internal/distribution"
	"github.com/aws-samples/bedrock-chat-router/internal/httperr"
)

const presignTTL = 1 * time.Hour

var installerKeyByPlatform = map[string]string{
	"linux":   "downloads/opencode-installer-linux.zip",
	"darwin":  "downloads/opencode-installer-macos.zip",
	"windows": "downloads/opencode-installer-windows.zip",
}

const defaultInstallerKey = "downloads/opencode-installer.zip"

// DownloadURL implements GET /v1/update/download-url: a presigned, bounded
// expiry S3 URL for the installer package matching ?platform=, or the
// generic installer if platform is absent or unrecognized.
func (s *Server) DownloadURL(w http.ResponseWriter, r *http.Request) {
	key := defaultInstallerKey
	if platform := r.URL.Query().Get("platform"); platform != "" {
		if k, ok := installerKeyByPlatform[platform]; ok {
			key = k
		}
	}

	url, err := s.distribution.PresignDownload(r.Context(), key, presignTTL)
	if err != nil {
		httperr.Write(w, http.StatusInternalServerError, "failed to generate download URL", "server_error", "presign_failed", nil)
		return
	}

	httperr.JSON(w, http.StatusOK, map[string]any{
		"url":        url,
		"expires_in": int(presignTTL.Seconds()),
	})
}

// UpdateConfig implements GET /v1/update/config: a published config patch,
// or 404 if the distribution bucket has none.
func (s *Server) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	body, err := s.distribution.FetchConfigPatch(r.Context())
	if err != nil {
		if errors.Is(err, distribution.ErrNoConfigPatch) {
			httperr.Write(w, http.StatusNotFound, "no config patch published", "not_found", "config_not_found", nil)
			return
		}
		httperr.Write(w, http.StatusInternalServerError, "failed to fetch config patch", "server_error", "store_unavailable", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body) //nolint:errcheck
}
