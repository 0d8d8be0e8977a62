package main

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/vyrodovalexey/tenantgate/internal/authz"
	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/gateway"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
	"github.com/vyrodovalexey/tenantgate/internal/session"
	"github.com/vyrodovalexey/tenantgate/internal/stream"
	"github.com/vyrodovalexey/tenantgate/internal/upload"
	"github.com/vyrodovalexey/tenantgate/internal/validate"
)

// settingsTemplate is the accepted shape of a tenant settings update.
var settingsTemplate = validate.Object{
	"name":        validate.String,
	"contact":     validate.EmailPattern,
	"maintenance": validate.Bool,
}

// buildRoutes declares the node's gated endpoints.
func buildRoutes(cfg *config.Config, assembler *upload.Assembler, sessions session.Registry, gate *authz.Gate, logger observability.Logger) []gateway.Route {
	anyRole := []string{session.RoleAdmin, session.RoleReceiver, session.RoleCustodian, session.RoleWhistleblower}

	return []gateway.Route{
		{
			Name:              "session_info",
			Method:            "GET",
			Path:              "/api/v1/session",
			Roles:             anyRole,
			UniformAnswerTime: true,
			Handler:           sessionInfoHandler,
		},
		{
			Name:              "session_logout",
			Method:            "DELETE",
			Path:              "/api/v1/session",
			Roles:             anyRole,
			UniformAnswerTime: true,
			Handler:           logoutHandler(sessions),
		},
		{
			Name:                  "settings_update",
			Method:                "POST",
			Path:                  "/api/v1/settings",
			Roles:                 []string{session.RoleAdmin, session.RoleReceiver},
			BodyTemplate:          settingsTemplate,
			InvalidateTenantState: true,
			RootTenantOnly:        true,
			Handler:               settingsUpdateHandler(gate),
		},
		{
			Name:          "file_upload",
			Method:        "POST",
			Path:          "/api/v1/files",
			Roles:         []string{authz.RoleAny},
			UploadHandler: true,
			Handler:       uploadHandler(cfg, assembler, logger),
		},
		{
			Name:    "file_download",
			Method:  "GET",
			Path:    "/api/v1/files/{name}",
			Roles:   []string{session.RoleAdmin, session.RoleReceiver},
			Handler: downloadHandler(cfg),
		},
		{
			Name:            "static_file",
			Method:          "GET",
			Path:            "/static/{name}",
			Roles:           []string{authz.RoleAny},
			BypassBasicAuth: true,
			Handler:         staticHandler(cfg),
		},
	}
}

// sessionInfoHandler reports the caller's identity.
func sessionInfoHandler(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"tenant_id": rc.Session.TenantID,
		"user_id":   rc.Session.UserID,
		"role":      rc.Session.Role,
	})
}

// logoutHandler destroys the caller's session.
func logoutHandler(sessions session.Registry) gateway.Handler {
	return func(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
		if err := sessions.Delete(r.Context(), rc.Session.ID); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

// settingsUpdateHandler acknowledges a sanitized settings payload. The
// pipeline refreshes the tenant snapshot after this returns. Receivers
// need the explicit permission flag on their user record.
func settingsUpdateHandler(gate *authz.Gate) gateway.Handler {
	return func(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
		if err := gate.CanEditGeneralSettings(r.Context(), rc.Session); err != nil {
			return err
		}

		w.Header().Set("Content-Type", "application/json")
		return json.NewEncoder(w).Encode(rc.Payload)
	}
}

// uploadHandler persists a completed upload to the attachments
// directory and answers with its descriptor.
func uploadHandler(cfg *config.Config, assembler *upload.Assembler, logger observability.Logger) gateway.Handler {
	return func(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
		if rc.Upload == nil {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		if rc.Upload.Body.Sealed() {
			destination := filepath.Join(cfg.AttachmentsPath, rc.Upload.Filename)
			if err := assembler.WritePlaintextToDisk(rc.Upload, destination); err != nil {
				assembler.Release(rc.Upload.FlowID)
				return err
			}
			assembler.Release(rc.Upload.FlowID)

			logger.Info("upload persisted",
				observability.Int64("tenant_id", rc.TenantID),
				observability.String("name", rc.Upload.Name),
				observability.Int64("size", rc.Upload.Size))
		}

		w.Header().Set("Content-Type", "application/json")
		return json.NewEncoder(w).Encode(map[string]any{
			"name": rc.Upload.Name,
			"type": rc.Upload.Type,
			"size": rc.Upload.Size,
		})
	}
}

// downloadHandler forces a download of a previously assembled upload.
func downloadHandler(cfg *config.Config) gateway.Handler {
	return func(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
		name := filepath.Base(r.PathValue("name"))
		path := filepath.Join(cfg.AttachmentsPath, name)

		done, err := stream.ForceFileDownload(r.Context(), w, name, path,
			stream.WithBlockSize(cfg.FileChunkSize))
		if err != nil {
			return err
		}
		<-done
		return nil
	}
}

// staticHandler serves public assets, honoring pre-compressed files.
func staticHandler(cfg *config.Config) gateway.Handler {
	return func(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
		name := filepath.Base(r.PathValue("name"))
		path := filepath.Join(cfg.FilesPath, name)

		done, err := stream.WriteFile(r.Context(), w, name, path,
			stream.WithBlockSize(cfg.FileChunkSize))
		if err != nil {
			return err
		}
		<-done
		return nil
	}
}
