package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"chatdb/pkg/assets"
	"chatdb/pkg/directory"
	"chatdb/pkg/identity"
	"chatdb/pkg/metrics"
	"chatdb/pkg/models"
	"chatdb/pkg/utils"
	"chatdb/pkg/validation"
)

const maxAvatarBytes = 5 << 20

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// registerUser handles POST /v1/users: seeds the user record and adds
// the user to the flat registry. Registration happens once per account;
// records are never mutated afterwards.
func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateRegistration(req.FirstName, req.LastName, req.Email); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Sync.RegisterUser(req.FirstName, req.LastName, req.Email); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.UsersRegistered.Inc()
	_ = utils.JSONWrite(w, http.StatusCreated, map[string]string{
		"email":     req.Email,
		"formatted": identity.FormatKey(req.Email),
	})
}

// listUsers handles GET /v1/users.
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Dir.ListAll()
	if err != nil {
		if errors.Is(err, directory.ErrFetch) {
			_ = utils.JSONWrite(w, http.StatusOK, map[string][]models.DirectoryEntry{"users": {}})
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string][]models.DirectoryEntry{"users": entries})
}

// searchUsers handles GET /v1/users/search?q=<prefix>. The requester
// (X-User-Email) is excluded from the results.
func (h *Handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		utils.JSONError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}
	matches, err := h.Dir.FindByPrefix(q, r.Header.Get("X-User-Email"))
	if err != nil {
		if errors.Is(err, directory.ErrFetch) {
			_ = utils.JSONWrite(w, http.StatusOK, map[string][]models.DirectoryEntry{"users": {}})
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []models.DirectoryEntry{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string][]models.DirectoryEntry{"users": matches})
}

// uploadAvatar handles POST /v1/users/{email}/avatar with the raw PNG
// bytes as the request body.
func (h *Handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]
	data, err := io.ReadAll(io.LimitReader(r.Body, maxAvatarBytes+1))
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(data) == 0 || len(data) > maxAvatarBytes {
		utils.JSONError(w, http.StatusBadRequest, "avatar must be between 1 byte and 5MB")
		return
	}
	path := assets.ProfilePicturePath(identity.FormatKey(email))
	if err := h.Assets.Upload(path, data); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, map[string]string{"path": path})
}

// resolveAvatar handles GET /v1/users/{email}/avatar.
func (h *Handler) resolveAvatar(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]
	path := assets.ProfilePicturePath(identity.FormatKey(email))
	url, err := h.Assets.ResolveDownloadLocation(path)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "no avatar uploaded")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"url": url})
}
