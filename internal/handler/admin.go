package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/mockinterview/internal/handler/views"
	appI18n "github.com/pavelanni/mockinterview/internal/i18n"
	"github.com/pavelanni/mockinterview/internal/model"
)

const maxUploadBytes = 10 << 20

func (h *Handler) adminRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Get("/login", h.handleLoginPage)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/", h.handleHistoryPage)
			r.Get("/export", h.handleExport)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Get("/challenges", h.handleAdminChallengesPage)
				r.Post("/challenges", h.handleUploadChallenges)
				r.Get("/users", h.handleAdminUsersPage)
				r.Post("/users", h.handleCreateUser)
				r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
			})
		})
	})
}

func (h *Handler) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	history, err := h.store.ExportHistory()
	if err != nil {
		slog.Error("failed to load history", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.HistoryPage(history, "").Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	history, err := h.store.ExportHistory()
	if err != nil {
		slog.Error("failed to export history", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	export := model.HistoryExport{
		ExportedAt: time.Now().UTC(),
		Count:      len(history),
		Interviews: history,
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="interviews-%s.json"`, export.ExportedAt.Format("20060102-150405")))
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) renderChallengesPage(w http.ResponseWriter, r *http.Request, status int, msg string, isErr bool) {
	bank, err := h.store.ListBankChallenges("", "")
	if err != nil {
		slog.Error("failed to list bank challenges", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.AdminChallengesPage(msg, isErr, bank).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleAdminChallengesPage(w http.ResponseWriter, r *http.Request) {
	h.renderChallengesPage(w, r, http.StatusOK, "", false)
}

// handleUploadChallenges imports a JSON file of challenges into the bank.
// A file whose content was already imported under the same name is skipped.
func (h *Handler) handleUploadChallenges(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.renderChallengesPage(w, r, http.StatusBadRequest, "file too large", true)
		return
	}

	file, header, err := r.FormFile("challenges_file")
	if err != nil {
		h.renderChallengesPage(w, r, http.StatusBadRequest, "no file uploaded", true)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])

	storedHash, err := h.store.GetImportedFileHash(header.Filename)
	if err != nil {
		slog.Error("failed to check import status", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if storedHash == hash {
		h.renderChallengesPage(w, r, http.StatusOK, appI18n.T(r.Context(), "UploadDuplicate"), true)
		return
	}

	var items []model.ChallengeImport
	if err := json.Unmarshal(data, &items); err != nil {
		h.renderChallengesPage(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error(), true)
		return
	}
	n, err := h.store.ImportBankChallenges(items)
	if err != nil {
		h.renderChallengesPage(w, r, http.StatusBadRequest, err.Error(), true)
		return
	}
	if err := h.store.SetImportedFileHash(header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	slog.Info("uploaded challenges via admin", "filename", header.Filename, "count", n)
	h.renderChallengesPage(w, r, http.StatusOK, appI18n.Tp(r.Context(), "BankImported", n), false)
}

func (h *Handler) handleAdminUsersPage(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.AdminUsersPage(users, "").Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	displayName := r.FormValue("display_name")
	password := r.FormValue("password")
	role := model.UserRole(r.FormValue("role"))

	if username == "" || password == "" {
		http.Error(w, "username and password required", http.StatusBadRequest)
		return
	}
	if role != model.UserRoleAdmin && role != model.UserRoleReviewer {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if displayName == "" {
		displayName = username
	}

	_, err = h.store.CreateUser(model.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		slog.Error("failed to create user", "error", err)
		http.Error(w, "failed to create user: "+err.Error(), http.StatusConflict)
		return
	}

	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}
	if me := model.UserFromContext(r.Context()); me != nil && me.ID == id {
		http.Error(w, "cannot deactivate yourself", http.StatusBadRequest)
		return
	}

	if err := h.store.ToggleUserActive(id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}
