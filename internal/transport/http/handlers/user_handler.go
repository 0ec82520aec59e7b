package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/enigmateam/lovewidget/internal/service"
	"github.com/enigmateam/lovewidget/internal/transport/http/middleware"
	"github.com/enigmateam/lovewidget/internal/upload"
	"github.com/enigmateam/lovewidget/pkg/validator"
)

const maxUploadSize = 10 << 20 // 10 MiB

type UserHandler struct {
	userService *service.UserService
	uploads     *upload.Store
	log         *zap.SugaredLogger
}

func NewUserHandler(userService *service.UserService, uploads *upload.Store, log *zap.SugaredLogger) *UserHandler {
	return &UserHandler{userService: userService, uploads: uploads, log: log}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userService.GetMe(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			h.log.Errorw("get me", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) EditUsername(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateUsername(input.Username); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.userService.EditUsername(r.Context(), userID, input.Username)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			h.log.Errorw("edit username", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "An image file is required")
		return
	}
	defer file.Close()

	filename, err := h.uploads.Save(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FILE", err.Error())
		return
	}

	user, err := h.userService.UpdateProfileImage(r.Context(), userID, filename)
	if err != nil {
		if rmErr := h.uploads.Remove(filename); rmErr != nil {
			h.log.Warnw("removing rejected upload", "error", rmErr)
		}
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			h.log.Errorw("update profile image", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	code := r.PathValue("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "INVALID_CODE", "A friend code is required")
		return
	}

	user, err := h.userService.AddFriend(r.Context(), userID, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrFriendNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No user with that code")
		case errors.Is(err, service.ErrOwnCode):
			writeError(w, http.StatusBadRequest, "OWN_CODE", "You cannot add yourself")
		case errors.Is(err, service.ErrAlreadyFriends):
			writeError(w, http.StatusConflict, "ALREADY_FRIENDS", "Already on your friend list")
		default:
			h.log.Errorw("add friend", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ShowFriends(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	friends, err := h.userService.ShowFriends(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			h.log.Errorw("show friends", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, friends)
}

func (h *UserHandler) DeleteFriend(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	friendID, err := uuid.Parse(r.PathValue("friendId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid friend ID")
		return
	}

	if err := h.userService.DeleteFriend(r.Context(), userID, friendID); err != nil {
		if errors.Is(err, service.ErrFriendNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Friend not found")
		} else {
			h.log.Errorw("delete friend", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "INVALID_CODE", "A friend code is required")
		return
	}

	user, err := h.userService.SearchByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No user with that code")
		} else {
			h.log.Errorw("search", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) SendNotif(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.userService.SendTestNotif(r.Context(), userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			h.log.Errorw("send notif", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
