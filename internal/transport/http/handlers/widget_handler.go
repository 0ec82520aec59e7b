package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/enigmateam/lovewidget/internal/domain"
	"github.com/enigmateam/lovewidget/internal/service"
	"github.com/enigmateam/lovewidget/internal/transport/http/middleware"
	"github.com/enigmateam/lovewidget/internal/upload"
	"github.com/enigmateam/lovewidget/pkg/validator"
)

type WidgetHandler struct {
	widgetService   *service.WidgetService
	contentService  *service.ContentService
	reactionService *service.ReactionService
	timelineService *service.TimelineService
	uploads         *upload.Store
	log             *zap.SugaredLogger
}

func NewWidgetHandler(
	widgetService *service.WidgetService,
	contentService *service.ContentService,
	reactionService *service.ReactionService,
	timelineService *service.TimelineService,
	uploads *upload.Store,
	log *zap.SugaredLogger,
) *WidgetHandler {
	return &WidgetHandler{
		widgetService:   widgetService,
		contentService:  contentService,
		reactionService: reactionService,
		timelineService: timelineService,
		uploads:         uploads,
		log:             log,
	}
}

func (h *WidgetHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateWidgetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateWidgetName(input.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	widget, err := h.widgetService.Create(r.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrPartnerNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Partner not found")
		default:
			h.log.Errorw("create widget", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, widget)
}

func (h *WidgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	widgetID, err := uuid.Parse(r.PathValue("widgetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid widget ID")
		return
	}

	widget, err := h.widgetService.Delete(r.Context(), userID, widgetID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrWidgetNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Widget not found")
		default:
			h.log.Errorw("delete widget", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, widget)
}

func (h *WidgetHandler) Home(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	summaries, err := h.timelineService.Home(r.Context(), userID)
	if err != nil {
		h.log.Errorw("home", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

func (h *WidgetHandler) Single(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	widgetID, err := uuid.Parse(r.PathValue("widgetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid widget ID")
		return
	}

	summary, err := h.timelineService.Single(r.Context(), userID, widgetID)
	if err != nil {
		if errors.Is(err, service.ErrWidgetNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Widget not found")
		} else {
			h.log.Errorw("single widget", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *WidgetHandler) AppHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	widgetID, err := uuid.Parse(r.PathValue("widgetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid widget ID")
		return
	}

	groups, err := h.timelineService.AppHistory(r.Context(), userID, widgetID)
	if err != nil {
		if errors.Is(err, service.ErrWidgetNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Widget not found")
		} else {
			h.log.Errorw("app history", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, groups)
}

func (h *WidgetHandler) WidgetHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	widgetID, err := uuid.Parse(r.PathValue("widgetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid widget ID")
		return
	}

	contents, err := h.timelineService.WidgetHistory(r.Context(), userID, widgetID)
	if err != nil {
		if errors.Is(err, service.ErrWidgetNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Widget not found")
		} else {
			h.log.Errorw("widget history", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, contents)
}

func (h *WidgetHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	widgetID, err := uuid.Parse(r.PathValue("widgetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid widget ID")
		return
	}

	var input struct {
		FriendID string `json:"friend_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	friendID, err := uuid.Parse(input.FriendID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid friend ID")
		return
	}

	widget, err := h.widgetService.AddMember(r.Context(), userID, widgetID, friendID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWidgetNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Widget not found")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrAlreadyMember):
			writeError(w, http.StatusConflict, "ALREADY_MEMBER", "User is already a member")
		case errors.Is(err, service.ErrWidgetFull):
			writeError(w, http.StatusConflict, "WIDGET_FULL", "Widget already has two members")
		default:
			h.log.Errorw("add user", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, widget)
}

func (h *WidgetHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	widgetID, err := uuid.Parse(r.PathValue("widgetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid widget ID")
		return
	}
	contentID, err := uuid.Parse(r.PathValue("contentId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid content ID")
		return
	}

	var input struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateReactionType(input.Type); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	widget, err := h.reactionService.Toggle(r.Context(), userID, widgetID, contentID, domain.ReactionType(input.Type))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidReactionType):
			writeError(w, http.StatusBadRequest, "INVALID_TYPE", "Unknown reaction type")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrWidgetNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Widget not found")
		case errors.Is(err, service.ErrContentNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Content not found")
		case errors.Is(err, service.ErrOwnContent):
			writeError(w, http.StatusBadRequest, "OWN_CONTENT", "You cannot react to your own content")
		default:
			h.log.Errorw("add reaction", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, widget)
}

func (h *WidgetHandler) ShowReaction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	widgetID, err := uuid.Parse(r.PathValue("widgetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid widget ID")
		return
	}
	contentID, err := uuid.Parse(r.PathValue("contentId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid content ID")
		return
	}

	reactions, err := h.reactionService.ShowReactions(r.Context(), userID, widgetID, contentID)
	if err != nil {
		if errors.Is(err, service.ErrWidgetNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Widget not found")
		} else {
			h.log.Errorw("show reaction", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusOK, reactions)
}

func (h *WidgetHandler) AddContent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	widgetID, err := uuid.Parse(r.PathValue("widgetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid widget ID")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Invalid multipart form")
		return
	}

	contentType := r.FormValue("type")
	if errs := validator.ValidateContentType(contentType); errs.HasErrors() {
		writeValidationErrors(w, errs)
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

	widget, err := h.contentService.AddContent(r.Context(), userID, widgetID, domain.ContentType(contentType), filename)
	if err != nil {
		// The rejected request must not leave its upload behind.
		if rmErr := h.uploads.Remove(filename); rmErr != nil {
			h.log.Warnw("removing rejected upload", "error", rmErr)
		}
		switch {
		case errors.Is(err, service.ErrInvalidContentType):
			writeError(w, http.StatusBadRequest, "INVALID_TYPE", "Unknown content type")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrWidgetNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Widget not found")
		default:
			h.log.Errorw("add content", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, widget)
}

func (h *WidgetHandler) MissYou(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	widgetID, err := uuid.Parse(r.PathValue("widgetId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid widget ID")
		return
	}

	widget, err := h.contentService.MissYou(r.Context(), userID, widgetID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		case errors.Is(err, service.ErrWidgetNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Widget not found")
		default:
			h.log.Errorw("miss you", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, widget)
}
