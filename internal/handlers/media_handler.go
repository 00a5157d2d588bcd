package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/feniix/family-gallery-sub002/internal/auth"
	"github.com/feniix/family-gallery-sub002/internal/catalog"
	"github.com/feniix/family-gallery-sub002/internal/services"
	"github.com/feniix/family-gallery-sub002/internal/users"
	"github.com/feniix/family-gallery-sub002/internal/utils"
)

type Handler struct {
	verifier auth.Verifier
	users    *users.Store
	media    *services.MediaService
	urls     *services.URLService
	log      *zap.SugaredLogger
}

func NewHandler(v auth.Verifier, u *users.Store, media *services.MediaService, urls *services.URLService, log *zap.SugaredLogger) *Handler {
	return &Handler{verifier: v, users: u, media: media, urls: urls, log: log}
}

func (h *Handler) Register(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	media := app.Group("/api/media")
	media.Post("/upload", h.Upload)
	media.Post("/upload-url", h.UploadURL)
	media.Post("/check-duplicate", h.CheckDuplicate)
	media.Post("/urls/batch", h.BatchURLs)
	media.Get("/", h.List)
	media.Get("/:id/url", h.GetSignedURL)
	media.Patch("/:id", h.EditRecord)

	admin := app.Group("/api/admin/users")
	admin.Get("/", h.ListUsers)
	admin.Post("/cleanup", h.CleanupUsers)
	admin.Post("/:id/approve", h.ApproveUser)
	admin.Post("/:id/suspend", h.SuspendUser)
	admin.Post("/:id/role", h.SetUserRole)
}

var (
	errMissingAuth = errors.New("missing auth")
	errSuspended   = errors.New("account suspended")
)

// authenticate verifies the bearer token and resolves the account,
// creating a pending guest on first sight.
func (h *Handler) authenticate(c *fiber.Ctx) (users.User, error) {
	token := c.Get("Authorization")
	if token == "" {
		return users.User{}, errMissingAuth
	}
	token = strings.TrimPrefix(token, "Bearer ")
	ident, err := h.verifier.Verify(token)
	if err != nil {
		return users.User{}, err
	}
	user, err := h.users.EnsureUser(c.Context(), ident.ID, ident.Email, "")
	if err != nil {
		return users.User{}, err
	}
	if user.Status == users.StatusSuspended {
		return users.User{}, errSuspended
	}
	return user, nil
}

func (h *Handler) unauthorized(c *fiber.Ctx, err error) error {
	if errors.Is(err, errSuspended) {
		return utils.JSONError(c, fiber.StatusForbidden, err.Error())
	}
	return utils.JSONError(c, fiber.StatusUnauthorized, "invalid or missing token")
}

// POST /api/media/upload (multipart/form-data 'file')
func (h *Handler) Upload(c *fiber.Ctx) error {
	user, err := h.authenticate(c)
	if err != nil {
		return h.unauthorized(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "file missing")
	}
	if err := utils.ValidateFileHeader(fileHeader); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, err.Error())
	}
	f, err := fileHeader.Open()
	if err != nil {
		return utils.JSONError(c, fiber.StatusInternalServerError, "cannot open file")
	}
	defer f.Close()
	data := make([]byte, fileHeader.Size)
	if _, err := io.ReadFull(f, data); err != nil {
		return utils.JSONError(c, fiber.StatusInternalServerError, "cannot read file")
	}

	ct := fileHeader.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}

	rec, err := h.media.Upload(c.Context(), user.ID, fileHeader.Filename, ct, data)
	if err != nil {
		var dup *services.DuplicateError
		switch {
		case errors.As(err, &dup):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"status":          "error",
				"message":         "duplicate content",
				"existing_record": dup.Existing,
			})
		case errors.Is(err, services.ErrUnsupportedType):
			return utils.JSONError(c, fiber.StatusBadRequest, err.Error())
		default:
			h.log.Errorw("upload failed", "file", fileHeader.Filename, "error", err)
			return utils.JSONError(c, fiber.StatusInternalServerError, "upload failed")
		}
	}
	return utils.JSONSuccess(c, fiber.StatusCreated, rec)
}

// POST /api/media/upload-url {"file_name": "...", "content_type": "..."}
func (h *Handler) UploadURL(c *fiber.Ctx) error {
	user, err := h.authenticate(c)
	if err != nil {
		return h.unauthorized(c, err)
	}

	var body struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		TTLSeconds  int    `json:"ttl_seconds"`
	}
	if err := c.BodyParser(&body); err != nil || body.FileName == "" || body.ContentType == "" {
		return utils.JSONError(c, fiber.StatusBadRequest, "file_name and content_type required")
	}

	ticket, err := h.urls.IssueUpload(c.Context(), user, body.FileName, body.ContentType, time.Duration(body.TTLSeconds)*time.Second)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedType) {
			return utils.JSONError(c, fiber.StatusBadRequest, err.Error())
		}
		h.log.Errorw("upload ticket failed", "error", err)
		return utils.JSONError(c, fiber.StatusInternalServerError, "system unavailable")
	}
	return utils.JSONSuccess(c, fiber.StatusOK, ticket)
}

// GET /api/media/:id/url?variant=original|thumbnail&ttl=seconds
func (h *Handler) GetSignedURL(c *fiber.Ctx) error {
	user, err := h.authenticate(c)
	if err != nil {
		return h.unauthorized(c, err)
	}

	id := c.Params("id")
	variant := c.Query("variant", "original")
	ttl := time.Duration(c.QueryInt("ttl", 0)) * time.Second

	signed, err := h.urls.Issue(c.Context(), user, id, variant, ttl)
	if err != nil {
		return h.issueError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, signed)
}

// POST /api/media/urls/batch
func (h *Handler) BatchURLs(c *fiber.Ctx) error {
	user, err := h.authenticate(c)
	if err != nil {
		return h.unauthorized(c, err)
	}

	var body struct {
		Requests []services.BatchRequest `json:"requests"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "malformed batch payload")
	}

	res, err := h.urls.IssueBatch(c.Context(), user, body.Requests)
	if err != nil {
		if errors.Is(err, services.ErrInvalidBatch) {
			return utils.JSONError(c, fiber.StatusBadRequest, err.Error())
		}
		h.log.Errorw("batch issuance failed", "error", err)
		return utils.JSONError(c, fiber.StatusInternalServerError, "batch issuance failed")
	}
	// per-item failures are carried in the payload; the batch call
	// itself succeeded
	return utils.JSONSuccess(c, fiber.StatusOK, res)
}

// POST /api/media/check-duplicate (raw content bytes)
func (h *Handler) CheckDuplicate(c *fiber.Ctx) error {
	if _, err := h.authenticate(c); err != nil {
		return h.unauthorized(c, err)
	}

	data := c.Body()
	if len(data) == 0 {
		return utils.JSONError(c, fiber.StatusBadRequest, "empty body")
	}
	res, err := h.media.CheckDuplicate(c.Context(), data, c.Get("X-File-Name"))
	if err != nil {
		h.log.Errorw("duplicate check failed", "error", err)
		return utils.JSONError(c, fiber.StatusInternalServerError, "duplicate check failed")
	}
	return utils.JSONSuccess(c, fiber.StatusOK, res)
}

// GET /api/media?year=2023
func (h *Handler) List(c *fiber.Ctx) error {
	user, err := h.authenticate(c)
	if err != nil {
		return h.unauthorized(c, err)
	}

	year := c.QueryInt("year", time.Now().UTC().Year())
	recs, err := h.media.ListYear(c.Context(), user, year)
	if err != nil {
		h.log.Errorw("list failed", "year", year, "error", err)
		return utils.JSONError(c, fiber.StatusInternalServerError, "list failed")
	}
	return utils.JSONSuccess(c, fiber.StatusOK, recs)
}

// PATCH /api/media/:id {"tags": [...], "visibility": "..."}
func (h *Handler) EditRecord(c *fiber.Ctx) error {
	user, err := h.authenticate(c)
	if err != nil {
		return h.unauthorized(c, err)
	}

	var body struct {
		Tags       []string `json:"tags"`
		Visibility *string  `json:"visibility"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, "malformed payload")
	}
	var vis *catalog.Visibility
	if body.Visibility != nil {
		v, err := catalog.ParseVisibility(*body.Visibility)
		if err != nil {
			return utils.JSONError(c, fiber.StatusBadRequest, err.Error())
		}
		vis = &v
	}

	rec, err := h.media.Edit(c.Context(), user, c.Params("id"), body.Tags, vis)
	if err != nil {
		return h.issueError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, rec)
}

// issueError maps typed service errors onto transport status codes so
// callers can tell not-found from not-authorized from unavailable.
func (h *Handler) issueError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, catalog.ErrRecordNotFound), errors.Is(err, catalog.ErrUnknownVariant):
		return utils.JSONError(c, fiber.StatusNotFound, "not found")
	case errors.Is(err, services.ErrForbidden):
		return utils.JSONError(c, fiber.StatusForbidden, "not authorized")
	default:
		h.log.Errorw("request failed", "error", err)
		return utils.JSONError(c, fiber.StatusInternalServerError, "system unavailable")
	}
}
