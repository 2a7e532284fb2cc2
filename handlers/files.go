package handlers

import (
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skillmatch/auth-service/internal/storage"
	"github.com/skillmatch/auth-service/pkg/logger"
	"github.com/skillmatch/auth-service/pkg/middleware"
)

const maxUploadBytes = 10 << 20 // 10 MiB

// FilesHandler serves user uploads (resumes, avatars) backed by the object
// store. Keys are namespaced per user so one account cannot address
// another's objects.
type FilesHandler struct {
	store *storage.ObjectStore
}

func NewFilesHandler(store *storage.ObjectStore) *FilesHandler {
	return &FilesHandler{store: store}
}

// Register routes under /files; all require authentication.
func (h *FilesHandler) Register(rg *gin.RouterGroup, authRequired gin.HandlerFunc) {
	f := rg.Group("/files", authRequired)
	f.POST("", h.Upload)
	f.GET("/:name/url", h.PresignedURL)
	f.DELETE("/:name", h.Delete)
}

// Upload stores a multipart file under the caller's namespace and returns
// its locator and name.
func (h *FilesHandler) Upload(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer src.Close()

	name := uuid.NewString() + "_" + path.Base(file.Filename)
	key := objectKey(userID, name)
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	locator, err := h.store.Put(c.Request.Context(), key, src, file.Size, contentType, map[string]string{"owner": userID})
	if err != nil {
		logger.Errorf("upload failed for user=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": name, "locator": locator, "size": file.Size})
}

// PresignedURL returns a short-lived GET URL for one of the caller's files.
func (h *FilesHandler) PresignedURL(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	key := objectKey(userID, c.Param("name"))

	ok, err := h.store.Exists(c.Request.Context(), key)
	if err != nil {
		logger.Errorf("stat failed for key=%s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	ttl := 15 * time.Minute
	if raw := c.Query("ttl"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 && d <= time.Hour {
			ttl = d
		}
	}
	url, err := h.store.Presign(c.Request.Context(), key, ttl)
	if err != nil {
		logger.Errorf("presign failed for key=%s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(ttl / time.Second)})
}

// Delete removes one of the caller's files. Deleting a missing file is 404.
func (h *FilesHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	key := objectKey(userID, c.Param("name"))

	ok, err := h.store.Exists(c.Request.Context(), key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Errorf("stat failed for key=%s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if err := h.store.Delete(c.Request.Context(), key); err != nil {
		logger.Errorf("delete failed for key=%s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "file deleted"})
}

// objectKey namespaces object names under the owning user; path traversal in
// the name collapses to its base element.
func objectKey(userID, name string) string {
	return userID + "/" + path.Base(strings.TrimSpace(name))
}
