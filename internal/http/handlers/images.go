package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// @Summary Upload image
// @Description Store an outlet or product photo for the signed-in user
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image"
// @Param name formData string true "File name base, e.g. front"
// @Success 201 {object} storage.Object
// @Failure 400 {object} map[string]any
// @Failure 413 {object} map[string]any
// @Router /api/images [post]
func (h *Handler) UploadImage(c *gin.Context) {
	if h.Images == nil {
		writeError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Image storage is not configured", nil)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file required", nil)
		return
	}
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "name required", nil)
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		writeError(c, http.StatusBadRequest, "INVALID_FILE", "Please select an image file", contentType)
		return
	}
	if h.MaxUploadBytes > 0 && file.Size > h.MaxUploadBytes {
		writeError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Image is too large", gin.H{
			"size":  file.Size,
			"limit": h.MaxUploadBytes,
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_FILE", "Could not read file", err.Error())
		return
	}
	defer src.Close()

	ctx, cancel := h.requestContext(c)
	defer cancel()
	obj, err := h.Images.Upload(ctx, session(c).UserID, name, contentType, src)
	if err != nil {
		h.Logger.Error().Err(err).Str("name", name).Msg("image upload failed")
		writeError(c, http.StatusBadGateway, "UPLOAD_FAILED", "Failed to upload image", err.Error())
		return
	}
	c.JSON(http.StatusCreated, obj)
}
