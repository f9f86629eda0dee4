package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kentsikayet/portal/internal/storage"
)

// PhotosPath is where stored resolution photos are served from.
const PhotosPath = "/photos"

// RegisterPhotos serves stored photos at PhotosPath/<key>.
func RegisterPhotos(r *gin.Engine, photos storage.PhotoStore) {
	r.GET(PhotosPath+"/*key", func(c *gin.Context) {
		key := strings.TrimPrefix(path.Clean(c.Param("key")), "/")
		if key == "" || key == "." || !strings.HasPrefix(key, "complaints/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		rc, err := photos.Open(c.Request.Context(), key)
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if err != nil {
			log.Errorf("open photo %s: %v", key, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "photo storage unavailable"})
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		c.Header("Content-Type", ct)
		c.Header("Cache-Control", "public, max-age=86400")
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, rc); err != nil {
			log.Warnf("send photo %s: %v", key, err)
		}
	})
}
