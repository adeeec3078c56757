package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/botdash/botdash/internal/intake"
	"github.com/botdash/botdash/internal/uploader"
	"github.com/botdash/botdash/pkg/middleware"
)

type rejectedFile struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// RegisterResourceRoutes mounts POST /resources, which validates the multipart
// "files" parts and stores the accepted ones under the caller's id. up may be
// nil when no object store is configured. maxBytes caps the request body.
// authed must resolve the caller.
func RegisterResourceRoutes(r gin.IRouter, up *uploader.Uploader, authed gin.HandlersChain, maxBytes int64) {
	g := r.Group("/resources", authed...)
	g.POST("", func(c *gin.Context) {
		if up == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage not configured"})
			return
		}
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
			return
		}
		caller, _ := middleware.CallerFrom(c)

		files := make([]intake.File, 0, len(form.File["files"]))
		for _, fh := range form.File["files"] {
			files = append(files, fromHeader(fh))
		}
		accepted, rejections := intake.Validate(files, nil)
		rejected := make([]rejectedFile, 0, len(rejections))
		for _, rej := range rejections {
			rejected = append(rejected, rejectedFile{File: rej.File.Name, Reason: rej.Message()})
		}

		paths, err := up.Upload(c.Request.Context(), caller.ID, accepted)
		if err != nil {
			internalError(c, "upload resources", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"paths": paths, "rejected": rejected})
	})
}

func fromHeader(fh *multipart.FileHeader) intake.File {
	return intake.File{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}
