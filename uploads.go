package main

import (
	"bytes"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/utils"
)

const maxUploadSizeBytes int64 = 10 * 1024 * 1024

var deliverableMimeTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"application/zip": true,
	"image/jpeg":      true,
	"image/png":       true,
}

var logoMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// submitDeliverableHandler accepts either a multipart upload (form field
// "file") or a JSON body carrying a pre-uploaded file_ref, then runs the
// scoring flow.
func submitDeliverableHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskId, ok := intParam(c, "id")
		if !ok {
			return
		}
		task, err := models.GetTaskInstance(c.Request.Context(), taskId)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		if _, ok := ownedStartup(c, task.StartupId); !ok {
			return
		}

		fileRef, ok := resolveFileRef(c)
		if !ok {
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "roadmap.submitDeliverable")
		result, err := roadmapEngine.SubmitDeliverable(ctx, taskId, fileRef)
		span.End()
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func resolveFileRef(c *gin.Context) (string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		// no upload; fall back to a reference in the JSON body
		var input struct {
			FileRef string `json:"file_ref" binding:"required"`
		}
		if bindErr := c.ShouldBindJSON(&input); bindErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file or file_ref is required"})
			return "", false
		}
		return input.FileRef, true
	}
	defer file.Close()

	if header.Size > maxUploadSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
		return "", false
	}
	contentType := header.Header.Get("Content-Type")
	if !deliverableMimeTypes[contentType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported deliverable type"})
		return "", false
	}

	blobStore, err := utils.NewBlobStore()
	if err != nil {
		config.LogError(config.GetLogger(), "uploads", "resolveFileRef", "blob store init", nil, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return "", false
	}
	objectName := "deliverables/" + utils.GenerateUniqueFilename(header.Filename)
	ref, err := blobStore.Save(c.Request.Context(), objectName, contentType, file)
	if err != nil {
		config.LogError(config.GetLogger(), "uploads", "resolveFileRef", "save deliverable", objectName, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upload failed"})
		return "", false
	}
	return ref, true
}

// uploadStartupLogoHandler stores a resized square logo and records its URL.
func uploadStartupLogoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startup, ok := ownedStartup(c, c.Param("id"))
		if !ok {
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		defer file.Close()

		if header.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
			return
		}
		contentType := header.Header.Get("Content-Type")
		if !logoMimeTypes[contentType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "logo must be jpeg or png"})
			return
		}

		img, err := imaging.Decode(file, imaging.AutoOrientation(true))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image"})
			return
		}
		img = imaging.Fill(img, 512, 512, imaging.Center, imaging.Lanczos)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "image encoding failed"})
			return
		}

		blobStore, err := utils.NewBlobStore()
		if err != nil {
			config.LogError(config.GetLogger(), "uploads", "uploadStartupLogoHandler", "blob store init", nil, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
			return
		}
		objectName := "logos/" + utils.GenerateUniqueFilename(startup.ID+".png")
		ref, err := blobStore.Save(c.Request.Context(), objectName, "image/png", &buf)
		if err != nil {
			config.LogError(config.GetLogger(), "uploads", "uploadStartupLogoHandler", "save logo", objectName, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upload failed"})
			return
		}

		updated, err := models.SetStartupLogo(c.Request.Context(), startup.ID, ref)
		if err != nil {
			handleDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}
