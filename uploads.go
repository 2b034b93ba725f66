package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var jdMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// uploadStore is swapped in tests.
var uploadStore utils.ObjectStore = utils.GCSObjectStore{}

type uploadResponse struct {
	ObjectKey          string `json:"objectKey"`
	AccessURL          string `json:"accessUrl"`
	ThumbnailObjectKey string `json:"thumbnailObjectKey,omitempty"`
	ThumbnailURL       string `json:"thumbnailUrl,omitempty"`
}

// readUpload reads the multipart "file" field, enforcing the size limit and
// the allowed sniffed types.
func readUpload(c *gin.Context, allowed map[string]bool) (*multipart.FileHeader, []byte, string, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, nil, "", utils.NewFieldError("file", "file is required")
	}
	if header.Size > maxUploadSizeBytes {
		return nil, nil, "", utils.NewFieldError("file", "file size exceeds 5MB limit")
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSizeBytes+1))
	if err != nil {
		return nil, nil, "", err
	}
	if int64(len(data)) > maxUploadSizeBytes {
		return nil, nil, "", utils.NewFieldError("file", "file size exceeds 5MB limit")
	}
	mimeType := utils.DetectMimeType(strings.ToLower(header.Filename), data)
	if !allowed[mimeType] {
		return nil, nil, "", utils.NewFieldError("file", "unsupported file type %s", mimeType)
	}
	return header, data, mimeType, nil
}

func userPhotoUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		ctx := c.Request.Context()
		userId := currentUserId(c)

		header, data, mimeType, err := readUpload(c, imageMimeTypes)
		if err != nil {
			respondError(c, "userPhotoUpload", err)
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext == "" {
			ext = extensionFromMimeType(mimeType)
		}
		objectKey := path.Join("users", fmt.Sprint(userId), uuid.New().String()+ext)
		if err := uploadStore.Put(ctx, "", objectKey, data, mimeType); err != nil {
			logUploadError(logger, err, c)
			respondError(c, "userPhotoUpload", err)
			return
		}
		thumbnailKey, err := createThumbnail(ctx, uploadStore, objectKey, data)
		if err != nil {
			logUploadError(logger, err, c)
			respondError(c, "userPhotoUpload", err)
			return
		}

		resp := uploadResponse{
			ObjectKey:          objectKey,
			AccessURL:          utils.BuildObjectAccessURL(objectKey),
			ThumbnailObjectKey: thumbnailKey,
			ThumbnailURL:       utils.BuildObjectAccessURL(thumbnailKey),
		}
		previous, err := models.GetUser(ctx, userId)
		if err != nil {
			respondError(c, "userPhotoUpload", err)
			return
		}
		if _, err := models.UpdateUserPhoto(ctx, userId, resp.AccessURL, resp.ThumbnailURL); err != nil {
			respondError(c, "userPhotoUpload", err)
			return
		}
		removeReplacedObjects(ctx, logger, previous.PhotoUrl, previous.ThumbnailUrl)

		logger.WithFields(logrus.Fields{
			"user_id":    userId,
			"mime_type":  mimeType,
			"size":       len(data),
			"object_key": objectKey,
		}).Info("[upload.photo]")
		respondOK(c, http.StatusOK, resp)
	}
}

// jdUploadHandler replaces the JD document attached to every JD mail.
func jdUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		_, data, mimeType, err := readUpload(c, jdMimeTypes)
		if err != nil {
			respondError(c, "jdUpload", err)
			return
		}
		s, err := config.LoadSettings()
		if err != nil {
			respondError(c, "jdUpload", err)
			return
		}
		if err := uploadStore.Put(c.Request.Context(), s.JD.Bucket, s.JD.ObjectKey, data, mimeType); err != nil {
			logUploadError(logger, err, c)
			respondError(c, "jdUpload", err)
			return
		}
		logger.WithFields(logrus.Fields{
			"mime_type":  mimeType,
			"size":       len(data),
			"object_key": s.JD.ObjectKey,
		}).Info("[upload.jd]")
		respondOK(c, http.StatusOK, uploadResponse{ObjectKey: s.JD.ObjectKey, AccessURL: utils.BuildObjectAccessURL(s.JD.ObjectKey)})
	}
}

func uploadObjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		objectKey := strings.TrimSpace(c.Query("key"))
		if objectKey == "" || strings.Contains(objectKey, "..") || strings.HasPrefix(objectKey, "/") {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid key"})
			return
		}
		data, err := uploadStore.Get(c.Request.Context(), "", objectKey)
		if err != nil {
			respondError(c, "uploadObject", err)
			return
		}
		c.Data(http.StatusOK, utils.DetectMimeType(objectKey, data), data)
	}
}

// createThumbnail stores a 200px wide JPEG next to objectKey and returns its key.
func createThumbnail(ctx context.Context, store utils.ObjectStore, objectKey string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", utils.NewFieldError("file", "invalid image: %v", err)
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return "", err
	}

	thumbnailKey := thumbnailObjectKey(objectKey)
	if err := store.Put(ctx, "", thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}

// removeReplacedObjects deletes a user's old photo objects. Failures only leave orphans.
func removeReplacedObjects(ctx context.Context, logger *logrus.Logger, urls ...*string) {
	for _, u := range urls {
		key := utils.ExtractObjectKeyFromURL(utils.DereferencePtr(u))
		if key == "" {
			continue
		}
		if err := uploadStore.Delete(ctx, "", key); err != nil {
			logger.WithFields(logrus.Fields{"object_key": key, "error": err.Error()}).Warn("[upload.cleanup]")
		}
	}
}

func thumbnailObjectKey(objectKey string) string {
	dir := path.Dir(objectKey)
	filename := strings.TrimSuffix(path.Base(objectKey), path.Ext(objectKey)) + ".jpg"
	return path.Join(dir, "thumbnails", filename)
}

func extensionFromMimeType(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "application/msword":
		return ".doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	default:
		return ""
	}
}

func logUploadError(logger *logrus.Logger, err error, c *gin.Context) {
	cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	logger.WithFields(logrus.Fields{
		"error":          err.Error(),
		"path":           c.Request.URL.Path,
		"correlation_id": cid,
	}).Error("[upload.error]")
}
