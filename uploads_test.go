package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/testutil"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func useMemoryStore(t *testing.T) *memoryObjectStore {
	t.Helper()
	store := &memoryObjectStore{objects: map[string][]byte{}}
	prev := uploadStore
	uploadStore = store
	t.Cleanup(func() { uploadStore = prev })
	return store
}

func (s *memoryObjectStore) Get(_ context.Context, _ string, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return data, nil
}

func (s *memoryObjectStore) Put(_ context.Context, _ string, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryObjectStore) Delete(_ context.Context, _ string, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestThumbnailObjectKey(t *testing.T) {
	cases := map[string]string{
		"users/3/abc.png":  "users/3/thumbnails/abc.jpg",
		"users/3/abc.jpeg": "users/3/thumbnails/abc.jpg",
		"photo":            "thumbnails/photo.jpg",
	}
	for in, want := range cases {
		if got := thumbnailObjectKey(in); got != want {
			t.Fatalf("thumbnailObjectKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateThumbnail(t *testing.T) {
	store := &memoryObjectStore{objects: map[string][]byte{}}
	key, err := createThumbnail(context.Background(), store, "users/1/a.png", pngBytes(t, 400, 300))
	if err != nil {
		t.Fatalf("createThumbnail: %v", err)
	}
	thumb, ok := store.objects[key]
	if !ok {
		t.Fatalf("thumbnail %q not stored", key)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if format != "jpeg" || cfg.Width != 200 || cfg.Height != 150 {
		t.Fatalf("unexpected thumbnail %s %dx%d", format, cfg.Width, cfg.Height)
	}

	if _, err := createThumbnail(context.Background(), store, "users/1/b.png", []byte("not an image")); !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for garbage, got %v", err)
	}
}

func TestUserPhotoUpload(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	store := useMemoryStore(t)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	hashed, _ := utils.HashPasswordString("secret123")
	db.Exec("UPDATE users SET password = ?, photo_url = ? WHERE id = ?", hashed, "users/1/old.png", userID)
	store.objects["users/1/old.png"] = []byte("old")

	r := newRouter(config.GetLogger())
	token := loginAs(t, r, "asha@example.com", "secret123")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "me.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write(pngBytes(t, 64, 64))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/photo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("photo upload: status %d body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data uploadResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasSuffix(resp.Data.ObjectKey, ".png") || store.objects[resp.Data.ObjectKey] == nil || store.objects[resp.Data.ThumbnailObjectKey] == nil {
		t.Fatalf("objects not stored: %+v", resp.Data)
	}
	if _, ok := store.objects["users/1/old.png"]; ok {
		t.Fatalf("replaced photo should be deleted")
	}

	var u models.User
	if err := db.First(&u, userID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if u.PhotoUrl == nil || *u.PhotoUrl != resp.Data.AccessURL {
		t.Fatalf("photo url not saved: %v", u.PhotoUrl)
	}
}
