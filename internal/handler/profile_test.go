package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/profilehub/internal/domain"
	"github.com/yourorg/profilehub/internal/security/middleware"
	"github.com/yourorg/profilehub/internal/service"
)

type memProfileRepo struct {
	profiles map[string]*domain.Profile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: map[string]*domain.Profile{}}
}

func (m *memProfileRepo) GetByAccountID(_ context.Context, accountID string) (*domain.Profile, error) {
	if p, ok := m.profiles[accountID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memProfileRepo) Update(_ context.Context, accountID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	p, ok := m.profiles[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.Bio != nil {
		p.Bio = *upd.Bio
	}
	switch {
	case upd.ClearBirthDate:
		p.BirthDate = nil
	case upd.BirthDate != nil:
		p.BirthDate = upd.BirthDate
	}
	if upd.Location != nil {
		p.Location = *upd.Location
	}
	cp := *p
	return &cp, nil
}

func (m *memProfileRepo) SetAvatarKey(_ context.Context, accountID, avatarKey string) error {
	p, ok := m.profiles[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	p.AvatarKey = avatarKey
	return nil
}

type memMediaStore struct {
	objects map[string][]byte
}

func newMemMediaStore() *memMediaStore {
	return &memMediaStore{objects: map[string][]byte{}}
}

func (m *memMediaStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func (m *memMediaStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memMediaStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://media.test/" + key, nil
}

func (m *memMediaStore) NewAvatarKey() string { return "avatars/test/new" }

func newTestProfileHandler() (*ProfileHandler, *memProfileRepo) {
	repo := newMemProfileRepo()
	profiles := service.NewProfileService(repo, newMemMediaStore(), nil, nil)
	return NewProfileHandler(profiles, nil), repo
}

func authedRequest(method, path string, body *bytes.Buffer, accountID string) *http.Request {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	ctx := context.WithValue(req.Context(), middleware.AccountContextKey{}, accountID)
	return req.WithContext(ctx)
}

func TestViewEndpoint(t *testing.T) {
	h, repo := newTestProfileHandler()
	birth := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	repo.profiles["acc-1"] = &domain.Profile{
		AccountID: "acc-1",
		Bio:       "hello",
		BirthDate: &birth,
		Location:  "Amsterdam",
	}

	rec := httptest.NewRecorder()
	h.View(rec, authedRequest(http.MethodGet, "/api/profile", nil, "acc-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var view service.ProfileView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if view.Bio != "hello" || view.BirthDate != "1990-06-15" || view.Location != "Amsterdam" {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestViewEndpointRequiresAuth(t *testing.T) {
	h, _ := newTestProfileHandler()

	rec := httptest.NewRecorder()
	h.View(rec, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestEditEndpoint(t *testing.T) {
	h, repo := newTestProfileHandler()
	repo.profiles["acc-1"] = &domain.Profile{AccountID: "acc-1", Bio: "old"}

	body := bytes.NewBufferString(`{"location":"Rotterdam"}`)
	rec := httptest.NewRecorder()
	h.Edit(rec, authedRequest(http.MethodPut, "/api/profile", body, "acc-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["message"] != "Profile updated successfully" || resp["redirectTo"] != "/profile" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if repo.profiles["acc-1"].Location != "Rotterdam" || repo.profiles["acc-1"].Bio != "old" {
		t.Fatalf("expected partial update, got %+v", repo.profiles["acc-1"])
	}
}

func TestEditEndpointClearsBirthDate(t *testing.T) {
	h, repo := newTestProfileHandler()
	birth := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	repo.profiles["acc-1"] = &domain.Profile{AccountID: "acc-1", BirthDate: &birth}

	body := bytes.NewBufferString(`{"birthDate":""}`)
	rec := httptest.NewRecorder()
	h.Edit(rec, authedRequest(http.MethodPut, "/api/profile", body, "acc-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.profiles["acc-1"].BirthDate != nil {
		t.Fatalf("expected birth date cleared, got %v", repo.profiles["acc-1"].BirthDate)
	}
}

func TestEditEndpointValidation(t *testing.T) {
	h, repo := newTestProfileHandler()
	repo.profiles["acc-1"] = &domain.Profile{AccountID: "acc-1"}

	body := bytes.NewBufferString(`{"bio":"` + strings.Repeat("x", 501) + `","birthDate":"junk"}`)
	rec := httptest.NewRecorder()
	h.Edit(rec, authedRequest(http.MethodPut, "/api/profile", body, "acc-1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp FieldErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Errors["bio"] == "" || resp.Errors["birthDate"] == "" {
		t.Fatalf("expected bio and birthDate errors, got %+v", resp.Errors)
	}
}

func multipartAvatar(t *testing.T, fieldName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="avatar.png"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create form part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write form part: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadAvatarEndpoint(t *testing.T) {
	h, repo := newTestProfileHandler()
	repo.profiles["acc-1"] = &domain.Profile{AccountID: "acc-1"}

	body, contentType := multipartAvatar(t, "avatar", "image/png", []byte("png-bytes"))
	req := authedRequest(http.MethodPost, "/api/profile/avatar", body, "acc-1")
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.UploadAvatar(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.profiles["acc-1"].AvatarKey != "avatars/test/new" {
		t.Fatalf("expected avatar key recorded, got %q", repo.profiles["acc-1"].AvatarKey)
	}
}

func TestUploadAvatarEndpointRejectsNonImage(t *testing.T) {
	h, repo := newTestProfileHandler()
	repo.profiles["acc-1"] = &domain.Profile{AccountID: "acc-1"}

	body, contentType := multipartAvatar(t, "avatar", "text/plain", []byte("not an image"))
	req := authedRequest(http.MethodPost, "/api/profile/avatar", body, "acc-1")
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.UploadAvatar(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadAvatarEndpointMissingFile(t *testing.T) {
	h, repo := newTestProfileHandler()
	repo.profiles["acc-1"] = &domain.Profile{AccountID: "acc-1"}

	body, contentType := multipartAvatar(t, "other", "image/png", []byte("png-bytes"))
	req := authedRequest(http.MethodPost, "/api/profile/avatar", body, "acc-1")
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.UploadAvatar(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
