package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tiketahq/tiketa-backend/api/middleware"
	"github.com/tiketahq/tiketa-backend/internal/notifications"
	pkgerrors "github.com/tiketahq/tiketa-backend/pkg/errors"
)

type fakeNotificationsService struct {
	listParams notifications.ListParams
	readUser   uuid.UUID
	readID     uuid.UUID
	listErr    error
}

func (f *fakeNotificationsService) List(_ context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	f.listParams = params
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &notifications.ListResult{}, nil
}

func (f *fakeNotificationsService) MarkRead(_ context.Context, userID, notificationID uuid.UUID) error {
	f.readUser = userID
	f.readID = notificationID
	return nil
}

func (f *fakeNotificationsService) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	f.readUser = userID
	return 3, nil
}

func authedRequest(method, target string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestListNotificationsScopesToCaller(t *testing.T) {
	svc := &fakeNotificationsService{}
	userID := uuid.New()

	req := authedRequest(http.MethodGet, "/?limit=10&unread_only=true", userID)
	resp := httptest.NewRecorder()
	ListNotifications(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.listParams.UserID != userID {
		t.Fatalf("expected list scoped to %s got %s", userID, svc.listParams.UserID)
	}
	if svc.listParams.Limit != 10 || !svc.listParams.UnreadOnly {
		t.Fatalf("unexpected list params: %+v", svc.listParams)
	}
}

func TestListNotificationsRequiresUserContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	ListNotifications(&fakeNotificationsService{}, nil)(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestListNotificationsPropagatesServiceErrors(t *testing.T) {
	svc := &fakeNotificationsService{listErr: pkgerrors.New(pkgerrors.CodeDependency, "db down")}

	req := authedRequest(http.MethodGet, "/", uuid.New())
	resp := httptest.NewRecorder()
	ListNotifications(svc, nil)(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestMarkNotificationReadParsesRouteParam(t *testing.T) {
	svc := &fakeNotificationsService{}
	userID := uuid.New()
	notificationID := uuid.New()

	router := chi.NewRouter()
	router.Post("/{notificationId}/read", MarkNotificationRead(svc, nil))

	req := authedRequest(http.MethodPost, "/"+notificationID.String()+"/read", userID)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.readUser != userID || svc.readID != notificationID {
		t.Fatalf("expected %s/%s got %s/%s", userID, notificationID, svc.readUser, svc.readID)
	}
}

func TestMarkAllNotificationsReadReportsCount(t *testing.T) {
	svc := &fakeNotificationsService{}

	req := authedRequest(http.MethodPost, "/read-all", uuid.New())
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
