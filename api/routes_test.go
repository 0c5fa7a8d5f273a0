package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garnizeh/servicehub/api"
	"github.com/garnizeh/servicehub/internal/config"
	"github.com/garnizeh/servicehub/internal/engine"
	"github.com/garnizeh/servicehub/pkg/models"
	"github.com/garnizeh/servicehub/pkg/repository"
	"github.com/garnizeh/servicehub/pkg/repository/mock"
)

const testSecret = "router-secret"

func newRouter(t *testing.T, store repository.Store, opts ...engine.Option) http.Handler {
	t.Helper()
	cfg := &config.Config{JWTSecret: testSecret, TokenDuration: time.Hour, APITimeout: 5 * time.Second}
	svc := engine.NewService(store, opts...)
	return api.SetupRoutes(cfg, "test", "now", svc, store)
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func expect(t *testing.T, w *httptest.ResponseRecorder, status int, dst any) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("want status %d got %d body=%s", status, w.Code, w.Body.String())
	}
	if dst != nil {
		if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
}

func expectKind(t *testing.T, w *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	var er struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	expect(t, w, status, &er)
	if er.Error != kind {
		t.Fatalf("want error kind %q got %q (%s)", kind, er.Error, er.Message)
	}
}

func signup(t *testing.T, h http.Handler, role models.Role, email, name string) string {
	t.Helper()
	var ar struct {
		Token string `json:"token"`
	}
	w := call(t, h, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"role": string(role), "email": email, "name": name, "password": "secret1",
	})
	expect(t, w, http.StatusCreated, &ar)
	return ar.Token
}

type actionBody struct {
	Action       string         `json:"action"`
	Request      models.Request `json:"request"`
	RatingPrompt bool           `json:"rating_prompt"`
	Rating       *struct {
		Stars     int      `json:"stars"`
		XPGained  int      `json:"xp_gained"`
		LeveledUp bool     `json:"leveled_up"`
		Unlocked  []string `json:"unlocked"`
	} `json:"rating"`
}

type feedBody struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

var newRequestBody = map[string]any{
	"title":          "Fix the sink",
	"description":    "Kitchen sink is leaking",
	"location":       "Centro",
	"budget":         150,
	"payment_method": "pix",
	"urgency":        "high",
}

func TestRouter_RequestLifecycle(t *testing.T) {
	h := newRouter(t, mock.NewStore())

	ann := signup(t, h, models.RoleRequester, "ann@x.com", "Ann")
	bob := signup(t, h, models.RoleProvider, "bob@x.com", "Bob")
	carl := signup(t, h, models.RoleProvider, "carl@x.com", "Carl")

	var created actionBody
	expect(t, call(t, h, http.MethodPost, "/v1/requests", ann, newRequestBody), http.StatusCreated, &created)
	if created.Request.Status != models.StatusPending || created.Request.RequesterEmail != "ann@x.com" {
		t.Fatalf("created request: %+v", created.Request)
	}
	base := fmt.Sprintf("/v1/requests/%d", created.Request.ID)

	var board struct {
		Items []engine.RequestView `json:"items"`
	}
	expect(t, call(t, h, http.MethodGet, "/v1/requests", bob, nil), http.StatusOK, &board)
	if len(board.Items) != 1 || board.Items[0].MyOffer != nil {
		t.Fatalf("provider board: %+v", board.Items)
	}

	expect(t, call(t, h, http.MethodPost, base+"/offers", bob, map[string]any{"price": 120, "message": "today"}), http.StatusCreated, nil)
	expect(t, call(t, h, http.MethodPost, base+"/offers", carl, map[string]any{"price": 100}), http.StatusCreated, nil)
	expectKind(t, call(t, h, http.MethodPost, base+"/offers", bob, map[string]any{"price": 110}), http.StatusConflict, "invalid_state")

	var feed feedBody
	expect(t, call(t, h, http.MethodGet, "/v1/notifications", ann, nil), http.StatusOK, &feed)
	if feed.Unread != 2 || len(feed.Items) != 2 {
		t.Fatalf("requester feed after two offers: unread=%d items=%d", feed.Unread, len(feed.Items))
	}

	// opening the detail clears the viewer's notifications for it
	expect(t, call(t, h, http.MethodGet, base, ann, nil), http.StatusOK, nil)
	expect(t, call(t, h, http.MethodGet, "/v1/notifications", ann, nil), http.StatusOK, &feed)
	if feed.Unread != 0 {
		t.Fatalf("unread after opening detail: %d", feed.Unread)
	}

	var accepted actionBody
	expect(t, call(t, h, http.MethodPost, base+"/offers/bob@x.com/accept", ann, nil), http.StatusOK, &accepted)
	if accepted.Request.Status != models.StatusConfirmed || accepted.Request.ProviderEmail() != "bob@x.com" {
		t.Fatalf("accepted request: %+v", accepted.Request)
	}
	expectKind(t, call(t, h, http.MethodGet, base, carl, nil), http.StatusForbidden, "forbidden")
	expectKind(t, call(t, h, http.MethodPut, base, ann, newRequestBody), http.StatusConflict, "invalid_state")

	expect(t, call(t, h, http.MethodPost, base+"/messages", bob, map[string]string{"text": "on my way"}), http.StatusOK, nil)
	expect(t, call(t, h, http.MethodGet, "/v1/notifications", ann, nil), http.StatusOK, &feed)
	if feed.Unread != 1 || feed.Items[0].Kind != models.KindMessage {
		t.Fatalf("message notification: %+v", feed)
	}
	expect(t, call(t, h, http.MethodPost, "/v1/notifications/read-all", ann, nil), http.StatusNoContent, nil)

	var closure actionBody
	expect(t, call(t, h, http.MethodPost, base+"/closure", bob, nil), http.StatusOK, &closure)
	if closure.RatingPrompt || closure.Request.Status != models.StatusConfirmed {
		t.Fatalf("first closure: %+v", closure)
	}
	expectKind(t, call(t, h, http.MethodPost, base+"/closure", bob, nil), http.StatusConflict, "already_done")
	expect(t, call(t, h, http.MethodPost, base+"/closure", ann, nil), http.StatusOK, &closure)
	if !closure.RatingPrompt || closure.Request.Status != models.StatusCompleted {
		t.Fatalf("second closure: %+v", closure)
	}

	expectKind(t, call(t, h, http.MethodPost, base+"/rating", ann, map[string]int{"stars": 6}), http.StatusBadRequest, "validation_error")
	expectKind(t, call(t, h, http.MethodPost, base+"/rating", bob, map[string]int{"stars": 5}), http.StatusForbidden, "forbidden")

	var rated actionBody
	expect(t, call(t, h, http.MethodPost, base+"/rating", ann, map[string]int{"stars": 5}), http.StatusOK, &rated)
	if rated.Rating == nil || rated.Rating.Stars != 5 || rated.Rating.XPGained <= 0 || !rated.Request.Rated {
		t.Fatalf("rating outcome: %+v", rated)
	}
	expectKind(t, call(t, h, http.MethodPost, base+"/rating", ann, map[string]int{"stars": 4}), http.StatusConflict, "already_done")

	var profile engine.ProviderProfile
	expect(t, call(t, h, http.MethodGet, "/v1/providers/bob@x.com", "", nil), http.StatusOK, &profile)
	if profile.RatingsCount != 1 || profile.AverageRating == nil || *profile.AverageRating != 5 {
		t.Fatalf("provider profile: %+v", profile)
	}

	// saving settings afterwards keeps the earned progression
	var me models.User
	expect(t, call(t, h, http.MethodPut, "/v1/me", bob, map[string]any{"name": "Bob Plumber"}), http.StatusOK, &me)
	if me.Name != "Bob Plumber" || len(me.Ratings) != 1 || me.XP != profile.XP || !me.HasAchievement("first-service") {
		t.Fatalf("settings update lost progression: %+v", me)
	}
}

func TestRouter_StatusMapping(t *testing.T) {
	h := newRouter(t, mock.NewStore())
	ann := signup(t, h, models.RoleRequester, "ann@x.com", "Ann")
	bob := signup(t, h, models.RoleProvider, "bob@x.com", "Bob")

	var created actionBody
	expect(t, call(t, h, http.MethodPost, "/v1/requests", ann, newRequestBody), http.StatusCreated, &created)
	base := fmt.Sprintf("/v1/requests/%d", created.Request.ID)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   string
	}{
		{"NoToken", http.MethodGet, "/v1/requests", "", nil, http.StatusUnauthorized, "unauthorized"},
		{"BadToken", http.MethodGet, "/v1/requests", "garbage", nil, http.StatusUnauthorized, "unauthorized"},
		{"ProviderCreates", http.MethodPost, "/v1/requests", bob, newRequestBody, http.StatusForbidden, "forbidden"},
		{"MissingTitle", http.MethodPost, "/v1/requests", ann, map[string]any{"urgency": "low"}, http.StatusBadRequest, "validation_error"},
		{"BadUrgency", http.MethodPost, "/v1/requests", ann, map[string]any{"title": "x", "urgency": "whenever"}, http.StatusBadRequest, "validation_error"},
		{"NegativeOffer", http.MethodPost, base + "/offers", bob, map[string]any{"price": -1}, http.StatusBadRequest, "validation_error"},
		{"UnknownRequest", http.MethodGet, "/v1/requests/999", ann, nil, http.StatusNotFound, "not_found"},
		{"OwnerOffers", http.MethodPost, base + "/offers", ann, map[string]any{"price": 10}, http.StatusForbidden, "forbidden"},
		{"AcceptMissingOffer", http.MethodPost, base + "/offers/nobody@x.com/accept", ann, nil, http.StatusNotFound, "not_found"},
		{"ChatBeforeConfirm", http.MethodPost, base + "/messages", ann, map[string]string{"text": "hi"}, http.StatusConflict, "invalid_state"},
		{"ClosurePending", http.MethodPost, base + "/closure", ann, nil, http.StatusConflict, "invalid_state"},
		{"StrangerClosure", http.MethodPost, base + "/closure", bob, nil, http.StatusForbidden, "forbidden"},
		{"RatePending", http.MethodPost, base + "/rating", ann, map[string]int{"stars": 3}, http.StatusConflict, "invalid_state"},
		{"ActivityStranger", http.MethodGet, base + "/activity", bob, nil, http.StatusForbidden, "forbidden"},
		{"UnknownProvider", http.MethodGet, "/v1/providers/ghost@x.com", "", nil, http.StatusNotFound, "not_found"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			expectKind(t, call(t, h, c.method, c.path, c.token, c.body), c.status, c.kind)
		})
	}
}

func TestRouter_DeletedUserToken(t *testing.T) {
	store := mock.NewStore()
	h := newRouter(t, store)
	// a well-signed token for a user that was never stored
	w := httptest.NewRecorder()
	api.NewAuthHandler(mock.NewStore(), testSecret, time.Hour).Signup(w, httptest.NewRequest(http.MethodPost, "/signup",
		bytes.NewBufferString(`{"role":"requester","name":"Ghost","email":"ghost@x.com","password":"secret1"}`)))
	var ar struct {
		Token string `json:"token"`
	}
	expect(t, w, http.StatusCreated, &ar)

	expectKind(t, call(t, h, http.MethodGet, "/v1/me", ar.Token, nil), http.StatusUnauthorized, "unauthorized")
}

func TestRouter_MeAndSettings(t *testing.T) {
	h := newRouter(t, mock.NewStore())
	bob := signup(t, h, models.RoleProvider, "bob@x.com", "Bob")

	var me models.User
	expect(t, call(t, h, http.MethodGet, "/v1/me", bob, nil), http.StatusOK, &me)
	if me.Email != "bob@x.com" || me.Role != models.RoleProvider || me.Level != 1 {
		t.Fatalf("me: %+v", me)
	}

	settings := map[string]any{
		"name":  "Bob Builder",
		"phone": "81999990000",
		"area":  "plumbing",
		"address": map[string]string{
			"street": "Rua A", "number": "10", "neighborhood": "Centro", "city": "Recife", "state": "PE",
		},
	}
	expect(t, call(t, h, http.MethodPut, "/v1/me", bob, settings), http.StatusOK, &me)
	if me.Name != "Bob Builder" || me.Area != "plumbing" || me.Address.City != "Recife" {
		t.Fatalf("updated me: %+v", me)
	}
	expectKind(t, call(t, h, http.MethodPut, "/v1/me", bob, map[string]any{"name": ""}), http.StatusBadRequest, "validation_error")

	var profile engine.ProviderProfile
	expect(t, call(t, h, http.MethodGet, "/v1/providers/bob@x.com", "", nil), http.StatusOK, &profile)
	if profile.Name != "Bob Builder" || profile.City != "Recife" || profile.XPToNextLevel <= 0 {
		t.Fatalf("profile after settings: %+v", profile)
	}
}

func TestRouter_EditDeleteAndAchievements(t *testing.T) {
	h := newRouter(t, mock.NewStore())
	ann := signup(t, h, models.RoleRequester, "ann@x.com", "Ann")

	var created actionBody
	expect(t, call(t, h, http.MethodPost, "/v1/requests", ann, newRequestBody), http.StatusCreated, &created)
	base := fmt.Sprintf("/v1/requests/%d", created.Request.ID)

	edit := map[string]any{"title": "Fix the shower", "urgency": "low", "budget": 80}
	var edited actionBody
	expect(t, call(t, h, http.MethodPut, base, ann, edit), http.StatusOK, &edited)
	if edited.Request.Title != "Fix the shower" || edited.Request.Urgency != models.UrgencyLow {
		t.Fatalf("edited: %+v", edited.Request)
	}

	expect(t, call(t, h, http.MethodDelete, base, ann, nil), http.StatusNoContent, nil)
	expectKind(t, call(t, h, http.MethodGet, base, ann, nil), http.StatusNotFound, "not_found")

	var catalog struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	expect(t, call(t, h, http.MethodGet, "/v1/achievements", "", nil), http.StatusOK, &catalog)
	if len(catalog.Items) == 0 {
		t.Fatal("empty achievement catalog")
	}
}

func TestRouter_NotificationMarkRead(t *testing.T) {
	h := newRouter(t, mock.NewStore())
	ann := signup(t, h, models.RoleRequester, "ann@x.com", "Ann")
	bob := signup(t, h, models.RoleProvider, "bob@x.com", "Bob")

	var created actionBody
	expect(t, call(t, h, http.MethodPost, "/v1/requests", ann, newRequestBody), http.StatusCreated, &created)
	expect(t, call(t, h, http.MethodPost, fmt.Sprintf("/v1/requests/%d/offers", created.Request.ID), bob, map[string]any{"price": 1}), http.StatusCreated, nil)

	var feed feedBody
	expect(t, call(t, h, http.MethodGet, "/v1/notifications", ann, nil), http.StatusOK, &feed)
	if feed.Unread != 1 {
		t.Fatalf("unread before: %d", feed.Unread)
	}
	expect(t, call(t, h, http.MethodPost, "/v1/notifications/"+feed.Items[0].ID+"/read", ann, nil), http.StatusNoContent, nil)
	expect(t, call(t, h, http.MethodPost, "/v1/notifications/unknown/read", ann, nil), http.StatusNoContent, nil)
	expect(t, call(t, h, http.MethodGet, "/v1/notifications", ann, nil), http.StatusOK, &feed)
	if feed.Unread != 0 || len(feed.Items) != 1 || !feed.Items[0].Read {
		t.Fatalf("after mark read: %+v", feed)
	}
}
