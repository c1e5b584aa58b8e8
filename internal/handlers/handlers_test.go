package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"mime/multipart"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository/memrepo"
	"github.com/Windi-Fikriyansyah/planmarket/internal/services/authtoken"
	"github.com/Windi-Fikriyansyah/planmarket/internal/services/mail"
	"github.com/Windi-Fikriyansyah/planmarket/internal/storage"
)

const testSecret = "handlers-secret"

var pngHead = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type recordingPub struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPub) Publish(_ context.Context, ev realtime.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPub) Broadcast(context.Context, realtime.RoomMessage) {}

func (p *recordingPub) last() realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type env struct {
	app    *fiber.App
	store  *memrepo.Store
	pub    *recordingPub
	images *storage.MemoryStore
	mailer *mail.LogMailer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:  memrepo.New(),
		pub:    &recordingPub{},
		images: storage.NewMemoryStore("https://cdn.test/plan-images"),
		mailer: &mail.LogMailer{},
	}
	hub := realtime.NewHub()
	auth := &AuthHandler{
		Users:           e.store.Users(),
		Tokens:          authtoken.NewMemoryStore(time.Hour),
		Mailer:          e.mailer,
		JWTSecret:       testSecret,
		Expires:         60,
		FrontendBaseURL: "http://app.test",
	}
	r := &Router{
		Auth:      auth,
		Profile:   &ProfileHandler{Users: e.store.Users()},
		Plans:     &PlanHandler{Plans: e.store.Plans(), Images: e.images, Pub: e.pub},
		Contracts: &ContractHandler{Contracts: e.store.Contracts(), Plans: e.store.Plans(), Pub: e.pub},
		Chat:      &ChatHandler{Chats: e.store.Chats(), Contracts: e.store.Contracts(), Pub: e.pub},
		Realtime:  &RealtimeHandler{Session: &realtime.Session{Hub: hub}, JWTSecret: testSecret},
		JWTSecret: testSecret,
	}
	e.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	r.Register(e.app)
	return e
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

func (e *env) call(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

func (e *env) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out envelope
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(b) > 0 {
		require.NoError(t, json.Unmarshal(b, &out), string(b))
	}
	return resp.StatusCode, out
}

type sessionOut struct {
	Token   string          `json:"token"`
	Profile *models.Profile `json:"profile"`
}

func (e *env) register(t *testing.T, name, email string) sessionOut {
	t.Helper()
	code, env := e.call(t, "POST", "/api/auth/register", "", fiber.Map{
		"full_name": name, "email": email, "password": "secret123",
	})
	require.Equal(t, fiber.StatusCreated, code, env.Message)
	var out sessionOut
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (e *env) login(t *testing.T, email, password string) sessionOut {
	t.Helper()
	code, env := e.call(t, "POST", "/api/auth/login", "", fiber.Map{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, code, env.Message)
	var out sessionOut
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func (e *env) advisor(t *testing.T) string {
	t.Helper()
	s := e.register(t, "Adriana Advisor", "advisor@plans.test")
	e.store.SetRole(s.Profile.ID, models.RoleAdvisor)
	return e.login(t, "advisor@plans.test", "secret123").Token
}

func (e *env) createPlan(t *testing.T, token string, body fiber.Map) models.Plan {
	t.Helper()
	code, env := e.call(t, "POST", "/api/advisor/plans", token, body)
	require.Equal(t, fiber.StatusCreated, code, env.Message)
	var p models.Plan
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestRegisterLoginSession(t *testing.T) {
	e := newEnv(t)

	s := e.register(t, "Ana Cliente", "Ana@Example.com")
	require.NotNil(t, s.Profile)
	assert.Equal(t, models.RoleCustomer, s.Profile.Role)
	assert.Equal(t, "Ana Cliente", s.Profile.FullName)
	assert.NotEmpty(t, s.Token)

	code, env := e.call(t, "POST", "/api/auth/register", "", fiber.Map{
		"full_name": "Again", "email": "ana@example.com", "password": "secret123",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "email")

	code, env = e.call(t, "POST", "/api/auth/register", "", fiber.Map{"email": "bad", "password": "123"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "full_name")
	assert.Contains(t, env.Errors, "email")
	assert.Contains(t, env.Errors, "password")

	code, _ = e.call(t, "POST", "/api/auth/login", "", fiber.Map{"email": "ana@example.com", "password": "wrong-pass"})
	assert.Equal(t, fiber.StatusUnauthorized, code)

	logged := e.login(t, "ana@example.com", "secret123")
	code, env = e.call(t, "GET", "/api/auth/session", logged.Token, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, s.Profile.ID, decode[sessionOut](t, env.Data).Profile.ID)

	code, env = e.call(t, "GET", "/api/auth/session", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.False(t, env.Success)
}

func TestSessionWithoutProfileIsRejected(t *testing.T) {
	e := newEnv(t)
	s := e.register(t, "Ana", "ana@example.com")
	e.store.DeleteProfile(s.Profile.ID)

	code, _ := e.call(t, "GET", "/api/auth/session", s.Token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestProfileUpdateIgnoresRole(t *testing.T) {
	e := newEnv(t)
	s := e.register(t, "Ana", "ana@example.com")

	code, env := e.call(t, "PATCH", "/api/profile", s.Token, fiber.Map{
		"full_name": " Ana Maria ", "phone": "600123123", "role": "advisor",
	})
	require.Equal(t, fiber.StatusOK, code, env.Message)
	p := decode[models.Profile](t, env.Data)
	assert.Equal(t, "Ana Maria", p.FullName)
	assert.Equal(t, "600123123", p.Phone)
	assert.Equal(t, models.RoleCustomer, p.Role)

	code, env = e.call(t, "PATCH", "/api/profile", s.Token, fiber.Map{"phone": "12"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "phone")
}

func TestPasswordResetFlow(t *testing.T) {
	e := newEnv(t)
	e.register(t, "Ana", "ana@example.com")

	code, _ := e.call(t, "POST", "/api/auth/password/reset", "", fiber.Map{"email": "nobody@example.com"})
	assert.Equal(t, fiber.StatusOK, code)
	assert.Empty(t, e.mailer.Sent())

	code, _ = e.call(t, "POST", "/api/auth/password/reset", "", fiber.Map{"email": "ana@example.com"})
	require.Equal(t, fiber.StatusOK, code)
	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].To)
	token := regexp.MustCompile(`token=([0-9a-f]+)`).FindStringSubmatch(sent[0].Body)[1]

	code, _ = e.call(t, "POST", "/api/auth/password/reset/confirm", "", fiber.Map{"token": token, "password": "brand-new"})
	require.Equal(t, fiber.StatusOK, code)
	code, _ = e.call(t, "POST", "/api/auth/password/reset/confirm", "", fiber.Map{"token": token, "password": "again-new"})
	assert.Equal(t, fiber.StatusBadRequest, code)

	e.login(t, "ana@example.com", "brand-new")
}

func TestEmailChangeFlow(t *testing.T) {
	e := newEnv(t)
	s := e.register(t, "Ana", "ana@example.com")
	e.register(t, "Bea", "bea@example.com")

	code, env := e.call(t, "PATCH", "/api/auth/email", s.Token, fiber.Map{"email": "bea@example.com"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "email")

	code, _ = e.call(t, "PATCH", "/api/auth/email", s.Token, fiber.Map{"email": "ana.new@example.com"})
	require.Equal(t, fiber.StatusOK, code)
	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana.new@example.com", sent[0].To)
	token := regexp.MustCompile(`token=([0-9a-f]+)`).FindStringSubmatch(sent[0].Body)[1]

	code, _ = e.call(t, "GET", "/api/auth/email/confirm?token="+token, "", nil)
	require.Equal(t, fiber.StatusOK, code)
	e.login(t, "ana.new@example.com", "secret123")
}

func TestPlanCatalogVisibility(t *testing.T) {
	e := newEnv(t)
	adv := e.advisor(t)
	customer := e.register(t, "Ana", "ana@example.com").Token

	code, env := e.call(t, "POST", "/api/advisor/plans", adv, fiber.Map{"name": "", "price": 0})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "name")
	assert.Contains(t, env.Errors, "price")

	code, _ = e.call(t, "POST", "/api/advisor/plans", customer, fiber.Map{"name": "X", "price": 1})
	assert.Equal(t, fiber.StatusForbidden, code)
	code, _ = e.call(t, "GET", "/api/advisor/plans", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	e.createPlan(t, adv, fiber.Map{"name": "Fibra Max", "price": 40, "segment": "hogar", "short_description": "Fibra 1Gb"})
	cheap := e.createPlan(t, adv, fiber.Map{"name": "Movil Basic", "price": 9.9, "segment": "movil", "data_gb": 10})
	hidden := e.createPlan(t, adv, fiber.Map{"name": "Legacy", "price": 5, "active": false})
	assert.True(t, cheap.Active)
	assert.False(t, hidden.Active)

	assert.True(t, e.pub.last().Change.Type == realtime.Insert)
	assert.False(t, e.pub.last().Visibility.Public)

	code, env = e.call(t, "GET", "/api/plans", "", nil)
	require.Equal(t, fiber.StatusOK, code)
	public := decode[[]models.Plan](t, env.Data)
	require.Len(t, public, 2)
	assert.Equal(t, "Movil Basic", public[0].Name)
	assert.Equal(t, "Fibra Max", public[1].Name)

	_, env = e.call(t, "GET", "/api/plans?q=FIBRA%201", "", nil)
	found := decode[[]models.Plan](t, env.Data)
	require.Len(t, found, 1)
	assert.Equal(t, "Fibra Max", found[0].Name)

	_, env = e.call(t, "GET", "/api/plans/segments", "", nil)
	assert.Equal(t, []string{"hogar", "movil"}, decode[[]string](t, env.Data))

	code, _ = e.call(t, "GET", "/api/plans/"+hidden.ID.String(), customer, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	code, _ = e.call(t, "GET", "/api/advisor/plans/"+hidden.ID.String(), adv, nil)
	assert.Equal(t, fiber.StatusOK, code)

	_, env = e.call(t, "GET", "/api/advisor/plans", adv, nil)
	all := decode[[]models.Plan](t, env.Data)
	require.Len(t, all, 3)
	assert.Equal(t, "Legacy", all[0].Name)
}

func TestPlanUpdateAndDeletePublishChanges(t *testing.T) {
	e := newEnv(t)
	adv := e.advisor(t)
	p := e.createPlan(t, adv, fiber.Map{"name": "Movil", "price": 10})

	code, env := e.call(t, "PUT", "/api/advisor/plans/"+p.ID.String(), adv, fiber.Map{"name": "Movil Plus", "price": 12, "active": false})
	require.Equal(t, fiber.StatusOK, code, env.Message)
	ev := e.pub.last()
	assert.Equal(t, realtime.Update, ev.Change.Type)
	assert.True(t, ev.Visibility.Public, "customers must learn a plan was hidden")
	assert.NotEmpty(t, ev.Change.Old)

	code, _ = e.call(t, "DELETE", "/api/advisor/plans/"+p.ID.String(), adv, nil)
	require.Equal(t, fiber.StatusOK, code)
	ev = e.pub.last()
	assert.Equal(t, realtime.Delete, ev.Change.Type)
	assert.False(t, ev.Visibility.Public)

	code, _ = e.call(t, "DELETE", "/api/advisor/plans/"+p.ID.String(), adv, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func (e *env) upload(t *testing.T, token, filename string, data []byte) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/advisor/plans/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return e.do(t, req)
}

func TestPlanImageLifecycle(t *testing.T) {
	e := newEnv(t)
	adv := e.advisor(t)
	ctx := context.Background()

	code, env := e.upload(t, adv, "evil.html", []byte("<html></html>"))
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "image")

	code, env = e.upload(t, adv, "first.png", pngHead)
	require.Equal(t, fiber.StatusCreated, code, env.Message)
	first := decode[map[string]string](t, env.Data)["url"]
	assert.Regexp(t, `^https://cdn\.test/plan-images/plans/\d+_[0-9a-f-]+\.png$`, first)

	p := e.createPlan(t, adv, fiber.Map{"name": "Con foto", "price": 15, "image_url": first})
	require.NotNil(t, p.ImageURL)

	_, env = e.upload(t, adv, "second.png", pngHead)
	second := decode[map[string]string](t, env.Data)["url"]
	code, _ = e.call(t, "PUT", "/api/advisor/plans/"+p.ID.String(), adv, fiber.Map{"name": "Con foto", "price": 15, "image_url": second})
	require.Equal(t, fiber.StatusOK, code)

	ok, _ := e.images.Exists(ctx, first)
	assert.False(t, ok, "replaced image must be deleted")
	ok, _ = e.images.Exists(ctx, second)
	assert.True(t, ok)

	code, _ = e.call(t, "DELETE", "/api/advisor/plans/"+p.ID.String(), adv, nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, 0, e.images.Len())
}

func TestContractWorkflow(t *testing.T) {
	e := newEnv(t)
	adv := e.advisor(t)
	ana := e.register(t, "Ana", "ana@example.com")
	bea := e.register(t, "Bea", "bea@example.com")
	plan := e.createPlan(t, adv, fiber.Map{"name": "Movil", "price": 10, "data_gb": 20})
	hidden := e.createPlan(t, adv, fiber.Map{"name": "Hidden", "price": 3, "active": false})

	code, _ := e.call(t, "POST", "/api/contracts", adv, fiber.Map{"plan_id": plan.ID})
	assert.Equal(t, fiber.StatusForbidden, code)
	code, _ = e.call(t, "POST", "/api/contracts", ana.Token, fiber.Map{"plan_id": hidden.ID})
	assert.Equal(t, fiber.StatusNotFound, code)
	code, env := e.call(t, "POST", "/api/contracts", ana.Token, fiber.Map{"plan_id": "nope"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "plan_id")

	code, env = e.call(t, "POST", "/api/contracts", ana.Token, fiber.Map{"plan_id": plan.ID})
	require.Equal(t, fiber.StatusCreated, code, env.Message)
	cr := decode[ContractView](t, env.Data)
	assert.Equal(t, models.ContractPending, cr.Status)
	assert.Nil(t, cr.ApprovedAt)
	ev := e.pub.last()
	assert.Equal(t, realtime.TableContracts, ev.Change.Table)
	assert.Equal(t, ana.Profile.ID, ev.Visibility.OwnerID)

	_, env = e.call(t, "GET", "/api/contracts/mine", ana.Token, nil)
	mine := decode[[]ContractView](t, env.Data)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Plan)
	assert.Equal(t, "Movil", mine[0].Plan.Name)
	assert.Nil(t, mine[0].Requester)

	_, env = e.call(t, "GET", "/api/contracts/mine", bea.Token, nil)
	assert.Empty(t, decode[[]ContractView](t, env.Data))

	_, env = e.call(t, "GET", "/api/advisor/contracts", adv, nil)
	all := decode[[]ContractView](t, env.Data)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].Requester)
	assert.Equal(t, "Ana", all[0].Requester.FullName)

	path := "/api/advisor/contracts/" + cr.ID.String() + "/status"
	code, _ = e.call(t, "PATCH", path, adv, fiber.Map{"status": "pending"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	code, _ = e.call(t, "PATCH", path, ana.Token, fiber.Map{"status": "approved"})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, env = e.call(t, "PATCH", path, adv, fiber.Map{"status": "approved"})
	require.Equal(t, fiber.StatusOK, code, env.Message)
	approved := decode[ContractView](t, env.Data)
	assert.Equal(t, models.ContractApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, realtime.Update, e.pub.last().Change.Type)

	code, _ = e.call(t, "PATCH", path, adv, fiber.Map{"status": "rejected"})
	assert.Equal(t, fiber.StatusConflict, code)
	code, _ = e.call(t, "PATCH", "/api/advisor/contracts/"+uuid.NewString()+"/status", adv, fiber.Map{"status": "rejected"})
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestRequestedPlanCannotBeDeleted(t *testing.T) {
	e := newEnv(t)
	adv := e.advisor(t)
	ana := e.register(t, "Ana", "ana@example.com")
	plan := e.createPlan(t, adv, fiber.Map{"name": "Movil", "price": 10})

	code, env := e.call(t, "POST", "/api/contracts", ana.Token, fiber.Map{"plan_id": plan.ID})
	require.Equal(t, fiber.StatusCreated, code, env.Message)
	published := len(e.pub.events)

	code, env = e.call(t, "DELETE", "/api/advisor/plans/"+plan.ID.String(), adv, nil)
	assert.Equal(t, fiber.StatusConflict, code)
	assert.False(t, env.Success)
	assert.Len(t, e.pub.events, published)

	// hiding it is the way out
	code, _ = e.call(t, "PUT", "/api/advisor/plans/"+plan.ID.String(), adv, fiber.Map{"name": "Movil", "price": 10, "active": false})
	require.Equal(t, fiber.StatusOK, code)
	code, _ = e.call(t, "GET", "/api/plans/"+plan.ID.String(), ana.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestChatMessages(t *testing.T) {
	e := newEnv(t)
	adv := e.advisor(t)
	ana := e.register(t, "Ana", "ana@example.com")
	bea := e.register(t, "Bea", "bea@example.com")
	plan := e.createPlan(t, adv, fiber.Map{"name": "Movil", "price": 10})
	_, env := e.call(t, "POST", "/api/contracts", ana.Token, fiber.Map{"plan_id": plan.ID})
	cr := decode[ContractView](t, env.Data)
	path := "/api/contracts/" + cr.ID.String() + "/messages"

	code, env := e.call(t, "POST", path, ana.Token, fiber.Map{"content": "  "})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Errors, "content")

	code, _ = e.call(t, "POST", path, bea.Token, fiber.Map{"content": "hi"})
	assert.Equal(t, fiber.StatusNotFound, code)

	for i, who := range []string{ana.Token, adv, ana.Token} {
		code, env = e.call(t, "POST", path, who, fiber.Map{"content": []string{"hola", "buenas", "gracias"}[i]})
		require.Equal(t, fiber.StatusCreated, code, env.Message)
	}
	ev := e.pub.last()
	assert.Equal(t, realtime.TableMessages, ev.Change.Table)
	assert.Equal(t, ana.Profile.ID, ev.Visibility.OwnerID)
	rec := decode[MessageView](t, ev.Change.Record)
	assert.Equal(t, "gracias", rec.Content)
	assert.Equal(t, "Ana", rec.SenderName)

	_, env = e.call(t, "GET", path, adv, nil)
	msgs := decode[[]MessageView](t, env.Data)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"gracias", "buenas", "hola"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	assert.Equal(t, "Adriana Advisor", msgs[1].SenderName)

	code, _ = e.call(t, "GET", path, bea.Token, nil)
	assert.Equal(t, fiber.StatusNotFound, code)

	_, env = e.call(t, "GET", "/api/advisor/conversations", adv, nil)
	convs := decode[[]conversationView](t, env.Data)
	require.Len(t, convs, 1)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "gracias", convs[0].LastMessage.Content)
}

func TestChatRoomAuthorizer(t *testing.T) {
	store := memrepo.New()
	ctx := context.Background()
	owner := uuid.New()
	cr := &models.ContractRequest{UserID: owner, PlanID: uuid.New()}
	require.NoError(t, store.Contracts().Create(ctx, cr))

	allow := ChatRoomAuthorizer(store.Contracts())
	room := ChatRoomPrefix + cr.ID.String()

	assert.True(t, allow(ctx, realtime.Viewer{UserID: owner, Role: models.RoleCustomer}, room))
	assert.True(t, allow(ctx, realtime.Viewer{UserID: uuid.New(), Role: models.RoleAdvisor}, room))
	assert.False(t, allow(ctx, realtime.Viewer{UserID: uuid.New(), Role: models.RoleCustomer}, room))
	assert.False(t, allow(ctx, realtime.Viewer{Role: models.RoleGuest}, room))
	assert.False(t, allow(ctx, realtime.Viewer{UserID: owner, Role: models.RoleCustomer}, "lobby"))
	assert.False(t, allow(ctx, realtime.Viewer{UserID: owner, Role: models.RoleAdvisor}, ChatRoomPrefix+uuid.NewString()))
}

func TestRealtimeRequiresUpgrade(t *testing.T) {
	e := newEnv(t)
	code, env := e.call(t, "GET", "/ws/realtime", "", nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, code)
	assert.False(t, env.Success)
}
