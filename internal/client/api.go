package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

// APIError is a failed call as reported by the server envelope.
type APIError struct {
	Status  int
	Message string
	Errors  map[string][]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// Unauthorized reports a 401 or 403.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

// Facets of the remote store. Screens depend on these, not on *API.
type (
	AuthGateway interface {
		SignUp(ctx context.Context, fullName, email, password, phone string) (*Session, error)
		SignIn(ctx context.Context, email, password string) (*Session, error)
		SignOut(ctx context.Context) error
		Session(ctx context.Context) (*Session, error)
		SetToken(token string)
	}

	PlanGateway interface {
		ListActivePlans(ctx context.Context, query string) ([]models.Plan, error)
		GetActivePlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
		ListAllPlans(ctx context.Context) ([]models.Plan, error)
		GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
		CreatePlan(ctx context.Context, in PlanInput) (*models.Plan, error)
		UpdatePlan(ctx context.Context, id uuid.UUID, in PlanInput) (*models.Plan, error)
		DeletePlan(ctx context.Context, id uuid.UUID) error
		UploadImage(ctx context.Context, filename string, data []byte) (string, error)
	}

	ContractGateway interface {
		RequestPlan(ctx context.Context, planID uuid.UUID) (*Contract, error)
		MyRequests(ctx context.Context) ([]Contract, error)
		AllRequests(ctx context.Context) ([]Contract, error)
		SetRequestStatus(ctx context.Context, id uuid.UUID, status models.ContractStatus) (*Contract, error)
	}

	ChatGateway interface {
		Messages(ctx context.Context, contractID uuid.UUID) ([]Message, error)
		SendMessage(ctx context.Context, contractID uuid.UUID, content string) (*Message, error)
		Conversations(ctx context.Context) ([]Conversation, error)
	}
)

// API talks to the planmarket HTTP API.
type API struct {
	Client  *http.Client
	BaseURL string

	mu    sync.RWMutex
	token string
}

func New(baseURL string) *API {
	return &API{
		Client:  &http.Client{Timeout: 15 * time.Second},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *API) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, out)
}

func (a *API) send(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	if tok := a.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message, Errors: env.Errors}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// SignUp registers a customer and keeps the returned token.
func (a *API) SignUp(ctx context.Context, fullName, email, password, phone string) (*Session, error) {
	var s Session
	body := map[string]string{"full_name": fullName, "email": email, "password": password, "phone": phone}
	if err := a.do(ctx, http.MethodPost, "/api/auth/register", body, &s); err != nil {
		return nil, err
	}
	a.SetToken(s.Token)
	return &s, nil
}

func (a *API) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", body, &s); err != nil {
		return nil, err
	}
	a.SetToken(s.Token)
	return &s, nil
}

// SignOut forgets the token even when the server call fails.
func (a *API) SignOut(ctx context.Context) error {
	err := a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	a.SetToken("")
	return err
}

// Session validates the current token and returns its profile.
func (a *API) Session(ctx context.Context) (*Session, error) {
	var s Session
	if err := a.do(ctx, http.MethodGet, "/api/auth/session", nil, &s); err != nil {
		return nil, err
	}
	if s.Token == "" {
		s.Token = a.Token()
	}
	return &s, nil
}

func (a *API) RequestPasswordReset(ctx context.Context, email string) error {
	return a.do(ctx, http.MethodPost, "/api/auth/password/reset", map[string]string{"email": email}, nil)
}

func (a *API) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return a.do(ctx, http.MethodPost, "/api/auth/password/reset/confirm", body, nil)
}

func (a *API) RequestEmailChange(ctx context.Context, email string) error {
	return a.do(ctx, http.MethodPatch, "/api/auth/email", map[string]string{"email": email}, nil)
}

func (a *API) ConfirmEmailChange(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodGet, "/api/auth/email/confirm?token="+url.QueryEscape(token), nil, nil)
}

func (a *API) Profile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := a.do(ctx, http.MethodGet, "/api/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) UpdateProfile(ctx context.Context, in models.ProfileUpdate) (*models.Profile, error) {
	var p models.Profile
	if err := a.do(ctx, http.MethodPatch, "/api/profile", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActivePlans returns active plans by ascending price. query, when
// set, is matched server-side on name and short description.
func (a *API) ListActivePlans(ctx context.Context, query string) ([]models.Plan, error) {
	path := "/api/plans"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out []models.Plan
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) Segments(ctx context.Context) ([]string, error) {
	var out []string
	if err := a.do(ctx, http.MethodGet, "/api/plans/segments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) GetActivePlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var p models.Plan
	if err := a.do(ctx, http.MethodGet, "/api/plans/"+id.String(), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) ListAllPlans(ctx context.Context) ([]models.Plan, error) {
	var out []models.Plan
	if err := a.do(ctx, http.MethodGet, "/api/advisor/plans", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var p models.Plan
	if err := a.do(ctx, http.MethodGet, "/api/advisor/plans/"+id.String(), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) CreatePlan(ctx context.Context, in PlanInput) (*models.Plan, error) {
	var p models.Plan
	if err := a.do(ctx, http.MethodPost, "/api/advisor/plans", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) UpdatePlan(ctx context.Context, id uuid.UUID, in PlanInput) (*models.Plan, error) {
	var p models.Plan
	if err := a.do(ctx, http.MethodPut, "/api/advisor/plans/"+id.String(), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) DeletePlan(ctx context.Context, id uuid.UUID) error {
	return a.do(ctx, http.MethodDelete, "/api/advisor/plans/"+id.String(), nil, nil)
}

// UploadImage sends data as the multipart "image" field and returns the
// public URL of the stored blob.
func (a *API) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/advisor/plans/image", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		URL string `json:"url"`
	}
	if err := a.send(req, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (a *API) RequestPlan(ctx context.Context, planID uuid.UUID) (*Contract, error) {
	var c Contract
	if err := a.do(ctx, http.MethodPost, "/api/contracts", map[string]string{"plan_id": planID.String()}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (a *API) MyRequests(ctx context.Context) ([]Contract, error) {
	var out []Contract
	if err := a.do(ctx, http.MethodGet, "/api/contracts/mine", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) AllRequests(ctx context.Context) ([]Contract, error) {
	var out []Contract
	if err := a.do(ctx, http.MethodGet, "/api/advisor/contracts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) SetRequestStatus(ctx context.Context, id uuid.UUID, status models.ContractStatus) (*Contract, error) {
	var c Contract
	path := "/api/advisor/contracts/" + id.String() + "/status"
	if err := a.do(ctx, http.MethodPatch, path, map[string]string{"status": string(status)}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Messages returns the contract's messages newest first.
func (a *API) Messages(ctx context.Context, contractID uuid.UUID) ([]Message, error) {
	var out []Message
	if err := a.do(ctx, http.MethodGet, "/api/contracts/"+contractID.String()+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) SendMessage(ctx context.Context, contractID uuid.UUID, content string) (*Message, error) {
	var m Message
	path := "/api/contracts/" + contractID.String() + "/messages"
	if err := a.do(ctx, http.MethodPost, path, map[string]string{"content": content}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (a *API) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := a.do(ctx, http.MethodGet, "/api/advisor/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
