package accounts

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// UserResponse is the public representation of an account
type UserResponse struct {
	ID                 uuid.UUID     `json:"id"`
	Email              string        `json:"email"`
	Nickname           string        `json:"nickname"`
	FirstName          string        `json:"first_name"`
	LastName           string        `json:"last_name"`
	Bio                string        `json:"bio"`
	ProfilePictureURL  string        `json:"profile_picture_url"`
	LinkedInProfileURL string        `json:"linkedin_profile_url"`
	GitHubProfileURL   string        `json:"github_profile_url"`
	Role               UserRole      `json:"role"`
	Status             AccountStatus `json:"status"`
	EmailVerified      bool          `json:"email_verified"`
	IsProfessional     bool          `json:"is_professional"`
	CreatedAt          *time.Time    `json:"created_at"`
	LastLoginAt        *time.Time    `json:"last_login_at"`
	Links              []Link        `json:"links"`
}

// UserListResponse is a page of accounts
type UserListResponse struct {
	Items []UserResponse `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
	Links []Link         `json:"links"`
}

// MessageResponse carries a human readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// NewUserResponse maps an account and attaches its links
func NewUserResponse(baseURL string, a *Account) UserResponse {
	return UserResponse{
		ID:                 a.ID,
		Email:              a.Email,
		Nickname:           a.Nickname,
		FirstName:          a.FirstName,
		LastName:           a.LastName,
		Bio:                a.Bio,
		ProfilePictureURL:  a.ProfilePictureURL,
		LinkedInProfileURL: a.LinkedInProfileURL,
		GitHubProfileURL:   a.GitHubProfileURL,
		Role:               a.Role,
		Status:             a.Status,
		EmailVerified:      a.EmailVerified,
		IsProfessional:     a.IsProfessional,
		CreatedAt:          a.CreatedAt,
		LastLoginAt:        a.LastLoginAt,
		Links:              AccountLinks(baseURL, a.ID),
	}
}

type HTTPControllerRoutes struct {
	Health      string
	Register    string
	Login       string
	VerifyEmail string
	Users       string
}

// RouteRegistrar captures the router methods used by the controller
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController exposes the AccountService over go-router
type HTTPController struct {
	Debug        bool
	Logger       Logger
	Service      *AccountService
	Auther       *RouteAuthenticator
	Routes       *HTTPControllerRoutes
	BaseURL      string
	ErrorHandler router.ErrorHandler
	HealthCheck  func(ctx context.Context) error
}

type HTTPControllerOption func(*HTTPController) *HTTPController

// WithControllerDebug dumps responses to stdout
func WithControllerDebug(debug bool) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		h.Debug = debug
		return h
	}
}

// WithControllerLogger overrides the logger
func WithControllerLogger(logger Logger) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		if logger != nil {
			h.Logger = logger
		}
		return h
	}
}

// WithHealthCheck sets the check run by the health route
func WithHealthCheck(check func(ctx context.Context) error) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		h.HealthCheck = check
		return h
	}
}

// WithControllerErrorHandler overrides how failures are rendered
func WithControllerErrorHandler(handler router.ErrorHandler) HTTPControllerOption {
	return func(h *HTTPController) *HTTPController {
		if handler != nil {
			h.ErrorHandler = handler
		}
		return h
	}
}

// NewHTTPController creates the controller. baseURL prefixes hypermedia links.
func NewHTTPController(service *AccountService, baseURL string, opts ...HTTPControllerOption) *HTTPController {
	if service == nil {
		panic("Missing AccountService in accounts controller...")
	}

	h := &HTTPController{
		Logger:  defLogger{},
		Service: service,
		BaseURL: baseURL,
		Routes: &HTTPControllerRoutes{
			Health:      "/healthz",
			Register:    "/register",
			Login:       "/login",
			VerifyEmail: "/verify-email",
			Users:       "/users",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			h = opt(h)
		}
	}

	if h.ErrorHandler == nil {
		h.ErrorHandler = NewErrorHandler(h.Logger, nil)
	}

	if h.Auther == nil {
		h.Auther = NewRouteAuthenticator(service.Tokens(), h.ErrorHandler)
		h.Auther.Logger = h.Logger
	}

	return h
}

// RegisterRoutes mounts every account route on r. Users routes require a
// bearer access token.
func (h *HTTPController) RegisterRoutes(r RouteRegistrar) {
	r.Get(h.Routes.Health, h.Health).SetName("health")

	r.Post(h.Routes.Register, h.Register).SetName("register")
	r.Post(h.Routes.Login, h.Login).SetName("login")
	r.Get(h.Routes.VerifyEmail+"/:id/:token", h.VerifyEmail).SetName("verify-email")

	protected := h.Auther.ProtectedRoute()
	users := h.Routes.Users

	r.Get(users, h.List, protected).SetName("users.list")
	r.Post(users, h.Create, protected).SetName("users.create")
	r.Get(users+"/:id", h.Show, protected).SetName("users.show")
	r.Put(users+"/:id", h.Update, protected).SetName("users.update")
	r.Delete(users+"/:id", h.Delete, protected).SetName("users.delete")
	r.Post(users+"/:id/unlock", h.Unlock, protected).SetName("users.unlock")
	r.Put(users+"/:id/professional", h.SetProfessional, protected).SetName("users.professional")
}

// RegisterAccountRoutes mounts the controller on a go-router Router
func RegisterAccountRoutes[T any](app router.Router[T], h *HTTPController) {
	h.RegisterRoutes(app)
}

func (h *HTTPController) Health(c router.Context) error {
	if h.HealthCheck != nil {
		if err := h.HealthCheck(c.Context()); err != nil {
			h.Logger.Error("health check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(router.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPController) Register(c router.Context) error {
	payload := new(RegisterPayload)
	if err := c.Bind(payload); err != nil {
		return h.fail(c, NewValidationError("Failed to parse request body", nil))
	}

	account, err := h.Service.Register(c.Context(), *payload)
	if err != nil {
		return h.fail(c, err)
	}

	return h.respond(c, router.StatusOK, NewUserResponse(h.BaseURL, account))
}

// Login accepts the OAuth2 password form or the equivalent JSON body
func (h *HTTPController) Login(c router.Context) error {
	payload := new(LoginPayload)
	if err := c.Bind(payload); err != nil {
		return h.fail(c, NewValidationError("Failed to parse request body", nil))
	}

	token, err := h.Service.Login(c.Context(), *payload)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(router.StatusOK, token)
}

func (h *HTTPController) VerifyEmail(c router.Context) error {
	id, err := uuid.Parse(c.Param("id", ""))
	if err != nil {
		return h.fail(c, ErrInvalidOrExpiredToken)
	}

	if _, err := h.Service.VerifyEmail(c.Context(), id, c.Param("token", "")); err != nil {
		return h.fail(c, err)
	}

	return h.respond(c, router.StatusOK, MessageResponse{Message: "Email verified successfully"})
}

func (h *HTTPController) List(c router.Context) error {
	skip := queryInt(c, "skip", 0)
	limit := queryInt(c, "limit", DefaultPageSize)

	page, err := h.Service.List(c.Context(), h.actor(c), skip, limit)
	if err != nil {
		return h.fail(c, err)
	}

	items := make([]UserResponse, 0, len(page.Items))
	for _, account := range page.Items {
		items = append(items, NewUserResponse(h.BaseURL, account))
	}

	return h.respond(c, router.StatusOK, UserListResponse{
		Items: items,
		Total: page.Total,
		Page:  page.Page(),
		Size:  len(items),
		Links: PaginationLinks(h.BaseURL, h.Routes.Users+"/", page.Skip, page.Limit, page.Total),
	})
}

func (h *HTTPController) Create(c router.Context) error {
	payload := new(CreateAccountPayload)
	if err := c.Bind(payload); err != nil {
		return h.fail(c, NewValidationError("Failed to parse request body", nil))
	}

	account, err := h.Service.Create(c.Context(), h.actor(c), *payload)
	if err != nil {
		return h.fail(c, err)
	}

	return h.respond(c, http.StatusCreated, NewUserResponse(h.BaseURL, account))
}

func (h *HTTPController) Show(c router.Context) error {
	id, err := parseAccountID(c)
	if err != nil {
		return h.fail(c, err)
	}

	account, err := h.Service.Get(c.Context(), h.actor(c), id)
	if err != nil {
		return h.fail(c, err)
	}

	return h.respond(c, router.StatusOK, NewUserResponse(h.BaseURL, account))
}

func (h *HTTPController) Update(c router.Context) error {
	id, err := parseAccountID(c)
	if err != nil {
		return h.fail(c, err)
	}

	payload := new(UpdateAccountPayload)
	if err := c.Bind(payload); err != nil {
		return h.fail(c, NewValidationError("Failed to parse request body", nil))
	}

	account, err := h.Service.Update(c.Context(), h.actor(c), id, *payload)
	if err != nil {
		return h.fail(c, err)
	}

	return h.respond(c, router.StatusOK, NewUserResponse(h.BaseURL, account))
}

func (h *HTTPController) Delete(c router.Context) error {
	id, err := parseAccountID(c)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.Service.Delete(c.Context(), h.actor(c), id); err != nil {
		return h.fail(c, err)
	}

	return c.Status(http.StatusNoContent).SendString("")
}

func (h *HTTPController) Unlock(c router.Context) error {
	id, err := parseAccountID(c)
	if err != nil {
		return h.fail(c, err)
	}

	account, err := h.Service.Unlock(c.Context(), h.actor(c), id)
	if err != nil {
		return h.fail(c, err)
	}

	return h.respond(c, router.StatusOK, NewUserResponse(h.BaseURL, account))
}

func (h *HTTPController) SetProfessional(c router.Context) error {
	id, err := parseAccountID(c)
	if err != nil {
		return h.fail(c, err)
	}

	payload := new(ProfessionalPayload)
	if err := c.Bind(payload); err != nil {
		return h.fail(c, NewValidationError("Failed to parse request body", nil))
	}

	account, err := h.Service.SetProfessional(c.Context(), h.actor(c), id, payload.IsProfessional)
	if err != nil {
		return h.fail(c, err)
	}

	return h.respond(c, router.StatusOK, NewUserResponse(h.BaseURL, account))
}

func (h *HTTPController) actor(c router.Context) Actor {
	return h.Auther.ActorFromContext(c)
}

func (h *HTTPController) fail(c router.Context, err error) error {
	return h.ErrorHandler(c, err)
}

func (h *HTTPController) respond(c router.Context, status int, body any) error {
	if h.Debug {
		fmt.Println("======= ACCOUNTS " + c.Method() + " " + c.Path() + " ======")
		fmt.Println(print.MaybePrettyJSON(body))
		fmt.Println("=========================")
	}
	return c.JSON(status, body)
}

// queryInt reads an integer query value, falling back to def when the
// value is missing or malformed
func queryInt(c router.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key, ""))
	if err != nil {
		return def
	}
	return n
}

func parseAccountID(c router.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id", ""))
	if err != nil {
		return uuid.Nil, NewValidationError("Invalid user id", FieldErrors{
			{Field: "id", Message: "must be a valid UUID"},
		})
	}
	return id, nil
}
