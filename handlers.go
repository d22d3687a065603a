package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/bcrypt"
)

type HandlerConfig struct {
	BcryptCost int
	Location   *time.Location
}

// Handler struct to encapsulate HTTP handling logic
type Handler struct {
	store      Store
	publisher  EventPublisher
	bcryptCost int
	location   *time.Location
	now        func() time.Time
}

func NewHandler(store Store, publisher EventPublisher, cfg HandlerConfig) *Handler {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Handler{
		store:      store,
		publisher:  publisher,
		bcryptCost: cfg.BcryptCost,
		location:   cfg.Location,
		now:        time.Now,
	}
}

// NewRouter builds the mux with logging, recovery and CORS in front of the
// API routes.
func NewRouter(handler *Handler, logger zerolog.Logger, corsOrigins []string) *chi.Mux {
	mux := chi.NewRouter()
	for _, mw := range requestLogging(logger) {
		mux.Use(mw)
	}
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	RegisterRouters(mux, handler)
	return mux
}

func RegisterRouters(mux *chi.Mux, handler *Handler) {
	mux.Route("/api", func(api chi.Router) {
		api.Post("/users", handler.CreateUser)
		api.Post("/login", handler.Login)

		api.Post("/register-transaction", handler.RegisterTransaction)
		api.Post("/edit-transaction", handler.EditTransaction)
		api.Delete("/delete-transaction/{id}", handler.DeleteTransaction)
		api.Get("/despesas/{idUser}", handler.ListMonthlyExpenses)

		api.Post("/registra-categoria", handler.RegisterCategory)
		api.Get("/categorias", handler.ListCategories)

		api.Get("/test-connection", handler.TestConnection)
	})

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
}

// decodeBody treats an empty body as an empty object so presence checks
// report the missing fields.
func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) publish(r *http.Request, kind string, t Transaction) {
	event := newTransactionEvent(kind, t, h.now())
	if err := h.publisher.Publish(r.Context(), event); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("type", kind).Int64("transaction_id", t.Id).Msg("Failed to publish event")
	}
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := validate.Struct(req); err != nil {
		hlog.FromRequest(r).Debug().Strs("missing", missingFields(err)).Msg("create user rejected")
		writeError(w, http.StatusBadRequest, "Name, email, and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			writeError(w, http.StatusBadRequest, "Password must be at most 72 bytes")
			return
		}
		writeServerError(w, r, "Password hashing error", err)
		return
	}

	user := User{
		Name:         req.Name,
		Email:        req.Email,
		Type:         req.Type,
		PasswordHash: string(hash),
	}
	if req.PhoneContact != "" {
		user.PhoneContact = &req.PhoneContact
	}
	if user.Type == "" {
		user.Type = defaultUserType
	}

	created, err := h.store.CreateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		writeServerError(w, r, "Database error", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var credentials LoginRequest
	if err := decodeBody(r, &credentials); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := validate.Struct(credentials); err != nil {
		writeError(w, http.StatusBadRequest, "Email e senha são obrigatórios")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), credentials.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Usuário não encontrado")
			return
		}
		writeServerError(w, r, "Erro no servidor", err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credentials.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Senha incorreta")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Message: "Login bem-sucedido", User: user})
}

func (h *Handler) RegisterTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := validate.Struct(req); err != nil {
		hlog.FromRequest(r).Debug().Strs("missing", missingFields(err)).Msg("register transaction rejected")
		writeError(w, http.StatusBadRequest, "Date, user_id, category_id and amount are required")
		return
	}

	created, err := h.store.CreateTransaction(r.Context(), Transaction{
		Date:       req.Date,
		UserId:     req.UserId,
		CategoryId: req.CategoryId,
		LocationId: req.LocationId,
		Amount:     req.Amount,
	})
	if err != nil {
		writeServerError(w, r, "Database error", err)
		return
	}

	h.publish(r, EventTransactionCreated, created)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) RegisterCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Name, category_type are required")
		return
	}

	created, err := h.store.CreateCategory(r.Context(), Category{Name: req.Name, CategoryTypeId: req.CategoryType})
	if err != nil {
		writeServerError(w, r, "Database error", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ListMonthlyExpenses lists the user's transactions dated in the current
// calendar month of the configured time zone.
func (h *Handler) ListMonthlyExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "idUser")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	hlog.FromRequest(r).Debug().Int64("user_id", userID).Msg("listing monthly expenses")

	from, to := monthWindow(h.now(), h.location)
	expenses, err := h.store.ListExpensesBetween(r.Context(), userID, from, to)
	if err != nil {
		writeServerError(w, r, "Erro no servidor", err)
		return
	}

	if len(expenses) == 0 {
		writeError(w, http.StatusNotFound, "Nenhuma despesa encontrada para este usuário.")
		return
	}

	writeJSON(w, http.StatusOK, expenses)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		writeServerError(w, r, "Connection error", err)
		return
	}
	if categories == nil {
		categories = []Category{}
	}

	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	now, err := h.store.Now(r.Context())
	if err != nil {
		writeServerError(w, r, "Connection error", err)
		return
	}

	writeJSON(w, http.StatusOK, connectionResponse{Now: now})
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	deleted, err := h.store.DeleteTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transação não encontrada.")
			return
		}
		writeServerError(w, r, "Erro no servidor", err)
		return
	}

	h.publish(r, EventTransactionDeleted, deleted)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Transação excluída com sucesso."})
}

// EditTransaction applies the supplied amount, category_id and date to the
// transaction. Omitted fields are left unchanged.
func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	var req EditTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	updated, err := h.store.UpdateTransaction(r.Context(), req.Id, req.Patch())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "Transação não encontrada.")
			return
		}
		writeServerError(w, r, "Erro no servidor", err)
		return
	}

	h.publish(r, EventTransactionUpdated, updated)
	writeJSON(w, http.StatusOK, editTransactionResponse{
		Message:     "Transação atualizada com sucesso.",
		Transaction: updated,
	})
}
