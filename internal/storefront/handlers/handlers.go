package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sakuracloud/storefront/internal/storefront/middleware"
	"github.com/sakuracloud/storefront/internal/storefront/models"
	"github.com/sakuracloud/storefront/internal/storefront/repository"
	"github.com/sakuracloud/storefront/internal/storefront/service"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Handler handles all HTTP requests
type Handler struct {
	Repo        repository.Repository
	Pricer      *service.Pricer
	Provisioner *service.Provisioner
	Checkout    *service.Checkout
	Reconciler  *service.Reconciler
	JWTSecret   string
}

// NewHandler creates a new handler
func NewHandler(repo repository.Repository, pricer *service.Pricer, provisioner *service.Provisioner, checkout *service.Checkout, reconciler *service.Reconciler, jwtSecret string) *Handler {
	return &Handler{
		Repo:        repo,
		Pricer:      pricer,
		Provisioner: provisioner,
		Checkout:    checkout,
		Reconciler:  reconciler,
		JWTSecret:   jwtSecret,
	}
}

// RegisterUser handles user registration
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	existingUser, err := h.Repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if existingUser != nil {
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	userID, err := h.Repo.CreateUser(ctx, req.Email, string(hashedPassword), req.FullName, req.Phone)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	token, err := middleware.GenerateToken(userID, h.JWTSecret)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	middleware.SetAuthCookie(w, token)
	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}

// LoginUser handles user login
func (h *Handler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	user, err := h.Repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if user == nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := middleware.GenerateToken(user.ID, h.JWTSecret)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	middleware.SetAuthCookie(w, token)
	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}

// ListProducts returns the available product catalog
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Repo.ListAvailableProducts(r.Context())
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if len(products) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(products)
}

// GetCart returns the user's cart lines
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	items, err := h.Repo.GetCartItems(r.Context(), userID)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if len(items) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// AddCartItem appends a line to the user's cart
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ProductID    int64               `json:"product_id"`
		BillingCycle models.BillingCycle `json:"billing_cycle"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if !req.BillingCycle.Valid() {
		http.Error(w, "Invalid billing cycle", http.StatusUnprocessableEntity)
		return
	}

	ctx := r.Context()
	product, err := h.Repo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if product == nil || !product.IsAvailable {
		http.Error(w, "Product not available", http.StatusUnprocessableEntity)
		return
	}

	itemID, err := h.Repo.AddCartItem(ctx, userID, req.ProductID, req.BillingCycle)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]int64{"id": itemID})
}

// RemoveCartItem removes a line from the user's cart
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if err := h.Repo.RemoveCartItem(r.Context(), userID, itemID); err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetQuote returns a priced preview of the cart, optionally with a promo
// code applied
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	quote, err := h.Pricer.BuildQuote(r.Context(), userID, r.URL.Query().Get("promo"))
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quote)
}

// SubmitCheckout turns the cart into an order and settles or routes it
func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		PromoCode string `json:"promo_code"`
	}

	// An empty or absent body means checkout without a promo code
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.PromoCode = ""
	}

	result, err := h.Checkout.Submit(r.Context(), userID, req.PromoCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart):
			http.Error(w, "Cart is empty", http.StatusBadRequest)
		case errors.Is(err, service.ErrGatewayInit):
			http.Error(w, "Payment gateway unavailable", http.StatusBadGateway)
		default:
			http.Error(w, "Server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// TopUpBalance starts a gateway payment that credits the account balance
func (h *Handler) TopUpBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	result, err := h.Checkout.TopUp(r.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTopUpAmountInvalid):
			http.Error(w, "Top-up amount out of allowed range", http.StatusBadRequest)
		case errors.Is(err, service.ErrGatewayInit):
			http.Error(w, "Payment gateway unavailable", http.StatusBadGateway)
		default:
			http.Error(w, "Server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetBalance returns the user's account balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.Repo.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]decimal.Decimal{"account_balance": user.AccountBalance})
}

// GetOrders returns the list of the user's orders
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	orders, err := h.Repo.GetUserOrders(r.Context(), userID)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// GetTransactions returns the user's settlement history
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	transactions, err := h.Repo.GetUserTransactions(r.Context(), userID)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// GetServices returns the user's provisioned services
func (h *Handler) GetServices(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	services, err := h.Repo.GetUserServices(r.Context(), userID)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if len(services) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(services)
}

// RenewService extends a service by one billing cycle
func (h *Handler) RenewService(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	serviceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	svc, err := h.Repo.GetServiceByID(ctx, userID, serviceID)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if svc == nil {
		http.Error(w, "Service not found", http.StatusNotFound)
		return
	}

	now := time.Now()
	newExpiry := h.Provisioner.RenewalExpiry(svc, now)

	if err := h.Repo.RenewService(ctx, userID, serviceID, newExpiry, now); err != nil {
		if errors.Is(err, repository.ErrServiceStateConflict) {
			http.Error(w, "Service cannot be renewed", http.StatusConflict)
			return
		}
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]time.Time{"expiry_date": newExpiry})
}

// SuspendService suspends an active service
func (h *Handler) SuspendService(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	serviceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if err := h.Repo.SuspendService(r.Context(), userID, serviceID, req.Reason); err != nil {
		if errors.Is(err, repository.ErrServiceStateConflict) {
			http.Error(w, "Service cannot be suspended", http.StatusConflict)
			return
		}
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
