package surrealshift

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Handler builds the HTTP router.
//
// # API Endpoints
//
// Health and metrics:
//
//	GET    /health                                  - Service health and current phase
//	GET    /metrics                                 - Prometheus metrics
//
// Migration control:
//
//	GET    /api/admin/flags                         - Current flag values
//	POST   /api/admin/flags                         - Set flags, all or none
//	POST   /api/admin/phase                         - Apply a phase from the table
//	POST   /api/admin/reset                         - Back to phase 1
//	GET    /api/admin/compensations                 - Pending journal entries
//	POST   /api/admin/reconcile                     - Sweep the journal once
//	POST   /api/admin/backfill                      - Copy primary data to the secondary
//
// Users:
//
//	POST   /api/users                               - Create user
//	GET    /api/users/{id}                          - Get user by ID
//	GET    /api/users/by-username/{username}        - Get user by username
//	GET    /api/users/by-email/{email}              - Get user by email
//	PUT    /api/users/{id}                          - Update user
//	POST   /api/users/{id}/seller                   - Upgrade user to seller
//	POST   /api/users/{id}/super-admin              - Promote to super admin
//	DELETE /api/users/{id}/super-admin              - Demote from super admin
//	DELETE /api/users/{id}                          - Delete user
//	GET    /api/users/{id}/orders                   - List the user's orders
//	GET    /api/users/{id}/products                 - List the seller's products
//
// Categories, products and orders:
//
//	POST   /api/categories                          - Create category
//	GET    /api/categories/roots                    - List root categories
//	GET    /api/categories/{id}                     - Get category
//	GET    /api/categories/{id}/children            - List subcategories
//	GET    /api/categories/{id}/products            - List the category's products
//	PUT    /api/categories/{id}                     - Update category
//	DELETE /api/categories/{id}                     - Delete category
//	POST   /api/products                            - Create product
//	GET    /api/products/{id}                       - Get product
//	PUT    /api/products/{id}                       - Update product
//	PUT    /api/products/{id}/inventory             - Set inventory
//	POST   /api/products/{id}/inventory/reduce      - Reduce inventory
//	DELETE /api/products/{id}                       - Delete product
//	POST   /api/orders                              - Create order
//	GET    /api/orders/{id}                         - Get order
//	PUT    /api/orders/{id}/status                  - Change order status
//
// Cart:
//
//	GET    /api/users/{id}/cart                     - List cart items
//	POST   /api/users/{id}/cart                     - Add a product
//	PUT    /api/users/{id}/cart/{productId}         - Set a line's quantity
//	DELETE /api/users/{id}/cart/{productId}         - Remove a line
//	DELETE /api/users/{id}/cart                     - Clear the cart
//
// Every request runs under a correlation ID taken from the X-Correlation-ID
// header, or generated when absent, and echoed back in the response.
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(a.correlationMiddleware)

	router.HandleFunc("/health", a.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/flags", a.handleGetFlags).Methods("GET")
	admin.HandleFunc("/flags", a.handleSetFlags).Methods("POST")
	admin.HandleFunc("/phase", a.handleSetPhase).Methods("POST")
	admin.HandleFunc("/reset", a.handleReset).Methods("POST")
	admin.HandleFunc("/compensations", a.handleCompensations).Methods("GET")
	admin.HandleFunc("/reconcile", a.handleReconcile).Methods("POST")
	admin.HandleFunc("/backfill", a.handleBackfill).Methods("POST")

	// User routes
	api.HandleFunc("/users", a.handleCreateUser).Methods("POST")
	api.HandleFunc("/users/by-username/{username}", a.handleGetUserByUsername).Methods("GET")
	api.HandleFunc("/users/by-email/{email}", a.handleGetUserByEmail).Methods("GET")
	api.HandleFunc("/users/{id}", a.handleGetUser).Methods("GET")
	api.HandleFunc("/users/{id}", a.handleUpdateUser).Methods("PUT")
	api.HandleFunc("/users/{id}", a.handleDeleteUser).Methods("DELETE")
	api.HandleFunc("/users/{id}/seller", a.handleUpgradeToSeller).Methods("POST")
	api.HandleFunc("/users/{id}/super-admin", a.handlePromoteToSuperAdmin).Methods("POST")
	api.HandleFunc("/users/{id}/super-admin", a.handleDemoteFromSuperAdmin).Methods("DELETE")
	api.HandleFunc("/users/{id}/orders", a.handleListUserOrders).Methods("GET")
	api.HandleFunc("/users/{id}/products", a.handleListSellerProducts).Methods("GET")

	// Cart routes
	api.HandleFunc("/users/{id}/cart", a.handleListCart).Methods("GET")
	api.HandleFunc("/users/{id}/cart", a.handleAddToCart).Methods("POST")
	api.HandleFunc("/users/{id}/cart", a.handleClearCart).Methods("DELETE")
	api.HandleFunc("/users/{id}/cart/{productId}", a.handleUpdateCartItem).Methods("PUT")
	api.HandleFunc("/users/{id}/cart/{productId}", a.handleRemoveCartItem).Methods("DELETE")

	// Category routes
	api.HandleFunc("/categories", a.handleCreateCategory).Methods("POST")
	api.HandleFunc("/categories/roots", a.handleListRootCategories).Methods("GET")
	api.HandleFunc("/categories/{id}", a.handleGetCategory).Methods("GET")
	api.HandleFunc("/categories/{id}/children", a.handleListChildCategories).Methods("GET")
	api.HandleFunc("/categories/{id}/products", a.handleListCategoryProducts).Methods("GET")
	api.HandleFunc("/categories/{id}", a.handleUpdateCategory).Methods("PUT")
	api.HandleFunc("/categories/{id}", a.handleDeleteCategory).Methods("DELETE")

	// Product routes
	api.HandleFunc("/products", a.handleCreateProduct).Methods("POST")
	api.HandleFunc("/products/{id}", a.handleGetProduct).Methods("GET")
	api.HandleFunc("/products/{id}", a.handleUpdateProduct).Methods("PUT")
	api.HandleFunc("/products/{id}", a.handleDeleteProduct).Methods("DELETE")
	api.HandleFunc("/products/{id}/inventory", a.handleSetInventory).Methods("PUT")
	api.HandleFunc("/products/{id}/inventory/reduce", a.handleReduceInventory).Methods("POST")

	// Order routes
	api.HandleFunc("/orders", a.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", a.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/status", a.handleUpdateOrderStatus).Methods("PUT")

	return router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully. When a
// reconcile interval is configured the journal is swept in the background
// for as long as the server runs.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.config.ReconcileInterval > 0 {
		go a.reconciler.Run(ctx, a.config.ReconcileInterval)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	a.logger.Info().
		Str("addr", addr).
		Stringer("phase", a.registry.Phase()).
		Msg("starting surrealshift server")

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
}
