package surrealshift

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/surrealdb/surrealshift/pkg/coordinator"
	"github.com/surrealdb/surrealshift/pkg/models"
)

// pathID parses the route variable name. On failure it has already written
// a 400 response.
func pathID[K any](w http.ResponseWriter, r *http.Request, name, what string, parse func(string) (K, error)) (K, bool) {
	id, err := parse(mux.Vars(r)[name])
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s ID", what))
		return id, false
	}
	return id, true
}

// respondRead writes the outcome of a coordinator read. A record neither
// store holds is a 404.
func respondRead[T any](a *App, w http.ResponseWriter, r *http.Request, what string, v *T, err error, render func(*T) any) {
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	if v == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("%s not found", what))
		return
	}
	respondJSON(w, http.StatusOK, payload(v, render))
}

func respondWrite[T any](a *App, w http.ResponseWriter, r *http.Request, status int, v *T, err error, render func(*T) any) {
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, status, payload(v, render))
}

// payload renders v, or returns it unchanged when render is nil.
func payload[T any](v *T, render func(*T) any) any {
	if render == nil {
		return v
	}
	return render(v)
}

// respondList writes a list read under key. An empty result is an empty
// array, never null.
func respondList[T any](a *App, w http.ResponseWriter, r *http.Request, key string, items []*T, err error) {
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	if items == nil {
		items = []*T{}
	}
	respondJSON(w, http.StatusOK, map[string]any{key: items})
}

func redactUser(u *models.User) any { return u.Redacted() }

// User handlers

func (a *App) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := readJSON(r, &user); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	created, err := a.coordinators.Users.Create(r.Context(), &user)
	respondWrite(a, w, r, http.StatusCreated, created, err, redactUser)
}

func (a *App) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	user, err := a.coordinators.Users.FindByID(r.Context(), id)
	respondRead(a, w, r, "User", user, err, redactUser)
}

func (a *App) handleGetUserByUsername(w http.ResponseWriter, r *http.Request) {
	user, err := a.coordinators.Users.FindByUsername(r.Context(), mux.Vars(r)["username"])
	respondRead(a, w, r, "User", user, err, redactUser)
}

func (a *App) handleGetUserByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := a.coordinators.Users.FindByEmail(r.Context(), mux.Vars(r)["email"])
	respondRead(a, w, r, "User", user, err, redactUser)
}

func (a *App) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	var patch coordinator.UserPatch
	if err := readJSON(r, &patch); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	user, err := a.coordinators.Users.Update(r.Context(), id, patch)
	respondWrite(a, w, r, http.StatusOK, user, err, redactUser)
}

func (a *App) handleUpgradeToSeller(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	user, err := a.coordinators.Users.UpgradeToSeller(r.Context(), id)
	respondWrite(a, w, r, http.StatusOK, user, err, redactUser)
}

func (a *App) handlePromoteToSuperAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	user, err := a.coordinators.Users.PromoteToSuperAdmin(r.Context(), id)
	respondWrite(a, w, r, http.StatusOK, user, err, redactUser)
}

func (a *App) handleDemoteFromSuperAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	user, err := a.coordinators.Users.DemoteFromSuperAdmin(r.Context(), id)
	respondWrite(a, w, r, http.StatusOK, user, err, redactUser)
}

func (a *App) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	orders, err := a.coordinators.Orders.ListByUser(r.Context(), id)
	respondList(a, w, r, "orders", orders, err)
}

func (a *App) handleListSellerProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	products, err := a.coordinators.Products.ListBySeller(r.Context(), id)
	respondList(a, w, r, "products", products, err)
}

func (a *App) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	if _, err := a.coordinators.Users.Delete(r.Context(), id); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Category handlers

func (a *App) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var category models.Category
	if err := readJSON(r, &category); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	created, err := a.coordinators.Categories.Create(r.Context(), &category)
	respondWrite(a, w, r, http.StatusCreated, created, err, nil)
}

func (a *App) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "category", models.ParseCategoryID)
	if !ok {
		return
	}
	category, err := a.coordinators.Categories.FindByID(r.Context(), id)
	respondRead(a, w, r, "Category", category, err, nil)
}

func (a *App) handleListRootCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.coordinators.Categories.Roots(r.Context())
	respondList(a, w, r, "categories", categories, err)
}

func (a *App) handleListChildCategories(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "category", models.ParseCategoryID)
	if !ok {
		return
	}
	categories, err := a.coordinators.Categories.Children(r.Context(), id)
	respondList(a, w, r, "categories", categories, err)
}

func (a *App) handleListCategoryProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "category", models.ParseCategoryID)
	if !ok {
		return
	}
	products, err := a.coordinators.Products.ListByCategory(r.Context(), id)
	respondList(a, w, r, "products", products, err)
}

func (a *App) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "category", models.ParseCategoryID)
	if !ok {
		return
	}
	var patch coordinator.CategoryPatch
	if err := readJSON(r, &patch); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	category, err := a.coordinators.Categories.Update(r.Context(), id, patch)
	respondWrite(a, w, r, http.StatusOK, category, err, nil)
}

func (a *App) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "category", models.ParseCategoryID)
	if !ok {
		return
	}
	if _, err := a.coordinators.Categories.Delete(r.Context(), id); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Product handlers

func (a *App) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := readJSON(r, &product); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	created, err := a.coordinators.Products.Create(r.Context(), &product)
	respondWrite(a, w, r, http.StatusCreated, created, err, nil)
}

func (a *App) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product", models.ParseProductID)
	if !ok {
		return
	}
	product, err := a.coordinators.Products.FindByID(r.Context(), id)
	respondRead(a, w, r, "Product", product, err, nil)
}

func (a *App) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product", models.ParseProductID)
	if !ok {
		return
	}
	var patch coordinator.ProductPatch
	if err := readJSON(r, &patch); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	product, err := a.coordinators.Products.Update(r.Context(), id, patch)
	respondWrite(a, w, r, http.StatusOK, product, err, nil)
}

type inventoryRequest struct {
	Quantity int `json:"quantity"`
}

func (a *App) handleSetInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product", models.ParseProductID)
	if !ok {
		return
	}
	var req inventoryRequest
	if err := decode(r, &req); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	product, err := a.coordinators.Products.UpdateInventory(r.Context(), id, req.Quantity)
	respondWrite(a, w, r, http.StatusOK, product, err, nil)
}

func (a *App) handleReduceInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product", models.ParseProductID)
	if !ok {
		return
	}
	var req inventoryRequest
	if err := decode(r, &req); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	product, err := a.coordinators.Products.ReduceInventory(r.Context(), id, req.Quantity)
	respondWrite(a, w, r, http.StatusOK, product, err, nil)
}

func (a *App) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product", models.ParseProductID)
	if !ok {
		return
	}
	if _, err := a.coordinators.Products.Delete(r.Context(), id); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Cart handlers

type addToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"`
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (a *App) handleListCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	items, err := a.coordinators.Cart.Items(r.Context(), userID)
	respondList(a, w, r, "items", items, err)
}

func (a *App) handleClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	removed, err := a.coordinators.Cart.ClearCart(r.Context(), userID)
	respondList(a, w, r, "removed", removed, err)
}

func (a *App) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	var req addToCartRequest
	if err := decode(r, &req); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	productID, err := models.ParseProductID(req.ProductID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	item, err := a.coordinators.Cart.AddItem(r.Context(), userID, productID, req.Quantity)
	respondWrite(a, w, r, http.StatusOK, item, err, nil)
}

func (a *App) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productId", "product", models.ParseProductID)
	if !ok {
		return
	}
	var req cartQuantityRequest
	if err := decode(r, &req); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	item, err := a.coordinators.Cart.UpdateItemQuantity(r.Context(), userID, productID, req.Quantity)
	respondWrite(a, w, r, http.StatusOK, item, err, nil)
}

func (a *App) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id", "user", models.ParseUserID)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productId", "product", models.ParseProductID)
	if !ok {
		return
	}
	if _, err := a.coordinators.Cart.RemoveItem(r.Context(), userID, productID); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Order handlers

func (a *App) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := readJSON(r, &order); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	created, err := a.coordinators.Orders.Create(r.Context(), &order)
	respondWrite(a, w, r, http.StatusCreated, created, err, nil)
}

func (a *App) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "order", models.ParseOrderID)
	if !ok {
		return
	}
	order, err := a.coordinators.Orders.FindByID(r.Context(), id)
	respondRead(a, w, r, "Order", order, err, nil)
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
}

func (a *App) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "order", models.ParseOrderID)
	if !ok {
		return
	}
	var req orderStatusRequest
	if err := decode(r, &req); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	order, err := a.coordinators.Orders.UpdateStatus(r.Context(), id, req.Status)
	respondWrite(a, w, r, http.StatusOK, order, err, nil)
}
