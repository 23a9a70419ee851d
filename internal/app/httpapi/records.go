package httpapi

import (
	"net/http"

	"github.com/monitaro/pjmanager/internal/app/domain/customer"
	"github.com/monitaro/pjmanager/internal/app/domain/partner"
	"github.com/monitaro/pjmanager/internal/app/domain/product"
	"github.com/monitaro/pjmanager/internal/httputil"
)

type page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func (h *handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.app.Customers.List(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page[customer.Customer]{Items: items, Total: total})
}

func (h *handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var payload customer.Customer
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err)
		return
	}
	created, err := h.app.Customers.Create(r.Context(), payload)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	c, err := h.app.Customers.Get(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.app.Products.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page[product.Product]{Items: items, Total: total})
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var payload product.Product
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err)
		return
	}
	created, err := h.app.Products.Create(r.Context(), payload)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	p, err := h.app.Products.Get(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	var payload product.Product
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err)
		return
	}
	updated, err := h.app.Products.Update(r.Context(), id, payload)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) listPartners(w http.ResponseWriter, r *http.Request) {
	items, err := h.app.Partners.List(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page[partner.Partner]{Items: items, Total: len(items)})
}

func (h *handler) createPartner(w http.ResponseWriter, r *http.Request) {
	var payload partner.Partner
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err)
		return
	}
	created, err := h.app.Partners.Create(r.Context(), payload)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) getPartner(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	p, err := h.app.Partners.Get(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) updatePartner(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	var payload partner.Partner
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err)
		return
	}
	updated, err := h.app.Partners.Update(r.Context(), id, payload)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}
