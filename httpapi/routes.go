package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/app"
	"github.com/GoCodeAlone/storefront/catalog"
	"github.com/GoCodeAlone/storefront/order"
)

// ErrBadRequestBody is returned for bodies that are not the expected JSON.
var ErrBadRequestBody = errors.New("malformed request body")

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/", s.getCatalog)
		r.Get("/{id}", s.getProduct)
		r.Post("/{id}/preview", s.previewProduct)
	})

	r.Route("/basket", func(r chi.Router) {
		r.Get("/", s.getBasket)
		r.Post("/{id}", s.addToBasket)
		r.Delete("/{id}", s.removeFromBasket)
	})
	r.Post("/checkout", s.checkout)

	r.Route("/order", func(r chi.Router) {
		r.Get("/", s.getOrder)
		r.Patch("/", s.updateOrder)
		r.Delete("/", s.closeOrder)
		r.Put("/fields/{field}", s.editField)
		r.Post("/shipping", s.submitShipping)
		r.Post("/contacts", s.submitContacts)
	})
	return r
}

// OrderView is the checkout part of the state.
type OrderView struct {
	Draft          order.Draft      `json:"draft"`
	Stage          order.Stage      `json:"stage"`
	ShippingErrors order.FormErrors `json:"shippingErrors"`
	ContactsErrors order.FormErrors `json:"contactsErrors"`
	Submitting     bool             `json:"submitting"`
}

// SubmissionView answers an order submission.
type SubmissionView struct {
	Result *order.Result `json:"result,omitempty"`
	Order  OrderView     `json:"order"`
	Basket any           `json:"basket"`
}

// ErrorView is the body of every failed request. State is the order view
// when the failure came from the checkout, so clients can show form errors.
type ErrorView struct {
	Error string `json:"error"`
	State any    `json:"state,omitempty"`
}

func orderView(snap app.Snapshot) any {
	return OrderView{
		Draft:          snap.Draft,
		Stage:          snap.Stage,
		ShippingErrors: snap.ShippingErrors,
		ContactsErrors: snap.ContactsErrors,
		Submitting:     snap.Submitting,
	}
}

func basketView(snap app.Snapshot) any {
	return snap.Basket
}

func catalogView(snap app.Snapshot) any {
	return snap.Catalog
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) read(w http.ResponseWriter, r *http.Request, view func(app.Snapshot) any) {
	snap, err := s.state.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view(snap))
}

// dispatch publishes an intent and renders the resulting state. Both run
// under one exclusive section of the bus, so the response shows exactly
// what this intent produced.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, topic string, payload any, view func(app.Snapshot) any) {
	var (
		snap   app.Snapshot
		pubErr error
	)
	err := s.bus.Exclusive(r.Context(), func(ctx context.Context) error {
		pubErr = s.bus.Publish(ctx, topic, payload)

		var err error
		snap, err = s.state.Snapshot(ctx)
		return err
	})
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	if pubErr != nil {
		s.writeError(w, pubErr, orderView(snap))
		return
	}
	writeJSON(w, http.StatusOK, view(snap))
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	s.read(w, r, catalogView)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.state.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	product, ok := findProduct(snap, id)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id), nil)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) previewProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.dispatch(w, r, storefront.TopicProductSelect, storefront.ProductIntent{ProductID: id}, func(snap app.Snapshot) any {
		product, _ := findProduct(snap, id)
		return catalog.Preview{Product: product, CanAdd: !product.Selected}
	})
}

func findProduct(snap app.Snapshot, id string) (catalog.Product, bool) {
	for _, p := range snap.Catalog {
		if p.ID == id {
			return p, true
		}
	}
	return catalog.Product{}, false
}

func (s *Server) getBasket(w http.ResponseWriter, r *http.Request) {
	s.read(w, r, basketView)
}

func (s *Server) addToBasket(w http.ResponseWriter, r *http.Request) {
	intent := storefront.ProductIntent{ProductID: chi.URLParam(r, "id")}
	s.dispatch(w, r, storefront.TopicBasketAdd, intent, basketView)
}

func (s *Server) removeFromBasket(w http.ResponseWriter, r *http.Request) {
	intent := storefront.ProductIntent{ProductID: chi.URLParam(r, "id")}
	s.dispatch(w, r, storefront.TopicBasketRemove, intent, basketView)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, storefront.TopicBasketCheckout, struct{}{}, orderView)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	s.read(w, r, orderView)
}

type fieldBody struct {
	Value string `json:"value"`
}

func (s *Server) editField(w http.ResponseWriter, r *http.Request) {
	var body fieldBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err, nil)
		return
	}
	edit := storefront.FieldEdited{Field: chi.URLParam(r, "field"), Value: body.Value}
	s.dispatch(w, r, storefront.TopicFieldEdited, edit, orderView)
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := decodeBody(r, &fields); err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.dispatch(w, r, storefront.TopicOrderUpdate, storefront.OrderUpdate{Fields: fields}, orderView)
}

func (s *Server) closeOrder(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, storefront.TopicModalClosed, struct{}{}, orderView)
}

func (s *Server) submitShipping(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, storefront.TopicSubmitShipping, struct{}{}, orderView)
}

// submitContacts publishes the submit intent and waits for the order API
// outcome, which is published after the intent returns. A request that
// gives up first gets 202 with the order state at acceptance.
func (s *Server) submitContacts(w http.ResponseWriter, r *http.Request) {
	var (
		snap    app.Snapshot
		pubErr  error
		pending chan submission
	)
	err := s.bus.Exclusive(r.Context(), func(ctx context.Context) error {
		prev := s.pending
		ch := make(chan submission, 1)
		s.pending = ch
		if pubErr = s.bus.Publish(ctx, storefront.TopicSubmitContacts, struct{}{}); pubErr != nil {
			s.pending = prev
		} else {
			pending = ch
		}

		var err error
		snap, err = s.state.Snapshot(ctx)
		return err
	})
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	if pubErr != nil {
		s.writeError(w, pubErr, orderView(snap))
		return
	}

	select {
	case outcome := <-pending:
		s.writeSubmission(w, r, outcome)
	case <-r.Context().Done():
		s.logger.Warn("Request ended before the order API answered", "error", r.Context().Err())
		writeJSON(w, http.StatusAccepted, orderView(snap))
	}
}

func (s *Server) writeSubmission(w http.ResponseWriter, r *http.Request, outcome submission) {
	snap, err := s.state.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	if outcome.Error != "" {
		s.writeError(w, fmt.Errorf("%w: %s", order.ErrSubmissionFailed, outcome.Error), orderView(snap))
		return
	}
	writeJSON(w, http.StatusOK, SubmissionView{
		Result: outcome.Result,
		Order:  orderView(snap).(OrderView),
		Basket: snap.Basket,
	})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequestBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
