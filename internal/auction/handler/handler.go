// Package handler exposes the auction engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"gavel/internal/auction/models"
	"gavel/internal/platform/middleware"
	"gavel/internal/transport/http/shared"
	"gavel/pkg/domain"
	dErrors "gavel/pkg/domain-errors"
)

// Service defines the auction operations the handler invokes.
type Service interface {
	Create(ctx context.Context, p models.ListingTerms) (*models.Listing, error)
	Get(ctx context.Context, id domain.ListingID) (*models.Listing, error)
	List(ctx context.Context) ([]*models.Listing, error)
	ListBids(ctx context.Context, id domain.ListingID) ([]*models.BidSubmission, error)
	Purchase(ctx context.Context, id domain.ListingID, buyer domain.Address, payment decimal.Decimal) error
	SubmitBid(ctx context.Context, id domain.ListingID, bidder domain.Address, sealed string) (*models.Listing, error)
	Settle(ctx context.Context, id domain.ListingID, actor domain.Address, minOut decimal.Decimal) error
}

// Handler handles listing, bid, and settlement endpoints.
type Handler struct {
	auctions  Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(auctions Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{auctions: auctions, logger: logger, validator: validator}
}

// Register registers the auction routes with the chi router. Reads are
// public; every mutation requires an authenticated caller, who acts as
// creator, buyer, bidder, or settling operator.
func (h *Handler) Register(r chi.Router) {
	r.Get("/listings", h.handleList)
	r.Get("/listings/{id}", h.handleGet)
	r.Get("/listings/{id}/bids", h.handleListBids)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/listings", h.handleCreate)
		r.Post("/listings/{id}/purchase", h.handlePurchase)
		r.Post("/listings/{id}/bids", h.handleSubmitBid)
		r.Post("/listings/{id}/settle", h.handleSettle)
	})
}

type createRequest struct {
	UnitPrice   decimal.Decimal `json:"unit_price"`
	EditionSize uint32          `json:"edition_size"`
	RoyaltyRate int64           `json:"royalty_rate"`
	EndsAt      *time.Time      `json:"ends_at,omitempty"`
}

type listingResponse struct {
	ID          string          `json:"id"`
	Creator     domain.Address  `json:"creator"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	EditionSize uint32          `json:"edition_size"`
	RoyaltyRate int64           `json:"royalty_rate"`
	SoldCount   uint32          `json:"sold_count"`
	BestBid     decimal.Decimal `json:"best_bid"`
	BestBidder  domain.Address  `json:"best_bidder,omitempty"`
	Closed      bool            `json:"closed"`
	EndsAt      *time.Time      `json:"ends_at,omitempty"`
}

func toListingResponse(l *models.Listing) listingResponse {
	resp := listingResponse{
		ID:          l.ID.String(),
		Creator:     l.Creator,
		UnitPrice:   l.UnitPrice,
		EditionSize: l.EditionSize,
		RoyaltyRate: l.RoyaltyRate,
		SoldCount:   l.SoldCount,
		BestBid:     l.BestBid,
		BestBidder:  l.BestBidder,
		Closed:      l.AuctionClosed,
	}
	if !l.EndsAt.IsZero() {
		endsAt := l.EndsAt
		resp.EndsAt = &endsAt
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	terms := models.ListingTerms{
		Creator:     middleware.GetCaller(ctx),
		UnitPrice:   req.UnitPrice,
		EditionSize: req.EditionSize,
		RoyaltyRate: req.RoyaltyRate,
	}
	if req.EndsAt != nil {
		terms.EndsAt = *req.EndsAt
	}

	l, err := h.auctions.Create(ctx, terms)
	if err != nil {
		h.logError(ctx, "create listing failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toListingResponse(l))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseListingID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	l, err := h.auctions.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toListingResponse(l))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	listings, err := h.auctions.List(r.Context())
	if err != nil {
		h.logError(r.Context(), "list listings failed", err)
		shared.WriteError(w, err)
		return
	}
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, toListingResponse(l))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type bidSubmissionResponse struct {
	Bidder     domain.Address `json:"bidder"`
	Sealed     string         `json:"sealed"`
	ReceivedAt time.Time      `json:"received_at"`
}

func (h *Handler) handleListBids(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseListingID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	subs, err := h.auctions.ListBids(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]bidSubmissionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, bidSubmissionResponse{
			Bidder:     sub.Bidder,
			Sealed:     sub.Sealed,
			ReceivedAt: sub.ReceivedAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

type purchaseRequest struct {
	Payment decimal.Decimal `json:"payment"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseListingID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.auctions.Purchase(ctx, id, middleware.GetCaller(ctx), req.Payment); err != nil {
		h.logError(ctx, "purchase failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitBidRequest struct {
	Sealed string `json:"sealed"`
}

func (h *Handler) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseListingID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req submitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Sealed == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	l, err := h.auctions.SubmitBid(ctx, id, middleware.GetCaller(ctx), req.Sealed)
	if err != nil {
		h.logError(ctx, "bid rejected", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toListingResponse(l))
}

type settleRequest struct {
	MinOut decimal.Decimal `json:"min_out"`
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseListingID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	// Body is optional: an empty body settles with the policy default guard.
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.auctions.Settle(ctx, id, middleware.GetCaller(ctx), req.MinOut); err != nil {
		h.logError(ctx, "settlement failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(ctx),
	)
}
