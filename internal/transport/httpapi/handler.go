package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
)

// Handler обслуживает REST-поверхность ядра заказов.
type Handler struct {
	orders      *order.Service
	payments    *order.PaymentService
	idempotency domain.IdempotencyRepository // nil-safe: без репозитория заголовок игнорируется
	logger      *log.Entry
}

// NewHandler создаёт обработчик. idempotency может быть nil — тогда
// Idempotency-Key на создании заказа не поддерживается.
func NewHandler(orders *order.Service, payments *order.PaymentService, idempotency domain.IdempotencyRepository, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{
		orders:      orders,
		payments:    payments,
		idempotency: idempotency,
		logger:      logger,
	}
}

// CreateOrder — POST /order/buy.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "cannot read request body")
		return
	}

	idemKey := r.Header.Get(headerIdempotencyKey)
	if idemKey != "" && h.idempotency != nil {
		if done := h.beginIdempotent(w, r, idemKey, body); done {
			return
		}
	}

	var req CreateOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.finishIdempotent(r, idemKey, http.StatusBadRequest, nil, false)
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	created, err := h.orders.Create(r.Context(), callerFrom(r), toCreateRequest(req))
	if err != nil {
		status, _ := mapError(err)
		h.finishIdempotent(r, idemKey, status, nil, false)
		writeDomainError(w, err)
		return
	}

	response := CreateOrderResponse{OrdersID: created.ID}
	responseBody, _ := json.Marshal(response)
	h.finishIdempotent(r, idemKey, http.StatusCreated, responseBody, true)

	writeJSON(w, http.StatusCreated, response)
}

func toCreateRequest(req CreateOrderRequest) order.CreateRequest {
	out := order.CreateRequest{
		Mode:             order.CreateMode(req.Mode),
		CartItemIDs:      req.ItemIDs,
		Address:          req.Address.toDomain(),
		ShippingFeeMinor: req.ShippingFee,
	}
	if req.ItemID != "" {
		out.Lines = []order.CreateLine{{ItemID: req.ItemID, Qty: req.Quantity}}
	}
	return out
}

// beginIdempotent регистрирует ключ; true означает, что ответ уже записан
// (повтор запроса или конфликт) и обработку продолжать не нужно.
func (h *Handler) beginIdempotent(w http.ResponseWriter, r *http.Request, key string, body []byte) bool {
	hash := sha256.Sum256(body)
	requestHash := hex.EncodeToString(hash[:])

	_, err := h.idempotency.CreateProcessing(r.Context(), key, requestHash, time.Now().UTC().Add(idempotencyTTL))
	if err == nil {
		return false
	}

	if errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		writeDomainError(w, err)
		return true
	}
	if errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		record, getErr := h.idempotency.Get(r.Context(), key)
		if getErr != nil {
			writeError(w, http.StatusConflict, "idempotency_conflict", "request with this key is already registered")
			return true
		}
		if record.RequestHash != requestHash {
			writeDomainError(w, domain.ErrIdempotencyHashMismatch)
			return true
		}
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(record.HTTPStatus)
			_, _ = w.Write(record.ResponseBody)
		default:
			writeError(w, http.StatusConflict, "idempotency_in_progress", "request with this key is still processing")
		}
		return true
	}

	h.logger.WithError(err).Warn("idempotency registration failed, proceeding without guard")
	return false
}

func (h *Handler) finishIdempotent(r *http.Request, key string, status int, responseBody []byte, success bool) {
	if key == "" || h.idempotency == nil {
		return
	}
	var err error
	if success {
		err = h.idempotency.MarkDone(r.Context(), key, responseBody, status)
	} else {
		err = h.idempotency.MarkFailed(r.Context(), key, responseBody, status)
	}
	if err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to finalize idempotency record")
	}
}

// GetOrder — GET /order/{ordersID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	detail, err := h.orders.Get(r.Context(), callerFrom(r), chi.URLParam(r, "ordersID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToDetail(detail))
}

// ListOrders — GET /order (администратор).
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r)
	orders, total, err := h.orders.List(r.Context(), callerFrom(r), page)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(orders, page, total))
}

// ListMemberOrders — GET /order/members/{memberID}.
func (h *Handler) ListMemberOrders(w http.ResponseWriter, r *http.Request) {
	page := pageFrom(r)
	orders, total, err := h.orders.ListByMember(r.Context(), callerFrom(r), chi.URLParam(r, "memberID"), page)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(orders, page, total))
}

// ERPReport — GET /order/admin/erp (администратор).
func (h *Handler) ERPReport(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilterFrom(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	page := pageFrom(r)
	orders, total, totals, err := h.orders.ERPReport(r.Context(), callerFrom(r), filter, page)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	content := make([]OrderSummaryDTO, 0, len(orders))
	for _, o := range orders {
		content = append(content, orderToSummary(o))
	}
	writeJSON(w, http.StatusOK, ReportResponse{
		Summary: ReportSummaryDTO{
			Orders:   totals.Orders,
			Subtotal: totals.SubtotalMinor,
			Shipping: totals.ShippingMinor,
			Total:    totals.TotalMinor,
		},
		Content:       content,
		Page:          page.Number,
		Size:          page.Limit(),
		TotalElements: total,
	})
}

// ChangeStatus — PATCH /order/{ordersID}/status?next=S (пользовательский путь).
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	next, err := statusFromAPI(r.URL.Query().Get("next"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := h.orders.ChangeStatusUser(r.Context(), callerFrom(r), chi.URLParam(r, "ordersID"), next)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToDetail(updated))
}

// AdminChangeStatus — POST /order/admin/{ordersID}/status?next=S&reason=R.
func (h *Handler) AdminChangeStatus(w http.ResponseWriter, r *http.Request) {
	next, err := statusFromAPI(r.URL.Query().Get("next"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := h.orders.ChangeStatusAdmin(r.Context(), callerFrom(r), chi.URLParam(r, "ordersID"), next, r.URL.Query().Get("reason"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToDetail(updated))
}

// UpdateAddress — PATCH /order/{ordersID}/address.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var req UpdateAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	updated, err := h.orders.UpdateAddress(r.Context(), callerFrom(r), chi.URLParam(r, "ordersID"), req.Address.toDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToDetail(updated))
}

// OrderEvents — GET /order/{ordersID}/events.
func (h *Handler) OrderEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.orders.Events(r.Context(), callerFrom(r), chi.URLParam(r, "ordersID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]OrderEventDTO, 0, len(events))
	for _, event := range events {
		dto := OrderEventDTO{
			Type:       event.Type,
			Reason:     event.Reason,
			OccurredAt: event.Occurred,
		}
		if event.From != "" {
			dto.From = statusToAPI(event.From)
		}
		if event.To != "" {
			dto.To = statusToAPI(event.To)
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

// PreparePayment — POST /api/pay/toss/prepare.
func (h *Handler) PreparePayment(w http.ResponseWriter, r *http.Request) {
	var req PrepareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	prep, err := h.payments.Prepare(r.Context(), callerFrom(r), req.OrderNo, domain.PaymentMethod(req.Method))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PrepareResponse{
		OrderID:     prep.GatewayOrderID,
		TotalAmount: prep.AmountMinor,
		OrderName:   prep.OrderName,
	})
}

// ConfirmPayment — POST /api/pay/toss/confirm. Успех отдаёт сырой ответ шлюза
// для аудита, повтор — {"status":"ALREADY_PAID"}.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	result, err := h.payments.Confirm(r.Context(), req.PaymentKey, req.OrderID, req.TotalAmount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if result.AlreadyPaid {
		writeJSON(w, http.StatusOK, AlreadyPaidResponse{Status: "ALREADY_PAID"})
		return
	}

	if len(result.Raw) > 0 && json.Valid(result.Raw) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Raw)
		return
	}
	writeJSON(w, http.StatusOK, orderToDetail(result.Order))
}

func pageFrom(r *http.Request) domain.Page {
	page := domain.Page{}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page.Number = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil {
		page.Size = v
	}
	return page
}

func toPageResponse(orders []domain.Order, page domain.Page, total int64) PageResponse {
	content := make([]OrderSummaryDTO, 0, len(orders))
	for _, o := range orders {
		content = append(content, orderToSummary(o))
	}
	return PageResponse{
		Content:       content,
		Page:          page.Number,
		Size:          page.Limit(),
		TotalElements: total,
	}
}

func reportFilterFrom(r *http.Request) (domain.ReportFilter, error) {
	query := r.URL.Query()

	filter := domain.ReportFilter{MemberID: query.Get("memberId")}

	// from и to обязательны: отчёт всегда строится по явному интервалу.
	rawFrom := query.Get("from")
	if rawFrom == "" {
		return domain.ReportFilter{}, newInvalidRequestError("query parameter %q is required", "from")
	}
	from, err := time.Parse(time.RFC3339, rawFrom)
	if err != nil {
		return domain.ReportFilter{}, errInvalidQueryTime("from", rawFrom)
	}
	filter.From = from

	rawTo := query.Get("to")
	if rawTo == "" {
		return domain.ReportFilter{}, newInvalidRequestError("query parameter %q is required", "to")
	}
	to, err := time.Parse(time.RFC3339, rawTo)
	if err != nil {
		return domain.ReportFilter{}, errInvalidQueryTime("to", rawTo)
	}
	filter.To = to
	if raw := query.Get("status"); raw != "" {
		status, err := statusFromAPI(raw)
		if err != nil {
			return domain.ReportFilter{}, err
		}
		filter.Status = status
	}

	return filter, nil
}

func errInvalidQueryTime(param, raw string) error {
	return newInvalidRequestError("query parameter %q must be RFC3339, got %q", param, raw)
}
