package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/vitwit/paylink/types"
	"github.com/vitwit/paylink/utils"
)

const maxBodyBytes = 1 << 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type metadataResponse struct {
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

type transactionResponse struct {
	Transaction string `json:"transaction"`
	Message     string `json:"message,omitempty"`
}

type linkResponse struct {
	Address     string            `json:"address"`
	Owner       string            `json:"owner"`
	Index       uint8             `json:"index"`
	Amount      string            `json:"amount"`
	AmountMinor uint64            `json:"amountMinor"`
	Currency    types.CurrencyTag `json:"currency"`
	Reference   string            `json:"reference"`
}

type statusResponse struct {
	Status    types.SettlementStatus `json:"status"`
	Signature string                 `json:"signature,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// transactionMetadata answers the GET half of a Solana Pay transaction
// request.
func (s *Server) transactionMetadata(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, metadataResponse{Label: s.opts.Label, Icon: s.opts.Icon})
}

// createTransaction answers the POST half: the wallet sends its account and
// receives an unsigned transaction paying the link in ?link=.
func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	link, ok := s.loadLink(w, r, r.URL.Query().Get("link"))
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, types.NewError(types.ErrInvalidAddress, "failed to read request body"))
		return
	}
	req, err := utils.ParseTransactionRequest(body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}
	payer, err := utils.ValidateAddress(req.Account)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	encoded, err := s.svc.BuildSettlementTransaction(r.Context(), payer, link)
	if err != nil {
		s.log.Error("failed to build settlement transaction", map[string]any{
			"link":       link.Address.String(),
			"payer":      payer.String(),
			"error":      err.Error(),
			"request_id": RequestID(r.Context()),
		})
		s.respondError(w, statusFor(err), err)
		return
	}
	s.metrics.ObserveLatency("transaction_request", time.Since(start), nil)

	s.respondJSON(w, http.StatusOK, transactionResponse{Transaction: encoded, Message: s.opts.Message})
}

func (s *Server) getLink(w http.ResponseWriter, r *http.Request) {
	link, ok := s.loadLink(w, r, mux.Vars(r)["address"])
	if !ok {
		return
	}

	display, err := s.svc.FormatAmount(r.Context(), link)
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}

	s.respondJSON(w, http.StatusOK, linkResponse{
		Address:     link.Address.String(),
		Owner:       link.Owner.String(),
		Index:       link.Index,
		Amount:      display,
		AmountMinor: link.Amount,
		Currency:    link.Currency,
		Reference:   link.Reference.String(),
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	link, ok := s.loadLink(w, r, mux.Vars(r)["address"])
	if !ok {
		return
	}

	obs, err := s.svc.CheckSettlement(r.Context(), link)
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}

	resp := statusResponse{Status: obs.Status, Reason: obs.Reason}
	if obs.Signature != nil {
		resp.Signature = obs.Signature.String()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) verifySignature(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	link, ok := s.loadLink(w, r, vars["address"])
	if !ok {
		return
	}
	sig, err := utils.ValidateSignature(vars["signature"])
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.svc.VerifySettlement(r.Context(), link, sig)
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// watch streams one statusResponse per status change and closes once the
// link is paid or rejected. A client disconnect cancels the watcher.
func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	link, ok := s.loadLink(w, r, mux.Vars(r)["address"])
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the client never sends; a read error means it went away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// at most waiting plus one terminal status are ever delivered
	updates := make(chan types.SettlementStatus, 4)
	sub, err := s.svc.WatchSettlement(ctx, link, func(st types.SettlementStatus) {
		select {
		case updates <- st:
		case <-ctx.Done():
		}
	})
	if err != nil {
		_ = conn.WriteJSON(errorResponse{Error: err.Error(), Code: types.CodeOf(err)})
		return
	}
	defer sub.Cancel()

	s.log.Info("watching payment link", map[string]any{
		"link":         link.Address.String(),
		"subscription": sub.ID(),
	})

	send := func(st types.SettlementStatus) bool {
		msg := statusResponse{Status: st}
		if st.IsTerminal() {
			if obs := sub.Observation(); obs != nil {
				msg.Reason = obs.Reason
				if obs.Signature != nil {
					msg.Signature = obs.Signature.String()
				}
			}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(msg) == nil
	}

	for {
		select {
		case st := <-updates:
			if !send(st) {
				return
			}
		case <-sub.Done():
			for {
				select {
				case st := <-updates:
					if !send(st) {
						return
					}
				default:
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "settled"))
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) loadLink(w http.ResponseWriter, r *http.Request, raw string) (*types.PaymentLink, bool) {
	address, err := utils.ValidateAddress(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return nil, false
	}
	link, err := s.svc.GetPaymentLink(r.Context(), address)
	if err != nil {
		s.respondError(w, statusFor(err), err)
		return nil, false
	}
	return link, true
}

// statusFor maps an error's kind onto an HTTP status.
func statusFor(err error) int {
	switch types.KindOf(err) {
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindAlreadyExists, types.KindConcurrency:
		return http.StatusConflict
	case types.KindUnauthorized:
		return http.StatusForbidden
	case types.KindNetwork:
		return http.StatusServiceUnavailable
	case types.KindSemanticMismatch:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("json encode failed", map[string]any{"error": err.Error()})
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.respondJSON(w, status, errorResponse{Error: err.Error(), Code: types.CodeOf(err)})
}
