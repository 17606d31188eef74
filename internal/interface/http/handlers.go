package httpservice

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/arkade-os/swapd/internal/core/application"
	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/pkg/auth"
	arkerrors "github.com/arkade-os/swapd/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

const maxBodySize = 1 << 20

// SignedRequest is the body of every privileged call: the arguments of the
// operation and the proof authorizing them.
type SignedRequest[T any] struct {
	Args  T           `json:"args"`
	Proof *auth.Proof `json:"proof"`
}

type InitializeAdminRequest struct {
	Admin domain.AccountId `json:"admin"`
}

type GenerateMemoRequest struct {
	User  domain.AccountId `json:"user"`
	Token domain.TokenId   `json:"token"`
}

// NonceResponse carries the last nonce consumed for Signer; the next proof
// must use Nonce+1.
type NonceResponse struct {
	Signer domain.AccountId `json:"signer"`
	Nonce  uint64           `json:"nonce"`
}

type handler struct {
	version string
	svc     application.Service
}

func newRouter(version string, svc application.Service, cfg Config, m *metrics) http.Handler {
	h := &handler{version, svc}

	mux := chi.NewMux()
	mux.Use(requestId)
	mux.Use(middleware.RealIP)
	mux.Use(logger(m))
	mux.Use(panicRecovery)
	if cfg.RequestTimeout > 0 {
		mux.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	mux.Get("/healthz", h.health)
	mux.Handle("/metrics", m.handler())
	if cfg.EnablePprof {
		mux.Mount("/debug", middleware.Profiler())
	}

	mux.Route("/v1", func(r chi.Router) {
		if cfg.RatePerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.RatePerMinute, time.Minute))
		}

		r.Get("/info", h.getInfo)
		r.Get("/operation-id", h.getLastOperationId)
		r.Get("/nonces/{signer}", h.getNonce)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/init", h.initializeAdmin)
			r.Post("/operator", h.setOperator)
			r.Post("/proxy-wallets", h.registerProxyWallet)
			r.Post("/swap-router", h.setSwapRouter)
			r.Post("/upgrade", h.upgrade)
		})

		r.Get("/proxy-wallets", h.listProxyWallets)
		r.Post("/fees", h.setFee)
		r.Get("/fees", h.getFee)
		r.Get("/fees/{token}", h.getFee)

		r.Post("/requests", h.addRequest)
		r.Post("/requests/settle", h.settle)

		r.Get("/destinations", h.getDestinations)
		r.Get("/destinations/last-page", h.getDestinationsLastPage)
		r.Route("/destinations/{destination}", func(r chi.Router) {
			r.Get("/requests", h.getRequests)
			r.Get("/completed", h.getCompletedRequests)
			r.Get("/completed/last-page", h.getCompletedRequestsLastPage)
		})

		r.Get("/memos", h.getMemo)
		r.Post("/memos", h.generateMemo)
		r.Get("/memos/exists", h.hasMemo)
		r.Get("/memos/{memo}", h.resolveMemo)

		r.Route("/tokens/{token}", func(r chi.Router) {
			r.Get("/balances/{account}", h.getBalance)
			r.Post("/approve", h.approve)
			r.Post("/mint", h.mint)
		})
	})

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, arkerrors.VALUE_MISSING.New("no route %s %s", r.Method, r.URL.Path).
			WithMetadata(arkerrors.ValueMissingMetadata{Key: r.URL.Path}))
	})
	return mux
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

func (h *handler) getInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetInfo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handler) getLastOperationId(w http.ResponseWriter, r *http.Request) {
	opId, err := h.svc.GetLastOperationId(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"last_operation_id": opId})
}

func (h *handler) getNonce(w http.ResponseWriter, r *http.Request) {
	signer := domain.AccountId(chi.URLParam(r, "signer"))
	nonce, err := h.svc.GetNonce(r.Context(), signer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NonceResponse{Signer: signer, Nonce: nonce})
}

func (h *handler) initializeAdmin(w http.ResponseWriter, r *http.Request) {
	var req InitializeAdminRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.InitializeAdmin(r.Context(), req.Admin); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) setOperator(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSigned[application.SetOperatorArgs](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.SetOperator(r.Context(), req.Args, req.Proof); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req.Args)
}

func (h *handler) registerProxyWallet(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSigned[application.RegisterProxyWalletArgs](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.RegisterProxyWallet(r.Context(), req.Args, req.Proof); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req.Args)
}

func (h *handler) setSwapRouter(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSigned[application.SetSwapRouterArgs](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.SetSwapRouter(r.Context(), req.Args, req.Proof); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req.Args)
}

func (h *handler) upgrade(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSigned[application.UpgradeArgs](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Upgrade(r.Context(), req.Args, req.Proof); err != nil {
		writeError(w, r, err)
		return
	}
	h.getInfo(w, r)
}

func (h *handler) listProxyWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.svc.ListProxyWallets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proxy_wallets": wallets})
}

func (h *handler) setFee(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSigned[application.SetFeeArgs](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.SetFee(r.Context(), req.Args, req.Proof); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req.Args)
}

// getFee serves both the global fee and the fee of a token.
func (h *handler) getFee(w http.ResponseWriter, r *http.Request) {
	token := domain.TokenId(chi.URLParam(r, "token"))
	fee, err := h.svc.GetFee(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "fee": fee})
}

func (h *handler) addRequest(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSigned[application.AddRequestArgs](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	request, err := h.svc.AddRequest(r.Context(), req.Args, req.Proof)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *handler) settle(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSigned[application.SettleArgs](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	amountOut, err := h.svc.Settle(r.Context(), req.Args, req.Proof)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"amount_out": amountOut})
}

func (h *handler) getDestinations(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	destinations, err := h.svc.GetDestinations(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": page, "destinations": destinations})
}

func (h *handler) getDestinationsLastPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.GetDestinationsLastPage(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"last_page": page})
}

func (h *handler) getRequests(w http.ResponseWriter, r *http.Request) {
	destination := domain.AccountId(chi.URLParam(r, "destination"))
	requests, err := h.svc.GetRequests(r.Context(), destination)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *handler) getCompletedRequests(w http.ResponseWriter, r *http.Request) {
	destination := domain.AccountId(chi.URLParam(r, "destination"))
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	requests, err := h.svc.GetCompletedRequests(r.Context(), destination, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": page, "requests": requests})
}

func (h *handler) getCompletedRequestsLastPage(w http.ResponseWriter, r *http.Request) {
	destination := domain.AccountId(chi.URLParam(r, "destination"))
	page, err := h.svc.GetCompletedRequestsLastPage(r.Context(), destination)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"last_page": page})
}

func (h *handler) getMemo(w http.ResponseWriter, r *http.Request) {
	user, token := memoPair(r)
	memo, err := h.svc.GetMemo(r.Context(), user, token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memo": memo, "user": user, "token": token})
}

func (h *handler) generateMemo(w http.ResponseWriter, r *http.Request) {
	var req GenerateMemoRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	memo, err := h.svc.GenerateMemo(r.Context(), req.User, req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memo": memo, "user": req.User, "token": req.Token})
}

func (h *handler) hasMemo(w http.ResponseWriter, r *http.Request) {
	user, token := memoPair(r)
	exists, err := h.svc.HasMemo(r.Context(), user, token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exists": exists})
}

func (h *handler) resolveMemo(w http.ResponseWriter, r *http.Request) {
	memo := domain.Memo(chi.URLParam(r, "memo"))
	owner, err := h.svc.ResolveMemo(r.Context(), memo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memo": memo, "user": owner.User, "token": owner.Token})
}

func (h *handler) getBalance(w http.ResponseWriter, r *http.Request) {
	token := domain.TokenId(chi.URLParam(r, "token"))
	account := domain.AccountId(chi.URLParam(r, "account"))
	balance, err := h.svc.GetBalance(r.Context(), token, account)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token, "account": account, "balance": balance,
	})
}

func (h *handler) approve(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSigned[application.ApproveArgs](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := matchToken(r, req.Args.Token); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Approve(r.Context(), req.Args, req.Proof); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req.Args)
}

func (h *handler) mint(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSigned[application.MintArgs](w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := matchToken(r, req.Args.Token); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Mint(r.Context(), req.Args, req.Proof); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req.Args)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return arkerrors.INVALID_ARGUMENT.New("invalid request body: %s", err).
			WithMetadata(map[string]any{"path": r.URL.Path})
	}
	return nil
}

func decodeSigned[T any](w http.ResponseWriter, r *http.Request) (*SignedRequest[T], error) {
	var req SignedRequest[T]
	if err := decode(w, r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func parsePage(r *http.Request) (uint32, error) {
	s := r.URL.Query().Get("page")
	if s == "" {
		return 0, nil
	}
	page, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, arkerrors.INVALID_ARGUMENT.New("invalid page %q", s).
			WithMetadata(map[string]any{"page": s})
	}
	return uint32(page), nil
}

func memoPair(r *http.Request) (domain.AccountId, domain.TokenId) {
	query := r.URL.Query()
	return domain.AccountId(query.Get("user")), domain.TokenId(query.Get("token"))
}

// matchToken rejects bodies signed for a token other than the one in the
// path.
func matchToken(r *http.Request, token domain.TokenId) error {
	if pathToken := domain.TokenId(chi.URLParam(r, "token")); pathToken != token {
		return arkerrors.INVALID_ARGUMENT.New(
			"token %s does not match path token %s", token, pathToken,
		).WithMetadata(map[string]any{"token": string(token)})
	}
	return nil
}
