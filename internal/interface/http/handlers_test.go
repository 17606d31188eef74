package httpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arkade-os/swapd/internal/core/application"
	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	badgerdb "github.com/arkade-os/swapd/internal/infrastructure/db/badger"
	staticrouter "github.com/arkade-os/swapd/internal/infrastructure/router/static"
	"github.com/arkade-os/swapd/internal/infrastructure/token"
	"github.com/arkade-os/swapd/pkg/auth"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const testVersion = "v0.0.0-test"

type testServer struct {
	*httptest.Server
	admin *btcec.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	store, err := badgerdb.NewStore("", nil, time.Duration(0))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	ledger := token.NewLedger()
	svc, err := application.NewService(
		store, ledger, []ports.SwapRouter{staticrouter.NewRouter("router", ledger)}, nil,
		application.Config{CustodyAccount: "custody", RejectZeroOutput: true},
	)
	require.NoError(t, err)

	cfg := Config{Port: 7080, RatePerMinute: 1000, RequestTimeout: 5 * time.Second}
	srv := httptest.NewServer(newRouter(testVersion, svc, cfg, newMetrics()))
	t.Cleanup(srv.Close)

	admin, err := auth.NewPrivateKey()
	require.NoError(t, err)
	return &testServer{srv, admin}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	// nolint
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf
}

func (s *testServer) initAdmin(t *testing.T) {
	t.Helper()
	status, _ := s.do(t, http.MethodPost, "/v1/admin/init", InitializeAdminRequest{
		Admin: domain.AccountId(auth.PubKey(s.admin)),
	})
	require.Equal(t, http.StatusOK, status)
}

func (s *testServer) nonce(t *testing.T, key *btcec.PrivateKey) uint64 {
	t.Helper()
	status, body := s.do(t, http.MethodGet, "/v1/nonces/"+auth.PubKey(key), nil)
	require.Equal(t, http.StatusOK, status)
	var resp NonceResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Nonce
}

func signed[T any](
	t *testing.T, srv *testServer, key *btcec.PrivateKey, op string, args T,
) SignedRequest[T] {
	t.Helper()
	proof, err := auth.Sign(key, op, srv.nonce(t, key)+1, args)
	require.NoError(t, err)
	return SignedRequest[T]{Args: args, Proof: proof}
}

func requireError(t *testing.T, body []byte, code uint16, name string) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, code, resp.Code)
	require.Equal(t, name, resp.Name)
	require.NotEmpty(t, resp.Message)
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), testVersion)

	status, body = srv.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), "swapd_http_requests_total")
	require.Contains(t, string(body), `route="/healthz"`)
}

func TestAdminFlow(t *testing.T) {
	srv := newTestServer(t)

	t.Run("privileged calls before init", func(t *testing.T) {
		args := application.SetOperatorArgs{Operator: "operator"}
		status, body := srv.do(
			t, http.MethodPost, "/v1/admin/operator",
			signed(t, srv, srv.admin, application.OpSetOperator, args),
		)
		require.Equal(t, http.StatusBadRequest, status)
		requireError(t, body, 6, "NOT_INITIALIZED")
	})

	srv.initAdmin(t)

	t.Run("init twice", func(t *testing.T) {
		status, body := srv.do(t, http.MethodPost, "/v1/admin/init", InitializeAdminRequest{
			Admin: "someone-else",
		})
		require.Equal(t, http.StatusConflict, status)
		requireError(t, body, 201, "ALREADY_INITIALIZED")
	})

	operator, err := auth.NewPrivateKey()
	require.NoError(t, err)
	args := application.SetOperatorArgs{Operator: domain.AccountId(auth.PubKey(operator))}

	t.Run("wrong signer", func(t *testing.T) {
		status, body := srv.do(
			t, http.MethodPost, "/v1/admin/operator",
			signed(t, srv, operator, application.OpSetOperator, args),
		)
		require.Equal(t, http.StatusForbidden, status)
		requireError(t, body, 5, "UNAUTHORIZED")
	})

	t.Run("tampered arguments", func(t *testing.T) {
		req := signed(t, srv, srv.admin, application.OpSetOperator, args)
		req.Args.Operator = "mallory"
		status, body := srv.do(t, http.MethodPost, "/v1/admin/operator", req)
		require.Equal(t, http.StatusForbidden, status)
		requireError(t, body, 5, "UNAUTHORIZED")
	})

	t.Run("set operator", func(t *testing.T) {
		status, _ := srv.do(
			t, http.MethodPost, "/v1/admin/operator",
			signed(t, srv, srv.admin, application.OpSetOperator, args),
		)
		require.Equal(t, http.StatusOK, status)

		status, body := srv.do(t, http.MethodGet, "/v1/info", nil)
		require.Equal(t, http.StatusOK, status)
		var info application.ServiceInfo
		require.NoError(t, json.Unmarshal(body, &info))
		require.Equal(t, domain.AccountId(auth.PubKey(srv.admin)), info.Admin)
		require.Equal(t, args.Operator, info.Operator)
		require.Equal(t, domain.AccountId("custody"), info.CustodyAccount)
	})

	t.Run("replayed proof", func(t *testing.T) {
		revoke := application.SetOperatorArgs{Operator: "retired"}
		req := signed(t, srv, srv.admin, application.OpSetOperator, revoke)
		status, _ := srv.do(t, http.MethodPost, "/v1/admin/operator", req)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, req.Proof.Nonce, srv.nonce(t, srv.admin))

		status, body := srv.do(t, http.MethodPost, "/v1/admin/operator", req)
		require.Equal(t, http.StatusForbidden, status)
		requireError(t, body, 5, "UNAUTHORIZED")
	})
}

func TestMemoRoutes(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodGet, "/v1/memos/exists?user=bob&token=xlm", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"exists":false}`, string(body))

	status, body = srv.do(t, http.MethodPost, "/v1/memos", GenerateMemoRequest{
		User: "bob", Token: "xlm",
	})
	require.Equal(t, http.StatusOK, status)
	var generated struct {
		Memo domain.Memo `json:"memo"`
	}
	require.NoError(t, json.Unmarshal(body, &generated))
	require.Equal(t, domain.InitialMemo, generated.Memo)

	status, body = srv.do(t, http.MethodGet, "/v1/memos?user=bob&token=xlm", nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), string(generated.Memo))

	status, body = srv.do(t, http.MethodGet, "/v1/memos/"+string(generated.Memo), nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"memo":"`+string(generated.Memo)+`","user":"bob","token":"xlm"}`, string(body))

	status, body = srv.do(t, http.MethodGet, "/v1/memos/"+string(domain.NextMemo(generated.Memo)), nil)
	require.Equal(t, http.StatusNotFound, status)
	requireError(t, body, 502, "VALUE_MISSING")
}

func TestErrorResponses(t *testing.T) {
	srv := newTestServer(t)
	srv.initAdmin(t)

	fixtures := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		code    uint16
		errName string
	}{
		{
			name:    "unknown route",
			method:  http.MethodGet,
			path:    "/v1/nope",
			status:  http.StatusNotFound,
			code:    502,
			errName: "VALUE_MISSING",
		},
		{
			name:    "malformed body",
			method:  http.MethodPost,
			path:    "/v1/admin/init",
			body:    `{"admin":`,
			status:  http.StatusBadRequest,
			code:    1,
			errName: "INVALID_ARGUMENT",
		},
		{
			name:    "unknown field",
			method:  http.MethodPost,
			path:    "/v1/memos",
			body:    `{"user":"bob","token":"xlm","extra":1}`,
			status:  http.StatusBadRequest,
			code:    1,
			errName: "INVALID_ARGUMENT",
		},
		{
			name:    "invalid page",
			method:  http.MethodGet,
			path:    "/v1/destinations?page=first",
			status:  http.StatusBadRequest,
			code:    1,
			errName: "INVALID_ARGUMENT",
		},
		{
			name:   "token mismatch",
			method: http.MethodPost,
			path:   "/v1/tokens/usdc/mint",
			body: SignedRequest[application.MintArgs]{Args: application.MintArgs{
				Token: "xlm", To: "bob", Amount: domain.NewAmount(1),
			}},
			status:  http.StatusBadRequest,
			code:    1,
			errName: "INVALID_ARGUMENT",
		},
		{
			name:    "unregistered memo",
			method:  http.MethodGet,
			path:    "/v1/memos/" + string(domain.InitialMemo),
			status:  http.StatusNotFound,
			code:    502,
			errName: "VALUE_MISSING",
		},
	}
	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			status, body := srv.do(t, f.method, f.path, f.body)
			require.Equal(t, f.status, status)
			requireError(t, body, f.code, f.errName)
		})
	}

	t.Run("empty pages", func(t *testing.T) {
		status, body := srv.do(t, http.MethodGet, "/v1/destinations?page=3", nil)
		require.Equal(t, http.StatusOK, status)
		require.JSONEq(t, `{"page":3,"destinations":[]}`, string(body))
	})
}

func TestMiddlewares(t *testing.T) {
	mux := chi.NewMux()
	mux.Use(requestId)
	mux.Use(logger(newMetrics()))
	mux.Use(panicRecovery)
	mux.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	mux.Get("/id", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": getRequestId(r.Context())})
	})

	t.Run("panic recovery", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		requireError(t, rec.Body.Bytes(), 0, "INTERNAL_ERROR")
	})

	t.Run("request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/id", nil))
		id := rec.Header().Get(requestIdHeader)
		require.NotEmpty(t, id)
		require.JSONEq(t, `{"id":"`+id+`"}`, rec.Body.String())

		const callerId = "6f1c1a2e-4a57-4c5a-9d47-0f3d8c2b1e11"
		req := httptest.NewRequest(http.MethodGet, "/id", nil)
		req.Header.Set(requestIdHeader, callerId)
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		require.Equal(t, callerId, rec.Header().Get(requestIdHeader))

		req = httptest.NewRequest(http.MethodGet, "/id", nil)
		req.Header.Set(requestIdHeader, "not-a-uuid")
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		require.NotEqual(t, "not-a-uuid", rec.Header().Get(requestIdHeader))
	})
}
