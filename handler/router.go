package handler

import (
	"log/slog"
	"net/http"
	"time"

	"deposito-ledger/storage"

	"github.com/gorilla/mux"
)

// NewRouter wires every route onto a gorilla/mux router.
func NewRouter(store storage.Store, settler Settler, logger *slog.Logger) *mux.Router {
	customers := NewCustomerHandler(store, logger)
	types := NewDepositoTypeHandler(store, logger)
	accounts := NewAccountHandler(store, settler, logger)
	transactions := NewTransactionHandler(settler, logger)

	r := mux.NewRouter()
	r.Use(requestLogger(logger))

	r.HandleFunc("/customers", customers.Create).Methods("POST")
	r.HandleFunc("/customers", customers.List).Methods("GET")
	r.HandleFunc("/customers/{id}", customers.Get).Methods("GET")
	r.HandleFunc("/customers/{id}", customers.Update).Methods("PUT")
	r.HandleFunc("/customers/{id}", customers.Delete).Methods("DELETE")
	r.HandleFunc("/customers/{id}/accounts", customers.Accounts).Methods("GET")

	r.HandleFunc("/deposito-types", types.Create).Methods("POST")
	r.HandleFunc("/deposito-types", types.List).Methods("GET")
	r.HandleFunc("/deposito-types/{id}", types.Get).Methods("GET")
	r.HandleFunc("/deposito-types/{id}", types.Update).Methods("PUT")
	r.HandleFunc("/deposito-types/{id}", types.Delete).Methods("DELETE")

	r.HandleFunc("/accounts", accounts.Create).Methods("POST")
	r.HandleFunc("/accounts", accounts.List).Methods("GET")
	r.HandleFunc("/accounts/{id}", accounts.Get).Methods("GET")
	r.HandleFunc("/accounts/{id}", accounts.Delete).Methods("DELETE")
	r.HandleFunc("/accounts/{id}/transactions", accounts.Transactions).Methods("GET")
	r.HandleFunc("/accounts/{id}/interest", accounts.Interest).Methods("GET")

	r.HandleFunc("/transactions", transactions.Create).Methods("POST")
	r.HandleFunc("/interest/calculate", CalculateInterest).Methods("POST")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start))
		})
	}
}
