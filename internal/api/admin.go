// ABOUTME: Admin API for blocklist management, served via huma with OpenAPI 3.1.
// ABOUTME: Guarded by a static bearer token compared in constant time.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
)

// requireAdmin rejects requests whose Authorization bearer token does not
// match the configured admin token. Constant-time compare prevents timing
// probes of the token value.
func (srv *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(srv.cfg.AdminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// registerAdminRoutes mounts the huma-typed blocklist API on r.
func registerAdminRoutes(r chi.Router, srv *Server) {
	humaConfig := huma.DefaultConfig("Portfolio Gateway Admin API", "0.1.0")
	humaConfig.Info.Description = "Operational controls for the security gateway"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "list-blocklist",
		Method:      http.MethodGet,
		Path:        "/blocklist",
		Tags:        []string{"blocklist"},
		Summary:     "List blocked client addresses",
	}, srv.listBlocklistHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "block-address",
		Method:        http.MethodPost,
		Path:          "/blocklist",
		Tags:          []string{"blocklist"},
		Summary:       "Block a client address",
		DefaultStatus: http.StatusCreated,
	}, srv.blockAddressHandler)

	huma.Register(api, huma.Operation{
		OperationID:   "unblock-address",
		Method:        http.MethodDelete,
		Path:          "/blocklist/{address}",
		Tags:          []string{"blocklist"},
		Summary:       "Unblock a client address",
		DefaultStatus: http.StatusNoContent,
	}, srv.unblockAddressHandler)
}

// listBlocklistOutput is the response body for GET /admin/blocklist.
type listBlocklistOutput struct {
	Body struct {
		Addresses []string `json:"addresses"`
	}
}

func (srv *Server) listBlocklistHandler(_ context.Context, _ *struct{}) (*listBlocklistOutput, error) {
	out := &listBlocklistOutput{}
	out.Body.Addresses = srv.blocklist.List()
	return out, nil
}

// blockAddressInput is the request body for POST /admin/blocklist.
type blockAddressInput struct {
	Body struct {
		Address string `json:"address" minLength:"1" maxLength:"64" doc:"Client address to block"`
	}
}

type blockAddressOutput struct {
	Body struct {
		Address string `json:"address"`
		Blocked bool   `json:"blocked"`
	}
}

func (srv *Server) blockAddressHandler(_ context.Context, input *blockAddressInput) (*blockAddressOutput, error) {
	srv.blocklist.Block(input.Body.Address)
	out := &blockAddressOutput{}
	out.Body.Address = input.Body.Address
	out.Body.Blocked = true
	return out, nil
}

// unblockAddressInput carries the path parameter for DELETE /admin/blocklist/{address}.
type unblockAddressInput struct {
	Address string `path:"address" maxLength:"64" doc:"Client address to unblock"`
}

func (srv *Server) unblockAddressHandler(_ context.Context, input *unblockAddressInput) (*struct{}, error) {
	if !srv.blocklist.Unblock(input.Address) {
		return nil, huma.Error404NotFound("address is not blocked")
	}
	return nil, nil
}
