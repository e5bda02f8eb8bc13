package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/veridocproj/veridoc/internal/api"
	"github.com/veridocproj/veridoc/internal/calllog"
	"github.com/veridocproj/veridoc/internal/svcctx"
)

// CallsResponse contains a list of provider calls.
type CallsResponse struct {
	Calls []calllog.Call `json:"calls"`
	Total int            `json:"total"`
}

// CallCountsResponse contains per-provider call counts.
type CallCountsResponse struct {
	Counts map[string]int `json:"counts"`
}

// ListCallsEndpoint handles GET /calls.
type ListCallsEndpoint struct{}

func (e *ListCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/calls", e.handler
}

func (e *ListCallsEndpoint) RequiresInit() bool { return true }

func (e *ListCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.CallsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "call log not available")
		return
	}

	q := r.URL.Query()

	if id := q.Get("verification_id"); id != "" {
		calls, err := store.ByVerification(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, CallsResponse{Calls: calls, Total: len(calls)})
		return
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %q must be an integer", v))
			return
		}
		if n > 0 {
			limit = n
		}
	}

	calls, err := store.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CallsResponse{Calls: calls, Total: len(calls)})
}

func (e *ListCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var verificationID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List provider calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			params := url.Values{}
			if verificationID != "" {
				params.Set("verification_id", verificationID)
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}

			path := "/calls"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var resp CallsResponse
			if err := client.Get(ctx, path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&verificationID, "verification-id", "", "Filter by verification call ID")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")
	return cmd
}

// CallCountsEndpoint handles GET /calls/counts.
type CallCountsEndpoint struct{}

func (e *CallCountsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/calls/counts", e.handler
}

func (e *CallCountsEndpoint) RequiresInit() bool { return true }

func (e *CallCountsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.CallsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "call log not available")
		return
	}

	counts, err := store.CountByProvider(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CallCountsResponse{Counts: counts})
}

func (e *CallCountsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Get call counts by provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CallCountsResponse
			if err := client.Get(cmd.Context(), "/calls/counts", &resp); err != nil {
				return err
			}
			return api.Output(resp.Counts)
		},
	}
}
