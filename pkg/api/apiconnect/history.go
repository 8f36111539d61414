package apiconnect

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitsmart/pkg/api"
)

// HistoryServiceName is the fully-qualified name of the HistoryService.
const HistoryServiceName = "splitsmart.v1.HistoryService"

// Procedure names for the HistoryService.
const (
	HistoryServiceSaveSplitProcedure    = "/splitsmart.v1.HistoryService/SaveSplit"
	HistoryServiceListSplitsProcedure   = "/splitsmart.v1.HistoryService/ListSplits"
	HistoryServiceGetSplitProcedure     = "/splitsmart.v1.HistoryService/GetSplit"
	HistoryServiceDeleteSplitProcedure  = "/splitsmart.v1.HistoryService/DeleteSplit"
	HistoryServiceClearHistoryProcedure = "/splitsmart.v1.HistoryService/ClearHistory"
	HistoryServiceRestoreSplitProcedure = "/splitsmart.v1.HistoryService/RestoreSplit"
)

// HistoryServiceHandler stores and restores saved splits.
type HistoryServiceHandler interface {
	SaveSplit(context.Context, *connect.Request[api.SaveSplitRequest]) (*connect.Response[api.SaveSplitResponse], error)
	ListSplits(context.Context, *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error)
	GetSplit(context.Context, *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error)
	DeleteSplit(context.Context, *connect.Request[api.DeleteSplitRequest]) (*connect.Response[api.DeleteSplitResponse], error)
	ClearHistory(context.Context, *connect.Request[api.ClearHistoryRequest]) (*connect.Response[api.ClearHistoryResponse], error)
	RestoreSplit(context.Context, *connect.Request[api.RestoreSplitRequest]) (*connect.Response[api.SessionResponse], error)
}

// NewHistoryServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewHistoryServiceHandler(svc HistoryServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.JSONCodec{})}, opts...)
	saveSplitHandler := connect.NewUnaryHandler(HistoryServiceSaveSplitProcedure, svc.SaveSplit, opts...)
	listSplitsHandler := connect.NewUnaryHandler(HistoryServiceListSplitsProcedure, svc.ListSplits, opts...)
	getSplitHandler := connect.NewUnaryHandler(HistoryServiceGetSplitProcedure, svc.GetSplit, opts...)
	deleteSplitHandler := connect.NewUnaryHandler(HistoryServiceDeleteSplitProcedure, svc.DeleteSplit, opts...)
	clearHistoryHandler := connect.NewUnaryHandler(HistoryServiceClearHistoryProcedure, svc.ClearHistory, opts...)
	restoreSplitHandler := connect.NewUnaryHandler(HistoryServiceRestoreSplitProcedure, svc.RestoreSplit, opts...)
	return "/" + HistoryServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case HistoryServiceSaveSplitProcedure:
			saveSplitHandler.ServeHTTP(w, r)
		case HistoryServiceListSplitsProcedure:
			listSplitsHandler.ServeHTTP(w, r)
		case HistoryServiceGetSplitProcedure:
			getSplitHandler.ServeHTTP(w, r)
		case HistoryServiceDeleteSplitProcedure:
			deleteSplitHandler.ServeHTTP(w, r)
		case HistoryServiceClearHistoryProcedure:
			clearHistoryHandler.ServeHTTP(w, r)
		case HistoryServiceRestoreSplitProcedure:
			restoreSplitHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// HistoryServiceClient is a client for the HistoryService.
type HistoryServiceClient struct {
	saveSplit    *connect.Client[api.SaveSplitRequest, api.SaveSplitResponse]
	listSplits   *connect.Client[api.ListSplitsRequest, api.ListSplitsResponse]
	getSplit     *connect.Client[api.GetSplitRequest, api.GetSplitResponse]
	deleteSplit  *connect.Client[api.DeleteSplitRequest, api.DeleteSplitResponse]
	clearHistory *connect.Client[api.ClearHistoryRequest, api.ClearHistoryResponse]
	restoreSplit *connect.Client[api.RestoreSplitRequest, api.SessionResponse]
}

// NewHistoryServiceClient constructs a client for the HistoryService. baseURL is the
// server root, e.g. http://localhost:8080.
func NewHistoryServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *HistoryServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(api.JSONCodec{})}, opts...)
	return &HistoryServiceClient{
		saveSplit: connect.NewClient[api.SaveSplitRequest, api.SaveSplitResponse](httpClient, baseURL+HistoryServiceSaveSplitProcedure, opts...),
		listSplits: connect.NewClient[api.ListSplitsRequest, api.ListSplitsResponse](httpClient, baseURL+HistoryServiceListSplitsProcedure, opts...),
		getSplit: connect.NewClient[api.GetSplitRequest, api.GetSplitResponse](httpClient, baseURL+HistoryServiceGetSplitProcedure, opts...),
		deleteSplit: connect.NewClient[api.DeleteSplitRequest, api.DeleteSplitResponse](httpClient, baseURL+HistoryServiceDeleteSplitProcedure, opts...),
		clearHistory: connect.NewClient[api.ClearHistoryRequest, api.ClearHistoryResponse](httpClient, baseURL+HistoryServiceClearHistoryProcedure, opts...),
		restoreSplit: connect.NewClient[api.RestoreSplitRequest, api.SessionResponse](httpClient, baseURL+HistoryServiceRestoreSplitProcedure, opts...),
	}
}

func (c *HistoryServiceClient) SaveSplit(ctx context.Context, req *connect.Request[api.SaveSplitRequest]) (*connect.Response[api.SaveSplitResponse], error) {
	return c.saveSplit.CallUnary(ctx, req)
}

func (c *HistoryServiceClient) ListSplits(ctx context.Context, req *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error) {
	return c.listSplits.CallUnary(ctx, req)
}

func (c *HistoryServiceClient) GetSplit(ctx context.Context, req *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error) {
	return c.getSplit.CallUnary(ctx, req)
}

func (c *HistoryServiceClient) DeleteSplit(ctx context.Context, req *connect.Request[api.DeleteSplitRequest]) (*connect.Response[api.DeleteSplitResponse], error) {
	return c.deleteSplit.CallUnary(ctx, req)
}

func (c *HistoryServiceClient) ClearHistory(ctx context.Context, req *connect.Request[api.ClearHistoryRequest]) (*connect.Response[api.ClearHistoryResponse], error) {
	return c.clearHistory.CallUnary(ctx, req)
}

func (c *HistoryServiceClient) RestoreSplit(ctx context.Context, req *connect.Request[api.RestoreSplitRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.restoreSplit.CallUnary(ctx, req)
}

// UnimplementedHistoryServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedHistoryServiceHandler struct{}

func (UnimplementedHistoryServiceHandler) SaveSplit(context.Context, *connect.Request[api.SaveSplitRequest]) (*connect.Response[api.SaveSplitResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.HistoryService.SaveSplit is not implemented"))
}

func (UnimplementedHistoryServiceHandler) ListSplits(context.Context, *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.HistoryService.ListSplits is not implemented"))
}

func (UnimplementedHistoryServiceHandler) GetSplit(context.Context, *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.HistoryService.GetSplit is not implemented"))
}

func (UnimplementedHistoryServiceHandler) DeleteSplit(context.Context, *connect.Request[api.DeleteSplitRequest]) (*connect.Response[api.DeleteSplitResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.HistoryService.DeleteSplit is not implemented"))
}

func (UnimplementedHistoryServiceHandler) ClearHistory(context.Context, *connect.Request[api.ClearHistoryRequest]) (*connect.Response[api.ClearHistoryResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.HistoryService.ClearHistory is not implemented"))
}

func (UnimplementedHistoryServiceHandler) RestoreSplit(context.Context, *connect.Request[api.RestoreSplitRequest]) (*connect.Response[api.SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.HistoryService.RestoreSplit is not implemented"))
}
