// Package apiconnect wires the SplitSmart services to connect: procedure
// names, HTTP handlers and typed clients.
package apiconnect

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitsmart/pkg/api"
)

// SplitServiceName is the fully-qualified name of the SplitService.
const SplitServiceName = "splitsmart.v1.SplitService"

// Procedure names for the SplitService.
const (
	SplitServiceCalculateSplitProcedure        = "/splitsmart.v1.SplitService/CalculateSplit"
	SplitServiceStartSessionProcedure          = "/splitsmart.v1.SplitService/StartSession"
	SplitServiceGetSessionProcedure            = "/splitsmart.v1.SplitService/GetSession"
	SplitServiceUploadReceiptProcedure         = "/splitsmart.v1.SplitService/UploadReceipt"
	SplitServiceSendMessageProcedure           = "/splitsmart.v1.SplitService/SendMessage"
	SplitServiceUpdateItemProcedure            = "/splitsmart.v1.SplitService/UpdateItem"
	SplitServiceAssignItemProcedure            = "/splitsmart.v1.SplitService/AssignItem"
	SplitServiceSetManualSplitProcedure        = "/splitsmart.v1.SplitService/SetManualSplit"
	SplitServiceSetOverridesProcedure          = "/splitsmart.v1.SplitService/SetOverrides"
	SplitServiceSetDistributionMethodProcedure = "/splitsmart.v1.SplitService/SetDistributionMethod"
	SplitServiceUndoProcedure                  = "/splitsmart.v1.SplitService/Undo"
	SplitServiceRedoProcedure                  = "/splitsmart.v1.SplitService/Redo"
)

// SplitServiceHandler computes settlements and drives the editing session:
// receipt upload, chat commands, manual edits and undo/redo.
type SplitServiceHandler interface {
	CalculateSplit(context.Context, *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error)
	StartSession(context.Context, *connect.Request[api.StartSessionRequest]) (*connect.Response[api.StartSessionResponse], error)
	GetSession(context.Context, *connect.Request[api.GetSessionRequest]) (*connect.Response[api.SessionResponse], error)
	UploadReceipt(context.Context, *connect.Request[api.UploadReceiptRequest]) (*connect.Response[api.ChatResponse], error)
	SendMessage(context.Context, *connect.Request[api.SendMessageRequest]) (*connect.Response[api.ChatResponse], error)
	UpdateItem(context.Context, *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.SessionResponse], error)
	AssignItem(context.Context, *connect.Request[api.AssignItemRequest]) (*connect.Response[api.SessionResponse], error)
	SetManualSplit(context.Context, *connect.Request[api.SetManualSplitRequest]) (*connect.Response[api.SessionResponse], error)
	SetOverrides(context.Context, *connect.Request[api.SetOverridesRequest]) (*connect.Response[api.SessionResponse], error)
	SetDistributionMethod(context.Context, *connect.Request[api.SetDistributionMethodRequest]) (*connect.Response[api.SessionResponse], error)
	Undo(context.Context, *connect.Request[api.UndoRequest]) (*connect.Response[api.SessionResponse], error)
	Redo(context.Context, *connect.Request[api.RedoRequest]) (*connect.Response[api.SessionResponse], error)
}

// NewSplitServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewSplitServiceHandler(svc SplitServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.JSONCodec{})}, opts...)
	calculateSplitHandler := connect.NewUnaryHandler(SplitServiceCalculateSplitProcedure, svc.CalculateSplit, opts...)
	startSessionHandler := connect.NewUnaryHandler(SplitServiceStartSessionProcedure, svc.StartSession, opts...)
	getSessionHandler := connect.NewUnaryHandler(SplitServiceGetSessionProcedure, svc.GetSession, opts...)
	uploadReceiptHandler := connect.NewUnaryHandler(SplitServiceUploadReceiptProcedure, svc.UploadReceipt, opts...)
	sendMessageHandler := connect.NewUnaryHandler(SplitServiceSendMessageProcedure, svc.SendMessage, opts...)
	updateItemHandler := connect.NewUnaryHandler(SplitServiceUpdateItemProcedure, svc.UpdateItem, opts...)
	assignItemHandler := connect.NewUnaryHandler(SplitServiceAssignItemProcedure, svc.AssignItem, opts...)
	setManualSplitHandler := connect.NewUnaryHandler(SplitServiceSetManualSplitProcedure, svc.SetManualSplit, opts...)
	setOverridesHandler := connect.NewUnaryHandler(SplitServiceSetOverridesProcedure, svc.SetOverrides, opts...)
	setDistributionMethodHandler := connect.NewUnaryHandler(SplitServiceSetDistributionMethodProcedure, svc.SetDistributionMethod, opts...)
	undoHandler := connect.NewUnaryHandler(SplitServiceUndoProcedure, svc.Undo, opts...)
	redoHandler := connect.NewUnaryHandler(SplitServiceRedoProcedure, svc.Redo, opts...)
	return "/" + SplitServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SplitServiceCalculateSplitProcedure:
			calculateSplitHandler.ServeHTTP(w, r)
		case SplitServiceStartSessionProcedure:
			startSessionHandler.ServeHTTP(w, r)
		case SplitServiceGetSessionProcedure:
			getSessionHandler.ServeHTTP(w, r)
		case SplitServiceUploadReceiptProcedure:
			uploadReceiptHandler.ServeHTTP(w, r)
		case SplitServiceSendMessageProcedure:
			sendMessageHandler.ServeHTTP(w, r)
		case SplitServiceUpdateItemProcedure:
			updateItemHandler.ServeHTTP(w, r)
		case SplitServiceAssignItemProcedure:
			assignItemHandler.ServeHTTP(w, r)
		case SplitServiceSetManualSplitProcedure:
			setManualSplitHandler.ServeHTTP(w, r)
		case SplitServiceSetOverridesProcedure:
			setOverridesHandler.ServeHTTP(w, r)
		case SplitServiceSetDistributionMethodProcedure:
			setDistributionMethodHandler.ServeHTTP(w, r)
		case SplitServiceUndoProcedure:
			undoHandler.ServeHTTP(w, r)
		case SplitServiceRedoProcedure:
			redoHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// SplitServiceClient is a client for the SplitService.
type SplitServiceClient struct {
	calculateSplit        *connect.Client[api.CalculateSplitRequest, api.CalculateSplitResponse]
	startSession          *connect.Client[api.StartSessionRequest, api.StartSessionResponse]
	getSession            *connect.Client[api.GetSessionRequest, api.SessionResponse]
	uploadReceipt         *connect.Client[api.UploadReceiptRequest, api.ChatResponse]
	sendMessage           *connect.Client[api.SendMessageRequest, api.ChatResponse]
	updateItem            *connect.Client[api.UpdateItemRequest, api.SessionResponse]
	assignItem            *connect.Client[api.AssignItemRequest, api.SessionResponse]
	setManualSplit        *connect.Client[api.SetManualSplitRequest, api.SessionResponse]
	setOverrides          *connect.Client[api.SetOverridesRequest, api.SessionResponse]
	setDistributionMethod *connect.Client[api.SetDistributionMethodRequest, api.SessionResponse]
	undo                  *connect.Client[api.UndoRequest, api.SessionResponse]
	redo                  *connect.Client[api.RedoRequest, api.SessionResponse]
}

// NewSplitServiceClient constructs a client for the SplitService. baseURL is the
// server root, e.g. http://localhost:8080.
func NewSplitServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SplitServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(api.JSONCodec{})}, opts...)
	return &SplitServiceClient{
		calculateSplit: connect.NewClient[api.CalculateSplitRequest, api.CalculateSplitResponse](httpClient, baseURL+SplitServiceCalculateSplitProcedure, opts...),
		startSession: connect.NewClient[api.StartSessionRequest, api.StartSessionResponse](httpClient, baseURL+SplitServiceStartSessionProcedure, opts...),
		getSession: connect.NewClient[api.GetSessionRequest, api.SessionResponse](httpClient, baseURL+SplitServiceGetSessionProcedure, opts...),
		uploadReceipt: connect.NewClient[api.UploadReceiptRequest, api.ChatResponse](httpClient, baseURL+SplitServiceUploadReceiptProcedure, opts...),
		sendMessage: connect.NewClient[api.SendMessageRequest, api.ChatResponse](httpClient, baseURL+SplitServiceSendMessageProcedure, opts...),
		updateItem: connect.NewClient[api.UpdateItemRequest, api.SessionResponse](httpClient, baseURL+SplitServiceUpdateItemProcedure, opts...),
		assignItem: connect.NewClient[api.AssignItemRequest, api.SessionResponse](httpClient, baseURL+SplitServiceAssignItemProcedure, opts...),
		setManualSplit: connect.NewClient[api.SetManualSplitRequest, api.SessionResponse](httpClient, baseURL+SplitServiceSetManualSplitProcedure, opts...),
		setOverrides: connect.NewClient[api.SetOverridesRequest, api.SessionResponse](httpClient, baseURL+SplitServiceSetOverridesProcedure, opts...),
		setDistributionMethod: connect.NewClient[api.SetDistributionMethodRequest, api.SessionResponse](httpClient, baseURL+SplitServiceSetDistributionMethodProcedure, opts...),
		undo: connect.NewClient[api.UndoRequest, api.SessionResponse](httpClient, baseURL+SplitServiceUndoProcedure, opts...),
		redo: connect.NewClient[api.RedoRequest, api.SessionResponse](httpClient, baseURL+SplitServiceRedoProcedure, opts...),
	}
}

func (c *SplitServiceClient) CalculateSplit(ctx context.Context, req *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error) {
	return c.calculateSplit.CallUnary(ctx, req)
}

func (c *SplitServiceClient) StartSession(ctx context.Context, req *connect.Request[api.StartSessionRequest]) (*connect.Response[api.StartSessionResponse], error) {
	return c.startSession.CallUnary(ctx, req)
}

func (c *SplitServiceClient) GetSession(ctx context.Context, req *connect.Request[api.GetSessionRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.getSession.CallUnary(ctx, req)
}

func (c *SplitServiceClient) UploadReceipt(ctx context.Context, req *connect.Request[api.UploadReceiptRequest]) (*connect.Response[api.ChatResponse], error) {
	return c.uploadReceipt.CallUnary(ctx, req)
}

func (c *SplitServiceClient) SendMessage(ctx context.Context, req *connect.Request[api.SendMessageRequest]) (*connect.Response[api.ChatResponse], error) {
	return c.sendMessage.CallUnary(ctx, req)
}

func (c *SplitServiceClient) UpdateItem(ctx context.Context, req *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.updateItem.CallUnary(ctx, req)
}

func (c *SplitServiceClient) AssignItem(ctx context.Context, req *connect.Request[api.AssignItemRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.assignItem.CallUnary(ctx, req)
}

func (c *SplitServiceClient) SetManualSplit(ctx context.Context, req *connect.Request[api.SetManualSplitRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.setManualSplit.CallUnary(ctx, req)
}

func (c *SplitServiceClient) SetOverrides(ctx context.Context, req *connect.Request[api.SetOverridesRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.setOverrides.CallUnary(ctx, req)
}

func (c *SplitServiceClient) SetDistributionMethod(ctx context.Context, req *connect.Request[api.SetDistributionMethodRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.setDistributionMethod.CallUnary(ctx, req)
}

func (c *SplitServiceClient) Undo(ctx context.Context, req *connect.Request[api.UndoRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.undo.CallUnary(ctx, req)
}

func (c *SplitServiceClient) Redo(ctx context.Context, req *connect.Request[api.RedoRequest]) (*connect.Response[api.SessionResponse], error) {
	return c.redo.CallUnary(ctx, req)
}

// UnimplementedSplitServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedSplitServiceHandler struct{}

func (UnimplementedSplitServiceHandler) CalculateSplit(context.Context, *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.CalculateSplit is not implemented"))
}

func (UnimplementedSplitServiceHandler) StartSession(context.Context, *connect.Request[api.StartSessionRequest]) (*connect.Response[api.StartSessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.StartSession is not implemented"))
}

func (UnimplementedSplitServiceHandler) GetSession(context.Context, *connect.Request[api.GetSessionRequest]) (*connect.Response[api.SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.GetSession is not implemented"))
}

func (UnimplementedSplitServiceHandler) UploadReceipt(context.Context, *connect.Request[api.UploadReceiptRequest]) (*connect.Response[api.ChatResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.UploadReceipt is not implemented"))
}

func (UnimplementedSplitServiceHandler) SendMessage(context.Context, *connect.Request[api.SendMessageRequest]) (*connect.Response[api.ChatResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.SendMessage is not implemented"))
}

func (UnimplementedSplitServiceHandler) UpdateItem(context.Context, *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.UpdateItem is not implemented"))
}

func (UnimplementedSplitServiceHandler) AssignItem(context.Context, *connect.Request[api.AssignItemRequest]) (*connect.Response[api.SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.AssignItem is not implemented"))
}

func (UnimplementedSplitServiceHandler) SetManualSplit(context.Context, *connect.Request[api.SetManualSplitRequest]) (*connect.Response[api.SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.SetManualSplit is not implemented"))
}

func (UnimplementedSplitServiceHandler) SetOverrides(context.Context, *connect.Request[api.SetOverridesRequest]) (*connect.Response[api.SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.SetOverrides is not implemented"))
}

func (UnimplementedSplitServiceHandler) SetDistributionMethod(context.Context, *connect.Request[api.SetDistributionMethodRequest]) (*connect.Response[api.SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.SetDistributionMethod is not implemented"))
}

func (UnimplementedSplitServiceHandler) Undo(context.Context, *connect.Request[api.UndoRequest]) (*connect.Response[api.SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.Undo is not implemented"))
}

func (UnimplementedSplitServiceHandler) Redo(context.Context, *connect.Request[api.RedoRequest]) (*connect.Response[api.SessionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("splitsmart.v1.SplitService.Redo is not implemented"))
}
