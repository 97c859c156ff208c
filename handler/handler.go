package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"assistant-bridge/internal/usecase"
)

const (
	ssoPath           = "/sso"
	correlationHeader = "X-Correlation-Id"
	defaultCookieName = "auth"

	codeNotFound         = "NOT_FOUND"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

type HandoffUseCase interface {
	Handoff(ctx context.Context, in usecase.HandoffInput) (usecase.HandoffOutput, error)
}

type Handler struct {
	uc         HandoffUseCase
	cookieName string
	now        func() time.Time
}

type Option func(*Handler)

func WithCookieName(name string) Option {
	return func(h *Handler) {
		if name = strings.TrimSpace(name); name != "" {
			h.cookieName = name
		}
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHandler(uc HandoffUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{uc: uc, cookieName: defaultCookieName, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle serves GET /sso?token=... behind API Gateway.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	cid := correlationID(req.Headers)

	if path := strings.TrimRight(req.Path, "/"); path != ssoPath {
		return h.fail(cid, http.StatusNotFound, codeNotFound, "route not found"), nil
	}
	if req.HTTPMethod != http.MethodGet {
		resp := h.fail(cid, http.StatusMethodNotAllowed, codeMethodNotAllowed, "only GET is supported")
		resp.Headers["Allow"] = http.MethodGet
		return resp, nil
	}

	out, err := h.uc.Handoff(ctx, usecase.HandoffInput{Token: queryParam(req, "token")})
	if err != nil {
		return h.fromError(cid, err), nil
	}

	cookie := &http.Cookie{
		Name:     h.cookieName,
		Value:    out.Session,
		Path:     "/",
		Expires:  out.ExpiresAt.UTC(),
		MaxAge:   int(out.ExpiresAt.Sub(h.now()).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	slog.Info("sso hand-off complete", "correlationId", cid, "userId", out.UserID, "workspaceId", out.WorkspaceID, "role", out.Role)
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location":        out.RedirectURL,
			"Cache-Control":   "no-store",
			correlationHeader: cid,
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {cookie.String()},
		},
	}, nil
}

func (h *Handler) fromError(cid string, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		slog.Error("sso hand-off failed", "correlationId", cid, "err", err)
		return h.fail(cid, http.StatusInternalServerError, string(usecase.ErrorInternal), messageFor(usecase.ErrorInternal))
	}

	status := statusFor(ucErr.Code)
	attrs := []any{"correlationId", cid, "code", ucErr.Code, "reason", ucErr.Reason}
	if ucErr.Err != nil {
		attrs = append(attrs, "err", ucErr.Err)
	}
	if status >= http.StatusInternalServerError {
		slog.Error("sso hand-off failed", attrs...)
	} else {
		slog.Warn("sso hand-off rejected", attrs...)
	}
	code := ucErr.Code
	if status == http.StatusInternalServerError {
		code = usecase.ErrorInternal
	}
	return h.fail(cid, status, string(code), messageFor(code))
}

func (h *Handler) fail(cid string, status int, code, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(errorResponse{Error: code, Message: message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			"Cache-Control":   "no-store",
			correlationHeader: cid,
		},
		Body: string(body),
	}
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(code usecase.ErrorCode) string {
	switch code {
	case usecase.ErrorInvalidInput:
		return "a token query parameter is required"
	case usecase.ErrorUnauthorized:
		return "the sign-in token was rejected"
	case usecase.ErrorUpstream:
		return "the identity provider is unavailable"
	default:
		return "internal error"
	}
}

func queryParam(req events.APIGatewayProxyRequest, key string) string {
	if v, ok := req.QueryStringParameters[key]; ok {
		return v
	}
	if vs := req.MultiValueQueryStringParameters[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// correlationID reuses the caller's id when present; header names are
// matched case-insensitively.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}
