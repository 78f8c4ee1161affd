package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"support-copilot/internal/domain"
	"support-copilot/internal/rephrase"
	"support-copilot/internal/usecase"
)

const (
	correlationHeader  = "X-Correlation-Id"
	defaultWaitTimeout = 10 * time.Second
)

// Desk is the part of usecase.Desk the HTTP surface needs.
type Desk interface {
	Conversations() []domain.Conversation
	Conversation(id int) (domain.Conversation, error)
	Selected() domain.Conversation
	SelectConversation(id int) (domain.Conversation, error)
	SendMessage(text string) (usecase.SendOutput, error)
	AskCopilot(ctx context.Context, question string) (usecase.AskOutput, error)
	WaitCopilot(ctx context.Context, convID, id int) (domain.Record, error)
	CopilotRecords() ([]domain.Record, error)
	CopilotGenerating() bool
	Suggestions() []string
}

type Handler struct {
	desk        Desk
	waitTimeout time.Duration
	logger      *slog.Logger
}

type Option func(*Handler)

// WithWaitTimeout bounds how long POST /copilot/ask with wait=true blocks.
func WithWaitTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.waitTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

type conversationSummary struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Subject     string `json:"subject"`
	Status      string `json:"status,omitempty"`
	StatusColor string `json:"statusColor,omitempty"`
	Time        string `json:"time"`
	Unread      bool   `json:"unread"`
	Messages    int    `json:"messageCount"`
}

type listResponse struct {
	Conversations []conversationSummary `json:"conversations"`
	SelectedID    int                   `json:"selectedId"`
}

type threadResponse struct {
	Conversation domain.Conversation `json:"conversation"`
}

type sendRequest struct {
	Text string `json:"text"`
}

type sendResponse struct {
	Sent    bool            `json:"sent"`
	Message *domain.Message `json:"message,omitempty"`
}

type askRequest struct {
	Question string `json:"question"`
	Wait     bool   `json:"wait"`
}

type askResponse struct {
	Accepted bool           `json:"accepted"`
	Record   *domain.Record `json:"record,omitempty"`
}

type recordsResponse struct {
	Records     []domain.Record `json:"records"`
	Generating  bool            `json:"generating"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

type rephraseRequest struct {
	Text      string `json:"text"`
	Directive string `json:"directive"`
}

type rephraseResponse struct {
	Text      string `json:"text"`
	Directive string `json:"directive"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(desk Desk, opts ...Option) (*Handler, error) {
	if desk == nil {
		return nil, errors.New("handler: desk must not be nil")
	}
	h := &Handler{
		desk:        desk,
		waitTimeout: defaultWaitTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := h.logger.With("correlation_id", corrID, "method", req.HTTPMethod, "path", req.Path)

	status, body := h.route(ctx, req)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status)
	} else {
		logger.Info("request handled", "status", status)
	}
	return jsonResponse(status, body, corrID), nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest) (int, any) {
	path := strings.TrimRight(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodGet && path == "/conversations":
		return h.list()
	case req.HTTPMethod == http.MethodPost && strings.HasPrefix(path, "/conversations/") && strings.HasSuffix(path, "/select"):
		return h.selectConversation(path)
	case req.HTTPMethod == http.MethodGet && strings.HasPrefix(path, "/conversations/"):
		return h.conversation(path)
	case req.HTTPMethod == http.MethodGet && path == "/thread":
		return http.StatusOK, threadResponse{Conversation: h.desk.Selected()}
	case req.HTTPMethod == http.MethodPost && path == "/messages":
		return h.send(req.Body)
	case req.HTTPMethod == http.MethodPost && path == "/copilot/ask":
		return h.ask(ctx, req.Body)
	case req.HTTPMethod == http.MethodGet && path == "/copilot/records":
		return h.records()
	case req.HTTPMethod == http.MethodPost && path == "/rephrase":
		return h.rephrase(req.Body)
	default:
		return http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Reason: "route_not_found"}
	}
}

func (h *Handler) list() (int, any) {
	convs := h.desk.Conversations()
	out := listResponse{
		Conversations: make([]conversationSummary, 0, len(convs)),
		SelectedID:    h.desk.Selected().ID,
	}
	for _, c := range convs {
		out.Conversations = append(out.Conversations, conversationSummary{
			ID:          c.ID,
			Name:        c.Name,
			Avatar:      c.Avatar,
			Subject:     c.Subject,
			Status:      c.Status,
			StatusColor: c.StatusColor,
			Time:        c.LastActivity,
			Unread:      c.Unread,
			Messages:    len(c.Messages),
		})
	}
	return http.StatusOK, out
}

// conversation serves GET /conversations/{id} without touching the selection.
func (h *Handler) conversation(path string) (int, any) {
	id, err := strconv.Atoi(strings.TrimPrefix(path, "/conversations/"))
	if err != nil {
		return invalidConversationID()
	}
	conv, err := h.desk.Conversation(id)
	if err != nil {
		return errorStatus(err)
	}
	return http.StatusOK, threadResponse{Conversation: conv}
}

func (h *Handler) selectConversation(path string) (int, any) {
	raw := strings.TrimSuffix(strings.TrimPrefix(path, "/conversations/"), "/select")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return invalidConversationID()
	}
	conv, err := h.desk.SelectConversation(id)
	if err != nil {
		return errorStatus(err)
	}
	return http.StatusOK, threadResponse{Conversation: conv}
}

func (h *Handler) send(body string) (int, any) {
	var in sendRequest
	if err := decodeBody(body, &in); err != nil {
		return invalidBody()
	}
	out, err := h.desk.SendMessage(in.Text)
	if err != nil {
		return errorStatus(err)
	}
	if !out.Sent {
		return http.StatusOK, sendResponse{}
	}
	return http.StatusCreated, sendResponse{Sent: true, Message: &out.Message}
}

// ask starts a copilot answer. With wait=true it blocks up to the wait
// timeout; a record still generating then comes back as 202.
func (h *Handler) ask(ctx context.Context, body string) (int, any) {
	var in askRequest
	if err := decodeBody(body, &in); err != nil {
		return invalidBody()
	}
	out, err := h.desk.AskCopilot(ctx, in.Question)
	if err != nil {
		return errorStatus(err)
	}
	if !out.Accepted {
		return http.StatusOK, askResponse{}
	}
	if !in.Wait {
		return http.StatusAccepted, askResponse{Accepted: true, Record: &out.Record}
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.waitTimeout)
	defer cancel()
	rec, err := h.desk.WaitCopilot(waitCtx, out.ConversationID, out.Record.ID)
	var ucErr *usecase.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusAccepted, askResponse{Accepted: true, Record: &rec}
	case errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorResponderFailure:
		// the failure is carried by the record state
	case err != nil:
		return errorStatus(err)
	}
	return http.StatusOK, askResponse{Accepted: true, Record: &rec}
}

func (h *Handler) records() (int, any) {
	recs, err := h.desk.CopilotRecords()
	if err != nil {
		return errorStatus(err)
	}
	return http.StatusOK, recordsResponse{
		Records:     recs,
		Generating:  h.desk.CopilotGenerating(),
		Suggestions: h.desk.Suggestions(),
	}
}

func (h *Handler) rephrase(body string) (int, any) {
	var in rephraseRequest
	if err := decodeBody(body, &in); err != nil {
		return invalidBody()
	}
	dir, err := rephrase.ParseDirective(in.Directive)
	if err != nil {
		return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "unknown_directive"}
	}
	return http.StatusOK, rephraseResponse{Text: rephrase.Transform(in.Text, dir), Directive: string(dir)}
}

func decodeBody(body string, v any) error {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func invalidConversationID() (int, any) {
	return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_conversation_id"}
}

func invalidBody() (int, any) {
	return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"}
}

func errorStatus(err error) (int, any) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	out := errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	switch ucErr.Code {
	case usecase.ErrorNotFound:
		return http.StatusNotFound, out
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, out
	case usecase.ErrorResponderFailure:
		return http.StatusBadGateway, out
	default:
		return http.StatusInternalServerError, out
	}
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func jsonResponse(status int, body any, corrID string) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(raw),
	}
}
