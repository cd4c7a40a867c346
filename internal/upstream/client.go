package upstream

/*
Пакет upstream — клиент внешнего REST API университета.

Это единственное место процесса, которое знает HTTP-коды и пути.
Наружу уходят только классы ошибок из domain: поллеры и диспетчер
не разбирают ответы сервера сами.
*/

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/prabandh-gateway/internal/domain"
	"github.com/xela07ax/prabandh-gateway/internal/infra"
)

// TokenSource отдает текущий Authorization-заголовок.
// Реализуется сессионным стором; клиент сам состояние не хранит.
type TokenSource interface {
	AuthHeader() (string, bool)
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	retries uint
	logger  *zap.Logger
}

func NewClient(cfg infra.UpstreamConfig, tokens TokenSource, logger *zap.Logger) *Client {
	// Настройка предохранителя: после серии отказов перестаем ходить
	// в сеть и сразу отдаем NetworkError, пока сервер не оживет.
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "prabandh-upstream",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		cb:      cb,
		retries: cfg.RetryCount,
		logger:  logger.Named("upstream"),
	}
}

// --- Сессионные endpoint'ы ---

type loginResponse struct {
	Token   string `json:"token"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	EmpType string `json:"emptype"`
	User    struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"user"`
}

// Login обменивает учетные данные на пару токенов.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	code, body, err := c.do(ctx, http.MethodPost, "/api/auth/login/", creds, false)
	if err != nil {
		return nil, err
	}
	if code == http.StatusUnauthorized || code == http.StatusBadRequest {
		return nil, domain.ErrAuth
	}
	if code != http.StatusOK {
		return nil, c.unexpected("login", code, body)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.NetworkError{Op: "login", Cause: err}
	}

	return &domain.LoginResult{
		Tokens: domain.TokenPair{
			AccessToken:  resp.Access,
			RefreshToken: resp.Refresh,
			LegacyToken:  resp.Token,
		},
		Identity: domain.Identity{
			ActorID: resp.User.ID.String(),
			Name:    resp.User.Name,
			Role:    domain.ParseRole(resp.EmpType),
		},
	}, nil
}

// RefreshToken прозрачно обменивает refresh на свежий access.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, error) {
	code, body, err := c.do(ctx, http.MethodPost, "/api/auth/token/refresh/", map[string]string{"refresh": refresh}, false)
	if err != nil {
		return "", err
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return "", domain.ErrSessionExpired
	}
	if code != http.StatusOK {
		return "", c.unexpected("token refresh", code, body)
	}

	var resp struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &domain.NetworkError{Op: "token refresh", Cause: err}
	}
	return resp.Access, nil
}

// CheckAuth спрашивает сервер, жив ли текущий access-токен.
func (c *Client) CheckAuth(ctx context.Context) error {
	code, body, err := c.do(ctx, http.MethodGet, "/api/auth/check-auth/", nil, true)
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return domain.ErrSessionExpired
	default:
		return c.unexpected("check-auth", code, body)
	}
}

// Logout — best-effort уведомление сервера. Локальная очистка сессии
// происходит в любом случае, поэтому ошибка здесь не фатальна.
func (c *Client) Logout(ctx context.Context) error {
	code, body, err := c.do(ctx, http.MethodPost, "/api/auth/logout/", nil, true)
	if err != nil {
		return err
	}
	if code >= 400 && code != http.StatusUnauthorized {
		return c.unexpected("logout", code, body)
	}
	return nil
}

// --- Заявки на отпуск ---

// ListQuery — параметры выборки списка заявок под роль представления.
type ListQuery struct {
	Status        string // CSV статусов, пусто = все
	DeanApprovals bool
}

func (c *Client) ListApplications(ctx context.Context, q ListQuery) ([]domain.LeaveApplication, error) {
	path := "/api/faculty/leave/applications/"
	params := url.Values{}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.DeanApprovals {
		params.Set("dean_approvals", "true")
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	code, body, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	if err := c.classify("list applications", code, body); err != nil {
		return nil, err
	}

	var apps []domain.LeaveApplication
	if err := json.Unmarshal(body, &apps); err != nil {
		return nil, &domain.NetworkError{Op: "list applications", Cause: err}
	}
	return apps, nil
}

// Transition выполняет одно ребро workflow: POST .../{id}/{action}/.
// Сервер — финальный арбитр: 400/409 здесь означает, что заявка уже
// ушла из ожидаемого статуса.
func (c *Client) Transition(ctx context.Context, id int64, action domain.Action, remarks string) error {
	path := fmt.Sprintf("/api/faculty/leave/applications/%d/%s/", id, action)
	code, body, err := c.do(ctx, http.MethodPost, path, map[string]string{"remarks": remarks}, true)
	if err != nil {
		return err
	}
	return c.classify("transition "+string(action), code, body)
}

// --- Мероприятия (однокаскадный поток VC) ---

func (c *Client) ListEvents(ctx context.Context) ([]domain.Event, error) {
	code, body, err := c.do(ctx, http.MethodGet, "/api/facultyservices/vc/events/", nil, true)
	if err != nil {
		return nil, err
	}
	if err := c.classify("list events", code, body); err != nil {
		return nil, err
	}

	var events []domain.Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, &domain.NetworkError{Op: "list events", Cause: err}
	}
	return events, nil
}

func (c *Client) DecideEvent(ctx context.Context, id int64, decision domain.EventStatus) error {
	path := fmt.Sprintf("/api/facultyservices/vc/events/%d/approve/", id)
	code, body, err := c.do(ctx, http.MethodPatch, path, map[string]string{"vcapproval_status": string(decision)}, true)
	if err != nil {
		return err
	}
	return c.classify("decide event", code, body)
}

// --- Транспорт ---

// do выполняет запрос через цепочку надежности:
// rate limiter -> circuit breaker -> retry с учетом Retry-After.
// Ретраятся только транспортные сбои, 5xx и 429; ответы 4xx доезжают
// до вызывающего как есть для классификации.
func (c *Client) do(ctx context.Context, method, path string, payload any, authed bool) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, &domain.NetworkError{Op: path, Cause: err}
	}

	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	// Заголовок авторизации резолвим до входа в retry-цепочку:
	// без сессии в сеть не ходим вовсе.
	var authHeader string
	if authed {
		header, ok := c.tokens.AuthHeader()
		if !ok {
			return 0, nil, domain.ErrNotAuthenticated
		}
		authHeader = header
	}

	var (
		statusCode int
		respBody   []byte
	)

	_, cbErr := c.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(c.retries),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Сервер подсказал паузу — слушаемся его
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				// Иначе стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		return nil, r.Do(func() error {
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if authHeader != "" {
				req.Header.Set("Authorization", authHeader)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return err // транспортный сбой — ретраим
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				return &ThrottleError{
					RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
					Cause:      fmt.Errorf("upstream throttled %s", path),
				}
			}
			if resp.StatusCode >= 500 {
				return fmt.Errorf("upstream %s returned %d", path, resp.StatusCode)
			}

			statusCode = resp.StatusCode
			respBody = body
			return nil
		})
	})

	if cbErr != nil {
		c.logger.Warn("upstream request failed", zap.String("path", path), zap.Error(cbErr))
		return 0, nil, &domain.NetworkError{Op: path, Cause: cbErr}
	}

	return statusCode, respBody, nil
}

// classify отображает HTTP-код авторизованного вызова на класс ошибки.
func (c *Client) classify(op string, code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return domain.ErrSessionExpired
	case code == http.StatusForbidden:
		return domain.ErrPermissionDenied
	case code == http.StatusBadRequest || code == http.StatusConflict:
		// Сервер отказал в переходе: snapshot устарел либо действие
		// нелегально. Локальный автомат такие режет раньше, поэтому
		// сюда попадают только проигранные гонки.
		return fmt.Errorf("%w: %s", domain.ErrInvalidTransition, errorDetail(body))
	default:
		return c.unexpected(op, code, body)
	}
}

func (c *Client) unexpected(op string, code int, body []byte) error {
	return &domain.NetworkError{
		Op:    op,
		Cause: fmt.Errorf("unexpected status %d: %s", code, errorDetail(body)),
	}
}

// errorDetail вытаскивает поле error из тела ответа, если оно есть.
func errorDetail(body []byte) string {
	var resp struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &resp); err == nil {
		if resp.Error != "" {
			return resp.Error
		}
		if resp.Detail != "" {
			return resp.Detail
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return time.Second
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}
