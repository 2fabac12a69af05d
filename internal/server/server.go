package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/engine"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/ledger"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/logger"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/records"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Host     ledger.Host
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"SurveyFull"`
	Message string         `json:"message" example:"survey is full: 2 of 2 participants"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"program_code\":5}"`
}

type bodyBytesKey struct{}

// apiError is the error envelope every non-2xx response uses.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type output[T any] struct {
	Body T `json:"body"`
}

// New returns an HTTP handler exposing the survey rewards API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Host.DB == nil {
		cfg.Host = ledger.NewHost(cfg.Engine.DB, cfg.Engine.Events)
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(accessLog)
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(path.Join(basePath, "admin"), cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Survey Rewards API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerProgram(group, cfg.Engine)
	registerTransactions(group, cfg.Engine)
	registerSurveys(group, cfg.Engine)
	registerAccounts(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerAdmin(group, cfg.Host)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var pe *domain.ProgramError
	if errors.As(err, &pe) {
		return newAPIError(pe.Code.HTTPStatus(), pe.Code.String(), err.Error(), map[string]any{"program_code": uint32(pe.Code)})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound),
		errors.Is(err, ledger.ErrMintNotFound),
		errors.Is(err, ledger.ErrTokenAccountNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, ledger.ErrMintExists):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, ledger.ErrOwnerMismatch):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, ledger.ErrMintMismatch),
		errors.Is(err, ledger.ErrAmountOverflow),
		errors.Is(err, ledger.ErrLamportOverflow),
		errors.Is(err, ledger.ErrInsufficientTokens):
		return newAPIError(http.StatusUnprocessableEntity, "ledger_rejected", err.Error(), nil)
	default:
		logger.Error("request failed", zap.Error(err))
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAdminSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

// applyAdminSecurity declares bearer and api key auth on the admin routes only.
func applyAdminSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	adminPath := path.Join(basePath, "admin")
	for route, item := range oas.Paths {
		if !strings.HasPrefix(route, adminPath) {
			continue
		}
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op != nil {
				op.Security = security
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Survey Rewards API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Admin routes take Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*output[map[string]string], error) {
		return &output[map[string]string]{Body: map[string]string{"status": "ok"}}, nil
	})
}

type ProgramResponse struct {
	ProgramID                 string `json:"program_id"`
	CampaignRecordLen         int    `json:"campaign_record_len"`
	ParticipantRecordLen      int    `json:"participant_record_len"`
	CampaignMinimumBalance    uint64 `json:"campaign_minimum_balance"`
	ParticipantMinimumBalance uint64 `json:"participant_minimum_balance"`
}

func registerProgram(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "program-info",
		Method:      http.MethodGet,
		Path:        "/program",
		Summary:     "Program id and record sizing",
	}, func(ctx context.Context, _ *struct{}) (*output[ProgramResponse], error) {
		return &output[ProgramResponse]{Body: ProgramResponse{
			ProgramID:                 e.ProgramID.String(),
			CampaignRecordLen:         records.CampaignLen,
			ParticipantRecordLen:      records.ParticipantLen,
			CampaignMinimumBalance:    e.Config.MinimumBalance(records.CampaignLen),
			ParticipantMinimumBalance: e.Config.MinimumBalance(records.ParticipantLen),
		}}, nil
	})
}

func registerTransactions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-transaction",
		Method:      http.MethodPost,
		Path:        "/transactions",
		Summary:     "Submit a signed instruction",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body SubmitTransactionRequest `json:"body"`
	}) (*output[TransactionResponse], error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		env, err := input.Body.envelope()
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		res, err := e.Process(ctx, env)
		if err != nil {
			return nil, handleError(err)
		}
		return &output[TransactionResponse]{Body: transactionResponse(res)}, nil
	})
}

func registerSurveys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-survey",
		Method:      http.MethodGet,
		Path:        "/surveys/{survey_id}",
		Summary:     "Survey status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SurveyID string `path:"survey_id"`
	}) (*output[SurveyResponse], error) {
		st, err := e.SurveyStatus(ctx, input.SurveyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &output[SurveyResponse]{Body: surveyResponse(st)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-participant",
		Method:      http.MethodGet,
		Path:        "/surveys/{survey_id}/participants/{participant}",
		Summary:     "Participant status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SurveyID    string `path:"survey_id"`
		Participant string `path:"participant"`
	}) (*output[ParticipantResponse], error) {
		who, perr := parseKey("participant", input.Participant)
		if perr != nil {
			return nil, perr
		}
		st, err := e.ParticipantStatus(ctx, input.SurveyID, who)
		if err != nil {
			return nil, handleError(err)
		}
		return &output[ParticipantResponse]{Body: participantResponse(st)}, nil
	})
}

func registerAccounts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-account",
		Method:      http.MethodGet,
		Path:        "/accounts/{address}",
		Summary:     "Account balance, record bytes and token accounts",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Address string `path:"address"`
	}) (*output[AccountResponse], error) {
		addr, perr := parseKey("address", input.Address)
		if perr != nil {
			return nil, perr
		}
		acct, err := e.Repo.LoadAccountTx(ctx, nil, addr)
		if err != nil {
			return nil, handleError(err)
		}
		tokens, err := e.Repo.ListTokenAccounts(ctx, addr)
		if err != nil {
			return nil, handleError(err)
		}
		return &output[AccountResponse]{Body: accountResponse(acct, tokens)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-mint",
		Method:      http.MethodGet,
		Path:        "/mints/{mint}",
		Summary:     "Mint authority and supply",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Mint string `path:"mint"`
	}) (*output[MintResponse], error) {
		addr, perr := parseKey("mint", input.Mint)
		if perr != nil {
			return nil, perr
		}
		m, err := e.Repo.GetMint(ctx, addr)
		if err != nil {
			return nil, handleError(err)
		}
		return &output[MintResponse]{Body: mintResponse(m)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		SurveyID   string `query:"survey_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"campaign,participant,account,mint,token_account"`
		EntityID   string `query:"entity_id"`
		TxID       string `query:"tx_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*output[paginatedEvents], error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEvents(ctx, limit+1, cursorID, repo.EventFilters{
			SurveyID:   input.SurveyID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			TxID:       input.TxID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &output[paginatedEvents]{Body: resp}, nil
	})
}

func registerAdmin(api huma.API, h ledger.Host) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-airdrop",
		Method:      http.MethodPost,
		Path:        "/admin/airdrop",
		Summary:     "Credit lamports to an account",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body AirdropRequest `json:"body"`
	}) (*output[AccountResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		addr, perr := parseKey("address", input.Body.Address)
		if perr != nil {
			return nil, perr
		}
		if input.Body.Lamports == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "lamports must be positive", nil)
		}
		acct, err := h.Airdrop(ctx, actorID, addr, input.Body.Lamports)
		if err != nil {
			return nil, handleError(err)
		}
		return &output[AccountResponse]{Body: accountResponse(acct, nil)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "admin-create-mint",
		Method:        http.MethodPost,
		Path:          "/admin/mints",
		Summary:       "Create a token mint",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateMintRequest `json:"body"`
	}) (*output[MintResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		authority, perr := parseKey("authority", input.Body.Authority)
		if perr != nil {
			return nil, perr
		}
		var address solana.PublicKey
		if strings.TrimSpace(input.Body.Address) != "" {
			if address, perr = parseKey("address", input.Body.Address); perr != nil {
				return nil, perr
			}
		}
		m, err := h.CreateMint(ctx, actorID, address, authority, input.Body.Decimals)
		if err != nil {
			return nil, handleError(err)
		}
		return &output[MintResponse]{Body: mintResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-mint-to",
		Method:      http.MethodPost,
		Path:        "/admin/mints/{mint}/mint-to",
		Summary:     "Mint tokens to an owner's token account",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Mint string        `path:"mint"`
		Body MintToRequest `json:"body"`
	}) (*output[TokenAccountResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		mint, perr := parseKey("mint", input.Mint)
		if perr != nil {
			return nil, perr
		}
		owner, perr := parseKey("owner", input.Body.Owner)
		if perr != nil {
			return nil, perr
		}
		if input.Body.Amount == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "amount must be positive", nil)
		}
		ta, err := h.MintTo(ctx, actorID, mint, owner, input.Body.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		return &output[TokenAccountResponse]{Body: tokenAccountResponse(ta)}, nil
	})
}

func parseKey(field, value string) (solana.PublicKey, huma.StatusError) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(value))
	if err != nil {
		return solana.PublicKey{}, newAPIError(http.StatusBadRequest, "bad_request", "invalid "+field, map[string]any{field: value})
	}
	return key, nil
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	return nil
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 500 {
		return 500
	}
	return in
}
