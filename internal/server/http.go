package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/async"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
)

//go:embed metadata.schema.json
var metadataSchema []byte

// Pipeline is the write side of the statement lifecycle.
type Pipeline interface {
	Submit(ctx context.Context, up entity.Upload) (*entity.Statement, error)
	Retry(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type Exporter interface {
	TransactionsXLSX(ctx context.Context, statementID uuid.UUID) ([]byte, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps are the collaborators the HTTP and gRPC front ends call into.
type Deps struct {
	Pipeline     Pipeline
	Queue        async.Queue
	Statements   repository.StatementRepository
	Transactions repository.TransactionRepository
	Exporter     Exporter
	Health       HealthChecker
}

// HTTPServer is the upload, retry and status API.
type HTTPServer struct {
	app    *fiber.App
	deps   Deps
	logger *slog.Logger
}

func NewHTTPServer(deps Deps, maxUploadBytes int, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPServer{deps: deps, logger: logger}
	s.app = fiber.New(fiber.Config{
		AppName:               "statementsd",
		BodyLimit:             maxUploadBytes,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.logRequests)

	s.app.Get("/api/health", s.health)
	api := s.app.Group("/api/statements")
	api.Post("/", s.upload)
	api.Get("/", s.list)
	api.Get("/:id", s.get)
	api.Get("/:id/transactions", s.transactions)
	api.Get("/:id/errors", s.listErrors)
	api.Post("/:id/retry", s.retry)
	api.Get("/:id/export.xlsx", s.export)
	return s
}

func (s *HTTPServer) App() *fiber.App { return s.app }

func (s *HTTPServer) Listen(addr string) error { return s.app.Listen(addr) }

func (s *HTTPServer) Shutdown(ctx context.Context) error { return s.app.ShutdownWithContext(ctx) }

func (s *HTTPServer) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Info("http.request",
		"request_id", c.Locals(requestid.ConfigDefault.ContextKey),
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}

func (s *HTTPServer) health(c *fiber.Ctx) error {
	if s.deps.Health != nil {
		if err := s.deps.Health.HealthCheck(c.UserContext(), 2*time.Second); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *HTTPServer) upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return common.NewAppError(common.CodeValidation, "multipart field 'file' is required", common.ErrValidation)
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	up, err := uploadMetadata(c)
	if err != nil {
		return err
	}
	up.Data = data
	up.Filename = fh.Filename
	up.MIMEType = c.FormValue("mime_type", fh.Header.Get("Content-Type"))
	if constants.NormalizeMIME(up.MIMEType) == "application/octet-stream" {
		up.MIMEType = ""
	}

	st, err := s.deps.Pipeline.Submit(c.UserContext(), up)
	if err != nil {
		return err
	}
	if err := s.enqueue(c.UserContext(), st.ID, st.RunID); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(st)
}

// uploadMetadata reads either a JSON "metadata" field or the individual form fields.
func uploadMetadata(c *fiber.Ctx) (entity.Upload, error) {
	var up entity.Upload
	if raw := c.FormValue("metadata"); raw != "" {
		if err := common.ValidateJSONAgainstSchema(metadataSchema, []byte(raw)); err != nil {
			return up, err
		}
		if err := json.Unmarshal([]byte(raw), &up); err != nil {
			return up, common.NewAppError(common.CodeValidation, "decode metadata", common.ErrValidation)
		}
		return up, nil
	}

	up.AccountName = c.FormValue("account_name")
	up.BankName = c.FormValue("bank_name")
	up.Currency = strings.TrimSpace(c.FormValue("currency"))
	var err error
	if up.Month, err = formInt(c, "month"); err != nil {
		return up, err
	}
	if up.Year, err = formInt(c, "year"); err != nil {
		return up, err
	}
	return up, nil
}

func formInt(c *fiber.Ctx, field string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(c.FormValue(field)))
	if err != nil {
		return 0, common.NewAppError(common.CodeValidation, field+" must be an integer", common.ErrValidation)
	}
	return n, nil
}

func (s *HTTPServer) enqueue(ctx context.Context, id, runID uuid.UUID) error {
	err := s.deps.Queue.Enqueue(ctx, async.Job{StatementID: id, RunID: runID, SubmittedAt: time.Now()})
	if err != nil {
		// the statement stays uploaded and is picked up by the startup sweep
		s.logger.Warn("statement.enqueue.failed", "statement_id", id, "run_id", runID, "error", err)
	}
	return err
}

func (s *HTTPServer) list(c *fiber.Ctx) error {
	filter := repository.ListFilter{Limit: c.QueryInt("limit")}
	if raw := c.Query("status"); raw != "" {
		st, ok := constants.ParseStatus(raw)
		if !ok {
			return common.NewAppError(common.CodeValidation, fmt.Sprintf("unknown status %q", raw), common.ErrValidation)
		}
		filter.Status = st
	}
	out, err := s.deps.Statements.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	if out == nil {
		out = []*entity.Statement{}
	}
	return c.JSON(fiber.Map{"statements": out})
}

func (s *HTTPServer) get(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	st, err := s.deps.Statements.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (s *HTTPServer) transactions(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if _, err := s.deps.Statements.GetByID(c.UserContext(), id); err != nil {
		return err
	}
	txns, err := s.deps.Transactions.ListByStatement(c.UserContext(), id)
	if err != nil {
		return err
	}
	if txns == nil {
		txns = []entity.Transaction{}
	}
	return c.JSON(fiber.Map{"transactions": txns})
}

func (s *HTTPServer) listErrors(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if _, err := s.deps.Statements.GetByID(c.UserContext(), id); err != nil {
		return err
	}
	errs, err := s.deps.Statements.ListErrors(c.UserContext(), id)
	if err != nil {
		return err
	}
	if errs == nil {
		errs = []entity.ProcessingError{}
	}
	return c.JSON(fiber.Map{"errors": errs})
}

func (s *HTTPServer) retry(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	runID, err := s.deps.Pipeline.Retry(c.UserContext(), id)
	if err != nil {
		return err
	}
	if err := s.enqueue(c.UserContext(), id, runID); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     id,
		"run_id": runID,
		"status": constants.StatusUploaded,
	})
}

func (s *HTTPServer) export(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	xlsx, err := s.deps.Exporter.TransactionsXLSX(c.UserContext(), id)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="statement-%s.xlsx"`, id))
	return c.Send(xlsx)
}

func pathID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, common.NewAppError(common.CodeValidation, "id must be a UUID", common.ErrValidation)
	}
	return id, nil
}
