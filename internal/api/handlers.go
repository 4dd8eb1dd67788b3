package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mangadl/manga-downloader/internal/connector"
	"github.com/mangadl/manga-downloader/internal/model"
)

type submitRequest struct {
	URL       string `json:"url"`
	OutputDir string `json:"output_dir"`
}

type batchRequest struct {
	Text      string `json:"text"`
	OutputDir string `json:"output_dir"`
}

type selectionRequest struct {
	ChapterStart *float64 `json:"chapter_start"`
	ChapterEnd   *float64 `json:"chapter_end"`
	GroupID      string   `json:"group_id"`
	Language     string   `json:"language"`
}

type optionsRequest struct {
	Options map[string]any `json:"options"`
}

type enableRequest struct {
	Enabled bool `json:"enabled"`
}

type connectorStatus struct {
	connector.Descriptor
	Enabled bool `json:"enabled"`
}

// serviceError maps orchestrator errors onto HTTP statuses: unknown jobs are
// 404, unresolvable inputs and bad selections are 422, everything else
// (mostly illegal-state requests) is 409.
func serviceError(c *fiber.Ctx, err error) error {
	status := fiber.StatusConflict
	var selErr *model.SelectionError
	switch {
	case strings.Contains(err.Error(), "not found"):
		status = fiber.StatusNotFound
	case errors.Is(err, model.ErrNoConnector), errors.As(err, &selErr):
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) submitJob(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url is required"})
	}

	id, err := s.orch.Submit(req.URL, req.OutputDir)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id})
}

func (s *Server) submitBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text is required"})
	}

	ids, err := s.orch.SubmitList(req.Text, req.OutputDir)
	resp := fiber.Map{"ids": ids}
	if err != nil {
		resp["skipped"] = err.Error()
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (s *Server) listJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"jobs": s.orch.Jobs()})
}

func (s *Server) getJob(c *fiber.Ctx) error {
	job, err := s.orch.Snapshot(c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(job)
}

func (s *Server) startJob(c *fiber.Ctx) error {
	if err := s.orch.Start(c.Params("id")); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) startAll(c *fiber.Ctx) error {
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"started": s.orch.StartAllReady()})
}

func (s *Server) pauseJob(c *fiber.Ctx) error {
	if err := s.orch.RequestPause(c.Params("id")); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) resumeJob(c *fiber.Ctx) error {
	if err := s.orch.RequestResume(c.Params("id")); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) cancelJob(c *fiber.Ctx) error {
	if err := s.orch.RequestCancel(c.Params("id")); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) removeJob(c *fiber.Ctx) error {
	if err := s.orch.Remove(c.Params("id")); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) clearFinished(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"removed": s.orch.ClearFinished()})
}

func (s *Server) setSelection(c *fiber.Ctx) error {
	var req selectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	sel := model.Selection{
		ChapterStart: req.ChapterStart,
		ChapterEnd:   req.ChapterEnd,
		GroupID:      req.GroupID,
		Language:     req.Language,
	}
	if err := s.orch.SetSelection(c.Params("id"), sel); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) setOptions(c *fiber.Ctx) error {
	var req optionsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := s.orch.SetOptions(c.Params("id"), req.Options); err != nil {
		return serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// optionsSchema returns the option fields the job's connector offers, so a
// client can render a settings form for a Ready job.
func (s *Server) optionsSchema(c *fiber.Ctx) error {
	job, err := s.orch.Snapshot(c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	if job.Info == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "job has no metadata yet"})
	}
	conn, ok := s.registry.Get(job.ConnectorID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "connector not loaded: " + job.ConnectorID})
	}
	return c.JSON(conn.DescribeOptions(job.Info))
}

func (s *Server) listConnectors(c *fiber.Ctx) error {
	all := s.registry.All()
	connectors := make([]connectorStatus, 0, len(all))
	for _, conn := range all {
		desc := conn.Describe()
		connectors = append(connectors, connectorStatus{
			Descriptor: desc,
			Enabled:    s.registry.Enabled(desc.ID),
		})
	}
	return c.JSON(fiber.Map{
		"connectors":  connectors,
		"load_errors": s.registry.LoadErrors(),
	})
}

func (s *Server) setConnectorEnabled(c *fiber.Ctx) error {
	var req enableRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	id := c.Params("id")
	if _, ok := s.registry.Get(id); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "connector not loaded: " + id})
	}
	s.registry.SetEnabled(id, req.Enabled)
	return c.SendStatus(fiber.StatusNoContent)
}
