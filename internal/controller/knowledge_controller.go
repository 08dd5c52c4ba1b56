package controller

import (
	"github.com/gofiber/fiber/v2"

	"ai-streamer-be/internal/dto"
	"ai-streamer-be/internal/pkg/serverutils"
	"ai-streamer-be/internal/service"
)

type IKnowledgeController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	PurgeCache(ctx *fiber.Ctx) error
}

type knowledgeController struct {
	knowledgeService service.IKnowledgeService
}

func NewKnowledgeController(knowledgeService service.IKnowledgeService) IKnowledgeController {
	return &knowledgeController{
		knowledgeService: knowledgeService,
	}
}

func (c *knowledgeController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/knowledge/v1")
	h.Use(serverutils.JwtMiddleware) // admin-only surface
	h.Post("", c.Upload)
	h.Get(":personaId/status", c.Status)
	h.Delete(":personaId/cache", c.PurgeCache)
}

func (c *knowledgeController) Upload(ctx *fiber.Ctx) error {
	var req dto.UploadKnowledgeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.knowledgeService.Upload(ctx.Context(), req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return ctx.Status(fiber.StatusAccepted).
		JSON(serverutils.SuccessResponse("Knowledge queued for indexing", nil))
}

func (c *knowledgeController) Status(ctx *fiber.Ctx) error {
	res, err := c.knowledgeService.Status(ctx.Context(), ctx.Params("personaId"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show knowledge status", res))
}

func (c *knowledgeController) PurgeCache(ctx *fiber.Ctx) error {
	if err := c.knowledgeService.PurgeCache(ctx.Context(), ctx.Params("personaId")); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return ctx.JSON(serverutils.SuccessResponse("Embedding cache purged", nil))
}
