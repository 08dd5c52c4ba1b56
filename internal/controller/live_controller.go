package controller

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"ai-streamer-be/internal/config"
	"ai-streamer-be/internal/dto"
	"ai-streamer-be/internal/pkg/logger"
	"ai-streamer-be/internal/pkg/serverutils"
	"ai-streamer-be/internal/service"
	ws "ai-streamer-be/internal/websocket"
	"ai-streamer-be/pkg/tts"
)

type ILiveController interface {
	RegisterRoutes(r fiber.Router)
	RegisterWebsocket(app *fiber.App)
	ListPersonas(ctx *fiber.Ctx) error
	ListRooms(ctx *fiber.Ctx) error
	ShowRoom(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Danmaku(ctx *fiber.Ctx) error
}

type liveController struct {
	liveService *service.LiveService
	ttsProvider tts.Provider
	limiter     *ws.RateLimiter
	liveCfg     config.LiveConfig
	log         logger.ILogger
}

func NewLiveController(
	liveService *service.LiveService,
	ttsProvider tts.Provider,
	liveCfg config.LiveConfig,
	log logger.ILogger,
) ILiveController {
	interval := time.Duration(liveCfg.RateLimitInterval * float64(time.Second))
	return &liveController{
		liveService: liveService,
		ttsProvider: ttsProvider,
		limiter:     ws.NewRateLimiter(interval),
		liveCfg:     liveCfg,
		log:         log,
	}
}

func (c *liveController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/live/v1")
	h.Get("personas", c.ListPersonas)
	h.Get("rooms", c.ListRooms)
	h.Get("rooms/:roomId", c.ShowRoom)
	h.Get("rooms/:roomId/history", c.History)
	h.Post("danmaku", c.Danmaku)
}

// RegisterWebsocket mounts the live room endpoint outside the REST prefix.
func (c *liveController) RegisterWebsocket(app *fiber.App) {
	app.Use("/ws", func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/rooms/:roomId", websocket.New(c.serveRoom))
}

func (c *liveController) serveRoom(conn *websocket.Conn) {
	roomID := conn.Params("roomId")
	personaID := conn.Query("persona_id")

	room, err := c.liveService.GetRoom(context.Background(), roomID, personaID)
	if err != nil {
		conn.WriteMessage(websocket.TextMessage, []byte(ws.FrameSystem(err.Error())))
		conn.Close()
		return
	}

	pipeline := &ws.Pipeline{
		RoomID:    roomID,
		Room:      room.Broadcaster,
		Streamer:  room.Session,
		TTS:       c.ttsProvider,
		Voice:     room.Session.Persona().TTS,
		Limiter:   c.limiter,
		QueueSize: c.liveCfg.IngressQueueSize,
		Log:       c.log,
		OnTurn: func(message, reply string, audioPushed bool) {
			c.liveService.PublishTurnCompleted(context.Background(), roomID, len(message), len(reply), audioPushed)
		},
	}

	c.liveService.PublishViewerJoined(context.Background(), roomID, room.Broadcaster.OnlineCount()+1)
	pipeline.Run(conn)
	c.liveService.PublishViewerLeft(context.Background(), roomID, room.Broadcaster.OnlineCount())
}

func (c *liveController) ListPersonas(ctx *fiber.Ctx) error {
	defaultID := c.liveService.DefaultPersonaID()
	bundles := c.liveService.Personas()
	res := make([]dto.PersonaInfoResponse, 0, len(bundles))
	for _, b := range bundles {
		res = append(res, dto.PersonaInfoResponse{
			ID:          b.ID,
			Name:        b.Config.Name,
			Description: b.Config.Description,
			IsDefault:   b.ID == defaultID,
		})
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list personas", res))
}

func (c *liveController) ListRooms(ctx *fiber.Ctx) error {
	rooms := c.liveService.ListRooms()
	res := make([]dto.RoomInfoResponse, 0, len(rooms))
	live := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		live[room.RoomID] = true
		res = append(res, roomInfo(room))
	}

	if ctx.QueryBool("include_inactive") {
		records, err := c.liveService.PersistedRooms(ctx.Context())
		if err != nil {
			return err
		}
		for _, r := range records {
			if live[r.RoomId] {
				continue
			}
			res = append(res, dto.RoomInfoResponse{
				RoomID:      r.RoomId,
				PersonaID:   r.PersonaId,
				PersonaName: c.liveService.PersonaName(r.PersonaId),
			})
		}
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list rooms", res))
}

func (c *liveController) ShowRoom(ctx *fiber.Ctx) error {
	roomID := ctx.Params("roomId")
	if room, ok := c.liveService.Lookup(roomID); ok {
		return ctx.JSON(serverutils.SuccessResponse("Success show room", roomInfo(room)))
	}

	// Not live on this instance; the creation record still describes it.
	record, err := c.liveService.RoomRecord(ctx.Context(), roomID)
	if err != nil || record == nil {
		return fiber.NewError(fiber.StatusNotFound, "room not found")
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show room", dto.RoomInfoResponse{
		RoomID:      record.RoomId,
		PersonaID:   record.PersonaId,
		PersonaName: c.liveService.PersonaName(record.PersonaId),
		OnlineCount: 0,
	}))
}

func (c *liveController) History(ctx *fiber.Ctx) error {
	roomID := ctx.Params("roomId")
	skip, _ := strconv.Atoi(ctx.Query("skip", "0"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	messages, total, err := c.liveService.History(ctx.Context(), roomID, skip, limit)
	if err != nil {
		return err
	}

	data := make([]dto.ChatMessageData, 0, len(messages))
	for _, m := range messages {
		data = append(data, dto.ChatMessageData{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show history", dto.HistoryResponse{
		RoomID:   roomID,
		Total:    total,
		Messages: data,
	}))
}

func (c *liveController) Danmaku(ctx *fiber.Ctx) error {
	var req dto.DanmakuRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	sessionID, reply, err := c.liveService.HandleDanmaku(ctx.Context(), req.SessionID, req.PersonaID, req.Message)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return ctx.JSON(serverutils.SuccessResponse("Success handle danmaku", dto.DanmakuResponse{
		SessionID: sessionID,
		Reply:     reply,
	}))
}

func roomInfo(room *service.Room) dto.RoomInfoResponse {
	return dto.RoomInfoResponse{
		RoomID:      room.RoomID,
		PersonaID:   room.PersonaID,
		PersonaName: room.Session.Persona().Name,
		OnlineCount: room.Broadcaster.OnlineCount(),
	}
}
