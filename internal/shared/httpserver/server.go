package httpserver

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hammerline/bidengine/internal/auction/application"
	"github.com/hammerline/bidengine/internal/auction/domain"
	auctionws "github.com/hammerline/bidengine/internal/auction/infra/websocket"
	"github.com/hammerline/bidengine/internal/shared/logger"
)

var log = logger.GetLogger()

// Server is the fiber app carrying the REST surface and the websocket
// upgrade route.
type Server struct {
	app *fiber.App
}

// NewServer builds the app with logging middleware and all routes wired.
func NewServer(service application.AuctionService, wsHandler *auctionws.AuctionWSHandler) *Server {
	app := fiber.New()

	app.Use(func(c *fiber.Ctx) error {
		log.Info("HTTP request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("remote_addr", c.IP()),
		)
		return c.Next()
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/auctions/:id/snapshot", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid auction id")
		}
		snap, err := service.GetSnapshot(c.Context(), id)
		if err != nil {
			return domainError(err)
		}
		return c.JSON(snap)
	})

	app.Get("/auctions/:id/bids", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid auction id")
		}
		bids, err := service.GetBids(c.Context(), id)
		if err != nil {
			return domainError(err)
		}
		return c.JSON(fiber.Map{"auction_id": id, "bids": bids})
	})

	app.Post("/auctions/:id/buy-now", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid auction id")
		}
		var body struct {
			BidderID uuid.UUID `json:"bidder_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.BidderID == uuid.Nil {
			return fiber.NewError(fiber.StatusBadRequest, "bidder_id is required")
		}
		res, err := service.BuyNow(c.Context(), id, body.BidderID)
		if err != nil {
			return domainError(err)
		}
		return c.JSON(fiber.Map{"bid_id": res.Bid.ID, "amount": res.Bid.Amount})
	})

	app.Post("/auctions/:id/cancel", func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid auction id")
		}
		if err := service.CancelAuction(c.Context(), id); err != nil {
			return domainError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// websocket upgrade path; the auction from the path is auto-joined
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/auctions/:id", fiberws.New(func(conn *fiberws.Conn) {
		id, err := uuid.Parse(conn.Params("id"))
		if err != nil {
			_ = conn.Close()
			return
		}
		wsHandler.HandleConnection(context.Background(), conn, id)
	}))

	return &Server{app: app}
}

// domainError maps domain errors onto HTTP status codes, keeping the
// rejection code visible to the client.
func domainError(err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAuctionNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrLockTimeout):
		status = fiber.StatusServiceUnavailable
	case domain.IsRejection(err):
		status = fiber.StatusConflict
	}
	return fiber.NewError(status, domain.RejectionCode(err))
}

// Start runs the listener and shuts down cleanly on SIGINT/SIGTERM.
func (s *Server) Start(addr string) error {
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		log.Info("Shutting down HTTP server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.app.ShutdownWithContext(ctx)
	}()

	log.Info("HTTP server started", zap.String("addr", addr))
	return s.app.Listen(addr)
}
