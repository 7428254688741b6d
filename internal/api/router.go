package api

import (
	"gastoscan/internal/api/handlers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// maxUploadBytes caps the request body for multipart uploads.
const maxUploadBytes = 50 * 1024 * 1024

func SetupRouter(expenseHandler *handlers.ExpenseHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: maxUploadBytes,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	app.Use(logger.New())

	app.Post("/process", expenseHandler.ProcessFiles)
	app.Get("/health", expenseHandler.Health)

	api := app.Group("/api")
	api.Get("/history", expenseHandler.History)
	api.Post("/search", expenseHandler.Search)
	api.Post("/ai-query", expenseHandler.AIQuery)

	return app
}
