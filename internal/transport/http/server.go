package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "github.com/JanhviHarwani/access-ed-backend/internal/app"
	"github.com/JanhviHarwani/access-ed-backend/internal/bootstrap"
	"github.com/JanhviHarwani/access-ed-backend/internal/transport/http/handler"
	"github.com/JanhviHarwani/access-ed-backend/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) (*gin.Engine, error) {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	authService, err := appsvc.NewAuthService(
		app.Config.Auth.AdminUsername,
		app.Config.Auth.AdminPasswordHash,
		app.Config.Auth.AdminPassword,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	if err != nil {
		return nil, err
	}

	retriever := appsvc.NewRetriever(app.Embedder, app.Qdrant)
	composer := appsvc.NewComposer(
		app.Generator,
		app.Config.Retrieval.MinScore,
		app.Config.Retrieval.MaxContextChars,
	)
	chatService := appsvc.NewChatService(
		retriever,
		composer,
		app.History,
		app.Config.Retrieval.TopK,
		app.Log,
	)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	documentHandler := handler.NewDocumentHandler(app.Ingest, app.Publisher, app.Config.Corpus.Dir)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", authHandler.Login)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("", chatHandler.Chat)
	chatGroup.POST("/stream", chatHandler.ChatStream)
	chatGroup.DELETE("/sessions/:id", chatHandler.ResetSession)

	docGroup := v1.Group("/documents")
	docGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	docGroup.POST("", documentHandler.Create)
	docGroup.POST("/upload", documentHandler.UploadPDF)
	docGroup.POST("/reload", documentHandler.Reload)
	docGroup.GET("", documentHandler.List)
	docGroup.DELETE("/:id", documentHandler.Delete)

	return router, nil
}
