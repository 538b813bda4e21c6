package server

import (
	"checklist/config"
	"checklist/database"
	"checklist/handlers"
	"checklist/logger"
	"checklist/middleware"

	"github.com/gin-gonic/gin"
)

const (
	loginPath    = "/api/auth/login"
	registerPath = "/api/auth/register"
)

// NewRouter wires every route. Everything under /api except login, register,
// csrf and the template download requires a session.
func NewRouter(db *database.DB, cfg *config.Config, log *logger.Logger) *gin.Engine {
	sessions := middleware.NewSessions(cfg.SessionSecret, cfg.SessionSecure)

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	r.Use(middleware.RequestLogger(log), middleware.Recovery(), middleware.CORS(cfg.CORSOrigins))

	r.GET("/health", handlers.HealthCheck)

	public := r.Group("/api")
	public.Use(middleware.CSRFProtect(sessions, loginPath, registerPath))
	{
		public.POST("/auth/login", handlers.Login(db, sessions))
		public.POST("/auth/register", handlers.Register(db, sessions))
		public.GET("/csrf", handlers.CSRF(sessions))
		public.GET("/types/:id/download-template", handlers.DownloadTemplate)
	}

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(db, sessions), middleware.CSRFProtect(sessions))

	auth := api.Group("/auth")
	{
		auth.POST("/logout", handlers.Logout(sessions))
		auth.POST("/change-password", handlers.ChangePassword(db))
		auth.GET("/user", handlers.Me)
	}

	types := api.Group("/types")
	{
		types.GET("", handlers.ListTypes(db))
		types.POST("", handlers.CreateType(db))
		types.GET("/:id", handlers.GetType(db))
		types.PUT("/:id", handlers.UpdateType(db))
		types.DELETE("/:id", handlers.DeleteType(db))
		types.POST("/:id/upload-xlsx", handlers.UploadTemplate(db, cfg.MaxUploadBytes))
		types.GET("/:id/segments", handlers.TypeSegments(db))
	}

	projects := api.Group("/projects")
	{
		projects.GET("", handlers.ListProjects(db))
		projects.POST("", handlers.CreateProject(db))
		projects.GET("/export-json", handlers.ExportProjectsJSON(db))
		projects.POST("/import-json", handlers.ImportArchive(db, cfg.MaxUploadBytes))
		projects.GET("/:id", handlers.GetProject(db))
		projects.PUT("/:id", handlers.UpdateProject(db))
		projects.DELETE("/:id", handlers.DeleteProject(db))
		projects.GET("/:id/types", handlers.ProjectTypes(db))
		projects.GET("/:id/segments", handlers.ProjectSegments(db))
		projects.GET("/:id/export-archive", handlers.ExportArchive(db))
		projects.GET("/:id/export-xlsx", handlers.ExportXLSX(db))
		projects.GET("/:id/export-pdf", handlers.ExportPDF(db))
	}

	segments := api.Group("/segments")
	{
		segments.GET("", handlers.ListSegments(db))
		segments.POST("", handlers.CreateSegment(db))
		segments.GET("/:id", handlers.GetSegment(db))
		segments.PUT("/:id", handlers.UpdateSegment(db))
		segments.DELETE("/:id", handlers.DeleteSegment(db))
		segments.GET("/:id/questions", handlers.SegmentQuestions(db))
	}

	questions := api.Group("/questions")
	{
		questions.GET("", handlers.ListQuestions(db))
		questions.POST("", handlers.CreateQuestion(db))
		questions.GET("/:id", handlers.GetQuestion(db))
		questions.PUT("/:id", handlers.UpdateQuestion(db))
		questions.DELETE("/:id", handlers.DeleteQuestion(db))
		questions.GET("/:id/answers", handlers.QuestionAnswers(db))
	}

	serials := api.Group("/serial-numbers")
	{
		serials.GET("", handlers.ListSerialNumbers(db))
		serials.GET("/:id", handlers.GetSerialNumber(db))
		serials.PUT("/:id", handlers.UpdateSerialNumber(db))
		serials.DELETE("/:id", handlers.DeleteSerialNumber(db))
		serials.GET("/:id/answers", handlers.SerialNumberAnswers(db))
	}

	answers := api.Group("/answers")
	{
		answers.GET("", handlers.ListAnswers(db))
		answers.POST("", handlers.SaveAnswer(db))
		answers.POST("/batch", handlers.SaveAnswers(db))
		answers.GET("/:id", handlers.GetAnswer(db))
		answers.PUT("/:id", handlers.UpdateAnswer(db))
		answers.DELETE("/:id", handlers.DeleteAnswer(db))
	}

	settings := api.Group("/settings")
	{
		settings.GET("", handlers.ListSettings(db))
		settings.PUT("", handlers.PutSettings(db))
		settings.GET("/:key", handlers.GetSetting(db))
		settings.PUT("/:key", handlers.PutSetting(db))
		settings.DELETE("/:key", handlers.DeleteSetting(db))
	}

	profiles := api.Group("/profiles")
	{
		profiles.GET("", handlers.ListProfiles(db))
		profiles.GET("/:id", handlers.GetProfile(db))
		profiles.PUT("/:id", handlers.UpdateProfile(db))
	}

	audit := api.Group("/audit-log")
	{
		audit.GET("", handlers.GetAuditLog(db))
		audit.GET("/:id", handlers.GetAuditEntry(db))
	}

	api.GET("/users/me", handlers.Me)
	users := api.Group("/users")
	users.Use(middleware.StaffRequired())
	{
		users.GET("", handlers.ListUsers(db))
		users.POST("", handlers.CreateUser(db))
		users.GET("/:id", handlers.GetUser(db))
		users.PUT("/:id", handlers.UpdateUser(db))
		users.DELETE("/:id", handlers.DeleteUser(db))
	}

	return r
}
