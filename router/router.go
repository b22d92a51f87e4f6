package router

import (
	"github.com/gin-gonic/gin"

	"github.com/wardenfs/warden/sandbox"
)

// Configure sets up the routing infrastructure for this daemon instance. All
// routes sit behind the bearer-token authorization middleware.
func Configure(s *sandbox.Sandbox) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(AttachRequestID, AttachSandbox(s), SetAccessControlHeaders)
	router.Use(AuthorizationMiddleware)

	router.GET("/api/system", getSystemInformation)

	files := router.Group("/api/files")
	{
		files.GET("/contents", getFileContents)
		files.GET("/list", getListDirectory)
		files.GET("/search", getSearchFiles)
		files.POST("/write", postWriteFile)
		files.POST("/stream", postStreamFile)
		files.POST("/delete", postDeleteFile)
		files.PUT("/rename", putRenameFile)
		files.POST("/replace", postReplaceFile)
	}

	return router
}
