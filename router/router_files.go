package router

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wardenfs/warden/sandbox"
)

// Returns the contents of a file within the sandbox.
func getFileContents(c *gin.Context) {
	s := ExtractSandbox(c)

	content, err := s.ReadFile(c.Query("file"))
	if err != nil {
		WithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}

// Returns the immediate children of a directory within the sandbox.
func getListDirectory(c *gin.Context) {
	s := ExtractSandbox(c)

	stats, err := s.ListDirectory(c.Query("directory"))
	if err != nil {
		WithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Searches files under a directory for a literal text pattern.
func getSearchFiles(c *gin.Context) {
	s := ExtractSandbox(c)

	pattern := c.Query("pattern")
	if pattern == "" {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error": "A search pattern must be provided.",
		})
		return
	}

	contextLines, _ := strconv.Atoi(c.Query("context_lines"))
	results, err := s.Search(pattern, sandbox.SearchOptions{
		Directory:    c.Query("directory"),
		Recursive:    c.Query("recursive") == "true",
		IgnoreCase:   c.Query("ignore_case") == "true",
		ContextLines: contextLines,
	})
	if err != nil {
		WithError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// Writes the provided content to a file, replacing it entirely.
func postWriteFile(c *gin.Context) {
	s := ExtractSandbox(c)

	var data struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Backup  bool   `json:"backup"`
	}
	if err := c.BindJSON(&data); err != nil {
		return
	}

	if err := s.WriteFile(data.Path, data.Content, data.Backup); err != nil {
		WithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Streams the request body into a file within the sandbox.
func postStreamFile(c *gin.Context) {
	s := ExtractSandbox(c)

	n, err := s.StreamWrite(c.Query("file"), c.Request.Body)
	if err != nil {
		WithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"size": n})
}

// Deletes a file within the sandbox, snapshotting it first unless the caller
// opts out.
func postDeleteFile(c *gin.Context) {
	s := ExtractSandbox(c)

	var data struct {
		Path   string `json:"path"`
		Backup *bool  `json:"backup"`
	}
	if err := c.BindJSON(&data); err != nil {
		return
	}

	backup := true
	if data.Backup != nil {
		backup = *data.Backup
	}
	if err := s.Delete(data.Path, backup); err != nil {
		WithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Renames (or moves) a file within the sandbox.
func putRenameFile(c *gin.Context) {
	s := ExtractSandbox(c)

	var data struct {
		RenameFrom string `json:"rename_from"`
		RenameTo   string `json:"rename_to"`
		Backup     *bool  `json:"backup"`
	}
	if err := c.BindJSON(&data); err != nil {
		return
	}

	if data.RenameFrom == "" || data.RenameTo == "" {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Invalid paths were provided, did you forget to provide both a new and old path?",
		})
		return
	}

	backup := true
	if data.Backup != nil {
		backup = *data.Backup
	}
	if err := s.Rename(data.RenameFrom, data.RenameTo, backup); err != nil {
		WithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Replaces a uniquely-occurring fragment of a file with new text.
func postReplaceFile(c *gin.Context) {
	s := ExtractSandbox(c)

	var data struct {
		Path        string `json:"path"`
		OldFragment string `json:"old_fragment"`
		NewFragment string `json:"new_fragment"`
	}
	if err := c.BindJSON(&data); err != nil {
		return
	}

	if err := s.ReplaceInFile(data.Path, data.OldFragment, data.NewFragment); err != nil {
		WithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
