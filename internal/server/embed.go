package server

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/lansite/webui"
)

// registerConsole mounts the embedded web console under /ui/.
func registerConsole(r *gin.Engine) error {
	sub, err := fs.Sub(webui.FS, "web")
	if err != nil {
		return err
	}
	r.StaticFS("/ui", http.FS(sub))
	return nil
}
