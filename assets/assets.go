package assets

import (
	"embed"
	"io/fs"
)

//go:embed templates
var templateFS embed.FS

// TemplateFS holds the HTML templates of the web server.
var TemplateFS fs.FS

func init() {
	var err error

	TemplateFS, err = fs.Sub(templateFS, "templates")
	if err != nil {
		panic("failed to subtree template FS " + err.Error())
	}
}
