package server

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"studio-cli/internal/docs"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in topics is not passed through.
var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

var docPage = template.Must(template.New("doc").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>studio: {{.Topic}}</title></head>
<body>
<nav>{{range .Topics}}<a href="/docs/{{.}}">{{.}}</a> {{end}}</nav>
<main>{{.Body}}</main>
</body></html>
`))

func renderMarkdownHTML(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(b.String())
}

func listDocs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"topics": docs.Topics()})
}

func showDoc(c echo.Context) error {
	topic := c.Param("topic")
	body, ok := docs.Get(topic)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown docs topic: "+topic)
	}
	var out bytes.Buffer
	err := docPage.Execute(&out, map[string]any{
		"Topic":  topic,
		"Topics": docs.Topics(),
		"Body":   renderMarkdownHTML(body),
	})
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, out.Bytes())
}
